package rulelist

import (
	"strings"

	"switchpac/internal/conditions"
	"switchpac/internal/logger"
)

// autoProxyMagic is "[AutoProx" in base64, the start of an encoded list.
const autoProxyMagic = "W0F1dG9Qcm94"

// AutoProxy is the ad-blocker style list format used by gfwlist.
//
//	!comment        ignored
//	@@rule          exception, routed to the default profile
//	/regex/         URL regex
//	||example.com   host and all subdomains
//	|http://x       URL prefix
//	keyword         plain http URL containing keyword
//	a*b             URL wildcard http://*a*b*
type AutoProxy struct{}

func (AutoProxy) Name() string { return "AutoProxy" }

func (AutoProxy) Detect(text string) bool {
	return strings.HasPrefix(text, autoProxyMagic) || strings.HasPrefix(text, "[AutoProxy")
}

// Preprocess decodes base64 encoded lists.
func (AutoProxy) Preprocess(text string) string {
	if !strings.HasPrefix(text, autoProxyMagic) {
		return text
	}
	decoded, err := decodeBase64(text)
	if err != nil {
		logger.L().Warnf("AutoProxy list looks base64 encoded but does not decode: %v", err)
		return text
	}
	return decoded
}

// Parse never fails. Exceptions come first in the result so they take
// priority over every other rule.
func (a AutoProxy) Parse(text, matchProfileName, defaultProfileName string, opts ParseOptions) ([]Rule, error) {
	text = a.Preprocess(text)
	var normal, exclusive []Rule
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '!' || line[0] == '[' {
			continue
		}
		source := line
		profile := matchProfileName
		list := &normal
		if strings.HasPrefix(line, "@@") {
			profile = defaultProfileName
			list = &exclusive
			line = line[2:]
		}
		rule := Rule{Condition: autoProxyCondition(line), ProfileName: profile}
		if !opts.OmitSource {
			rule.Source = source
		}
		*list = append(*list, rule)
	}
	return append(exclusive, normal...), nil
}

func autoProxyCondition(line string) conditions.Condition {
	switch {
	case strings.HasPrefix(line, "/"):
		pattern := line[1:]
		if len(pattern) > 0 {
			pattern = pattern[:len(pattern)-1]
		}
		return conditions.URLRegexCondition{Pattern: pattern}
	case strings.HasPrefix(line, "||"):
		return conditions.HostWildcardCondition{Pattern: "*." + line[2:]}
	case strings.HasPrefix(line, "|"):
		return conditions.URLWildcardCondition{Pattern: line[1:] + "*"}
	case !strings.Contains(line, "*"):
		return conditions.KeywordCondition{Pattern: line}
	}
	return conditions.URLWildcardCondition{Pattern: "http://*" + line + "*"}
}
