package rulelist

import (
	"strings"

	"switchpac/internal/conditions"
	"switchpac/internal/logger"
)

const (
	omegaPrefix = "[SwitchyOmega Conditions"
	// Lines starting with one of these are never plain conditions.
	specialLineStart = "[;#@!"
)

// Switchy reads two dialects. The structured one starts with a
// "[SwitchyOmega Conditions]" header and holds one condition per line:
//
//	[SwitchyOmega Conditions]
//	@with result
//	@note Corporate hosts
//	*.corp.example.com +corp
//	!*.example.com
//	* +direct
//
// The legacy dialect wraps wildcard or regex sections in #BEGIN ... #END.
type Switchy struct{}

func (Switchy) Name() string { return "Switchy" }

func (Switchy) Detect(text string) bool {
	return strings.HasPrefix(text, omegaPrefix)
}

func (Switchy) Preprocess(text string) string {
	return strings.TrimPrefix(text, "\ufeff")
}

func isLegacy(text string) bool {
	if strings.HasPrefix(text, omegaPrefix) {
		return false
	}
	return strings.HasPrefix(text, "#") || strings.Contains(text, "\n#")
}

func (s Switchy) Parse(text, matchProfileName, defaultProfileName string, opts ParseOptions) ([]Rule, error) {
	text = strings.TrimSpace(s.Preprocess(text))
	if isLegacy(text) {
		return parseLegacy(text, matchProfileName, defaultProfileName, opts), nil
	}
	return parseOmega(text, matchProfileName, defaultProfileName, opts)
}

func parseLegacy(text, matchProfileName, defaultProfileName string, opts ParseOptions) []Rule {
	var normal, exclusive []Rule
	begin := false
	section := "WILDCARD"
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == ';' {
			continue
		}
		if !begin {
			if strings.EqualFold(line, "#BEGIN") {
				begin = true
			}
			continue
		}
		if strings.EqualFold(line, "#END") {
			break
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			section = strings.ToUpper(line[1 : len(line)-1])
			continue
		}

		source := line
		profile := matchProfileName
		list := &normal
		if line[0] == '!' {
			profile = defaultProfileName
			list = &exclusive
			line = line[1:]
		}

		var cond conditions.Condition
		switch section {
		case "WILDCARD":
			cond = conditionFromLegacyWildcard(line)
		case "REGEXP":
			cond = conditions.URLRegexCondition{Pattern: line}
		default:
			logger.L().Debugf("skipping line in unknown section [%s]: %s", section, line)
			continue
		}
		rule := Rule{Condition: cond, ProfileName: profile}
		if !opts.OmitSource {
			rule.Source = source
		}
		*list = append(*list, rule)
	}
	return append(exclusive, normal...)
}

// conditionFromLegacyWildcard widens a legacy URL wildcard to a substring
// match unless it starts with "@", then narrows "*://host/*" to a host rule.
func conditionFromLegacyWildcard(pattern string) conditions.Condition {
	if strings.HasPrefix(pattern, "@") {
		pattern = pattern[1:]
	} else {
		if strings.Index(pattern, "://") <= 0 && !strings.HasPrefix(pattern, "*") {
			pattern = "*" + pattern
		}
		if !strings.HasSuffix(pattern, "*") {
			pattern += "*"
		}
	}
	if host := conditions.URLWildcard2HostWildcard(pattern); host != "" {
		return conditions.HostWildcardCondition{Pattern: host}
	}
	return conditions.URLWildcardCondition{Pattern: pattern}
}

func parseOmega(text, matchProfileName, defaultProfileName string, opts ParseOptions) ([]Rule, error) {
	var (
		rules           []Rule
		needsExclusive  []int
		withResult      bool
		exclusive       string
		noteForNextRule *string
	)
	fail := func(e *ParseError) error {
		if opts.Strict {
			return e
		}
		logger.L().Debugf("skipping rule list line: %v", e)
		return nil
	}

	for i, line := range splitLines(text) {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line[0] {
		case '[', ';':
			continue
		case '@':
			directive, value, _ := strings.Cut(line[1:], " ")
			value = strings.TrimSpace(value)
			switch strings.ToUpper(directive) {
			case "WITH":
				if feature := strings.ToUpper(value); feature == "RESULT" || feature == "RESULTS" {
					withResult = true
				}
			case "NOTE":
				noteForNextRule = &value
			}
			continue
		}

		// A strict catch-all only counts when it is the last rule.
		if opts.Strict {
			exclusive = ""
		}

		source := ""
		profile := ""
		switch {
		case line[0] == '!':
			if !withResult {
				profile = defaultProfileName
			}
			source = line
			line = line[1:]
		case withResult:
			idx := strings.LastIndex(line, " +")
			if idx < 0 {
				if err := fail(&ParseError{
					Reason:  ReasonMissingResultProfile,
					Message: "Missing result profile name: " + line,
					Source:  line,
					LineNo:  lineNo,
				}); err != nil {
					return nil, err
				}
				continue
			}
			profile = strings.TrimSpace(line[idx+2:])
			line = strings.TrimSpace(line[:idx])
			if line == "*" {
				exclusive = profile
			}
		default:
			profile = matchProfileName
		}

		cond := conditions.FromStr(line)
		if cond == nil {
			if source == "" {
				source = line
			}
			if err := fail(&ParseError{
				Reason:  ReasonInvalidRule,
				Message: "Invalid rule: " + line,
				Source:  source,
				LineNo:  lineNo,
			}); err != nil {
				return nil, err
			}
			continue
		}

		rule := Rule{Condition: cond, ProfileName: profile}
		if !opts.OmitSource {
			rule.Source = source
			if rule.Source == "" {
				rule.Source = line
			}
		}
		if noteForNextRule != nil {
			rule.Note = *noteForNextRule
			noteForNextRule = nil
		}
		if profile == "" {
			needsExclusive = append(needsExclusive, len(rules))
		}
		rules = append(rules, rule)
	}

	if withResult {
		if exclusive == "" {
			if opts.Strict {
				return nil, &ParseError{
					Reason:  ReasonNoDefaultRule,
					Message: "Missing default rule with catch-all '*' condition",
				}
			}
			exclusive = defaultProfileName
			if exclusive == "" {
				exclusive = "direct"
			}
		}
		for _, i := range needsExclusive {
			rules[i].ProfileName = exclusive
		}
	}
	return rules, nil
}

// Compose writes rules in the structured dialect. Parsing the result with
// the same profile names yields the same rules.
func (Switchy) Compose(rules []Rule, defaultProfileName string, opts ComposeOptions) string {
	const eol = "\r\n"
	useExclusive := !opts.WithResult
	if opts.UseExclusive != nil {
		useExclusive = *opts.UseExclusive
	}

	var b strings.Builder
	b.WriteString("[SwitchyOmega Conditions]" + eol)
	if opts.WithResult {
		b.WriteString("@with result" + eol + eol)
	} else {
		b.WriteString(eol)
	}

	special := specialLineStart + "+"
	for _, rule := range rules {
		if rule.Note != "" {
			b.WriteString("@note " + rule.Note + eol)
		}
		line := conditions.Str(rule.Condition)
		if useExclusive && rule.ProfileName == defaultProfileName {
			line = "!" + line
		} else {
			if line != "" && strings.IndexByte(special, line[0]) >= 0 {
				line = ": " + line
			}
			if opts.WithResult {
				line += " +" + rule.ProfileName
			}
		}
		b.WriteString(line + eol)
	}
	if opts.WithResult {
		b.WriteString(eol + "* +" + defaultProfileName + eol)
	}
	return b.String()
}

// DirectReferenceSet lists every profile a "@with result" list can route to,
// including the default profile. It returns nil for lists without results.
func (Switchy) DirectReferenceSet(text, matchProfileName, defaultProfileName string) map[string]bool {
	text = strings.TrimSpace(text)
	if isLegacy(text) || !hasWithResult(text) {
		return nil
	}
	fallback := defaultProfileName
	if fallback == "" {
		fallback = "direct"
	}
	refs := map[string]bool{fallback: true}
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" || strings.IndexByte(specialLineStart, line[0]) >= 0 {
			continue
		}
		if idx := strings.LastIndex(line, " +"); idx >= 0 {
			refs[strings.TrimSpace(line[idx+2:])] = true
		}
	}
	return refs
}

// hasWithResult reports whether a line of text is exactly an
// "@with result" or "@with results" directive, ignoring case.
func hasWithResult(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if len(line) < 5 || !strings.EqualFold(line[:5], "@with") {
			continue
		}
		rest := line[5:]
		feature := strings.TrimLeft(rest, " \t\f\v")
		if len(feature) == len(rest) {
			continue
		}
		if i := strings.IndexByte(feature, '\r'); i >= 0 {
			feature = feature[:i]
		}
		if strings.EqualFold(feature, "result") || strings.EqualFold(feature, "results") {
			return true
		}
	}
	return false
}
