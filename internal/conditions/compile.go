package conditions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"switchpac/internal/ipaddr"
	"switchpac/internal/shexp"
)

// Compile translates c into a JavaScript boolean expression over the PAC
// variables url, host and scheme. The expression has the same matching
// semantics as Engine.Match. Weekday and time conditions read the clock when
// the script runs.
func Compile(c Condition) (string, error) {
	switch c := c.(type) {
	case TrueCondition:
		return "true", nil
	case FalseCondition:
		return "false", nil
	case URLRegexCondition:
		return regexTest("url", shexp.SafeRegex(shexp.EscapeSlash(c.Pattern)))
	case HostRegexCondition:
		return regexTest("host", shexp.SafeRegex(shexp.EscapeSlash(c.Pattern)))
	case URLWildcardCondition:
		return regexTest("url", shexp.SafeRegex(urlWildcardSource(c.Pattern)))
	case HostWildcardCondition:
		return regexTest("host", shexp.SafeRegex(hostWildcardSource(c.Pattern)))
	case KeywordCondition:
		return `scheme === "http" && url.indexOf(` + JSString(c.Pattern) + `) >= 0`, nil
	case BypassCondition:
		return compileBypass(analyzeBypass(c.Pattern))
	case IPCondition:
		return compileIP(c), nil
	case HostLevelsCondition:
		return fmt.Sprintf(`(function (n) { return n >= %d && n <= %d; })(host.split(".").length - 1)`,
			c.MinValue, c.MaxValue), nil
	case WeekdayCondition:
		if c.Days != "" {
			return JSString(c.Days) + ".charCodeAt(new Date().getDay()) > 64", nil
		}
		return fmt.Sprintf(`(function (d) { return d >= %d && d <= %d; })(new Date().getDay())`,
			c.StartDay, c.EndDay), nil
	case TimeCondition:
		return fmt.Sprintf(`(function (h) { return h >= %d && h <= %d; })(new Date().getHours())`,
			c.StartHour, c.EndHour), nil
	case nil:
		return "", ErrUnknownConditionType
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownConditionType, c.Type())
}

func regexTest(variable string, re *shexp.Regex) (string, error) {
	if !re.Valid() {
		return "", fmt.Errorf("invalid regex %q: %w", re.Source(), re.Err())
	}
	if re.Source() == "" {
		return "true", nil
	}
	return RegexLiteral(re.Source()) + ".test(" + variable + ")", nil
}

// RegexLiteral wraps an already slash-escaped regex source in a JavaScript
// regex literal. Line terminators and non-ASCII characters are written as \u
// escapes so the literal stays on one line and in ASCII. A backslash
// escaping one of those characters is dropped.
func RegexLiteral(source string) string {
	var b strings.Builder
	b.Grow(len(source) + 2)
	b.WriteByte('/')
	escaped := false
	for _, r := range source {
		if r != '\n' && r != '\r' && r < 0x80 {
			b.WriteRune(r)
			escaped = r == '\\' && !escaped
			continue
		}
		if escaped {
			// The escape is the character itself; drop the backslash.
			s := b.String()[:b.Len()-1]
			b.Reset()
			b.WriteString(s)
			escaped = false
		}
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			writeRune(&b, r)
		}
	}
	b.WriteByte('/')
	return b.String()
}

var localHostsExpr = func() string {
	parts := make([]string, 0, len(localHosts)+1)
	for _, h := range localHosts {
		parts = append(parts, "host === "+JSString(h))
	}
	parts = append(parts, `host.indexOf(".") < 0`)
	return "(" + strings.Join(parts, " || ") + ")"
}()

func compileBypass(m *bypassMatcher) (string, error) {
	if m.local {
		return localHostsExpr, nil
	}
	var parts []string
	if m.scheme != "" {
		parts = append(parts, "scheme === "+JSString(m.scheme))
	}
	if m.ip != nil {
		parts = append(parts, compileIP(*m.ip))
	}
	if m.host != nil {
		expr, err := regexTest("host", m.host)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	if m.url != nil {
		expr, err := regexTest("url", m.url)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	switch len(parts) {
	case 0:
		return "true", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " && ") + ")", nil
}

// compileIP relies on the PAC isInNet builtin. The host is checked to be an
// IPv4 literal first so isInNet never triggers a DNS lookup.
func compileIP(c IPCondition) string {
	addr := ipaddr.Parse(c.IP)
	if addr == nil || !addr.V4 || c.PrefixLength < 0 || c.PrefixLength > 32 {
		return "false"
	}
	return `(/^\d+\.\d+\.\d+\.\d+$/.test(host) && isInNet(host, ` +
		JSString(addr.Masked(c.PrefixLength)) + ", " + JSString(ipaddr.MaskV4(c.PrefixLength)) + "))"
}

// JSString quotes s as a JavaScript string literal. Non-ASCII characters are
// written as \u escapes so the script is plain ASCII.
func JSString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return ASCII(strings.TrimSuffix(buf.String(), "\n"))
}

// ASCII replaces every non-ASCII character in s by its \uXXXX escape, using
// surrogate pairs outside the basic plane.
func ASCII(s string) string {
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for _, r := range s {
		writeRune(&b, r)
	}
	return b.String()
}

func writeRune(b *strings.Builder, r rune) {
	switch {
	case r < 0x80:
		b.WriteRune(r)
	case r > 0xffff:
		r -= 0x10000
		writeU(b, 0xd800+(r>>10))
		writeU(b, 0xdc00+(r&0x3ff))
	default:
		writeU(b, r)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func writeU(b *strings.Builder, r rune) {
	hex := strconv.FormatInt(int64(r), 16)
	b.WriteString(`\u`)
	b.WriteString(strings.Repeat("0", 4-len(hex)))
	b.WriteString(hex)
}

// Comment renders c for use inside a single line script comment.
func Comment(c Condition) string {
	s := Str(c)
	s = strings.ReplaceAll(s, "*/", "* /")
	s = strings.NewReplacer("\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ").Replace(s)
	return ASCII(s)
}
