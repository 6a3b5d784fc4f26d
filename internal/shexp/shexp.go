// Package shexp converts shell-style wildcard patterns into regular
// expressions and compiles them with JavaScript semantics, so a pattern
// behaves the same in Go as it does inside a generated PAC script.
package shexp

import (
	"strings"
	"time"
)

// MatchTimeout bounds a single regex evaluation. A match that runs out of
// time counts as no match.
const MatchTimeout = 250 * time.Millisecond

// metaChars lists every character escaped in the literal parts of a wildcard.
const metaChars = `\[^$.|?*+(){}/`

// ToRegex converts a wildcard pattern (`*` any run, `?` one character) into
// regex source. The result is anchored with ^ and $ unless trimAsterisk
// removed leading or trailing stars, in which case the matching anchor is
// omitted. A pattern made only of stars yields "" when trimming.
func ToRegex(pattern string, trimAsterisk bool) string {
	start, end := 0, len(pattern)
	if trimAsterisk {
		for start < end && pattern[start] == '*' {
			start++
		}
		for start < end && pattern[end-1] == '*' {
			end--
		}
		if start == end {
			return ""
		}
	}

	var b strings.Builder
	b.Grow(len(pattern) * 2)
	if start == 0 {
		b.WriteByte('^')
	}
	for i := start; i < end; i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			if strings.IndexByte(metaChars, c) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	if end == len(pattern) {
		b.WriteByte('$')
	}
	return b.String()
}

// QuoteMeta escapes every regex metacharacter in s, including the wildcard
// characters.
func QuoteMeta(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(metaChars, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EscapeSlash escapes every `/` that is not already escaped, so the source
// can be embedded between slashes as a regex literal.
func EscapeSlash(pattern string) string {
	if strings.IndexByte(pattern, '/') < 0 {
		return pattern
	}
	var b strings.Builder
	b.Grow(len(pattern) + 8)
	escaped := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '/' && !escaped {
			b.WriteString(`\/`)
		} else {
			b.WriteByte(c)
		}
		escaped = c == '\\' && !escaped
	}
	return b.String()
}
