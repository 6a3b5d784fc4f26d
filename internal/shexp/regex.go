package shexp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// ErrInvalidGroup reports group syntax that regexp2 accepts but JavaScript
// regex literals reject, such as inline flags or atomic groups.
var ErrInvalidGroup = errors.New("invalid regular expression group")

// Regex is a compiled pattern. The zero value and any pattern that failed to
// compile match nothing.
type Regex struct {
	source string
	re     *regexp2.Regexp
	err    error
}

// SafeRegex compiles source with ECMAScript semantics. It never fails: an
// invalid source produces a Regex that never matches and reports the
// compile error through Err.
func SafeRegex(source string) *Regex {
	if err := checkGroups(source); err != nil {
		return &Regex{source: source, err: err}
	}
	re, err := regexp2.Compile(source, regexp2.ECMAScript)
	if err != nil {
		return &Regex{source: source, err: err}
	}
	re.MatchTimeout = MatchTimeout
	return &Regex{source: source, re: re}
}

// Source returns the regex source the value was built from.
func (r *Regex) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Valid reports whether the source compiled.
func (r *Regex) Valid() bool {
	return r != nil && r.re != nil
}

// Err returns the compile error, if any.
func (r *Regex) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// MatchString reports whether s contains a match. Timeouts count as no match.
func (r *Regex) MatchString(s string) bool {
	if !r.Valid() {
		return false
	}
	ok, err := r.re.MatchString(s)
	return err == nil && ok
}

// checkGroups rejects every "(?" construct a JavaScript engine would refuse:
// only (?:, (?=, (?!, (?<=, (?<! and (?<name> are allowed.
func checkGroups(source string) error {
	inClass := false
	for i := 0; i < len(source); i++ {
		c := source[i]
		if c == '\\' {
			i++
			continue
		}
		if inClass {
			if c == ']' {
				inClass = false
			}
			continue
		}
		if c == '[' {
			inClass = true
			continue
		}
		if c != '(' || i+1 >= len(source) || source[i+1] != '?' {
			continue
		}

		rest := source[i+2:]
		switch {
		case strings.HasPrefix(rest, ":"), strings.HasPrefix(rest, "="), strings.HasPrefix(rest, "!"),
			strings.HasPrefix(rest, "<="), strings.HasPrefix(rest, "<!"):
		case strings.HasPrefix(rest, "<"):
			end := strings.IndexByte(rest, '>')
			if end < 0 || !isGroupName(rest[1:end]) {
				return fmt.Errorf("%w at offset %d", ErrInvalidGroup, i)
			}
		default:
			return fmt.Errorf("%w at offset %d", ErrInvalidGroup, i)
		}
	}
	return nil
}

func isGroupName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
