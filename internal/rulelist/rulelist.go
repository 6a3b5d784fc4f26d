// Package rulelist parses and composes the text rule list formats that
// RuleList profiles subscribe to.
package rulelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"switchpac/internal/conditions"
)

var ErrUnknownFormat = errors.New("unknown rule list format")

// Rule maps a condition to the name of the profile used when it matches.
type Rule struct {
	Condition   conditions.Condition
	ProfileName string
	// Source is the line the rule was parsed from, if known.
	Source string
	Note   string
}

type ruleJSON struct {
	Condition   json.RawMessage `json:"condition"`
	ProfileName string          `json:"profileName"`
	Source      string          `json:"source,omitempty"`
	Note        string          `json:"note,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	cond, err := conditions.Marshal(r.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{Condition: cond, ProfileName: r.ProfileName, Source: r.Source, Note: r.Note})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cond, err := conditions.Unmarshal(raw.Condition)
	if err != nil {
		return err
	}
	*r = Rule{Condition: cond, ProfileName: raw.ProfileName, Source: raw.Source, Note: raw.Note}
	return nil
}

// ParseOptions controls parsing. In strict mode the first malformed line is
// reported as a *ParseError; otherwise malformed lines are skipped.
type ParseOptions struct {
	Strict     bool
	OmitSource bool
}

// ParseError describes a malformed line found in strict mode.
type ParseError struct {
	Reason  string // missingResultProfile, invalidRule or noDefaultRule
	Message string
	Source  string
	LineNo  int
}

func (e *ParseError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("line %d: %s", e.LineNo, e.Message)
	}
	return e.Message
}

const (
	ReasonMissingResultProfile = "missingResultProfile"
	ReasonInvalidRule          = "invalidRule"
	ReasonNoDefaultRule        = "noDefaultRule"
)

// Format is a rule list text format.
type Format interface {
	Name() string
	// Detect reports whether text is recognisably in this format.
	Detect(text string) bool
	// Preprocess normalises fetched text before it is stored.
	Preprocess(text string) string
	Parse(text, matchProfileName, defaultProfileName string, opts ParseOptions) ([]Rule, error)
}

// Composer is implemented by formats that can write rules back to text.
type Composer interface {
	Compose(rules []Rule, defaultProfileName string, opts ComposeOptions) string
}

// ReferenceLister is implemented by formats whose rules may name arbitrary
// result profiles. DirectReferenceSet returns nil when text does not use
// that feature.
type ReferenceLister interface {
	DirectReferenceSet(text, matchProfileName, defaultProfileName string) map[string]bool
}

type ComposeOptions struct {
	WithResult bool
	// UseExclusive writes rules targeting the default profile as "!" lines.
	// Nil means the opposite of WithResult.
	UseExclusive *bool
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Format)
	order    []string
)

// Register makes a format available by name. Formats are detected in
// registration order.
func Register(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[f.Name()]; !ok {
		order = append(order, f.Name())
	}
	registry[f.Name()] = f
}

func Get(name string) (Format, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Names lists the registered formats, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := append([]string(nil), order...)
	sort.Strings(names)
	return names
}

// Detect returns the first registered format recognising text, or nil.
func Detect(text string) Format {
	mu.RLock()
	defer mu.RUnlock()
	for _, name := range order {
		if f := registry[name]; f.Detect(text) {
			return f
		}
	}
	return nil
}

// Parse parses text with the named format.
func Parse(format, text, matchProfileName, defaultProfileName string, opts ParseOptions) ([]Rule, error) {
	f, err := Get(format)
	if err != nil {
		return nil, err
	}
	return f.Parse(text, matchProfileName, defaultProfileName, opts)
}

func init() {
	Register(Switchy{})
	Register(AutoProxy{})
}

// splitLines splits on every CR and LF, keeping empty lines so line numbers
// count both characters.
func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n")
}
