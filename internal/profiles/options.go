package profiles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Options is the flat settings collection. Profiles are stored under
// "+name" as Profile values; any other key is an unrelated setting kept as
// json.RawMessage.
type Options map[string]any

// Key returns the options key of a profile name.
func Key(name string) string {
	return "+" + name
}

// IsProfileKey reports whether key addresses a profile.
func IsProfileKey(key string) bool {
	return strings.HasPrefix(key, "+")
}

var builtins = map[string]Profile{
	"direct": &DirectProfile{Base: Base{Name: "direct", ProfileType: TypeDirect, Color: "#aaaaaa"}},
	"system": &SystemProfile{Base: Base{Name: "system", ProfileType: TypeSystem, Color: "#000000"}},
}

// builtinNames keeps iteration over builtins stable.
var builtinNames = []string{"direct", "system"}

// IsBuiltin reports whether name is one of the implicit profiles.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// ByName looks up a profile, builtins first. Builtin profiles are shared and
// must not be modified.
func ByName(name string, opts Options) Profile {
	if p, ok := builtins[name]; ok {
		return p
	}
	if p, ok := opts[Key(name)].(Profile); ok {
		return p
	}
	return nil
}

// Put stores p under its key.
func (o Options) Put(p Profile) {
	o[Key(NameOf(p))] = p
}

// Each calls fn for every user profile in key order and then for every
// builtin profile. Non-profile entries are skipped.
func Each(opts Options, fn func(key string, p Profile)) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		if IsProfileKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p, ok := opts[k].(Profile); ok {
			fn(k, p)
		}
	}
	for _, name := range builtinNames {
		fn(Key(name), builtins[name])
	}
}

// Decode reads a profile from its JSON form, dispatching on profileType.
func Decode(data []byte) (Profile, error) {
	var head Base
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	var p Profile
	switch head.ProfileType {
	case TypeDirect:
		p = &DirectProfile{}
	case TypeSystem:
		p = &SystemProfile{}
	case TypeFixed:
		p = &FixedProfile{}
	case TypePac:
		p = &PacProfile{}
	case TypeSwitch, TypeVirtual:
		p = &SwitchProfile{}
	case TypeRuleList, TypeSwitchyRuleList, TypeAutoProxyRuleList:
		p = &RuleListProfile{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfileType, head.ProfileType)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", head.ProfileType, head.Name, err)
	}
	return p, nil
}

// DecodeOptions reads a whole options collection. Profile entries that
// cannot be decoded are reported as errors; other entries are kept raw.
func DecodeOptions(data []byte) (Options, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	opts := make(Options, len(raw))
	for k, v := range raw {
		if !IsProfileKey(k) {
			opts[k] = v
			continue
		}
		p, err := Decode(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if NameOf(p) == "" {
			p.Common().Name = k[1:]
		}
		opts[k] = p
	}
	return opts, nil
}

// Len returns the number of user profiles.
func (o Options) Len() int {
	n := 0
	for k := range o {
		if IsProfileKey(k) {
			n++
		}
	}
	return n
}
