// Package profiles implements the profile model: the profile types, the
// flat options collection they live in, the reference graph between them
// and per-request matching.
package profiles

import (
	"errors"
	"fmt"
	"strings"

	"switchpac/internal/conditions"
	"switchpac/internal/rulelist"
)

type Type string

const (
	TypeDirect   Type = "DirectProfile"
	TypeSystem   Type = "SystemProfile"
	TypeFixed    Type = "FixedProfile"
	TypePac      Type = "PacProfile"
	TypeSwitch   Type = "SwitchProfile"
	TypeVirtual  Type = "VirtualProfile"
	TypeRuleList Type = "RuleListProfile"

	// Legacy rule list types carry their format in the type name.
	TypeSwitchyRuleList   Type = "SwitchyRuleListProfile"
	TypeAutoProxyRuleList Type = "AutoProxyRuleListProfile"
)

var ErrUnknownProfileType = errors.New("unknown profile type")

// formatByType maps legacy rule list types to their format.
var formatByType = map[Type]string{
	TypeSwitchyRuleList:   "Switchy",
	TypeAutoProxyRuleList: "AutoProxy",
}

// Profile is a closed sum type over the pointer types below.
type Profile interface {
	Common() *Base
	isProfile()
}

// Base holds the fields every profile has.
type Base struct {
	Name        string `json:"name"`
	ProfileType Type   `json:"profileType"`
	Color       string `json:"color,omitempty"`
	Revision    string `json:"revision,omitempty"`
}

func (b *Base) Common() *Base { return b }
func (b *Base) isProfile()    {}

type DirectProfile struct {
	Base
}

// SystemProfile defers to the operating system proxy settings.
type SystemProfile struct {
	Base
}

// FixedProfile sends traffic through fixed proxies, except for requests
// matching the bypass list.
type FixedProfile struct {
	Base
	FallbackProxy *Proxy           `json:"fallbackProxy,omitempty"`
	ProxyForHTTP  *Proxy           `json:"proxyForHttp,omitempty"`
	ProxyForHTTPS *Proxy           `json:"proxyForHttps,omitempty"`
	ProxyForFTP   *Proxy           `json:"proxyForFtp,omitempty"`
	BypassList    conditions.List  `json:"bypassList"`
	Auth          map[string]*Auth `json:"auth,omitempty"`
}

// PacProfile delegates to a PAC script, inline or by URL.
type PacProfile struct {
	Base
	PacURL     string           `json:"pacUrl,omitempty"`
	PacScript  string           `json:"pacScript,omitempty"`
	LastUpdate string           `json:"lastUpdate,omitempty"`
	Auth       map[string]*Auth `json:"auth,omitempty"`
}

// SwitchProfile routes to the target of the first matching rule. It also
// represents the legacy VirtualProfile type.
type SwitchProfile struct {
	Base
	Rules              []rulelist.Rule `json:"rules"`
	DefaultProfileName string          `json:"defaultProfileName"`
}

// RuleListProfile routes with rules parsed from a subscribed text list.
type RuleListProfile struct {
	Base
	Format             string `json:"format"`
	RuleList           string `json:"ruleList"`
	MatchProfileName   string `json:"matchProfileName"`
	DefaultProfileName string `json:"defaultProfileName"`
	SourceURL          string `json:"sourceUrl,omitempty"`
	LastUpdate         string `json:"lastUpdate,omitempty"`
}

// FormatName returns the rule list format, falling back to the one implied
// by a legacy profile type.
func (p *RuleListProfile) FormatName() string {
	if p.Format != "" {
		return p.Format
	}
	if f, ok := formatByType[p.ProfileType]; ok {
		return f
	}
	return "Switchy"
}

// NameOf returns the profile's name.
func NameOf(p Profile) string {
	return p.Common().Name
}

// TypeOf returns the profile's type.
func TypeOf(p Profile) Type {
	return p.Common().ProfileType
}

// Proxy schemes and the profile fields they are configured in.
var schemes = []struct {
	scheme string
	prop   string
}{
	{"http", "proxyForHttp"},
	{"https", "proxyForHttps"},
	{"ftp", "proxyForFtp"},
	{"", "fallbackProxy"},
}

const defaultPacScript = `function FindProxyForURL(url, host) {
  return "DIRECT";
}`

// Create returns a new profile of type t with the editor defaults.
func Create(name string, t Type) (Profile, error) {
	base := Base{Name: name, ProfileType: t}
	switch t {
	case TypeDirect:
		return &DirectProfile{Base: base}, nil
	case TypeSystem:
		return &SystemProfile{Base: base}, nil
	case TypeFixed:
		return &FixedProfile{
			Base: base,
			BypassList: conditions.List{
				conditions.BypassCondition{Pattern: "127.0.0.1"},
				conditions.BypassCondition{Pattern: "::1"},
				conditions.BypassCondition{Pattern: "localhost"},
			},
		}, nil
	case TypePac:
		return &PacProfile{Base: base, PacScript: defaultPacScript}, nil
	case TypeSwitch, TypeVirtual:
		return &SwitchProfile{Base: base, Rules: []rulelist.Rule{}, DefaultProfileName: "direct"}, nil
	case TypeRuleList, TypeSwitchyRuleList, TypeAutoProxyRuleList:
		p := &RuleListProfile{Base: base, MatchProfileName: "direct", DefaultProfileName: "direct"}
		p.Format = p.FormatName()
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProfileType, t)
}

// IsIncludable reports whether p can take part in a generated PAC script.
// System profiles and PAC profiles loading a local file cannot.
func IsIncludable(p Profile) bool {
	switch p := p.(type) {
	case *SystemProfile:
		return false
	case *PacProfile:
		return !isFileURL(p.PacURL)
	}
	return true
}

// IsInclusive reports whether p routes to other profiles by name.
func IsInclusive(p Profile) bool {
	switch p.(type) {
	case *SwitchProfile, *RuleListProfile:
		return true
	}
	return false
}

func isFileURL(u string) bool {
	return len(u) >= 7 && strings.EqualFold(u[:7], "file://")
}
