// Package conditions implements the request predicates used by switch rules
// and bypass lists: their matching semantics, their compact text form, and
// their translation into PAC script expressions.
package conditions

import (
	"errors"
	"net/url"
	"strings"
)

// Type is the conditionType discriminator as stored by the browser extension.
type Type string

const (
	TypeTrue        Type = "TrueCondition"
	TypeFalse       Type = "FalseCondition"
	TypeURLRegex    Type = "UrlRegexCondition"
	TypeURLWildcard Type = "UrlWildcardCondition"
	TypeHostRegex   Type = "HostRegexCondition"
	TypeHostWild    Type = "HostWildcardCondition"
	TypeKeyword     Type = "KeywordCondition"
	TypeBypass      Type = "BypassCondition"
	TypeIP          Type = "IpCondition"
	TypeHostLevels  Type = "HostLevelsCondition"
	TypeWeekday     Type = "WeekdayCondition"
	TypeTime        Type = "TimeCondition"
)

// Types lists every condition type in a stable order.
var Types = []Type{
	TypeTrue, TypeFalse, TypeURLRegex, TypeURLWildcard, TypeHostRegex,
	TypeHostWild, TypeKeyword, TypeBypass, TypeIP, TypeHostLevels,
	TypeWeekday, TypeTime,
}

var ErrUnknownConditionType = errors.New("unknown condition type")

// Condition is a closed sum type; the concrete types below are the only
// implementations.
type Condition interface {
	Type() Type
	isCondition()
}

type TrueCondition struct{}

// FalseCondition never matches. Pattern keeps the text of a disabled rule.
type FalseCondition struct {
	Pattern string
}

type URLRegexCondition struct {
	Pattern string
}

type URLWildcardCondition struct {
	Pattern string
}

type HostRegexCondition struct {
	Pattern string
}

type HostWildcardCondition struct {
	Pattern string
}

// KeywordCondition matches plain-http URLs containing Pattern.
type KeywordCondition struct {
	Pattern string
}

// BypassCondition uses the bypass-list mini syntax: `<local>`,
// `[scheme://]host[:port]` or `[scheme://]ip/prefix`.
type BypassCondition struct {
	Pattern string
}

type IPCondition struct {
	IP           string
	PrefixLength int
}

// HostLevelsCondition bounds the number of dots in the host.
type HostLevelsCondition struct {
	MinValue int
	MaxValue int
}

// WeekdayCondition uses Days when set: a 7 character mask indexed by day of
// week (Sunday first) where letters enable a day. Otherwise the inclusive
// StartDay..EndDay range applies.
type WeekdayCondition struct {
	Days     string
	StartDay int
	EndDay   int
}

type TimeCondition struct {
	StartHour int
	EndHour   int
}

func (TrueCondition) Type() Type         { return TypeTrue }
func (FalseCondition) Type() Type        { return TypeFalse }
func (URLRegexCondition) Type() Type     { return TypeURLRegex }
func (URLWildcardCondition) Type() Type  { return TypeURLWildcard }
func (HostRegexCondition) Type() Type    { return TypeHostRegex }
func (HostWildcardCondition) Type() Type { return TypeHostWild }
func (KeywordCondition) Type() Type      { return TypeKeyword }
func (BypassCondition) Type() Type       { return TypeBypass }
func (IPCondition) Type() Type           { return TypeIP }
func (HostLevelsCondition) Type() Type   { return TypeHostLevels }
func (WeekdayCondition) Type() Type      { return TypeWeekday }
func (TimeCondition) Type() Type         { return TypeTime }

func (TrueCondition) isCondition()         {}
func (FalseCondition) isCondition()        {}
func (URLRegexCondition) isCondition()     {}
func (URLWildcardCondition) isCondition()  {}
func (HostRegexCondition) isCondition()    {}
func (HostWildcardCondition) isCondition() {}
func (KeywordCondition) isCondition()      {}
func (BypassCondition) isCondition()       {}
func (IPCondition) isCondition()           {}
func (HostLevelsCondition) isCondition()   {}
func (WeekdayCondition) isCondition()      {}
func (TimeCondition) isCondition()         {}

// Create returns a condition of type t with the defaults the editor uses.
func Create(t Type) (Condition, error) {
	switch t {
	case TypeTrue:
		return TrueCondition{}, nil
	case TypeFalse:
		return FalseCondition{}, nil
	case TypeURLRegex:
		return URLRegexCondition{}, nil
	case TypeURLWildcard:
		return URLWildcardCondition{}, nil
	case TypeHostRegex:
		return HostRegexCondition{}, nil
	case TypeHostWild:
		return HostWildcardCondition{}, nil
	case TypeKeyword:
		return KeywordCondition{}, nil
	case TypeBypass:
		return BypassCondition{}, nil
	case TypeIP:
		return IPCondition{IP: "127.0.0.1", PrefixLength: 8}, nil
	case TypeHostLevels:
		return HostLevelsCondition{MinValue: 1, MaxValue: 1}, nil
	case TypeWeekday:
		return WeekdayCondition{Days: "-MTWTF-"}, nil
	case TypeTime:
		return TimeCondition{StartHour: 0, EndHour: 23}, nil
	}
	return nil, ErrUnknownConditionType
}

// Request is the view of a request that conditions are evaluated against.
type Request struct {
	URL    string
	Host   string
	Scheme string
}

// RequestFromURL derives a Request from an absolute URL. IPv6 hosts keep
// their brackets.
func RequestFromURL(rawURL string) (Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, err
	}
	if u.Scheme == "" {
		return Request{}, errors.New("url has no scheme: " + rawURL)
	}
	if u.Path == "" && u.Opaque == "" && u.Host != "" {
		u.Path = "/"
	}
	host := strings.ToLower(u.Hostname())
	if strings.IndexByte(host, ':') >= 0 {
		host = "[" + host + "]"
	}
	return Request{
		URL:    u.String(),
		Host:   host,
		Scheme: strings.ToLower(u.Scheme),
	}, nil
}
