package conditions

import (
	"encoding/json"
	"fmt"
)

// wire is the stored form of every condition type.
type wire struct {
	ConditionType Type    `json:"conditionType"`
	Pattern       *string `json:"pattern,omitempty"`
	IP            *string `json:"ip,omitempty"`
	PrefixLength  *int    `json:"prefixLength,omitempty"`
	MinValue      *int    `json:"minValue,omitempty"`
	MaxValue      *int    `json:"maxValue,omitempty"`
	Days          *string `json:"days,omitempty"`
	StartDay      *int    `json:"startDay,omitempty"`
	EndDay        *int    `json:"endDay,omitempty"`
	StartHour     *int    `json:"startHour,omitempty"`
	EndHour       *int    `json:"endHour,omitempty"`
}

// Marshal encodes c in the storage form, with a conditionType discriminator.
func Marshal(c Condition) ([]byte, error) {
	if c == nil {
		return nil, ErrUnknownConditionType
	}
	w := wire{ConditionType: c.Type()}
	switch c := c.(type) {
	case TrueCondition:
	case FalseCondition:
		if c.Pattern != "" {
			w.Pattern = &c.Pattern
		}
	case URLRegexCondition:
		w.Pattern = &c.Pattern
	case URLWildcardCondition:
		w.Pattern = &c.Pattern
	case HostRegexCondition:
		w.Pattern = &c.Pattern
	case HostWildcardCondition:
		w.Pattern = &c.Pattern
	case KeywordCondition:
		w.Pattern = &c.Pattern
	case BypassCondition:
		w.Pattern = &c.Pattern
	case IPCondition:
		w.IP, w.PrefixLength = &c.IP, &c.PrefixLength
	case HostLevelsCondition:
		w.MinValue, w.MaxValue = &c.MinValue, &c.MaxValue
	case WeekdayCondition:
		if c.Days != "" {
			w.Days = &c.Days
		} else {
			w.StartDay, w.EndDay = &c.StartDay, &c.EndDay
		}
	case TimeCondition:
		w.StartHour, w.EndHour = &c.StartHour, &c.EndHour
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownConditionType, c.Type())
	}
	return json.Marshal(w)
}

// Unmarshal decodes a condition from its storage form.
func Unmarshal(data []byte) (Condition, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	num := func(p *int, def int) int {
		if p == nil {
			return def
		}
		return *p
	}

	switch w.ConditionType {
	case TypeTrue:
		return TrueCondition{}, nil
	case TypeFalse:
		return FalseCondition{Pattern: str(w.Pattern)}, nil
	case TypeURLRegex:
		return URLRegexCondition{Pattern: str(w.Pattern)}, nil
	case TypeURLWildcard:
		return URLWildcardCondition{Pattern: str(w.Pattern)}, nil
	case TypeHostRegex:
		return HostRegexCondition{Pattern: str(w.Pattern)}, nil
	case TypeHostWild:
		return HostWildcardCondition{Pattern: str(w.Pattern)}, nil
	case TypeKeyword:
		return KeywordCondition{Pattern: str(w.Pattern)}, nil
	case TypeBypass:
		return BypassCondition{Pattern: str(w.Pattern)}, nil
	case TypeIP:
		return IPCondition{IP: str(w.IP), PrefixLength: num(w.PrefixLength, 32)}, nil
	case TypeHostLevels:
		return HostLevelsCondition{MinValue: num(w.MinValue, 1), MaxValue: num(w.MaxValue, 1)}, nil
	case TypeWeekday:
		return WeekdayCondition{Days: str(w.Days), StartDay: num(w.StartDay, 0), EndDay: num(w.EndDay, 0)}, nil
	case TypeTime:
		return TimeCondition{StartHour: num(w.StartHour, 0), EndHour: num(w.EndHour, 0)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, w.ConditionType)
}

// List is a JSON-encodable sequence of conditions, such as a bypass list.
type List []Condition

func (l List) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(l))
	for _, c := range l {
		b, err := Marshal(c)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(List, 0, len(raw))
	for i, r := range raw {
		c, err := Unmarshal(r)
		if err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}
