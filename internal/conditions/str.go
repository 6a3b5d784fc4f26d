package conditions

import (
	"strconv"
	"strings"
	"sync"

	"switchpac/internal/ipaddr"
)

// abbrs lists the accepted type prefixes per condition type. The last entry
// is the canonical one written by Str; an empty first entry marks the
// default type whose pattern may be written without a prefix.
var abbrs = map[Type][]string{
	TypeFalse:       {"False", "Disabled"},
	TypeTrue:        {"True"},
	TypeURLRegex:    {"UR", "URegex", "UrlR", "UrlRegex"},
	TypeURLWildcard: {"U", "UW", "Url", "UrlW", "UWild", "UWildcard", "UrlWild", "UrlWildcard"},
	TypeHostRegex:   {"R", "HR", "Regex", "HostR", "HRegex", "HostRegex"},
	TypeHostWild: {"", "H", "W", "HW", "Wild", "Wildcard", "Host", "HostW", "HWild",
		"HWildcard", "HostWild", "HostWildcard"},
	TypeBypass:  {"B", "Bypass"},
	TypeKeyword: {"K", "KW", "Keyword"},
	TypeIP:      {"Ip"},
	TypeHostLevels: {"Lv", "Level", "Levels", "HL", "HLv", "HLevel", "HLevels",
		"HostL", "HostLv", "HostLevel", "HostLevels"},
	TypeWeekday: {"WD", "Week", "Day", "Weekday"},
	TypeTime:    {"T", "Time", "Hour"},
}

var (
	abbrIndexOnce sync.Once
	abbrIndex     map[string]Type
)

// TypeFromAbbr resolves a type prefix (case-insensitive), including the full
// conditionType name. It returns "" for unknown prefixes.
func TypeFromAbbr(abbr string) Type {
	abbrIndexOnce.Do(func() {
		abbrIndex = make(map[string]Type)
		for t, list := range abbrs {
			abbrIndex[strings.ToUpper(string(t))] = t
			for _, a := range list {
				abbrIndex[strings.ToUpper(a)] = t
			}
		}
	})
	return abbrIndex[strings.ToUpper(abbr)]
}

// Abbrs returns the accepted prefixes for t.
func Abbrs(t Type) []string {
	return append([]string(nil), abbrs[t]...)
}

// Str returns the canonical text form of c.
func Str(c Condition) string {
	return StrAbbr(c, -1)
}

// StrAbbr writes c using the abbreviation at index abbr; negative indexes
// count from the end.
func StrAbbr(c Condition, abbr int) string {
	list := abbrs[c.Type()]
	if len(list) == 0 {
		return ""
	}
	if list[0] == "" {
		pattern := c.(HostWildcardCondition).Pattern
		if !strings.HasSuffix(pattern, ":") && !strings.Contains(pattern, " ") {
			return pattern
		}
	}
	n := len(list)
	typeStr := list[((abbr%n)+n)%n]
	if typeStr == "" {
		typeStr = list[n-1]
	}

	result := typeStr + ":"
	if part := fieldStr(c); part != "" {
		result += " " + part
	}
	return result
}

func fieldStr(c Condition) string {
	switch c := c.(type) {
	case TrueCondition:
		return ""
	case FalseCondition:
		return c.Pattern
	case URLRegexCondition:
		return c.Pattern
	case URLWildcardCondition:
		return c.Pattern
	case HostRegexCondition:
		return c.Pattern
	case HostWildcardCondition:
		return c.Pattern
	case KeywordCondition:
		return c.Pattern
	case BypassCondition:
		return c.Pattern
	case IPCondition:
		return c.IP + "/" + strconv.Itoa(c.PrefixLength)
	case HostLevelsCondition:
		return strconv.Itoa(c.MinValue) + "~" + strconv.Itoa(c.MaxValue)
	case WeekdayCondition:
		if c.Days != "" {
			return c.Days
		}
		return strconv.Itoa(c.StartDay) + "~" + strconv.Itoa(c.EndDay)
	case TimeCondition:
		return strconv.Itoa(c.StartHour) + "~" + strconv.Itoa(c.EndHour)
	}
	return ""
}

// FromStr parses the text form of a condition. It returns nil when the type
// prefix is unknown or the fields cannot be parsed.
func FromStr(s string) Condition {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		i = len(s)
	}
	typeStr := ""
	if i > 0 && s[i-1] == ':' {
		typeStr = s[:i-1]
		if i < len(s) {
			s = strings.TrimSpace(s[i+1:])
		} else {
			s = ""
		}
	}

	t := TypeFromAbbr(typeStr)
	switch t {
	case TypeTrue:
		return TrueCondition{}
	case TypeFalse:
		return FalseCondition{Pattern: s}
	case TypeURLRegex:
		return URLRegexCondition{Pattern: s}
	case TypeURLWildcard:
		return URLWildcardCondition{Pattern: s}
	case TypeHostRegex:
		return HostRegexCondition{Pattern: s}
	case TypeHostWild:
		return HostWildcardCondition{Pattern: s}
	case TypeKeyword:
		return KeywordCondition{Pattern: s}
	case TypeBypass:
		return BypassCondition{Pattern: s}
	case TypeIP:
		return ipFromStr(s)
	case TypeHostLevels:
		lo, hi := splitRange(s)
		c := HostLevelsCondition{MinValue: lo, MaxValue: hi}
		if c.MinValue <= 0 {
			c.MinValue = 1
		}
		if c.MaxValue <= 0 {
			c.MaxValue = 1
		}
		return c
	case TypeWeekday:
		if !strings.Contains(s, "~") && len(s) == 7 {
			return WeekdayCondition{Days: s}
		}
		lo, hi := splitRange(s)
		return WeekdayCondition{StartDay: clamp(lo, 6), EndDay: clamp(hi, 6)}
	case TypeTime:
		lo, hi := splitRange(s)
		return TimeCondition{StartHour: clamp(lo, 23), EndHour: clamp(hi, 23)}
	}
	return nil
}

// ipFromStr parses "ip/prefix". A missing prefix means a single address.
func ipFromStr(s string) Condition {
	ip, prefixStr := s, ""
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		ip, prefixStr = s[:i], s[i+1:]
	}
	addr := ipaddr.Parse(ip)
	if addr == nil {
		return nil
	}
	prefix := 32
	if !addr.V4 {
		prefix = 128
	}
	if prefixStr != "" {
		n, err := strconv.Atoi(prefixStr)
		if err != nil || n < 0 || n > prefix {
			return nil
		}
		prefix = n
	}
	return IPCondition{IP: ip, PrefixLength: prefix}
}

// splitRange parses "a~b" leniently; unparsable halves become -1.
func splitRange(s string) (int, int) {
	lo, hi, _ := strings.Cut(s, "~")
	return leadingInt(lo), leadingInt(hi)
}

// leadingInt parses the leading decimal digits of s, returning -1 if there
// are none.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		n = n*10 + int(s[digits]-'0')
		digits++
		if n > 1<<20 {
			break
		}
	}
	if digits == 0 {
		return -1
	}
	if neg {
		return -n
	}
	return n
}

func clamp(v, max int) int {
	if v < 0 || v > max {
		return 0
	}
	return v
}
