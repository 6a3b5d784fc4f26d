package conditions

import (
	"net/url"
	"strings"

	"switchpac/internal/ipaddr"
)

// URLWildcard2HostWildcard converts "*://host/*" into "host". It returns ""
// when the URL wildcard cannot be expressed as a host wildcard.
func URLWildcard2HostWildcard(pattern string) string {
	if !strings.HasPrefix(pattern, "*://") || !strings.HasSuffix(pattern, "/*") {
		return ""
	}
	host := pattern[len("*://") : len(pattern)-len("/*")]
	if host == "" {
		return ""
	}
	for i := 0; i < len(host); i++ {
		c := host[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("_?*.-", c) >= 0:
		default:
			return ""
		}
	}
	return host
}

// secondLevel holds labels that commonly act as a second-level registry
// under a country code, as in example.co.uk.
var secondLevel = map[string]bool{
	"ac": true, "co": true, "com": true, "edu": true, "gov": true, "net": true, "org": true,
}

// GetBaseDomain returns the registrable part of domain. IP literals are
// returned unchanged.
func GetBaseDomain(domain string) string {
	if ipaddr.Parse(domain) != nil {
		return domain
	}
	labels := strings.Split(domain, ".")
	n := len(labels)
	if n <= 2 {
		return domain
	}
	if secondLevel[labels[n-2]] && len(labels[n-1]) == 2 {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// WildcardForDomain returns the host wildcard covering domain and all of its
// siblings under the same base domain.
func WildcardForDomain(domain string) string {
	if ipaddr.Parse(domain) != nil {
		return domain
	}
	return "*." + GetBaseDomain(domain)
}

// WildcardForURL is WildcardForDomain applied to the host of rawURL.
func WildcardForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()
	if strings.IndexByte(host, ':') >= 0 {
		return "[" + host + "]"
	}
	return WildcardForDomain(strings.ToLower(host))
}

// WeekdayList expands c into one flag per day of week, Sunday first.
func WeekdayList(c WeekdayCondition) [7]bool {
	var days [7]bool
	if c.Days != "" {
		for i := 0; i < 7 && i < len(c.Days); i++ {
			days[i] = c.Days[i] > 64
		}
		return days
	}
	for i := range days {
		days[i] = c.StartDay <= i && i <= c.EndDay
	}
	return days
}
