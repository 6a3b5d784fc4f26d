// Package ipaddr parses IP literals found in hosts and condition patterns and
// tests IPv4 subnet containment.
//
// IPv6 support is deliberately shallow: literals are recognised by their
// character set only and subnet containment is never reported for them.
package ipaddr

import (
	"net/netip"
	"strings"
)

// Addr is a parsed IP literal.
type Addr struct {
	V4         bool
	Normalized string // dotted quad, or lowercase IPv6 text without brackets

	ip netip.Addr // valid for V4 only
}

// Parse returns the address described by text, or nil if text is not an IP
// literal. Bracketed IPv6 literals ("[::1]") are accepted.
func Parse(text string) *Addr {
	if len(text) >= 2 && text[0] == '[' && text[len(text)-1] == ']' {
		text = text[1 : len(text)-1]
		if looksLikeV6(text) {
			return &Addr{Normalized: strings.ToLower(text)}
		}
		return nil
	}
	if ip, ok := parseV4(text); ok {
		return &Addr{V4: true, Normalized: ip.String(), ip: ip}
	}
	if looksLikeV6(text) {
		return &Addr{Normalized: strings.ToLower(text)}
	}
	return nil
}

// parseV4 accepts exactly four dot-separated decimal octets in 0-255.
func parseV4(text string) (netip.Addr, bool) {
	if strings.Count(text, ".") != 3 {
		return netip.Addr{}, false
	}
	var octets [4]byte
	for i, part := range strings.Split(text, ".") {
		if len(part) == 0 || len(part) > 3 {
			return netip.Addr{}, false
		}
		n := 0
		for j := 0; j < len(part); j++ {
			c := part[j]
			if c < '0' || c > '9' {
				return netip.Addr{}, false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return netip.Addr{}, false
		}
		octets[i] = byte(n)
	}
	return netip.AddrFrom4(octets), true
}

// looksLikeV6 is a character-set check: hex digits and colons, at least two
// colons. It does not validate structure.
func looksLikeV6(text string) bool {
	if strings.Count(text, ":") < 2 {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == ':':
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// InSubnet reports whether a lies within subnet/prefixLen. Both addresses
// must be IPv4; IPv6 containment is not implemented and always reports false.
func (a *Addr) InSubnet(subnet *Addr, prefixLen int) bool {
	if a == nil || subnet == nil || !a.V4 || !subnet.V4 {
		return false
	}
	if prefixLen < 0 || prefixLen > 32 {
		return false
	}
	p1, err := a.ip.Prefix(prefixLen)
	if err != nil {
		return false
	}
	p2, err := subnet.ip.Prefix(prefixLen)
	if err != nil {
		return false
	}
	return p1 == p2
}

// IsInSubnet parses both literals and tests containment.
func IsInSubnet(address, subnet string, prefixLen int) bool {
	return Parse(address).InSubnet(Parse(subnet), prefixLen)
}

// Masked returns the network address of a at prefixLen, in dotted form.
// It returns "" for IPv6 or an out-of-range prefix.
func (a *Addr) Masked(prefixLen int) string {
	if a == nil || !a.V4 || prefixLen < 0 || prefixLen > 32 {
		return ""
	}
	p, err := a.ip.Prefix(prefixLen)
	if err != nil {
		return ""
	}
	return p.Addr().String()
}

// MaskV4 returns the dotted netmask for an IPv4 prefix length, e.g.
// "255.255.0.0" for 16.
func MaskV4(prefixLen int) string {
	if prefixLen < 0 {
		prefixLen = 0
	}
	if prefixLen > 32 {
		prefixLen = 32
	}
	var m uint32
	if prefixLen > 0 {
		m = ^uint32(0) << (32 - prefixLen)
	}
	return netip.AddrFrom4([4]byte{byte(m >> 24), byte(m >> 16), byte(m >> 8), byte(m)}).String()
}
