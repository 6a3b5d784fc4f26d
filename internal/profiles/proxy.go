package profiles

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Proxy is one upstream server. Scheme is one of direct, http, https,
// socks4 or socks5.
type Proxy struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
}

type Auth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// pacProtocols maps proxy schemes to PAC result keywords.
var pacProtocols = map[string]string{
	"http":   "PROXY",
	"https":  "HTTPS",
	"socks4": "SOCKS",
	"socks5": "SOCKS5",
}

// HostPort returns host:port.
func (p *Proxy) HostPort() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

func (p *Proxy) String() string {
	if p == nil || p.Scheme == "direct" {
		return "direct"
	}
	return p.Scheme + "://" + p.HostPort()
}

// PacResult encodes p as a FindProxyForURL return value. SOCKS5 proxies also
// list a SOCKS fallback for PAC interpreters without SOCKS5 support.
func PacResult(p *Proxy) string {
	if p == nil || p.Scheme == "direct" {
		return "DIRECT"
	}
	keyword, ok := pacProtocols[p.Scheme]
	if !ok {
		return "DIRECT"
	}
	if p.Scheme == "socks5" {
		return "SOCKS5 " + p.HostPort() + "; SOCKS " + p.HostPort()
	}
	return keyword + " " + p.HostPort()
}

var defaultPorts = map[string]int{
	"http":   80,
	"https":  443,
	"socks4": 1080,
	"socks5": 1080,
}

// ParseProxyURL parses "scheme://[user:pass@]host:port". Credentials, if
// present, are returned separately.
func ParseProxyURL(raw string) (*Proxy, *Auth, error) {
	raw = strings.TrimSpace(raw)
	if raw == "direct" {
		return &Proxy{Scheme: "direct"}, nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "socks" {
		scheme = "socks5"
	}
	if _, ok := pacProtocols[scheme]; !ok {
		return nil, nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, nil, fmt.Errorf("proxy url %q has no host", raw)
	}

	p := &Proxy{Scheme: scheme, Host: u.Hostname(), Port: defaultPorts[scheme]}
	if strings.IndexByte(p.Host, ':') >= 0 {
		p.Host = "[" + p.Host + "]"
	}
	if port := u.Port(); port != "" {
		p.Port, err = strconv.Atoi(port)
		if err != nil || p.Port <= 0 || p.Port > 65535 {
			return nil, nil, fmt.Errorf("invalid proxy port %q", port)
		}
	}

	var auth *Auth
	if u.User != nil {
		auth = &Auth{Username: u.User.Username()}
		auth.Password, _ = u.User.Password()
	}
	return p, auth, nil
}
