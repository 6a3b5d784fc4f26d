package conditions

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"switchpac/internal/ipaddr"
	"switchpac/internal/logger"
	"switchpac/internal/shexp"
)

// maxCacheEntries bounds the analysis side table; it is reset when full.
const maxCacheEntries = 4096

// Engine matches conditions against requests. Analysis results are memoised
// in a side table keyed by the condition tag, so equal tags share one
// analysis and edited conditions get a fresh one.
type Engine struct {
	// Now supplies the wall clock for weekday and time conditions.
	Now func() time.Time

	mu    sync.Mutex
	cache map[string]any
}

// NewEngine returns an Engine using the local wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now, cache: make(map[string]any)}
}

// Default is the engine used by the package level helpers.
var Default = NewEngine()

// Match evaluates c against req using the Default engine.
func Match(c Condition, req Request) bool {
	return Default.Match(c, req)
}

// Tag identifies the behavior of a condition: equal tags imply equal
// matching semantics.
func Tag(c Condition) string {
	return string(c.Type()) + ":" + Str(c)
}

func (e *Engine) analyzed(c Condition) any {
	tag := Tag(c)
	e.mu.Lock()
	if v, ok := e.cache[tag]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	v := Analyze(c)
	logger.L().Debugf("analyzed condition %q", tag)

	e.mu.Lock()
	if e.cache == nil || len(e.cache) >= maxCacheEntries {
		e.cache = make(map[string]any)
	}
	e.cache[tag] = v
	e.mu.Unlock()
	return v
}

// Analyze derives the matcher state of a condition. It is a pure function of
// the condition's fields; callers normally go through Engine.Match.
func Analyze(c Condition) any {
	switch c := c.(type) {
	case URLRegexCondition:
		return shexp.SafeRegex(shexp.EscapeSlash(c.Pattern))
	case HostRegexCondition:
		return shexp.SafeRegex(shexp.EscapeSlash(c.Pattern))
	case URLWildcardCondition:
		return shexp.SafeRegex(urlWildcardSource(c.Pattern))
	case HostWildcardCondition:
		return shexp.SafeRegex(hostWildcardSource(c.Pattern))
	case BypassCondition:
		return analyzeBypass(c.Pattern)
	case IPCondition:
		return analyzeIP(c)
	}
	return nil
}

func urlWildcardSource(pattern string) string {
	var parts []string
	for _, p := range strings.Split(pattern, "|") {
		if p == "" {
			continue
		}
		parts = append(parts, shexp.ToRegex(p, true))
	}
	return strings.Join(parts, "|")
}

// hostWildcardSource builds the host regex. "*.example.com" also matches
// "example.com" itself, "**.example.com" only matches subdomains and a
// leading "." is shorthand for "*.".
func hostWildcardSource(pattern string) string {
	var parts []string
	for _, p := range strings.Split(pattern, "|") {
		if p == "" {
			continue
		}
		if p[0] == '.' {
			p = "*" + p
		}
		switch {
		case strings.HasPrefix(p, "**."):
			parts = append(parts, shexp.ToRegex(p[1:], true))
		case strings.HasPrefix(p, "*."):
			re := shexp.ToRegex(p[2:], false)
			re = `(?:^|\.)` + re[1:]
			re = strings.TrimSuffix(re, ".*$")
			parts = append(parts, re)
		default:
			parts = append(parts, shexp.ToRegex(p, true))
		}
	}
	return strings.Join(parts, "|")
}

// localHosts are always considered local by `<local>`, alongside any host
// without a dot.
var localHosts = []string{"127.0.0.1", "[::1]", "localhost"}

type bypassMatcher struct {
	local  bool
	scheme string
	ip     *IPCondition
	host   *shexp.Regex
	url    *shexp.Regex
}

func analyzeBypass(pattern string) *bypassMatcher {
	m := &bypassMatcher{}
	server := pattern
	if server == "<local>" {
		m.local = true
		return m
	}
	if i := strings.Index(server, "://"); i >= 0 {
		m.scheme = server[:i]
		server = server[i+3:]
	}

	if i := strings.IndexByte(server, '/'); i >= 0 {
		addr := ipaddr.Parse(server[:i])
		prefix, err := strconv.Atoi(server[i+1:])
		if addr != nil && err == nil {
			m.ip = &IPCondition{IP: server[:i], PrefixLength: prefix}
			return m
		}
	}

	var port string
	serverIP := ipaddr.Parse(server)
	if serverIP == nil && !strings.HasSuffix(server, "]") {
		if i := strings.LastIndexByte(server, ':'); i >= 0 {
			port = server[i+1:]
			server = server[:i]
			serverIP = ipaddr.Parse(server)
		}
	}

	var serverRegex string
	switch {
	case serverIP != nil && !serverIP.V4:
		serverRegex = `\[` + shexp.QuoteMeta(serverIP.Normalized) + `\]`
	case serverIP != nil:
		server = serverIP.Normalized
	case strings.HasPrefix(server, "."):
		server = "*" + server
	}

	if port != "" {
		if serverRegex == "" {
			re := shexp.ToRegex(server, false)
			serverRegex = re[1 : len(re)-1]
		}
		scheme := `[^:]+`
		if m.scheme != "" {
			scheme = shexp.QuoteMeta(m.scheme)
		}
		m.url = shexp.SafeRegex("^" + scheme + `:\/\/` + serverRegex + ":" + shexp.QuoteMeta(port) + `\/`)
	} else if server != "*" {
		if serverRegex != "" {
			serverRegex = "^" + serverRegex + "$"
		} else {
			serverRegex = shexp.ToRegex(server, true)
		}
		m.host = shexp.SafeRegex(serverRegex)
	}
	return m
}

type ipMatcher struct {
	addr   *ipaddr.Addr
	prefix int
}

func analyzeIP(c IPCondition) *ipMatcher {
	addr := ipaddr.Parse(c.IP)
	if addr == nil {
		logger.L().Debugf("invalid ip condition address %q", c.IP)
		return &ipMatcher{}
	}
	return &ipMatcher{addr: addr, prefix: c.PrefixLength}
}

// Match evaluates c against req.
func (e *Engine) Match(c Condition, req Request) bool {
	switch c := c.(type) {
	case TrueCondition:
		return true
	case FalseCondition:
		return false
	case URLRegexCondition, URLWildcardCondition:
		return e.analyzed(c).(*shexp.Regex).MatchString(req.URL)
	case HostRegexCondition, HostWildcardCondition:
		return e.analyzed(c).(*shexp.Regex).MatchString(req.Host)
	case KeywordCondition:
		return req.Scheme == "http" && strings.Contains(req.URL, c.Pattern)
	case BypassCondition:
		return e.matchBypass(e.analyzed(c).(*bypassMatcher), req)
	case IPCondition:
		return matchIP(e.analyzed(c).(*ipMatcher), req)
	case HostLevelsCondition:
		dots := 0
		for i := 0; i < len(req.Host); i++ {
			if req.Host[i] == '.' {
				dots++
				if dots > c.MaxValue {
					return false
				}
			}
		}
		return dots >= c.MinValue
	case WeekdayCondition:
		day := int(e.now().Weekday())
		if c.Days != "" {
			return day < len(c.Days) && c.Days[day] > 64
		}
		return c.StartDay <= day && day <= c.EndDay
	case TimeCondition:
		hour := e.now().Hour()
		return c.StartHour <= hour && hour <= c.EndHour
	}
	return false
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) matchBypass(m *bypassMatcher, req Request) bool {
	if m.local {
		for _, h := range localHosts {
			if req.Host == h {
				return true
			}
		}
		return strings.IndexByte(req.Host, '.') < 0
	}
	if m.scheme != "" && m.scheme != req.Scheme {
		return false
	}
	if m.ip != nil && !e.Match(*m.ip, req) {
		return false
	}
	if m.host != nil && !m.host.MatchString(req.Host) {
		return false
	}
	if m.url != nil && !m.url.MatchString(req.URL) {
		return false
	}
	return true
}

func matchIP(m *ipMatcher, req Request) bool {
	if m.addr == nil {
		return false
	}
	addr := ipaddr.Parse(req.Host)
	if addr == nil || addr.V4 != m.addr.V4 {
		return false
	}
	return addr.InSubnet(m.addr, m.prefix)
}
