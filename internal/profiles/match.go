package profiles

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"switchpac/internal/conditions"
	"switchpac/internal/logger"
	"switchpac/internal/rulelist"
)

// MatchResult is the outcome of matching one profile. A result naming an
// inclusive profile has to be matched again against that profile.
type MatchResult struct {
	ProfileName string
	Proxy       *Proxy
	Auth        *Auth
	// Source describes what matched: a rule, a bypass condition or the
	// proxy field that was used.
	Source string
}

// Match evaluates p against req. It returns nil for profiles whose choice
// cannot be made here (system and PAC profiles).
func Match(p Profile, req conditions.Request) *MatchResult {
	switch p := p.(type) {
	case *DirectProfile:
		return &MatchResult{ProfileName: "direct", Proxy: &Proxy{Scheme: "direct"}}
	case *SystemProfile, *PacProfile:
		return nil
	case *FixedProfile:
		return matchFixed(p, req)
	case *SwitchProfile:
		return matchRules(p.Rules, p.DefaultProfileName, req)
	case *RuleListProfile:
		return matchRules(RuleListRules(p), p.DefaultProfileName, req)
	}
	return nil
}

func matchFixed(p *FixedProfile, req conditions.Request) *MatchResult {
	for _, cond := range p.BypassList {
		if conditions.Match(cond, req) {
			return &MatchResult{ProfileName: "direct", Proxy: &Proxy{Scheme: "direct"}, Source: conditions.Str(cond)}
		}
	}
	for _, s := range schemes {
		proxy := p.proxyFor(s.prop)
		if proxy == nil || (s.scheme != "" && s.scheme != req.Scheme) {
			continue
		}
		return &MatchResult{ProfileName: p.Name, Proxy: proxy, Auth: p.authFor(s.prop), Source: s.prop}
	}
	return &MatchResult{ProfileName: "direct", Proxy: &Proxy{Scheme: "direct"}}
}

func (p *FixedProfile) proxyFor(prop string) *Proxy {
	switch prop {
	case "proxyForHttp":
		return p.ProxyForHTTP
	case "proxyForHttps":
		return p.ProxyForHTTPS
	case "proxyForFtp":
		return p.ProxyForFTP
	case "fallbackProxy":
		return p.FallbackProxy
	}
	return nil
}

// authFor returns the credentials for a proxy field, defaulting to "all".
func (p *FixedProfile) authFor(prop string) *Auth {
	if a := p.Auth[prop]; a != nil {
		return a
	}
	return p.Auth["all"]
}

func matchRules(rules []rulelist.Rule, defaultProfileName string, req conditions.Request) *MatchResult {
	for _, r := range rules {
		if conditions.Match(r.Condition, req) {
			source := r.Source
			if source == "" {
				source = conditions.Str(r.Condition)
			}
			return &MatchResult{ProfileName: r.ProfileName, Source: source}
		}
	}
	return &MatchResult{ProfileName: defaultProfileName}
}

const maxRuleCacheEntries = 256

// ruleCache holds parsed rule lists keyed by a hash of everything the
// parse depends on.
var ruleCache = struct {
	sync.Mutex
	m map[string][]rulelist.Rule
}{m: make(map[string][]rulelist.Rule)}

// RuleListRules parses the rule list of p leniently. Results are cached by
// content, so profiles sharing a list share the parse.
func RuleListRules(p *RuleListProfile) []rulelist.Rule {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", p.FormatName(), p.MatchProfileName, p.DefaultProfileName)
	h.Write([]byte(p.RuleList))
	key := hex.EncodeToString(h.Sum(nil))

	ruleCache.Lock()
	rules, ok := ruleCache.m[key]
	ruleCache.Unlock()
	if ok {
		return rules
	}

	rules, err := rulelist.Parse(p.FormatName(), p.RuleList, p.MatchProfileName, p.DefaultProfileName, rulelist.ParseOptions{})
	if err != nil {
		logger.L().Warnf("profile %q: %v", p.Name, err)
		return nil
	}

	ruleCache.Lock()
	if len(ruleCache.m) >= maxRuleCacheEntries {
		ruleCache.m = make(map[string][]rulelist.Rule)
	}
	ruleCache.m[key] = rules
	ruleCache.Unlock()
	return rules
}

// Resolve follows matches from the profile named entry until a profile makes
// a final choice. The returned chain lists every profile visited. Missing
// profiles and cycles end resolution with an error.
func Resolve(entry string, opts Options, req conditions.Request) (*MatchResult, []string, error) {
	var chain []string
	seen := make(map[string]bool)
	name := entry
	for {
		if seen[name] {
			return nil, chain, fmt.Errorf("profile cycle through %q", name)
		}
		seen[name] = true
		chain = append(chain, name)

		p := ByName(name, opts)
		if p == nil {
			return nil, chain, fmt.Errorf("profile %q not found", name)
		}
		result := Match(p, req)
		if result == nil {
			return &MatchResult{ProfileName: name}, chain, nil
		}
		if result.Proxy != nil {
			return result, chain, nil
		}
		name = result.ProfileName
	}
}
