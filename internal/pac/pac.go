// Package pac compiles a profile graph into a self-contained PAC script.
//
// Every profile reachable from the entry profile becomes a function
// profile_<name>(url, host, scheme) returning a PAC result string, and
// FindProxyForURL dispatches to the entry profile's function.
package pac

import (
	"fmt"
	"io"
	"strings"

	"switchpac/internal/conditions"
	"switchpac/internal/logger"
	"switchpac/internal/profiles"
	"switchpac/internal/rulelist"
)

type Options struct {
	// Comments annotates the script with the source of each statement.
	Comments bool
}

type generator struct {
	opts    Options
	b       strings.Builder
	funcs   map[string]string // profile name to function name
	taken   map[string]bool
	called  []string
	emitted map[string]bool
	missing map[string]bool
}

// Compile returns the PAC script for the profile named entry. It never
// fails: missing or unsupported profiles become functions returning DIRECT
// and conditions that cannot be compiled never match. Generated code is
// ASCII; embedded PAC scripts are copied verbatim.
func Compile(opts profiles.Options, entry string, o Options) string {
	g := &generator{
		opts:    o,
		funcs:   make(map[string]string),
		taken:   make(map[string]bool),
		emitted: make(map[string]bool),
		missing: make(map[string]bool),
	}

	stand := make(map[string]profiles.Profile)
	var missing []string
	closure := profiles.AllReferences(entry, opts, func(name string) profiles.Profile {
		missing = append(missing, name)
		g.missing[name] = true
		p := &profiles.DirectProfile{Base: profiles.Base{Name: name, ProfileType: profiles.TypeDirect}}
		stand[name] = p
		return p
	})
	for _, name := range missing {
		logger.L().Warnf("profile %q is referenced but does not exist, using DIRECT", name)
	}

	for _, name := range closure {
		g.funcName(name)
	}

	if o.Comments {
		g.line("// PAC script for profile " + commentText(entry) + ".")
		if len(missing) > 0 {
			quoted := make([]string, len(missing))
			for i, m := range missing {
				quoted[i] = commentText(m)
			}
			g.line("// Missing profiles, treated as DIRECT: " + strings.Join(quoted, ", ") + ".")
		}
		g.line("")
	}

	g.line("function FindProxyForURL(url, host) {")
	g.line(`  "use strict";`)
	g.line(`  var scheme = url.substr(0, url.indexOf(":"));`)
	g.line("  return " + g.call(entry) + ";")
	g.line("}")

	for _, name := range closure {
		p := profiles.ByName(name, opts)
		if p == nil {
			p = stand[name]
		}
		g.line("")
		g.profile(name, p)
	}

	// Every call target should be in the closure; stub anything that is not
	// so the script never throws a ReferenceError.
	for i := 0; i < len(g.called); i++ {
		name := g.called[i]
		if g.emitted[name] {
			continue
		}
		logger.L().Debugf("profile %q is called but was not emitted", name)
		g.line("")
		g.direct(name, "Not resolvable; treated as DIRECT.")
	}

	return g.b.String()
}

// WriteTo compiles the script and writes it to w.
func WriteTo(w io.Writer, opts profiles.Options, entry string, o Options) (int64, error) {
	n, err := io.WriteString(w, Compile(opts, entry, o))
	return int64(n), err
}

// funcName returns the function name for a profile, assigning one on first
// use. Names sanitising to the same identifier get a numeric suffix.
func (g *generator) funcName(name string) string {
	if fn, ok := g.funcs[name]; ok {
		return fn
	}
	base := "profile_" + sanitize(name)
	fn := base
	for i := 2; g.taken[fn]; i++ {
		fn = fmt.Sprintf("%s_%d", base, i)
	}
	g.taken[fn] = true
	g.funcs[name] = fn
	return fn
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// call returns a call expression for the named profile's function.
func (g *generator) call(name string) string {
	if !contains(g.called, name) {
		g.called = append(g.called, name)
	}
	return g.funcName(name) + "(url, host, scheme)"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (g *generator) line(s string) {
	g.raw(conditions.ASCII(s))
}

func (g *generator) raw(s string) {
	g.b.WriteString(s)
	g.b.WriteByte('\n')
}

func (g *generator) comment(s string) {
	if g.opts.Comments {
		g.line("  // " + commentText(s))
	}
}

func (g *generator) open(name string) {
	g.emitted[name] = true
	g.line("function " + g.funcName(name) + "(url, host, scheme) {")
	g.line(`  "use strict";`)
}

func (g *generator) direct(name, note string) {
	g.open(name)
	if note != "" {
		g.comment(note)
	}
	g.line(`  return "DIRECT";`)
	g.line("}")
}

func (g *generator) profile(name string, p profiles.Profile) {
	if g.missing[name] {
		g.direct(name, "Profile "+name+" does not exist.")
		return
	}
	switch p := p.(type) {
	case *profiles.DirectProfile:
		g.direct(name, "")
	case *profiles.SystemProfile:
		g.direct(name, "System proxy settings are not available to PAC scripts; using DIRECT.")
	case *profiles.FixedProfile:
		g.fixed(name, p)
	case *profiles.SwitchProfile:
		g.rules(name, p.Rules, p.DefaultProfileName)
	case *profiles.RuleListProfile:
		g.rules(name, profiles.RuleListRules(p), p.DefaultProfileName)
	case *profiles.PacProfile:
		g.pac(name, p)
	default:
		logger.L().Warnf("profile %q has unsupported type %T, using DIRECT", name, p)
		g.direct(name, "Unsupported profile type; using DIRECT.")
	}
}

// condition compiles c, degrading to false when it cannot be compiled.
func (g *generator) condition(c conditions.Condition) string {
	expr, err := conditions.Compile(c)
	if err != nil {
		logger.L().Debugf("condition %q never matches: %v", conditions.Str(c), err)
		g.comment("Never matches: " + err.Error())
		return "false"
	}
	return expr
}

func (g *generator) fixed(name string, p *profiles.FixedProfile) {
	g.open(name)
	for _, c := range p.BypassList {
		g.comment("Bypass " + conditions.Comment(c))
		g.line("  if (" + g.condition(c) + `) return "DIRECT";`)
	}
	for _, s := range []struct {
		scheme string
		proxy  *profiles.Proxy
	}{
		{"http", p.ProxyForHTTP},
		{"https", p.ProxyForHTTPS},
		{"ftp", p.ProxyForFTP},
	} {
		if s.proxy == nil {
			continue
		}
		g.line("  if (scheme === " + conditions.JSString(s.scheme) + ") return " +
			conditions.JSString(profiles.PacResult(s.proxy)) + ";")
	}
	g.line("  return " + conditions.JSString(profiles.PacResult(p.FallbackProxy)) + ";")
	g.line("}")
}

func (g *generator) rules(name string, rules []rulelist.Rule, defaultProfileName string) {
	g.open(name)
	for _, r := range rules {
		if r.Note != "" {
			g.comment(r.Note)
		}
		g.comment(conditions.Comment(r.Condition) + " => " + r.ProfileName)
		g.line("  if (" + g.condition(r.Condition) + ") return " + g.call(r.ProfileName) + ";")
	}
	g.line("  return " + g.call(defaultProfileName) + ";")
	g.line("}")
}

func (g *generator) pac(name string, p *profiles.PacProfile) {
	switch {
	case strings.TrimSpace(p.PacScript) != "":
		g.emitted[name] = true
		g.line("var " + g.funcName(name) + " = (function () {")
		// Shadows the dispatcher for scripts that define no FindProxyForURL.
		g.line("var FindProxyForURL;")
		g.raw(p.PacScript)
		g.line(`  return typeof FindProxyForURL === "function" ? FindProxyForURL : function () { return "DIRECT"; };`)
		g.line("}).call(this);")
	case p.PacURL != "":
		g.direct(name, "PAC script at "+p.PacURL+" must be fetched and embedded; using DIRECT.")
	default:
		g.direct(name, "")
	}
}

// commentText keeps s on one line and out of block comments.
func commentText(s string) string {
	s = strings.ReplaceAll(s, "*/", "* /")
	return strings.NewReplacer("\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ").Replace(s)
}
