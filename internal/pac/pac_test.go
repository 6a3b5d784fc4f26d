package pac

import (
	"bytes"
	"strings"
	"testing"

	"switchpac/internal/conditions"
	"switchpac/internal/pacrunner"
	"switchpac/internal/profiles"
	"switchpac/internal/rulelist"
)

func sample() profiles.Options {
	opts := profiles.Options{}
	opts.Put(&profiles.DirectProfile{Base: profiles.Base{Name: "direct", ProfileType: profiles.TypeDirect}})
	opts.Put(&profiles.FixedProfile{
		Base:          profiles.Base{Name: "proxy", ProfileType: profiles.TypeFixed},
		FallbackProxy: &profiles.Proxy{Scheme: "http", Host: "p.example.com", Port: 8080},
	})
	opts.Put(&profiles.SwitchProfile{
		Base:               profiles.Base{Name: "auto", ProfileType: profiles.TypeSwitch},
		DefaultProfileName: "direct",
		Rules: []rulelist.Rule{
			{Condition: conditions.HostWildcardCondition{Pattern: "*.example.com"}, ProfileName: "proxy"},
		},
	})
	return opts
}

func eval(t *testing.T, script, rawURL string) string {
	t.Helper()
	req, err := conditions.RequestFromURL(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pacrunner.Run(script, req.URL, req.Host)
	if err != nil {
		t.Fatalf("evaluating script for %s: %v\n%s", rawURL, err, script)
	}
	return got
}

func TestCompileSwitch(t *testing.T) {
	script := Compile(sample(), "auto", Options{Comments: true})
	for _, fn := range []string{"function profile_auto(", "function profile_proxy(", "function profile_direct("} {
		if !strings.Contains(script, fn) {
			t.Errorf("script lacks %q", fn)
		}
	}
	if got := eval(t, script, "http://www.example.com/"); got != "PROXY p.example.com:8080" {
		t.Errorf("www.example.com = %q", got)
	}
	if got := eval(t, script, "http://other.com/"); got != "DIRECT" {
		t.Errorf("other.com = %q", got)
	}
}

func TestCompileMissingTarget(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.SwitchProfile{
		Base:               profiles.Base{Name: "auto", ProfileType: profiles.TypeSwitch},
		DefaultProfileName: "direct",
		Rules: []rulelist.Rule{
			{Condition: conditions.TrueCondition{}, ProfileName: "ghost"},
		},
	})
	script := Compile(opts, "auto", Options{Comments: true})
	if !strings.Contains(script, "function profile_ghost(") {
		t.Fatalf("no stub for missing profile:\n%s", script)
	}
	if !strings.Contains(script, "Missing profiles") {
		t.Error("missing profiles not noted in comments")
	}
	if got := eval(t, script, "http://a.com/"); got != "DIRECT" {
		t.Errorf("missing target = %q", got)
	}

	// A missing entry profile still yields a usable script.
	if got := eval(t, Compile(profiles.Options{}, "nope", Options{}), "http://a.com/"); got != "DIRECT" {
		t.Errorf("missing entry = %q", got)
	}
}

func TestCompileFixed(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.FixedProfile{
		Base:          profiles.Base{Name: "fixed", ProfileType: profiles.TypeFixed},
		FallbackProxy: &profiles.Proxy{Scheme: "socks5", Host: "s", Port: 1080},
		ProxyForHTTPS: &profiles.Proxy{Scheme: "https", Host: "h", Port: 443},
		BypassList: conditions.List{
			conditions.BypassCondition{Pattern: "<local>"},
			conditions.BypassCondition{Pattern: "10.0.0.0/8"},
			conditions.BypassCondition{Pattern: "*.corp.com:8080"},
		},
	})
	script := Compile(opts, "fixed", Options{})

	testCases := []struct{ url, want string }{
		{"http://localhost/", "DIRECT"},
		{"http://intranet/", "DIRECT"},
		{"http://10.9.8.7/", "DIRECT"},
		{"http://a.corp.com:8080/", "DIRECT"},
		{"http://a.corp.com/", "SOCKS5 s:1080; SOCKS s:1080"},
		{"https://example.com/", "HTTPS h:443"},
		{"http://example.com/", "SOCKS5 s:1080; SOCKS s:1080"},
	}
	for _, tc := range testCases {
		if got := eval(t, script, tc.url); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.url, got, tc.want)
		}
	}
}

// The generated script and the Go matcher must agree.
func TestCompileAgreesWithMatch(t *testing.T) {
	conds := []conditions.Condition{
		conditions.HostWildcardCondition{Pattern: "*.example.com"},
		conditions.HostWildcardCondition{Pattern: "**.example.com"},
		conditions.HostWildcardCondition{Pattern: "a?.com|.b.org"},
		conditions.URLWildcardCondition{Pattern: "*://*/path/*"},
		conditions.URLRegexCondition{Pattern: `^https://[^/]+/x/`},
		conditions.HostRegexCondition{Pattern: `^\d+\.`},
		conditions.KeywordCondition{Pattern: "key"},
		conditions.BypassCondition{Pattern: "https://*.example.com"},
		conditions.BypassCondition{Pattern: "192.168.0.0/16"},
		conditions.IPCondition{IP: "10.0.0.0", PrefixLength: 8},
		conditions.HostLevelsCondition{MinValue: 2, MaxValue: 3},
		conditions.FalseCondition{},
		conditions.URLRegexCondition{Pattern: "(["},
		conditions.URLRegexCondition{Pattern: "(?i)foo"},
		conditions.URLRegexCondition{Pattern: "foo(?#c)"},
		conditions.HostRegexCondition{Pattern: "(?>a)b"},
		conditions.HostRegexCondition{Pattern: "(?'n'a)"},
	}
	urls := []string{
		"http://example.com/", "https://www.example.com/x/1", "http://a.b.example.com/path/key",
		"http://ab.com/", "http://x.b.org/", "http://10.1.1.1/", "http://192.168.3.3/",
		"https://key.com/", "http://key.com/", "http://intranet/",
	}

	for i, c := range conds {
		opts := profiles.Options{}
		opts.Put(&profiles.SwitchProfile{
			Base:               profiles.Base{Name: "s", ProfileType: profiles.TypeSwitch},
			DefaultProfileName: "direct",
			Rules:              []rulelist.Rule{{Condition: c, ProfileName: "p"}},
		})
		opts.Put(&profiles.FixedProfile{
			Base:          profiles.Base{Name: "p", ProfileType: profiles.TypeFixed},
			FallbackProxy: &profiles.Proxy{Scheme: "http", Host: "p", Port: 1},
		})
		script := Compile(opts, "s", Options{Comments: true})
		for _, u := range urls {
			req, _ := conditions.RequestFromURL(u)
			want := "DIRECT"
			if conditions.Match(c, req) {
				want = "PROXY p:1"
			}
			if got := eval(t, script, u); got != want {
				t.Errorf("condition %d (%s) on %s: script %q, Match %q", i, conditions.Str(c), u, got, want)
			}
		}
	}
}

func TestCompileDropsNonJSGroups(t *testing.T) {
	opts := sample()
	opts.Put(&profiles.SwitchProfile{
		Base:               profiles.Base{Name: "groups", ProfileType: profiles.TypeSwitch},
		DefaultProfileName: "direct",
		Rules: []rulelist.Rule{
			{Condition: conditions.URLRegexCondition{Pattern: "(?i)foo"}, ProfileName: "proxy"},
			{Condition: conditions.URLRegexCondition{Pattern: "foo(?#c)"}, ProfileName: "proxy"},
			{Condition: conditions.HostRegexCondition{Pattern: "(?>f)oo"}, ProfileName: "proxy"},
			{Condition: conditions.HostRegexCondition{Pattern: "(?'n'foo)"}, ProfileName: "proxy"},
			{Condition: conditions.HostRegexCondition{Pattern: `^bar\.`}, ProfileName: "proxy"},
		},
	})
	script := Compile(opts, "groups", Options{})
	for _, group := range []string{"/(?i)", "(?#", "(?>", "(?'"} {
		if strings.Contains(script, group) {
			t.Errorf("script contains regex literal with %q", group)
		}
	}
	// A syntax error anywhere would fail every lookup.
	if got := eval(t, script, "http://foo.com/"); got != "DIRECT" {
		t.Errorf("foo.com = %q", got)
	}
	if got := eval(t, script, "http://bar.com/"); got != "PROXY p.example.com:8080" {
		t.Errorf("bar.com = %q", got)
	}
}

func TestCompileRuleListAndPac(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.RuleListProfile{
		Base:               profiles.Base{Name: "gfw", ProfileType: profiles.TypeRuleList},
		Format:             "Switchy",
		RuleList:           "[SwitchyOmega Conditions]\n@with result\n*.a.com +pac\n*.b.com +system\n* +direct\n",
		MatchProfileName:   "unused",
		DefaultProfileName: "direct",
	})
	opts.Put(&profiles.PacProfile{
		Base:      profiles.Base{Name: "pac", ProfileType: profiles.TypePac},
		PacScript: `function FindProxyForURL(url, host) { return "PROXY inner:" + host.length; }`,
	})

	script := Compile(opts, "gfw", Options{Comments: true})
	if got := eval(t, script, "http://x.a.com/"); got != "PROXY inner:7" {
		t.Errorf("embedded pac = %q", got)
	}
	if got := eval(t, script, "http://x.b.com/"); got != "DIRECT" {
		t.Errorf("system = %q", got)
	}
	if !strings.Contains(script, "System proxy settings are not available") {
		t.Error("system degradation not commented")
	}
	if got := eval(t, script, "http://c.com/"); got != "DIRECT" {
		t.Errorf("default = %q", got)
	}
}

func TestCompilePacWithoutEntryPoint(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.PacProfile{
		Base:      profiles.Base{Name: "broken", ProfileType: profiles.TypePac},
		PacScript: `var notAPac = 1;`,
	})
	if got := eval(t, Compile(opts, "broken", Options{}), "http://x.com/"); got != "DIRECT" {
		t.Errorf("pac without FindProxyForURL = %q", got)
	}
}

func TestFunctionNameCollision(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.SwitchProfile{
		Base:               profiles.Base{Name: "entry", ProfileType: profiles.TypeSwitch},
		DefaultProfileName: "a/b",
		Rules: []rulelist.Rule{
			{Condition: conditions.HostWildcardCondition{Pattern: "x.com"}, ProfileName: "a.b"},
		},
	})
	opts.Put(&profiles.FixedProfile{
		Base:          profiles.Base{Name: "a.b", ProfileType: profiles.TypeFixed},
		FallbackProxy: &profiles.Proxy{Scheme: "http", Host: "dot", Port: 1},
	})
	opts.Put(&profiles.FixedProfile{
		Base:          profiles.Base{Name: "a/b", ProfileType: profiles.TypeFixed},
		FallbackProxy: &profiles.Proxy{Scheme: "http", Host: "slash", Port: 1},
	})

	script := Compile(opts, "entry", Options{})
	if got := eval(t, script, "http://x.com/"); got != "PROXY dot:1" {
		t.Errorf("x.com = %q", got)
	}
	if got := eval(t, script, "http://y.com/"); got != "PROXY slash:1" {
		t.Errorf("y.com = %q", got)
	}
}

func TestCompileDeterministicASCII(t *testing.T) {
	opts := sample()
	opts.Put(&profiles.SwitchProfile{
		Base:               profiles.Base{Name: "ünï", ProfileType: profiles.TypeSwitch},
		DefaultProfileName: "auto",
		Rules: []rulelist.Rule{
			{Condition: conditions.KeywordCondition{Pattern: "日本"}, ProfileName: "proxy"},
			{Condition: conditions.URLRegexCondition{Pattern: `caf\é\.org`}, ProfileName: "proxy"},
		},
	})
	a := Compile(opts, "ünï", Options{Comments: true})
	b := Compile(opts, "ünï", Options{Comments: true})
	if a != b {
		t.Error("output differs between runs")
	}
	for i := 0; i < len(a); i++ {
		if a[i] >= 0x80 {
			t.Fatalf("non-ASCII byte at %d", i)
		}
	}
	got, err := pacrunner.Run(a, "http://a.com/日本", "a.com")
	if err != nil || got != "PROXY p.example.com:8080" {
		t.Errorf("unicode keyword = %q", got)
	}
	if strings.Contains(a, `/caf\\u00e9`) || !strings.Contains(a, `/caf\u00e9\.org/.test(url)`) {
		t.Errorf("escaped non-ASCII regex character not rendered as \\u00e9:\n%s", a)
	}
	if got, err := pacrunner.Run(a, "http://café.org/", "café.org"); err != nil || got != "PROXY p.example.com:8080" {
		t.Errorf("unicode regex = %q, %v", got, err)
	}
	if got, err := pacrunner.Run(a, "http://cafe.org/", "cafe.org"); err != nil || got != "DIRECT" {
		t.Errorf("ascii lookalike = %q, %v", got, err)
	}

	var buf bytes.Buffer
	if _, err := WriteTo(&buf, opts, "ünï", Options{Comments: true}); err != nil || buf.String() != a {
		t.Errorf("WriteTo = %v", err)
	}
}
