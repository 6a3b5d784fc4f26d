package profiles

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"switchpac/internal/conditions"
	"switchpac/internal/rulelist"
)

func mustReq(t *testing.T, rawURL string) conditions.Request {
	t.Helper()
	r, err := conditions.RequestFromURL(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func sampleOptions() Options {
	opts := Options{"-startupProfileName": json.RawMessage(`"auto"`)}
	opts.Put(&FixedProfile{
		Base:          Base{Name: "proxy", ProfileType: TypeFixed},
		FallbackProxy: &Proxy{Scheme: "http", Host: "p.example.com", Port: 8080},
		ProxyForHTTPS: &Proxy{Scheme: "socks5", Host: "s.example.com", Port: 1080},
		BypassList:    conditions.List{conditions.BypassCondition{Pattern: "<local>"}},
		Auth:          map[string]*Auth{"all": {Username: "u", Password: "p"}},
	})
	opts.Put(&SwitchProfile{
		Base:               Base{Name: "auto", ProfileType: TypeSwitch},
		DefaultProfileName: "direct",
		Rules: []rulelist.Rule{
			{Condition: conditions.HostWildcardCondition{Pattern: "*.example.com"}, ProfileName: "proxy"},
			{Condition: conditions.HostWildcardCondition{Pattern: "*.list.com"}, ProfileName: "list"},
		},
	})
	opts.Put(&RuleListProfile{
		Base:               Base{Name: "list", ProfileType: TypeRuleList},
		Format:             "AutoProxy",
		RuleList:           "||blocked.list.com\n@@||ok.blocked.list.com",
		MatchProfileName:   "proxy",
		DefaultProfileName: "direct",
	})
	return opts
}

func TestPacResult(t *testing.T) {
	testCases := []struct {
		proxy *Proxy
		want  string
	}{
		{nil, "DIRECT"},
		{&Proxy{Scheme: "direct"}, "DIRECT"},
		{&Proxy{Scheme: "http", Host: "h", Port: 80}, "PROXY h:80"},
		{&Proxy{Scheme: "https", Host: "h", Port: 443}, "HTTPS h:443"},
		{&Proxy{Scheme: "socks4", Host: "h", Port: 1080}, "SOCKS h:1080"},
		{&Proxy{Scheme: "socks5", Host: "h", Port: 1080}, "SOCKS5 h:1080; SOCKS h:1080"},
		{&Proxy{Scheme: "quic", Host: "h", Port: 1}, "DIRECT"},
	}
	for _, tc := range testCases {
		if got := PacResult(tc.proxy); got != tc.want {
			t.Errorf("PacResult(%v) = %q, want %q", tc.proxy, got, tc.want)
		}
	}
}

func TestParseProxyURL(t *testing.T) {
	p, auth, err := ParseProxyURL("socks5://user:pw@h.example.com:1081")
	if err != nil {
		t.Fatal(err)
	}
	if *p != (Proxy{Scheme: "socks5", Host: "h.example.com", Port: 1081}) {
		t.Errorf("proxy = %+v", p)
	}
	if auth == nil || auth.Username != "user" || auth.Password != "pw" {
		t.Errorf("auth = %+v", auth)
	}

	p, _, err = ParseProxyURL("http://[::1]")
	if err != nil || p.Host != "[::1]" || p.Port != 80 {
		t.Errorf("ipv6 proxy = %+v, %v", p, err)
	}

	for _, bad := range []string{"ftp://h:1", "http://", "http://h:99999"} {
		if _, _, err := ParseProxyURL(bad); err == nil {
			t.Errorf("ParseProxyURL(%q) succeeded", bad)
		}
	}
}

func TestCreate(t *testing.T) {
	p, err := Create("f", TypeFixed)
	if err != nil {
		t.Fatal(err)
	}
	fixed := p.(*FixedProfile)
	want := []string{"Bypass: 127.0.0.1", "Bypass: ::1", "Bypass: localhost"}
	var got []string
	for _, c := range fixed.BypassList {
		got = append(got, conditions.Str(c))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bypass list = %v", got)
	}

	p, _ = Create("s", TypeSwitch)
	if sw := p.(*SwitchProfile); sw.DefaultProfileName != "direct" || sw.Rules == nil || len(sw.Rules) != 0 {
		t.Errorf("switch defaults = %+v", sw)
	}
	p, _ = Create("a", TypeAutoProxyRuleList)
	if rl := p.(*RuleListProfile); rl.Format != "AutoProxy" {
		t.Errorf("legacy rule list format = %q", rl.Format)
	}
	if _, err := Create("x", "Bogus"); !errors.Is(err, ErrUnknownProfileType) {
		t.Errorf("Create(Bogus) = %v", err)
	}
}

func TestByNameAndEach(t *testing.T) {
	opts := sampleOptions()
	if p := ByName("direct", opts); p == nil || TypeOf(p) != TypeDirect {
		t.Errorf("ByName(direct) = %v", p)
	}
	if p := ByName("auto", opts); p == nil || TypeOf(p) != TypeSwitch {
		t.Errorf("ByName(auto) = %v", p)
	}
	if p := ByName("missing", opts); p != nil {
		t.Errorf("ByName(missing) = %v", p)
	}

	var keys []string
	Each(opts, func(key string, _ Profile) { keys = append(keys, key) })
	want := []string{"+auto", "+list", "+proxy", "+direct", "+system"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Each keys = %v, want %v", keys, want)
	}
	if opts.Len() != 3 {
		t.Errorf("Len() = %d", opts.Len())
	}
}

func TestIncludableInclusive(t *testing.T) {
	testCases := []struct {
		p          Profile
		includable bool
		inclusive  bool
	}{
		{&DirectProfile{}, true, false},
		{&SystemProfile{}, false, false},
		{&FixedProfile{}, true, false},
		{&PacProfile{PacURL: "http://x/p.pac"}, true, false},
		{&PacProfile{PacURL: "file:///etc/p.pac"}, false, false},
		{&SwitchProfile{}, true, true},
		{&RuleListProfile{}, true, true},
	}
	for _, tc := range testCases {
		if got := IsIncludable(tc.p); got != tc.includable {
			t.Errorf("IsIncludable(%T %+v) = %v", tc.p, tc.p, got)
		}
		if got := IsInclusive(tc.p); got != tc.inclusive {
			t.Errorf("IsInclusive(%T) = %v", tc.p, got)
		}
	}
}

func TestDirectReferences(t *testing.T) {
	opts := sampleOptions()
	got := DirectReferences(ByName("auto", opts))
	want := map[string]bool{"direct": true, "proxy": true, "list": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DirectReferences(auto) = %v", got)
	}

	withResult := &RuleListProfile{
		Base:               Base{Name: "wr", ProfileType: TypeRuleList},
		Format:             "Switchy",
		RuleList:           "[SwitchyOmega Conditions]\n@with result\n*.a.com +A\n* +B\n",
		MatchProfileName:   "M",
		DefaultProfileName: "D",
	}
	got = DirectReferences(withResult)
	want = map[string]bool{"A": true, "B": true, "D": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DirectReferences(with result) = %v", got)
	}

	if got := DirectReferences(&FixedProfile{}); len(got) != 0 {
		t.Errorf("DirectReferences(fixed) = %v", got)
	}
}

func TestDirectReferencesCacheFollowsRevision(t *testing.T) {
	p := &SwitchProfile{Base: Base{Name: "s", ProfileType: TypeSwitch, Revision: "1"}, DefaultProfileName: "a"}
	if refs := DirectReferences(p); !refs["a"] {
		t.Fatalf("refs = %v", refs)
	}
	p.DefaultProfileName = "b"
	p.Revision = "2"
	if refs := DirectReferences(p); !refs["b"] || refs["a"] {
		t.Errorf("refs after revision bump = %v", refs)
	}
}

func TestAllReferencesCycle(t *testing.T) {
	opts := Options{}
	opts.Put(&SwitchProfile{Base: Base{Name: "A", ProfileType: TypeSwitch}, DefaultProfileName: "B"})
	opts.Put(&SwitchProfile{Base: Base{Name: "B", ProfileType: TypeSwitch}, DefaultProfileName: "A"})

	got := AllReferences("A", opts, nil)
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("AllReferences(A) = %v", got)
	}
}

func TestAllReferencesMissing(t *testing.T) {
	opts := Options{}
	opts.Put(&SwitchProfile{Base: Base{Name: "A", ProfileType: TypeSwitch}, DefaultProfileName: "gone"})

	if got := AllReferences("A", opts, nil); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("AllReferences without onMissing = %v", got)
	}

	var missing []string
	got := AllReferences("A", opts, func(name string) Profile {
		missing = append(missing, name)
		return &DirectProfile{Base: Base{Name: name, ProfileType: TypeDirect}}
	})
	if !reflect.DeepEqual(got, []string{"A", "gone"}) || !reflect.DeepEqual(missing, []string{"gone"}) {
		t.Errorf("AllReferences with onMissing = %v, missing %v", got, missing)
	}
}

func TestMatch(t *testing.T) {
	opts := sampleOptions()
	fixed := ByName("proxy", opts)

	r := Match(fixed, mustReq(t, "http://localhost/"))
	if r.ProfileName != "direct" || PacResult(r.Proxy) != "DIRECT" || r.Source != "Bypass: <local>" {
		t.Errorf("bypass match = %+v", r)
	}
	r = Match(fixed, mustReq(t, "https://a.com/"))
	if PacResult(r.Proxy) != "SOCKS5 s.example.com:1080; SOCKS s.example.com:1080" || r.Source != "proxyForHttps" {
		t.Errorf("https match = %+v", r)
	}
	if r.Auth == nil || r.Auth.Username != "u" {
		t.Errorf("auth fallback to all = %+v", r.Auth)
	}
	r = Match(fixed, mustReq(t, "http://a.com/"))
	if PacResult(r.Proxy) != "PROXY p.example.com:8080" || r.Source != "fallbackProxy" {
		t.Errorf("fallback match = %+v", r)
	}

	auto := ByName("auto", opts)
	if r := Match(auto, mustReq(t, "http://www.example.com/")); r.ProfileName != "proxy" {
		t.Errorf("switch match = %+v", r)
	}
	if r := Match(auto, mustReq(t, "http://other.com/")); r.ProfileName != "direct" {
		t.Errorf("switch default = %+v", r)
	}

	list := ByName("list", opts)
	if r := Match(list, mustReq(t, "http://blocked.list.com/")); r.ProfileName != "proxy" {
		t.Errorf("rule list match = %+v", r)
	}
	if r := Match(list, mustReq(t, "http://ok.blocked.list.com/")); r.ProfileName != "direct" {
		t.Errorf("rule list exclusion = %+v", r)
	}

	if r := Match(&SystemProfile{}, mustReq(t, "http://a/")); r != nil {
		t.Errorf("system match = %+v", r)
	}
	if r := Match(&PacProfile{}, mustReq(t, "http://a/")); r != nil {
		t.Errorf("pac match = %+v", r)
	}
}

func TestResolve(t *testing.T) {
	opts := sampleOptions()

	r, chain, err := Resolve("auto", opts, mustReq(t, "http://blocked.list.com/"))
	if err != nil {
		t.Fatal(err)
	}
	if PacResult(r.Proxy) != "PROXY p.example.com:8080" || !reflect.DeepEqual(chain, []string{"auto", "list", "proxy"}) {
		t.Errorf("Resolve = %+v via %v", r, chain)
	}

	r, _, err = Resolve("auto", opts, mustReq(t, "http://nowhere.org/"))
	if err != nil || PacResult(r.Proxy) != "DIRECT" {
		t.Errorf("Resolve default = %+v, %v", r, err)
	}

	cyc := Options{}
	cyc.Put(&SwitchProfile{Base: Base{Name: "A", ProfileType: TypeSwitch}, DefaultProfileName: "B"})
	cyc.Put(&SwitchProfile{Base: Base{Name: "B", ProfileType: TypeSwitch}, DefaultProfileName: "A"})
	if _, _, err := Resolve("A", cyc, mustReq(t, "http://x/")); err == nil {
		t.Error("Resolve on a cycle succeeded")
	}
}

func TestReplaceRefAndReferencedBy(t *testing.T) {
	opts := sampleOptions()

	by := ReferencedBySet("proxy", opts)
	if !reflect.DeepEqual(by, map[string]bool{"auto": true, "list": true}) {
		t.Errorf("ReferencedBySet(proxy) = %v", by)
	}

	valid := ValidResultProfilesFor(ByName("list", opts), opts)
	var names []string
	for _, p := range valid {
		names = append(names, NameOf(p))
	}
	if !reflect.DeepEqual(names, []string{"proxy", "direct"}) {
		t.Errorf("ValidResultProfilesFor(list) = %v", names)
	}

	auto := ByName("auto", opts)
	if !ReplaceRef(auto, "proxy", "proxy2") {
		t.Fatal("ReplaceRef reported no change")
	}
	if auto.(*SwitchProfile).Rules[0].ProfileName != "proxy2" {
		t.Errorf("rule not renamed")
	}
	if ReplaceRef(auto, "nothing", "x") {
		t.Error("ReplaceRef changed an unrelated profile")
	}
	if ReplaceRef(ByName("proxy", opts), "direct", "x") {
		t.Error("ReplaceRef changed a fixed profile")
	}
}

func TestRename(t *testing.T) {
	opts := sampleOptions()
	n, err := Rename(opts, "proxy", "upstream")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("updated %d referring profiles, want 2", n)
	}
	if ByName("proxy", opts) != nil || ByName("upstream", opts) == nil {
		t.Fatal("profile not moved")
	}
	if ByName("list", opts).(*RuleListProfile).MatchProfileName != "upstream" {
		t.Error("rule list reference not renamed")
	}
	if ByName("auto", opts).Common().Revision == "" {
		t.Error("referring profile revision not bumped")
	}

	for _, c := range [][2]string{{"missing", "x"}, {"auto", "list"}, {"direct", "x"}, {"auto", "system"}} {
		if _, err := Rename(opts, c[0], c[1]); err == nil {
			t.Errorf("Rename(%s, %s) succeeded", c[0], c[1])
		}
	}
}

func TestRevision(t *testing.T) {
	if CompareRevision("ff", "100") >= 0 {
		t.Error("shorter revision should be older")
	}
	if CompareRevision("abc", "abd") >= 0 || CompareRevision("abc", "abc") != 0 {
		t.Error("lexicographic order broken")
	}
	p := &DirectProfile{}
	UpdateRevision(p)
	if p.Revision == "" {
		t.Error("UpdateRevision left revision empty")
	}
}

func TestUpdate(t *testing.T) {
	p := &RuleListProfile{Base: Base{Name: "l", ProfileType: TypeSwitchyRuleList}}
	if UpdateURL(p) != "" {
		t.Error("UpdateURL without source")
	}
	p.SourceURL = "https://example.com/list.txt"
	if UpdateURL(p) != p.SourceURL {
		t.Error("UpdateURL mismatch")
	}

	if !Update(p, "  [AutoProxy 0.2.9]\n||a.com\n") {
		t.Fatal("Update reported no change")
	}
	if p.Format != "AutoProxy" || p.ProfileType != TypeRuleList || !strings.HasPrefix(p.RuleList, "[AutoProxy") {
		t.Errorf("after update: %+v", p)
	}
	if Update(p, "[AutoProxy 0.2.9]\n||a.com") {
		t.Error("Update with equal content reported a change")
	}

	pac := &PacProfile{PacURL: "http://x/p.pac"}
	if !Update(pac, "function FindProxyForURL(){return 'DIRECT'}") || Update(pac, pac.PacScript) {
		t.Error("PAC update change detection")
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(sampleOptions())
	if err != nil {
		t.Fatal(err)
	}
	opts, err := DecodeOptions(data)
	if err != nil {
		t.Fatal(err)
	}
	if raw, ok := opts["-startupProfileName"].(json.RawMessage); !ok || string(raw) != `"auto"` {
		t.Errorf("setting entry = %#v", opts["-startupProfileName"])
	}
	fixed, ok := ByName("proxy", opts).(*FixedProfile)
	if !ok || fixed.ProxyForHTTPS.Scheme != "socks5" || len(fixed.BypassList) != 1 {
		t.Errorf("fixed profile = %+v", fixed)
	}
	auto := ByName("auto", opts).(*SwitchProfile)
	if len(auto.Rules) != 2 || conditions.Str(auto.Rules[0].Condition) != "*.example.com" {
		t.Errorf("switch rules = %+v", auto.Rules)
	}

	virtual, err := Decode([]byte(`{"name":"v","profileType":"VirtualProfile","defaultProfileName":"proxy"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sw, ok := virtual.(*SwitchProfile); !ok || sw.DefaultProfileName != "proxy" || TypeOf(sw) != TypeVirtual {
		t.Errorf("virtual = %#v", virtual)
	}

	if _, err := Decode([]byte(`{"name":"x","profileType":"Bogus"}`)); !errors.Is(err, ErrUnknownProfileType) {
		t.Errorf("Decode(Bogus) = %v", err)
	}
}
