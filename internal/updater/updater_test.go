package updater

import (
	"context"
	"errors"
	"sync"
	"testing"

	"switchpac/internal/profiles"
)

type fakeGetter map[string]string

func (f fakeGetter) Get(_ context.Context, url string) (string, error) {
	body, ok := f[url]
	if !ok {
		return "", errors.New("not found")
	}
	return body, nil
}

func TestRun(t *testing.T) {
	opts := profiles.Options{}
	opts.Put(&profiles.RuleListProfile{
		Base:      profiles.Base{Name: "gfw", ProfileType: profiles.TypeAutoProxyRuleList},
		SourceURL: "http://lists/gfw.txt",
	})
	opts.Put(&profiles.PacProfile{
		Base:   profiles.Base{Name: "corp", ProfileType: profiles.TypePac},
		PacURL: "http://lists/corp.pac",
	})
	opts.Put(&profiles.PacProfile{
		Base:   profiles.Base{Name: "gone", ProfileType: profiles.TypePac},
		PacURL: "http://lists/missing.pac",
	})
	opts.Put(&profiles.SwitchProfile{Base: profiles.Base{Name: "auto", ProfileType: profiles.TypeSwitch}})

	g := fakeGetter{
		"http://lists/gfw.txt":  "[AutoProxy 0.2.9]\n||example.com\n",
		"http://lists/corp.pac": `function FindProxyForURL(url, host) { return "DIRECT"; }`,
	}

	targets := Targets(opts)
	if len(targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(targets))
	}

	var mu sync.Mutex
	seen := 0
	results := Run(context.Background(), g, targets, 2, func(Result) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	if seen != 3 {
		t.Errorf("onDone called %d times", seen)
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.ProfileName] = r
	}
	if r := byName["gone"]; r.Err == nil {
		t.Error("missing source reported no error")
	}
	if r := byName["gfw"]; r.Err != nil || !r.Changed {
		t.Errorf("gfw = %+v", r)
	}

	list := profiles.ByName("gfw", opts).(*profiles.RuleListProfile)
	if list.ProfileType != profiles.TypeRuleList || list.Format != "AutoProxy" || list.Revision == "" || list.LastUpdate == "" {
		t.Errorf("gfw after update = %+v", list)
	}

	again := Run(context.Background(), g, []profiles.Profile{list}, 1, nil)
	if again[0].Changed {
		t.Error("unchanged content reported as changed")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &profiles.PacProfile{Base: profiles.Base{Name: "corp", ProfileType: profiles.TypePac}, PacURL: "http://x"}
	results := Run(ctx, fakeGetter{}, []profiles.Profile{p}, 1, nil)
	if results[0].Err == nil {
		t.Error("cancelled run reported success")
	}
}
