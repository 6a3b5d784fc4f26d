// Package updater refreshes every profile that has a remote source.
package updater

import (
	"context"
	"sync"
	"time"

	"switchpac/internal/logger"
	"switchpac/internal/profiles"
)

// Getter downloads the content at a URL.
type Getter interface {
	Get(ctx context.Context, url string) (string, error)
}

type Result struct {
	ProfileName string
	URL         string
	Bytes       int
	Changed     bool
	Duration    time.Duration
	Err         error
}

// Targets returns the profiles of opts that can be updated, in key order.
func Targets(opts profiles.Options) []profiles.Profile {
	var out []profiles.Profile
	profiles.Each(opts, func(_ string, p profiles.Profile) {
		if profiles.UpdateURL(p) != "" {
			out = append(out, p)
		}
	})
	return out
}

// Run fetches targets with up to workers concurrent downloads and stores the
// content in each profile. Changed profiles get a new revision. onDone, if
// set, is called once per target from the worker goroutines.
func Run(ctx context.Context, g Getter, targets []profiles.Profile, workers int, onDone func(Result)) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(targets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = update(ctx, g, targets[i])
				if onDone != nil {
					onDone(results[i])
				}
			}
		}()
	}

	for i := range targets {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(targets); j++ {
				results[j] = Result{ProfileName: profiles.NameOf(targets[j]), URL: profiles.UpdateURL(targets[j]), Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func update(ctx context.Context, g Getter, p profiles.Profile) Result {
	res := Result{ProfileName: profiles.NameOf(p), URL: profiles.UpdateURL(p)}
	start := time.Now()
	data, err := g.Get(ctx, res.URL)
	res.Duration = time.Since(start)
	if err != nil {
		logger.L().Warnf("Update of %s failed: %v", res.ProfileName, err)
		res.Err = err
		return res
	}
	res.Bytes = len(data)
	res.Changed = profiles.Update(p, data)

	stamp := time.Now().UTC().Format(time.RFC3339)
	switch p := p.(type) {
	case *profiles.RuleListProfile:
		p.LastUpdate = stamp
	case *profiles.PacProfile:
		p.LastUpdate = stamp
	}
	if res.Changed {
		profiles.UpdateRevision(p)
	}
	logger.L().Debugf("Updated %s (%d bytes, changed=%v)", res.ProfileName, res.Bytes, res.Changed)
	return res
}
