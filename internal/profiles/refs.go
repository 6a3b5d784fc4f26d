package profiles

import (
	"fmt"
	"sort"
	"sync"

	"switchpac/internal/logger"
	"switchpac/internal/rulelist"
)

const maxRefCacheEntries = 4096

type refEntry struct {
	revision string
	refs     map[string]bool
}

// refCache memoises DirectReferences per profile, valid while the revision
// is unchanged. Profiles without a revision are not cached.
var refCache = struct {
	sync.Mutex
	m map[Profile]refEntry
}{m: make(map[Profile]refEntry)}

// DirectReferences returns the names of the profiles p routes to directly.
// The returned set must not be modified.
func DirectReferences(p Profile) map[string]bool {
	if !IsInclusive(p) {
		return map[string]bool{}
	}
	rev := p.Common().Revision
	if rev != "" {
		refCache.Lock()
		e, ok := refCache.m[p]
		refCache.Unlock()
		if ok && e.revision == rev {
			return e.refs
		}
	}

	refs := directReferences(p)
	if rev != "" {
		refCache.Lock()
		if len(refCache.m) >= maxRefCacheEntries {
			refCache.m = make(map[Profile]refEntry)
		}
		refCache.m[p] = refEntry{revision: rev, refs: refs}
		refCache.Unlock()
	}
	return refs
}

func directReferences(p Profile) map[string]bool {
	refs := make(map[string]bool)
	switch p := p.(type) {
	case *SwitchProfile:
		refs[p.DefaultProfileName] = true
		for _, r := range p.Rules {
			refs[r.ProfileName] = true
		}
	case *RuleListProfile:
		if f, err := rulelist.Get(p.FormatName()); err == nil {
			if lister, ok := f.(rulelist.ReferenceLister); ok {
				if set := lister.DirectReferenceSet(p.RuleList, p.MatchProfileName, p.DefaultProfileName); set != nil {
					return set
				}
			}
		}
		refs[p.MatchProfileName] = true
		refs[p.DefaultProfileName] = true
	}
	return refs
}

// SortedNames returns the members of set in order.
func SortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AllReferences returns the profile named entry and every profile reachable
// from it, in breadth-first order. Cycles are followed once. When a name
// cannot be resolved, onMissing may supply a stand-in profile; otherwise the
// name is left out.
func AllReferences(entry string, opts Options, onMissing func(name string) Profile) []string {
	var result []string
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		p := ByName(name, opts)
		if p == nil && onMissing != nil {
			p = onMissing(name)
		}
		if p == nil {
			logger.L().Debugf("profile %q is referenced but does not exist", name)
			continue
		}
		result = append(result, name)
		for _, ref := range SortedNames(DirectReferences(p)) {
			if !visited[ref] {
				visited[ref] = true
				queue = append(queue, ref)
			}
		}
	}
	return result
}

// ReferencedBySet returns the names of every profile that reaches name,
// directly or indirectly.
func ReferencedBySet(name string, opts Options) map[string]bool {
	reverse := make(map[string][]string)
	Each(opts, func(_ string, p Profile) {
		for ref := range DirectReferences(p) {
			reverse[ref] = append(reverse[ref], NameOf(p))
		}
	})

	result := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, by := range reverse[n] {
			if !result[by] {
				result[by] = true
				queue = append(queue, by)
			}
		}
	}
	return result
}

// ValidResultProfilesFor lists the profiles p may route to without creating
// a cycle. Only inclusive profiles have results.
func ValidResultProfilesFor(p Profile, opts Options) []Profile {
	if !IsInclusive(p) {
		return nil
	}
	excluded := ReferencedBySet(NameOf(p), opts)
	excluded[NameOf(p)] = true

	var result []Profile
	Each(opts, func(_ string, prof Profile) {
		if !excluded[NameOf(prof)] && IsIncludable(prof) {
			result = append(result, prof)
		}
	})
	return result
}

// ReplaceRef renames every reference from one profile name to another in
// an inclusive profile. It reports whether p changed.
func ReplaceRef(p Profile, from, to string) bool {
	changed := false
	switch p := p.(type) {
	case *SwitchProfile:
		if p.DefaultProfileName == from {
			p.DefaultProfileName = to
			changed = true
		}
		for i := range p.Rules {
			if p.Rules[i].ProfileName == from {
				p.Rules[i].ProfileName = to
				changed = true
			}
		}
	case *RuleListProfile:
		if p.DefaultProfileName == from {
			p.DefaultProfileName = to
			changed = true
		}
		if p.MatchProfileName == from {
			p.MatchProfileName = to
			changed = true
		}
	}
	return changed
}

// Rename moves the profile from to the name to and rewrites every reference
// to it. It returns the number of other profiles that changed.
func Rename(opts Options, from, to string) (int, error) {
	if IsBuiltin(from) || IsBuiltin(to) {
		return 0, fmt.Errorf("builtin profiles cannot be renamed")
	}
	p, ok := opts[Key(from)].(Profile)
	if !ok {
		return 0, fmt.Errorf("profile %q not found", from)
	}
	if _, exists := opts[Key(to)]; exists {
		return 0, fmt.Errorf("profile %q already exists", to)
	}

	delete(opts, Key(from))
	p.Common().Name = to
	UpdateRevision(p)
	opts.Put(p)

	n := 0
	Each(opts, func(_ string, other Profile) {
		if IsBuiltin(NameOf(other)) {
			return
		}
		if ReplaceRef(other, from, to) {
			if other != p {
				n++
			}
			UpdateRevision(other)
		}
	})
	return n, nil
}
