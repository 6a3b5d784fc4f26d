package profiles

import (
	"strconv"
	"strings"
	"time"

	"switchpac/internal/rulelist"
)

// NewRevision returns the revision for t: milliseconds since the epoch in
// hex.
func NewRevision(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 16)
}

// UpdateRevision bumps the revision of p to now.
func UpdateRevision(p Profile) {
	p.Common().Revision = NewRevision(time.Now())
}

// CompareRevision orders revisions: shorter is older, then lexicographic.
func CompareRevision(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

// UpdateURL returns where the profile content is fetched from, or "".
func UpdateURL(p Profile) string {
	switch p := p.(type) {
	case *RuleListProfile:
		return p.SourceURL
	case *PacProfile:
		return p.PacURL
	}
	return ""
}

// Update stores fetched content in p and reports whether it changed. Rule
// lists switch to the format the text is detected as.
func Update(p Profile, data string) bool {
	switch p := p.(type) {
	case *RuleListProfile:
		return UpdateRuleList(p, data)
	case *PacProfile:
		if p.PacScript == data {
			return false
		}
		p.PacScript = data
		return true
	}
	return false
}

// UpdateRuleList detects the format of data, preprocesses it and stores it.
// Legacy profile types become RuleListProfile.
func UpdateRuleList(p *RuleListProfile, data string) bool {
	data = strings.TrimSpace(data)
	name := p.FormatName()
	p.ProfileType = TypeRuleList

	format, err := rulelist.Get(name)
	if err != nil || !format.Detect(data) {
		if detected := rulelist.Detect(data); detected != nil {
			format = detected
		}
	}
	if format != nil {
		name = format.Name()
		data = format.Preprocess(data)
	}
	p.Format = name

	if p.RuleList == data {
		return false
	}
	p.RuleList = data
	return true
}
