// Package triage flags briefs that need attention first and drafts the
// architect's opening recommendation.
package triage

import (
	"fmt"
	"strings"

	"github.com/trigonal/intake/internal/domain"
)

// Flags summarizes how a brief should be prioritized
type Flags struct {
	Urgent     bool   `json:"urgent"`
	HighImpact bool   `json:"high_impact"`
	Banner     string `json:"banner,omitempty"`
}

// Assess flags immediate timelines as urgent and national scale as high impact
func Assess(inq domain.Inquiry) Flags {
	f := Flags{
		Urgent:     inq.Timeline == domain.TimelineImmediate,
		HighImpact: inq.Scale == domain.ScaleNational,
	}

	var parts []string
	if f.HighImpact {
		parts = append(parts, "HIGH IMPACT: NATIONAL SCALE")
	}
	if f.Urgent {
		parts = append(parts, "TIMELINE: URGENT")
	}
	f.Banner = strings.Join(parts, " · ")
	return f
}

// Recommend returns the template recommendation for inq
func Recommend(inq domain.Inquiry) string {
	scope := "a general consultation"
	if len(inq.Domains) > 0 {
		keys := make([]string, len(inq.Domains))
		for i, k := range inq.Domains {
			keys[i] = string(k)
		}
		scope = strings.Join(keys, " + ")
	}

	opening := "recommend scheduling a scoping call this quarter"
	switch inq.Timeline {
	case domain.TimelineImmediate:
		opening = "recommend starting with a Phase 1 Architecture Audit immediately"
	case domain.TimelinePlanning:
		opening = "recommend sharing a reference architecture to support their planning"
	}

	return fmt.Sprintf(
		"Based on the request for %s at a %s scale, we should propose the 'Sovereign Stack' approach. Since the timeline is %s, %s.",
		scope, inq.Scale, inq.Timeline, opening,
	)
}
