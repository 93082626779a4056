package inquiry

import (
	"bytes"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/trigonal/intake/internal/domain"
)

type briefDocument struct {
	Brief briefBody `yaml:"consultation_brief"`
}

type briefBody struct {
	Source             string          `yaml:"source,omitempty"`
	Scope              []scopeEntry    `yaml:"scope"`
	RequiredMiddleware []string        `yaml:"required_middleware,omitempty"`
	Logistics          logistics       `yaml:"logistics"`
	Identity           domain.Identity `yaml:"identity"`
	Status             string          `yaml:"status"`
}

type scopeEntry struct {
	Domain   domain.DomainKey `yaml:"domain"`
	Label    string           `yaml:"label"`
	Features []string         `yaml:"features"`
}

type logistics struct {
	Scale    domain.ProjectScale `yaml:"scale"`
	Timeline domain.Timeline     `yaml:"timeline"`
}

// RenderYAML renders inq as the consultation-brief document shown next to
// the form. Feature labels come from the catalog; status is the phase.
func RenderYAML(c *domain.Catalog, inq domain.Inquiry, phase domain.Phase) ([]byte, error) {
	body := briefBody{
		Source:    inq.Source,
		Scope:     []scopeEntry{},
		Logistics: logistics{Scale: inq.Scale, Timeline: inq.Timeline},
		Identity:  inq.Identity,
		Status:    statusLine(phase),
	}

	for _, d := range c.Domains() {
		if !slices.Contains(inq.Domains, d.Key) {
			continue
		}
		entry := scopeEntry{Domain: d.Key, Label: d.Label, Features: []string{}}
		for _, f := range d.Features {
			if slices.Contains(inq.Features, f.ID) {
				entry.Features = append(entry.Features, f.Label)
			}
		}
		body.Scope = append(body.Scope, entry)
		for _, r := range d.Requires {
			if !slices.Contains(body.RequiredMiddleware, r) {
				body.RequiredMiddleware = append(body.RequiredMiddleware, r)
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(briefDocument{Brief: body}); err != nil {
		return nil, fmt.Errorf("encode brief: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode brief: %w", err)
	}
	return buf.Bytes(), nil
}

func statusLine(p domain.Phase) string {
	switch p {
	case domain.PhaseSubmitting:
		return "ANALYZING"
	case domain.PhaseComplete:
		return "SUBMITTED"
	case domain.PhaseFailed:
		return "FAILED"
	}
	return "AWAITING_SUBMISSION"
}

// Preview renders the form's current answers
func (f *Form) Preview() ([]byte, error) {
	f.mu.Lock()
	inq := f.inquiryLocked()
	phase := f.phase
	f.mu.Unlock()
	return RenderYAML(f.catalog, inq, phase)
}
