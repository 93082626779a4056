package domain

import (
	"fmt"
	"slices"
	"sort"
)

// DomainKey identifies a top-level service offering
type DomainKey string

// Feature is a selectable capability nested under a domain
type Feature struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Domain describes one service offering and the features it offers
type Domain struct {
	Key         DomainKey `json:"key" yaml:"key"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Features    []Feature `json:"features" yaml:"features"`
	// Requires lists components that are always part of a build for this domain.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Offers reports whether the domain lists the feature tag
func (d Domain) Offers(tag string) bool {
	return slices.ContainsFunc(d.Features, func(f Feature) bool { return f.ID == tag })
}

// FeatureIDs returns the feature tags in catalog order
func (d Domain) FeatureIDs() []string {
	ids := make([]string, len(d.Features))
	for i, f := range d.Features {
		ids[i] = f.ID
	}
	return ids
}

// FeatureLabel returns the display label for tag, or tag itself
func (d Domain) FeatureLabel(tag string) string {
	for _, f := range d.Features {
		if f.ID == tag {
			return f.Label
		}
	}
	return tag
}

func (d Domain) clone() Domain {
	d.Features = slices.Clone(d.Features)
	d.Requires = slices.Clone(d.Requires)
	return d
}

// Preset is a pre-selection keyed by an inbound source tag
type Preset struct {
	Source   string       `json:"source" yaml:"source"`
	Domains  []DomainKey  `json:"domains" yaml:"domains"`
	Features []string     `json:"features,omitempty" yaml:"features,omitempty"`
	Scale    ProjectScale `json:"scale,omitempty" yaml:"scale,omitempty"`
	Timeline Timeline     `json:"timeline,omitempty" yaml:"timeline,omitempty"`
}

func (p Preset) clone() Preset {
	p.Domains = slices.Clone(p.Domains)
	p.Features = slices.Clone(p.Features)
	return p
}

// Catalog is the immutable table of domains and source presets.
// Accessors hand out copies so callers cannot mutate it.
type Catalog struct {
	domains []Domain
	index   map[DomainKey]int
	presets map[string]Preset
}

// NewCatalog validates and copies domains and presets into a Catalog
func NewCatalog(domains []Domain, presets []Preset) (*Catalog, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("catalog has no domains")
	}

	c := &Catalog{
		domains: make([]Domain, 0, len(domains)),
		index:   make(map[DomainKey]int, len(domains)),
		presets: make(map[string]Preset, len(presets)),
	}

	for _, d := range domains {
		if d.Key == "" {
			return nil, fmt.Errorf("domain with label %q has no key", d.Label)
		}
		if _, dup := c.index[d.Key]; dup {
			return nil, fmt.Errorf("duplicate domain %s", d.Key)
		}
		seen := make(map[string]bool, len(d.Features))
		for _, f := range d.Features {
			if f.ID == "" {
				return nil, fmt.Errorf("domain %s: feature with empty id", d.Key)
			}
			if seen[f.ID] {
				return nil, fmt.Errorf("domain %s: duplicate feature %s", d.Key, f.ID)
			}
			seen[f.ID] = true
		}
		c.index[d.Key] = len(c.domains)
		c.domains = append(c.domains, d.clone())
	}

	for _, p := range presets {
		if err := c.checkPreset(p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Source, err)
		}
		if _, dup := c.presets[p.Source]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Source)
		}
		c.presets[p.Source] = p.clone()
	}

	return c, nil
}

func (c *Catalog) checkPreset(p Preset) error {
	if p.Source == "" {
		return fmt.Errorf("empty source tag")
	}
	seenDomain := make(map[DomainKey]bool, len(p.Domains))
	for _, k := range p.Domains {
		if !c.Has(k) {
			return fmt.Errorf("unknown domain %s", k)
		}
		if seenDomain[k] {
			return fmt.Errorf("duplicate domain %s", k)
		}
		seenDomain[k] = true
	}
	seenFeature := make(map[string]bool, len(p.Features))
	for _, tag := range p.Features {
		if seenFeature[tag] {
			return fmt.Errorf("duplicate feature %s", tag)
		}
		seenFeature[tag] = true
		offered := slices.ContainsFunc(p.Domains, func(k DomainKey) bool {
			return c.domains[c.index[k]].Offers(tag)
		})
		if !offered {
			return fmt.Errorf("feature %s is not offered by the preset's domains", tag)
		}
	}
	if p.Scale != "" && !p.Scale.Valid() {
		return fmt.Errorf("invalid scale %s", p.Scale)
	}
	if p.Timeline != "" && !p.Timeline.Valid() {
		return fmt.Errorf("invalid timeline %s", p.Timeline)
	}
	return nil
}

// Domains returns every domain in catalog order
func (c *Catalog) Domains() []Domain {
	out := make([]Domain, len(c.domains))
	for i, d := range c.domains {
		out[i] = d.clone()
	}
	return out
}

// Keys returns the domain keys in catalog order
func (c *Catalog) Keys() []DomainKey {
	keys := make([]DomainKey, len(c.domains))
	for i, d := range c.domains {
		keys[i] = d.Key
	}
	return keys
}

// Has reports whether key names a catalog domain
func (c *Catalog) Has(key DomainKey) bool {
	_, ok := c.index[key]
	return ok
}

// Domain looks up a domain by key
func (c *Catalog) Domain(key DomainKey) (Domain, bool) {
	i, ok := c.index[key]
	if !ok {
		return Domain{}, false
	}
	return c.domains[i].clone(), true
}

// Offers reports whether the domain named by key lists tag
func (c *Catalog) Offers(key DomainKey, tag string) bool {
	i, ok := c.index[key]
	return ok && c.domains[i].Offers(tag)
}

// Position returns the catalog index of key, or -1
func (c *Catalog) Position(key DomainKey) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

// Preset looks up the pre-selection for a source tag
func (c *Catalog) Preset(source string) (Preset, bool) {
	p, ok := c.presets[source]
	if !ok {
		return Preset{}, false
	}
	return p.clone(), true
}

// Presets returns every preset sorted by source tag
func (c *Catalog) Presets() []Preset {
	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
