package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labERP() []Domain {
	return []Domain{
		{Key: "LAB", Label: "Laboratory", Features: []Feature{{ID: "Middleware"}, {ID: "AnalyzerInterface"}}},
		{Key: "ERP", Label: "ERP", Features: []Feature{{ID: "Billing"}, {ID: "Inventory"}}},
	}
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(labERP(), []Preset{{Source: "lab", Domains: []DomainKey{"LAB"}, Features: []string{"Middleware"}}})
	require.NoError(t, err)

	assert.Equal(t, []DomainKey{"LAB", "ERP"}, c.Keys())
	assert.True(t, c.Has("ERP"))
	assert.False(t, c.Has("PACS"))
	assert.True(t, c.Offers("LAB", "Middleware"))
	assert.False(t, c.Offers("ERP", "Middleware"))
	assert.Equal(t, 1, c.Position("ERP"))
	assert.Equal(t, -1, c.Position("PACS"))

	p, ok := c.Preset("lab")
	require.True(t, ok)
	assert.Equal(t, []string{"Middleware"}, p.Features)

	_, ok = c.Preset("unknown")
	assert.False(t, ok)
}

func TestNewCatalogRejects(t *testing.T) {
	tests := []struct {
		name    string
		domains []Domain
		presets []Preset
	}{
		{"no domains", nil, nil},
		{"empty key", []Domain{{Label: "x"}}, nil},
		{"duplicate domain", append(labERP(), Domain{Key: "LAB"}), nil},
		{"duplicate feature", []Domain{{Key: "A", Features: []Feature{{ID: "f"}, {ID: "f"}}}}, nil},
		{"preset unknown domain", labERP(), []Preset{{Source: "s", Domains: []DomainKey{"PACS"}}}},
		{"preset foreign feature", labERP(), []Preset{{Source: "s", Domains: []DomainKey{"LAB"}, Features: []string{"Billing"}}}},
		{"preset bad scale", labERP(), []Preset{{Source: "s", Domains: []DomainKey{"LAB"}, Scale: "SINGLE_HOSPITAL"}}},
		{"preset empty source", labERP(), []Preset{{Domains: []DomainKey{"LAB"}}}},
		{"preset duplicate domain", labERP(), []Preset{{Source: "s", Domains: []DomainKey{"LAB", "LAB"}}}},
		{"preset duplicate feature", labERP(), []Preset{{Source: "s", Domains: []DomainKey{"LAB"}, Features: []string{"Middleware", "Middleware"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.domains, tt.presets)
			assert.Error(t, err)
		})
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	src := labERP()
	c, err := NewCatalog(src, nil)
	require.NoError(t, err)

	src[0].Features[0].ID = "changed"
	got := c.Domains()
	got[1].Features[0].ID = "changed"

	d, _ := c.Domain("LAB")
	assert.Equal(t, "Middleware", d.Features[0].ID)
	d, _ = c.Domain("ERP")
	assert.Equal(t, "Billing", d.Features[0].ID)
}

func TestIdentity(t *testing.T) {
	var id Identity
	assert.Equal(t, []IdentityField{FieldName, FieldOrganization, FieldEmail}, id.Missing())

	assert.True(t, id.Set(FieldName, "Jane"))
	assert.True(t, id.Set(FieldEmail, " "))
	assert.False(t, id.Set("phone", "123"))

	assert.Equal(t, []IdentityField{FieldOrganization}, id.Missing())
	assert.Equal(t, "Jane", id.Get(FieldName))
}

func TestParseBriefStatus(t *testing.T) {
	st, err := ParseBriefStatus("reviewing")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewing, st)

	_, err = ParseBriefStatus("DONE")
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}

func TestEnums(t *testing.T) {
	for _, s := range Scales() {
		assert.True(t, s.Valid(), s)
	}
	for _, tl := range Timelines() {
		assert.True(t, tl.Valid(), tl)
	}
	assert.False(t, ProjectScale("MULTI_HOSPITAL").Valid())
	assert.False(t, Timeline("Q1_2026").Valid())
	assert.True(t, PhaseComplete.IsTerminal())
	assert.False(t, PhaseFailed.IsTerminal())
}
