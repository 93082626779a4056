package inquiry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/trigonal/intake/internal/catalog"
	"github.com/trigonal/intake/internal/domain"
)

func TestPreview(t *testing.T) {
	f := New(catalog.Default(), WithSource("lab_bridge"))
	t.Cleanup(func() { _ = f.Close() })
	f.ToggleDomain("ODOO_ERP")
	f.ToggleFeature("inventory")
	f.SetTimeline(domain.TimelineImmediate)
	fillIdentity(f, "Sarah K.", "Lumbini Zone Lab", "sarah.k@lumbini.lab")

	out, err := f.Preview()
	require.NoError(t, err)

	var doc briefDocument
	require.NoError(t, yaml.Unmarshal(out, &doc))
	b := doc.Brief

	assert.Equal(t, "lab_bridge", b.Source)
	require.Len(t, b.Scope, 2)
	assert.Equal(t, domain.DomainKey("LIS_MIDDLEWARE"), b.Scope[0].Domain)
	assert.Equal(t, []string{"Lab-Bridge Middleware", "Analyzer Interfacing (ASTM)"}, b.Scope[0].Features)
	assert.Equal(t, domain.DomainKey("ODOO_ERP"), b.Scope[1].Domain)
	assert.Equal(t, []string{"Inventory & Stock"}, b.Scope[1].Features)
	assert.Equal(t, []string{"LabBridge"}, b.RequiredMiddleware)
	assert.Equal(t, domain.TimelineImmediate, b.Logistics.Timeline)
	assert.Equal(t, domain.ScaleSingleFacility, b.Logistics.Scale)
	assert.Equal(t, "Lumbini Zone Lab", b.Identity.Organization)
	assert.Equal(t, "AWAITING_SUBMISSION", b.Status)
}

func TestRenderYAMLEmpty(t *testing.T) {
	out, err := RenderYAML(catalog.Default(), domain.Inquiry{
		Scale:    domain.ScaleNational,
		Timeline: domain.TimelinePlanning,
	}, domain.PhaseComplete)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "consultation_brief:\n"))
	assert.Contains(t, s, "scope: []")
	assert.NotContains(t, s, "required_middleware")
	assert.Contains(t, s, "status: SUBMITTED")
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name string
		id   domain.Identity
		want []domain.IdentityField
	}{
		{"complete", domain.Identity{Name: "Jane", Organization: "Org", Email: "jane@org.np"}, nil},
		{"blank name", domain.Identity{Name: "  ", Organization: "Org", Email: "jane@org.np"}, []domain.IdentityField{domain.FieldName}},
		{"bad email", domain.Identity{Name: "Jane", Organization: "Org", Email: "jane@"}, []domain.IdentityField{domain.FieldEmail}},
		{"display name email", domain.Identity{Name: "Jane", Organization: "Org", Email: "Jane <jane@org.np>"}, []domain.IdentityField{domain.FieldEmail}},
		{"empty", domain.Identity{}, []domain.IdentityField{domain.FieldName, domain.FieldOrganization, domain.FieldEmail}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateIdentity(tt.id)
			if tt.want == nil {
				assert.Nil(t, errs)
				return
			}
			require.Error(t, errs)
			for _, f := range tt.want {
				assert.Contains(t, errs, f)
			}
			assert.Len(t, errs, len(tt.want))
		})
	}
}

func TestFormValidate(t *testing.T) {
	f := newForm(t)
	fillIdentity(f, "Jane", "Org", "not-an-email")

	errs := f.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "valid email is required", errs[domain.FieldEmail])
	assert.Equal(t, "invalid inquiry: email: valid email is required", errs.Error())
}
