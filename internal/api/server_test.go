package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trigonal/intake/internal/catalog"
	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/intake"
	"github.com/trigonal/intake/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := zaptest.NewLogger(t)
	svc := intake.NewService(st, intake.WithLogger(log))
	srv := New(st, catalog.Default(), svc, ":0",
		WithLatency(0),
		WithAllowedOrigins([]string{"https://trigonal.dev"}),
		WithLogger(log),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func validInquiry() InquiryRequest {
	return InquiryRequest{
		Source:   "orthanc",
		Domains:  []domain.DomainKey{"ODOO_ERP"},
		Features: []string{"inventory"},
		Scale:    "national",
		Timeline: "IMMEDIATE",
		Identity: domain.Identity{
			Name:         "Dr. Arju",
			Organization: "Gandaki Province Hospital",
			Email:        "director@gph.gov.np",
		},
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCatalogAndPresets(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cat struct {
		Domains []domain.Domain `json:"domains"`
		Scales  []string        `json:"scales"`
	}
	decode(t, resp, &cat)
	require.Len(t, cat.Domains, 9)
	assert.Equal(t, domain.DomainKey("EMR_CORE"), cat.Domains[0].Key)
	assert.Equal(t, []string{"SINGLE_FACILITY", "MULTI_SITE", "NATIONAL"}, cat.Scales)

	resp = do(t, http.MethodGet, ts.URL+"/presets/lab_bridge", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p domain.Preset
	decode(t, resp, &p)
	assert.Equal(t, []domain.DomainKey{"LIS_MIDDLEWARE"}, p.Domains)

	resp = do(t, http.MethodGet, ts.URL+"/presets/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitInquiry(t *testing.T) {
	ts, st := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/inquiries", validInquiry())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got BriefResponse
	decode(t, resp, &got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, domain.StatusNew, got.Status)
	assert.Equal(t, []domain.DomainKey{"RIS_PACS", "ODOO_ERP"}, got.Inquiry.Domains)
	assert.Equal(t, []string{"orthanc", "billing_link", "inventory"}, got.Inquiry.Features)
	assert.Equal(t, domain.ScaleNational, got.Inquiry.Scale)
	assert.True(t, got.Flags.Urgent)
	assert.True(t, got.Flags.HighImpact)
	assert.Contains(t, got.Recommendation, "RIS_PACS + ODOO_ERP at a NATIONAL scale")

	saved, err := st.GetBrief(t.Context(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gandaki Province Hospital", saved.Inquiry.Identity.Organization)
}

func TestSubmitInquiryValidation(t *testing.T) {
	ts, st := newTestServer(t)

	req := validInquiry()
	req.Identity.Name = "   "
	req.Identity.Email = "not-an-email"

	resp := do(t, http.MethodPost, ts.URL+"/inquiries", req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "please complete all required fields", body.Error)
	assert.Equal(t, map[string]string{
		"name":  "full name is required",
		"email": "valid email is required",
	}, body.Fields)

	briefs, err := st.ListBriefs(t.Context(), store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, briefs)

	resp = do(t, http.MethodPost, ts.URL+"/inquiries", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreviewInquiry(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/inquiries/preview", validInquiry())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "consultation_brief:\n"))
	assert.Contains(t, out, "domain: ODOO_ERP")
	assert.Contains(t, out, "status: AWAITING_SUBMISSION")
}

func TestBriefLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/inquiries", validInquiry())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created BriefResponse
	decode(t, resp, &created)

	resp = do(t, http.MethodGet, ts.URL+"/briefs/"+created.ID[:8], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got BriefResponse
	decode(t, resp, &got)
	assert.Equal(t, created.ID, got.ID)

	resp = do(t, http.MethodPatch, ts.URL+"/briefs/"+created.ID+"/status", StatusRequest{Status: "reviewing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &got)
	assert.Equal(t, domain.StatusReviewing, got.Status)

	resp = do(t, http.MethodPatch, ts.URL+"/briefs/"+created.ID+"/status", StatusRequest{Status: "DONE"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/briefs?status=REVIEWING", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Briefs []BriefResponse `json:"briefs"`
		Counts map[string]int  `json:"counts"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Briefs, 1)
	assert.Equal(t, map[string]int{"REVIEWING": 1}, list.Counts)

	resp = do(t, http.MethodGet, ts.URL+"/briefs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/search?q=gandaki", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &list)
	require.Len(t, list.Briefs, 1)

	resp = do(t, http.MethodGet, ts.URL+"/search", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/briefs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/inquiries", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://trigonal.dev")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://trigonal.dev", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
