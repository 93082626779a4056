package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trigonal/intake/internal/catalog"
	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/enrich"
	"github.com/trigonal/intake/internal/inquiry"
	"github.com/trigonal/intake/internal/triage"
)

type memStore struct {
	saved []*domain.Brief
	err   error
}

func (m *memStore) SaveBrief(_ context.Context, b *domain.Brief) error {
	if m.err != nil {
		return m.err
	}
	b.ID = fmt.Sprintf("req_%03d", len(m.saved)+1)
	m.saved = append(m.saved, b)
	return nil
}

type enricherFunc func(ctx context.Context, email string) (*domain.OrgContext, error)

func (fn enricherFunc) Lookup(ctx context.Context, email string) (*domain.OrgContext, error) {
	return fn(ctx, email)
}

type drafterFunc func(ctx context.Context, inq domain.Inquiry) (string, error)

func (fn drafterFunc) Draft(ctx context.Context, inq domain.Inquiry) (string, error) {
	return fn(ctx, inq)
}

type recordingNotifier struct {
	got []string
	err error
}

func (r *recordingNotifier) NotifyBrief(_ context.Context, b *domain.Brief) error {
	r.got = append(r.got, b.ID)
	return r.err
}

func sampleInquiry() domain.Inquiry {
	return domain.Inquiry{
		Source:   "lab_bridge",
		Domains:  []domain.DomainKey{"LIS_MIDDLEWARE"},
		Features: []string{"lab_bridge", "astm"},
		Scale:    domain.ScaleMultiSite,
		Timeline: domain.TimelineImmediate,
		Identity: domain.Identity{Name: "Dr. Arju", Organization: "Lumbini Zone Lab", Email: "ops@lumbini.example"},
	}
}

func TestSubmit(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	at := time.Date(2026, 1, 19, 8, 30, 0, 0, time.UTC)

	s := NewService(store,
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(notifier),
		WithEnricher(enricherFunc(func(_ context.Context, email string) (*domain.OrgContext, error) {
			assert.Equal(t, "ops@lumbini.example", email)
			return &domain.OrgContext{Domain: "lumbini.example", Title: "Lumbini Zone Lab"}, nil
		})),
	)
	s.now = func() time.Time { return at }

	inq := sampleInquiry()
	id, err := s.Submit(context.Background(), inq)
	require.NoError(t, err)
	assert.Equal(t, "req_001", id)

	require.Len(t, store.saved, 1)
	b := store.saved[0]
	assert.Equal(t, inq, b.Inquiry)
	assert.Equal(t, at, b.CreatedAt)
	assert.Equal(t, domain.StatusNew, b.Status)
	assert.Equal(t, "Lumbini Zone Lab", b.Org.Title)
	assert.Equal(t, triage.Recommend(inq), b.Recommendation)
	assert.Equal(t, []string{"req_001"}, notifier.got)
}

func TestSubmitToleratesSideFailures(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{err: errors.New("mailgun down")}

	s := NewService(store,
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(notifier),
		WithEnricher(enricherFunc(func(context.Context, string) (*domain.OrgContext, error) {
			return nil, errors.New("timeout")
		})),
		WithDrafter(drafterFunc(func(context.Context, domain.Inquiry) (string, error) {
			return "", errors.New("rate limited")
		})),
	)

	id, err := s.Submit(context.Background(), sampleInquiry())
	require.NoError(t, err)
	assert.Equal(t, "req_001", id)
	assert.Nil(t, store.saved[0].Org)
	assert.Contains(t, store.saved[0].Recommendation, "Phase 1 Architecture Audit")
	assert.Equal(t, []string{"req_001"}, notifier.got)
}

func TestSubmitSkippedEnrichmentAndDraft(t *testing.T) {
	store := &memStore{}
	s := NewService(store,
		WithEnricher(enricherFunc(func(context.Context, string) (*domain.OrgContext, error) {
			return nil, enrich.ErrSkipped
		})),
		WithDrafter(drafterFunc(func(_ context.Context, inq domain.Inquiry) (string, error) {
			return "Drafted for " + inq.Identity.Organization, nil
		})),
	)

	_, err := s.Submit(context.Background(), sampleInquiry())
	require.NoError(t, err)
	assert.Nil(t, store.saved[0].Org)
	assert.Equal(t, "Drafted for Lumbini Zone Lab", store.saved[0].Recommendation)
}

func TestSubmitSaveError(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewService(&memStore{err: errors.New("disk full")}, WithNotifier(notifier))

	_, err := s.Submit(context.Background(), sampleInquiry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save brief: disk full")
	assert.Empty(t, notifier.got)
}

func TestFormSubmitsThroughService(t *testing.T) {
	store := &memStore{}
	s := NewService(store, WithLogger(zaptest.NewLogger(t)))

	f := inquiry.New(catalog.Default(),
		inquiry.WithSource("lab_bridge"),
		inquiry.WithLatency(0),
		inquiry.WithSubmitter(s),
	)
	defer f.Close()

	f.UpdateIdentityField(domain.FieldName, "Dr. Arju")
	f.UpdateIdentityField(domain.FieldOrganization, "Lumbini Zone Lab")
	f.UpdateIdentityField(domain.FieldEmail, "ops@lumbini.example")
	require.True(t, f.Submit())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	phase, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, phase)
	assert.Equal(t, "req_001", f.Reference())

	require.Len(t, store.saved, 1)
	assert.Equal(t, "lab_bridge", store.saved[0].Inquiry.Source)
	assert.Equal(t, []domain.DomainKey{"LIS_MIDDLEWARE"}, store.saved[0].Inquiry.Domains)
}

var _ inquiry.Submitter = (*Service)(nil)
