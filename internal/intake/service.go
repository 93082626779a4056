// Package intake turns a submitted inquiry into a stored, triaged brief.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/enrich"
	"github.com/trigonal/intake/internal/triage"
)

// BriefSaver persists briefs
type BriefSaver interface {
	SaveBrief(ctx context.Context, b *domain.Brief) error
}

// Enricher resolves a contact address to organization context
type Enricher interface {
	Lookup(ctx context.Context, email string) (*domain.OrgContext, error)
}

// Notifier announces a stored brief
type Notifier interface {
	NotifyBrief(ctx context.Context, b *domain.Brief) error
}

// Drafter writes the recommendation for an inquiry
type Drafter interface {
	Draft(ctx context.Context, inq domain.Inquiry) (string, error)
}

// Option configures a Service
type Option func(*Service)

// WithEnricher looks up the lead's organization before saving
func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithNotifier announces each saved brief
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDrafter replaces the template recommendation with a drafted one
func WithDrafter(d Drafter) Option {
	return func(s *Service) { s.drafter = d }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service processes submissions. It satisfies inquiry.Submitter.
type Service struct {
	store    BriefSaver
	enricher Enricher
	notifier Notifier
	drafter  Drafter
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a Service that saves briefs to store
func NewService(store BriefSaver, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("intake")
	return s
}

// Submit stores inq as a new brief and returns its id. Enrichment, drafting
// and notification failures are logged; only a failed save is returned.
func (s *Service) Submit(ctx context.Context, inq domain.Inquiry) (string, error) {
	flags := triage.Assess(inq)
	s.log.Info("consultation brief received",
		zap.String("source", inq.Source),
		zap.Any("domains", inq.Domains),
		zap.Strings("features", inq.Features),
		zap.String("scale", string(inq.Scale)),
		zap.String("timeline", string(inq.Timeline)),
		zap.String("organization", inq.Identity.Organization),
		zap.String("email", inq.Identity.Email),
		zap.Bool("urgent", flags.Urgent),
		zap.Bool("high_impact", flags.HighImpact))

	b := &domain.Brief{
		CreatedAt: s.now(),
		Status:    domain.StatusNew,
		Inquiry:   inq,
	}

	if s.enricher != nil {
		org, err := s.enricher.Lookup(ctx, inq.Identity.Email)
		switch {
		case errors.Is(err, enrich.ErrSkipped):
			s.log.Debug("enrichment skipped", zap.String("email", inq.Identity.Email))
		case err != nil:
			s.log.Warn("enrichment failed", zap.String("email", inq.Identity.Email), zap.Error(err))
		default:
			b.Org = org
		}
	}

	b.Recommendation = s.recommend(ctx, inq)

	if err := s.store.SaveBrief(ctx, b); err != nil {
		return "", fmt.Errorf("save brief: %w", err)
	}
	s.log.Info("brief saved", zap.String("brief_id", b.ID))

	if s.notifier != nil {
		if err := s.notifier.NotifyBrief(ctx, b); err != nil {
			s.log.Warn("notification failed", zap.String("brief_id", b.ID), zap.Error(err))
		}
	}

	return b.ID, nil
}

func (s *Service) recommend(ctx context.Context, inq domain.Inquiry) string {
	if s.drafter != nil {
		text, err := s.drafter.Draft(ctx, inq)
		if err == nil && text != "" {
			return text
		}
		s.log.Warn("draft failed, using template recommendation", zap.Error(err))
	}
	return triage.Recommend(inq)
}
