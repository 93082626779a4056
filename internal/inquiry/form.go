// Package inquiry implements the lead-qualification form: the selection
// state, the domain/feature dependency, and the submission lifecycle.
package inquiry

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trigonal/intake/internal/domain"
)

// DefaultLatency is the pause between accepting a submission and handing it on
const DefaultLatency = 1500 * time.Millisecond

var (
	// ErrClosed is reported by Wait when the form was closed mid-submission
	ErrClosed = errors.New("form closed")
	// ErrNotSubmitted is reported by Wait when Submit was never accepted
	ErrNotSubmitted = errors.New("form not submitted")
)

// Submitter receives a frozen inquiry once the submission delay has elapsed.
// The returned reference identifies the stored lead, if any.
type Submitter interface {
	Submit(ctx context.Context, inq domain.Inquiry) (string, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, inq domain.Inquiry) (string, error)

// Submit calls fn
func (fn SubmitterFunc) Submit(ctx context.Context, inq domain.Inquiry) (string, error) {
	return fn(ctx, inq)
}

// Option configures a Form
type Option func(*Form)

// WithLatency sets the submission delay
func WithLatency(d time.Duration) Option {
	return func(f *Form) {
		if d >= 0 {
			f.latency = d
		}
	}
}

// WithSubmitter replaces the logging submitter
func WithSubmitter(s Submitter) Option {
	return func(f *Form) { f.submitter = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Form) {
		if l != nil {
			f.log = l
		}
	}
}

// WithSource pre-selects the preset registered for a source tag
func WithSource(tag string) Option {
	return func(f *Form) { f.source = tag }
}

func withAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(f *Form) { f.after = after }
}

// State is a read-only copy of the form's answers
type State struct {
	Domains  []domain.DomainKey  `json:"domains"`
	Features []string            `json:"features"`
	Scale    domain.ProjectScale `json:"scale"`
	Timeline domain.Timeline     `json:"timeline"`
	Identity domain.Identity     `json:"identity"`
	Phase    domain.Phase        `json:"phase"`
}

// Form owns one inquiry from creation until Close.
// It is safe for concurrent use.
type Form struct {
	catalog   *domain.Catalog
	submitter Submitter
	latency   time.Duration
	after     func(time.Duration) <-chan time.Time
	log       *zap.Logger
	source    string

	mu       sync.Mutex
	domains  []domain.DomainKey
	features []string
	scale    domain.ProjectScale
	timeline domain.Timeline
	identity domain.Identity
	phase    domain.Phase
	err      error
	ref      string
	done     chan struct{}
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New creates a form in the editing phase. The catalog must not be nil.
func New(c *domain.Catalog, opts ...Option) *Form {
	f := &Form{
		catalog:  c,
		latency:  DefaultLatency,
		after:    time.After,
		log:      zap.NewNop(),
		scale:    domain.ScaleSingleFacility,
		timeline: domain.TimelinePlanning,
		phase:    domain.PhaseEditing,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.Named("inquiry")
	if f.submitter == nil {
		f.submitter = LogSubmitter(f.log)
	}
	if f.source != "" {
		f.applySource(f.source)
	}
	return f
}

// applySource replaces the selection with the preset for tag. It runs once,
// from New, when WithSource names a tag.
// Unrecognized tags are ignored and reported as false.
func (f *Form) applySource(tag string) bool {
	p, ok := f.catalog.Preset(tag)
	if !ok {
		f.log.Debug("ignoring unknown source", zap.String("source", tag))
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() {
		return false
	}

	f.source = tag
	f.domains = slices.Clone(p.Domains)
	f.features = slices.Clone(p.Features)
	if p.Scale != "" {
		f.scale = p.Scale
	}
	if p.Timeline != "" {
		f.timeline = p.Timeline
	}
	return true
}

// editable reports whether setters may mutate state; callers hold mu
func (f *Form) editable() bool {
	return !f.closed && (f.phase == domain.PhaseEditing || f.phase == domain.PhaseFailed)
}

// ToggleDomain selects key, or deselects it and drops the feature tags
// that no other selected domain offers.
func (f *Form) ToggleDomain(key domain.DomainKey) {
	if !f.catalog.Has(key) {
		f.log.Debug("ignoring unknown domain", zap.String("domain", string(key)))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() {
		return
	}

	i := slices.Index(f.domains, key)
	if i < 0 {
		f.domains = append(f.domains, key)
		return
	}

	f.domains = slices.Delete(f.domains, i, i+1)
	f.features = slices.DeleteFunc(f.features, func(tag string) bool {
		return f.catalog.Offers(key, tag) && !f.offeredLocked(tag)
	})
}

// offeredLocked reports whether a selected domain offers tag
func (f *Form) offeredLocked(tag string) bool {
	return slices.ContainsFunc(f.domains, func(k domain.DomainKey) bool {
		return f.catalog.Offers(k, tag)
	})
}

// ToggleFeature adds or removes tag. Tags outside the available list are
// accepted and stay inert until a domain offering them is selected.
func (f *Form) ToggleFeature(tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() {
		return
	}

	if i := slices.Index(f.features, tag); i >= 0 {
		f.features = slices.Delete(f.features, i, i+1)
		return
	}
	f.features = append(f.features, tag)
}

// SetProjectScale overwrites the scale; unknown values are ignored
func (f *Form) SetProjectScale(s domain.ProjectScale) {
	if !s.Valid() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editable() {
		f.scale = s
	}
}

// SetTimeline overwrites the timeline; unknown values are ignored
func (f *Form) SetTimeline(t domain.Timeline) {
	if !t.Valid() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editable() {
		f.timeline = t
	}
}

// UpdateIdentityField overwrites one contact field
func (f *Form) UpdateIdentityField(field domain.IdentityField, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editable() {
		f.identity.Set(field, value)
	}
}

// HasDomain reports whether key is selected
func (f *Form) HasDomain(key domain.DomainKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.domains, key)
}

// HasFeature reports whether tag is selected
func (f *Form) HasFeature(tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.features, tag)
}

// AvailableFeatures concatenates, in catalog order, the feature tags of the
// selected domains. A tag listed by two selected domains appears twice.
func (f *Form) AvailableFeatures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, d := range f.catalog.Domains() {
		if slices.Contains(f.domains, d.Key) {
			out = append(out, d.FeatureIDs()...)
		}
	}
	return out
}

// Snapshot returns a copy of the current state with domains in catalog order
func (f *Form) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Domains:  f.sortedDomainsLocked(),
		Features: slices.Clone(f.features),
		Scale:    f.scale,
		Timeline: f.timeline,
		Identity: f.identity,
		Phase:    f.phase,
	}
}

// Inquiry returns the answers as they would be submitted now
func (f *Form) Inquiry() domain.Inquiry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inquiryLocked()
}

func (f *Form) inquiryLocked() domain.Inquiry {
	return domain.Inquiry{
		Source:   f.source,
		Domains:  f.sortedDomainsLocked(),
		Features: slices.Clone(f.features),
		Scale:    f.scale,
		Timeline: f.timeline,
		Identity: f.identity,
	}
}

func (f *Form) sortedDomainsLocked() []domain.DomainKey {
	out := slices.Clone(f.domains)
	slices.SortFunc(out, func(a, b domain.DomainKey) int {
		return f.catalog.Position(a) - f.catalog.Position(b)
	})
	return out
}

// Done returns a channel closed when the current submission resolves.
// It is nil before the first Submit.
func (f *Form) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Phase returns the submission phase
func (f *Form) Phase() domain.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Err returns the error of the last failed submission
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Reference returns what the submitter returned for the completed submission
func (f *Form) Reference() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ref
}

// Submit starts a submission when name, organization and email are all
// non-empty. It moves the form to submitting and reports true; otherwise it
// changes nothing and reports false. From failed, Submit retries.
func (f *Form) Submit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.editable() || len(f.identity.Missing()) > 0 {
		return false
	}

	inq := f.inquiryLocked()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	f.phase = domain.PhaseSubmitting
	f.err = nil
	f.done = done
	f.cancel = cancel

	f.wg.Add(1)
	go f.run(ctx, cancel, inq, done)

	f.log.Debug("submission started",
		zap.String("organization", inq.Identity.Organization),
		zap.Duration("latency", f.latency))
	return true
}

func (f *Form) run(ctx context.Context, cancel context.CancelFunc, inq domain.Inquiry, done chan struct{}) {
	defer f.wg.Done()
	defer close(done)
	defer cancel()

	var (
		ref string
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-f.after(f.latency):
		ref, err = f.submitter.Submit(ctx, inq)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancel = nil
	if f.closed {
		return
	}
	if err != nil {
		f.phase = domain.PhaseFailed
		f.err = err
		f.log.Warn("submission failed", zap.Error(err))
		return
	}
	f.phase = domain.PhaseComplete
	f.ref = ref
	f.log.Info("submission complete", zap.String("reference", ref))
}

// Wait blocks until the current submission resolves or ctx is done. It
// returns the resulting phase and the submission error, if any.
func (f *Form) Wait(ctx context.Context) (domain.Phase, error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if done == nil {
		return f.Phase(), ErrNotSubmitted
	}

	select {
	case <-ctx.Done():
		return f.Phase(), ctx.Err()
	case <-done:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed && f.phase == domain.PhaseSubmitting {
		return f.phase, ErrClosed
	}
	return f.phase, f.err
}

// Close cancels any outstanding submission and waits for it to stop.
// The form ignores every mutation afterwards.
func (f *Form) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
	return nil
}

// LogSubmitter records the inquiry in the log and stores nothing
func LogSubmitter(log *zap.Logger) Submitter {
	return SubmitterFunc(func(ctx context.Context, inq domain.Inquiry) (string, error) {
		log.Info("consultation brief",
			zap.String("source", inq.Source),
			zap.Any("domains", inq.Domains),
			zap.Strings("features", inq.Features),
			zap.String("scale", string(inq.Scale)),
			zap.String("timeline", string(inq.Timeline)),
			zap.String("name", inq.Identity.Name),
			zap.String("organization", inq.Identity.Organization),
			zap.String("email", inq.Identity.Email))
		return "", nil
	})
}
