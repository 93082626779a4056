package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/inquiry"
	"github.com/trigonal/intake/internal/store"
	"github.com/trigonal/intake/internal/triage"
)

const maxBodyBytes = 64 << 10

// Option configures a Server
type Option func(*Server)

// WithLatency sets the submission delay of forms built by the server
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithAllowedOrigins sets the origins that receive CORS headers
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				s.origins[o] = true
			}
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server handles HTTP requests for the intake API
type Server struct {
	store     *store.Store
	catalog   *domain.Catalog
	submitter inquiry.Submitter
	addr      string
	latency   time.Duration
	origins   map[string]bool
	log       *zap.Logger
}

// New creates a new API server. Submitted inquiries go to submitter.
func New(st *store.Store, c *domain.Catalog, submitter inquiry.Submitter, addr string, opts ...Option) *Server {
	s := &Server{
		store:     st,
		catalog:   c,
		submitter: submitter,
		addr:      addr,
		latency:   inquiry.DefaultLatency,
		origins:   map[string]bool{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("api")
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Catalog
	mux.HandleFunc("GET /catalog", s.getCatalog)
	mux.HandleFunc("GET /presets/{source}", s.getPreset)

	// Inquiries
	mux.HandleFunc("POST /inquiries", s.submitInquiry)
	mux.HandleFunc("POST /inquiries/preview", s.previewInquiry)

	// Briefs
	mux.HandleFunc("GET /briefs", s.listBriefs)
	mux.HandleFunc("GET /briefs/{id}", s.getBrief)
	mux.HandleFunc("PATCH /briefs/{id}/status", s.updateStatus)
	mux.HandleFunc("GET /search", s.searchBriefs)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return s.withLogging(s.withCORS(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("starting server", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// withCORS adds CORS headers for allowed origins
func (s *Server) withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); s.origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domains":   s.catalog.Domains(),
		"scales":    domain.Scales(),
		"timelines": domain.Timelines(),
	})
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	p, ok := s.catalog.Preset(r.PathValue("source"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// InquiryRequest is the request body for submitting or previewing an inquiry
type InquiryRequest struct {
	Source   string             `json:"source,omitempty"`
	Domains  []domain.DomainKey `json:"domains,omitempty"`
	Features []string           `json:"features,omitempty"`
	Scale    string             `json:"scale,omitempty"`
	Timeline string             `json:"timeline,omitempty"`
	Identity domain.Identity    `json:"identity"`
}

// BriefResponse is a brief with its triage flags
type BriefResponse struct {
	domain.Brief
	Flags triage.Flags `json:"flags"`
}

func newBriefResponse(b domain.Brief) BriefResponse {
	return BriefResponse{Brief: b, Flags: triage.Assess(b.Inquiry)}
}

// buildForm replays the request onto a fresh form. Listed domains and
// features are added to whatever the source preset selected.
func (s *Server) buildForm(req InquiryRequest) *inquiry.Form {
	f := inquiry.New(s.catalog,
		inquiry.WithSource(req.Source),
		inquiry.WithLatency(s.latency),
		inquiry.WithSubmitter(s.submitter),
		inquiry.WithLogger(s.log),
	)

	for _, k := range req.Domains {
		if !f.HasDomain(k) {
			f.ToggleDomain(k)
		}
	}
	for _, tag := range req.Features {
		if !f.HasFeature(tag) {
			f.ToggleFeature(tag)
		}
	}
	if req.Scale != "" {
		f.SetProjectScale(domain.ProjectScale(strings.ToUpper(req.Scale)))
	}
	if req.Timeline != "" {
		f.SetTimeline(domain.Timeline(strings.ToUpper(req.Timeline)))
	}
	for _, field := range domain.IdentityFields() {
		f.UpdateIdentityField(field, req.Identity.Get(field))
	}
	return f
}

func decodeInquiry(w http.ResponseWriter, r *http.Request) (InquiryRequest, bool) {
	var req InquiryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func (s *Server) submitInquiry(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInquiry(w, r)
	if !ok {
		return
	}

	f := s.buildForm(req)
	defer f.Close()

	if errs := f.Validate(); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "please complete all required fields",
			"fields": errs,
		})
		return
	}

	if !f.Submit() {
		writeError(w, http.StatusUnprocessableEntity, "inquiry cannot be submitted")
		return
	}

	phase, err := f.Wait(r.Context())
	if err != nil || phase != domain.PhaseComplete {
		s.log.Error("submission failed", zap.Error(err), zap.String("phase", string(phase)))
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	b, err := s.store.GetBrief(r.Context(), f.Reference())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, newBriefResponse(*b))
}

func (s *Server) previewInquiry(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInquiry(w, r)
	if !ok {
		return
	}

	f := s.buildForm(req)
	defer f.Close()

	out, err := f.Preview()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) listBriefs(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{Limit: 20}

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if st := r.URL.Query().Get("status"); st != "" {
		status, err := domain.ParseBriefStatus(st)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	briefs, err := s.store.ListBriefs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"briefs": briefResponses(briefs),
		"counts": counts,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (s *Server) getBrief(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBriefResponse(*b))
}

// StatusRequest is the request body for moving a brief
type StatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := domain.ParseBriefStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.store.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("brief status updated", zap.String("brief_id", b.ID), zap.String("status", string(b.Status)))
	writeJSON(w, http.StatusOK, newBriefResponse(*b))
}

func (s *Server) searchBriefs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	briefs, err := s.store.SearchBriefs(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"briefs": briefResponses(briefs),
		"query":  query,
	})
}

func briefResponses(briefs []domain.Brief) []BriefResponse {
	out := make([]BriefResponse, len(briefs))
	for i, b := range briefs {
		out[i] = newBriefResponse(b)
	}
	return out
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "brief not found")
	case errors.Is(err, store.ErrAmbiguous):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
