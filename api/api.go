// CLAUDE:SUMMARY Read-only HTTP API over stored fit results: health, list by since/tier, detail, documents.
// Package api serves stored opportunity results over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/store"
)

// Server answers API requests from the store.
type Server struct {
	store      *store.Store
	thresholds rfp.Thresholds
	logger     *slog.Logger
}

// New creates a Server. Tiers are derived from th on every read.
func New(st *store.Store, th rfp.Thresholds, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, thresholds: th, logger: logger}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(s.requestLog)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/opportunities", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/documents", s.handleDocuments)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/opportunities?since=YYYY-MM-DD&tier=HIGH
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("since must be YYYY-MM-DD"))
			return
		}
		since = t
	}
	tier := rfp.Tier(strings.ToUpper(r.URL.Query().Get("tier")))
	switch tier {
	case "", rfp.TierHigh, rfp.TierMedium, rfp.TierLow, rfp.TierSkip:
	default:
		writeError(w, http.StatusBadRequest, errors.New("tier must be HIGH, MEDIUM, LOW or SKIP"))
		return
	}

	recs, err := s.store.ListResults(r.Context(), since, s.thresholds)
	if err != nil {
		s.logger.Error("api: list results", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	out := make([]store.Record, 0, len(recs))
	for _, rec := range recs {
		if tier == "" || rec.Result.Tier == tier {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "opportunities": out})
}

// GET /api/opportunities/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.GetResult(r.Context(), id, s.thresholds)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, errors.New("opportunity not found"))
		return
	}
	if err != nil {
		s.logger.Error("api: get result", "opportunity_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/opportunities/{id}/documents
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.store.Exists(r.Context(), id)
	if err != nil {
		s.logger.Error("api: exists", "opportunity_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("opportunity not found"))
		return
	}
	texts, err := s.store.Texts(r.Context(), id)
	if err != nil {
		s.logger.Error("api: texts", "opportunity_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if texts == nil {
		texts = []rfp.ExtractedText{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunity_id": id, "documents": texts})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
