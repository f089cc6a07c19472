package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/metrics"
	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/service"
	"github.com/msawatzky/christmas-list/internal/upload"
)

// Server provides the gift list HTTP API.
type Server struct {
	svc      *service.Service
	sessions *auth.Provider
	scraper  *scraper.Scraper
	uploader *upload.Uploader
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// Option wires an optional collaborator into the server
type Option func(*Server)

// WithScraper enables POST /api/products/fetch
func WithScraper(s *scraper.Scraper) Option {
	return func(srv *Server) { srv.scraper = s }
}

// WithUploader enables POST /api/uploads
func WithUploader(u *upload.Uploader) Option {
	return func(srv *Server) { srv.uploader = u }
}

// WithMetrics records per-route request metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, sessions *auth.Provider, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		sessions: sessions,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.mux)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// Identity
	s.mux.HandleFunc("GET /api/family", s.handleFamily)
	s.mux.HandleFunc("POST /api/session", s.handleSignIn)
	s.mux.HandleFunc("GET /api/session", s.authed(s.handleCurrentUser))
	s.mux.HandleFunc("DELETE /api/session", s.handleSignOut)

	// Lists and items
	s.mux.HandleFunc("GET /api/lists/{userID}", s.authed(s.handleListForOwner))
	s.mux.HandleFunc("GET /api/lists/{userID}/stream", s.authed(s.handleWatchOwner))
	s.mux.HandleFunc("POST /api/lists/{userID}/items", s.authed(s.handleAddItem))
	s.mux.HandleFunc("PATCH /api/items/{id}", s.authed(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/items/{id}", s.authed(s.handleDeleteItem))
	s.mux.HandleFunc("POST /api/items/{id}/move", s.authed(s.handleMoveItem))
	s.mux.HandleFunc("PUT /api/items/{id}/purchased", s.authed(s.handleTogglePurchased))

	// Everyone else
	s.mux.HandleFunc("GET /api/others", s.authed(s.handleOthers))
	s.mux.HandleFunc("GET /api/others/stream", s.authed(s.handleWatchOthers))

	// Prefill helpers
	s.mux.HandleFunc("POST /api/products/fetch", s.authed(s.handleFetchProduct))
	s.mux.HandleFunc("POST /api/uploads", s.authed(s.handleUpload))
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

// envelope is the body of every mutation response and every error.
type envelope struct {
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Problems []string `json:"problems,omitempty"`
	Data     any      `json:"data,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondOK(w http.ResponseWriter, status int, data any) {
	s.respondJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, envelope{Error: message})
}

// respondServiceError maps service errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		s.respondError(w, http.StatusUnauthorized, "please sign in first")
	case errors.Is(err, service.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "item not found")
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusBadRequest, envelope{Error: verr.Error(), Problems: verr.Problems()})
	case errors.Is(err, service.ErrBoundary):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		s.respondError(w, http.StatusConflict, service.ErrConflict.Error())
	default:
		s.requestLogger(r).WithError(err).Error("request failed")
		s.respondError(w, http.StatusBadGateway, "the item store is unavailable, please try again")
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
