package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
)

type requestIDKey struct{}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument tags every request with an id, logs it when it finishes and
// records it in the request metrics under its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveRequest(route, strconv.Itoa(rec.status), elapsed)
		}

		entry := s.requestLogger(r).WithFields(logrus.Fields{
			"route":    route,
			"status":   rec.status,
			"duration": elapsed.String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("HTTP request")
		} else {
			entry.Debug("HTTP request")
		}
	})
}

// requestLogger returns a log entry carrying the request id and acting member.
func (s *Server) requestLogger(r *http.Request) *logrus.Entry {
	fields := logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		fields["request_id"] = id
	}
	if user := auth.UserFromContext(r.Context()); user != nil {
		fields["actor"] = user.ID
	}
	return s.logger.WithFields(fields)
}

// authed rejects anonymous requests and stores the acting member in the
// request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.sessions.CurrentUser(r)
		if user == nil {
			s.respondError(w, http.StatusUnauthorized, "please sign in first")
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}
