package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/service"
)

// ---------------------------------------------------------------------------
// Live updates (server-sent events)
// ---------------------------------------------------------------------------

const streamKeepAlive = 25 * time.Second

func (s *Server) handleWatchOwner(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	snapshots, err := s.svc.WatchOwner(r.Context(), actor, r.PathValue("userID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.stream(w, r, snapshots, func(items []*models.Item) any {
		return forViewer(items, actor)
	})
}

func (s *Server) handleWatchOthers(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.svc.WatchOthers(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.stream(w, r, snapshots, func(items []*models.Item) any {
		groups := service.GroupByOwner(items, s.svc.Roster())
		if groups == nil {
			groups = []models.OwnerGroup{}
		}
		return groups
	})
}

// stream writes each snapshot as a "snapshot" event until the client goes
// away or the snapshot channel closes.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, snapshots <-chan []*models.Item, render func([]*models.Item) any) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.requestLogger(r).WithError(err).Error("streaming is not supported by this connection")
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case items, ok := <-snapshots:
			if !ok {
				return
			}
			payload, err := json.Marshal(render(items))
			if err != nil {
				s.requestLogger(r).WithError(err).Error("failed to encode snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
