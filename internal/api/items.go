package api

import (
	"net/http"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/service"
)

// ---------------------------------------------------------------------------
// Lists and items
// ---------------------------------------------------------------------------

type moveRequest struct {
	Direction models.Direction `json:"direction"`
}

type purchasedRequest struct {
	Purchased *bool `json:"purchased"`
}

// forViewer hides who bought what from the list's own owner.
func forViewer(items []*models.Item, viewer *models.FamilyUser) []*models.Item {
	out := make([]*models.Item, len(items))
	for i, item := range items {
		out[i] = itemForViewer(item, viewer)
	}
	return out
}

func itemForViewer(item *models.Item, viewer *models.FamilyUser) *models.Item {
	if item == nil || viewer == nil || item.UserID != viewer.ID {
		return item
	}
	c := item.Clone()
	c.Purchased = false
	c.PurchasedBy = nil
	return c
}

func (s *Server) handleListForOwner(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	items, err := s.svc.ListForOwner(r.Context(), actor, r.PathValue("userID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, forViewer(items, actor))
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	actor := auth.UserFromContext(r.Context())
	created, err := s.svc.AddItem(r.Context(), actor, r.PathValue("userID"), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusCreated, itemForViewer(created, actor))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch service.ItemPatch
	if ok, msg := s.decodeJSON(r, &patch); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	actor := auth.UserFromContext(r.Context())
	updated, err := s.svc.UpdateItem(r.Context(), actor, r.PathValue("id"), patch)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, itemForViewer(updated, actor))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteItem(r.Context(), auth.UserFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, nil)
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	err := s.svc.ChangePriority(r.Context(), auth.UserFromContext(r.Context()), r.PathValue("id"), req.Direction)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, nil)
}

func (s *Server) handleTogglePurchased(w http.ResponseWriter, r *http.Request) {
	var req purchasedRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Purchased == nil {
		s.respondError(w, http.StatusBadRequest, "purchased is required")
		return
	}

	updated, err := s.svc.TogglePurchased(r.Context(), auth.UserFromContext(r.Context()), r.PathValue("id"), *req.Purchased)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, updated)
}

// ---------------------------------------------------------------------------
// Everyone else
// ---------------------------------------------------------------------------

func (s *Server) handleOthers(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.AggregateAllUsers(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	groups := service.GroupByOwner(items, s.svc.Roster())
	if groups == nil {
		groups = []models.OwnerGroup{}
	}
	s.respondJSON(w, http.StatusOK, groups)
}
