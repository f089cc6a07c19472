package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
)

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

type signInRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	Token string             `json:"token,omitempty"`
	User  *models.FamilyUser `json:"user"`
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sessions.Roster().Members())
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, member, err := s.sessions.SignIn(userID)
	if errors.Is(err, auth.ErrUnknownMember) {
		s.respondError(w, http.StatusBadRequest, "unknown family member")
		return
	}
	if err != nil {
		s.requestLogger(r).WithError(err).Error("failed to sign in")
		s.respondError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	http.SetCookie(w, s.sessions.SessionCookie(token))
	s.requestLogger(r).WithFields(logrus.Fields{"member": member.ID}).Info("Family member signed in")

	s.respondOK(w, http.StatusOK, sessionResponse{Token: token, User: member})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, sessionResponse{User: auth.UserFromContext(r.Context())})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := s.sessions.SignOut(token); err != nil {
			s.requestLogger(r).WithError(err).Debug("Sign out with an unusable token")
		}
	}

	http.SetCookie(w, auth.ClearedCookie())
	s.respondOK(w, http.StatusOK, nil)
}
