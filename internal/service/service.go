package service

import (
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/metrics"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
)

// Service is the gift list business layer. It owns per-owner priority
// ordering and the cross-owner aggregation; the store only persists.
//
// Every operation takes the acting member explicitly so the ordering rules
// can be exercised without an HTTP session.
type Service struct {
	logger  *logrus.Logger
	items   repository.ItemRepository
	roster  *auth.Roster
	metrics *metrics.Metrics
}

// New creates a new Service. m may be nil.
func New(logger *logrus.Logger, items repository.ItemRepository, roster *auth.Roster, m *metrics.Metrics) *Service {
	return &Service{
		logger:  logger,
		items:   items,
		roster:  roster,
		metrics: m,
	}
}

// Roster returns the family roster the service resolves owners against
func (s *Service) Roster() *auth.Roster {
	return s.roster
}

// authorizeManage checks that actor may edit ownerID's list and returns the owner.
func (s *Service) authorizeManage(actor *models.FamilyUser, ownerID string) (*models.FamilyUser, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	owner, ok := s.roster.GetFamilyMemberByID(ownerID)
	if !ok {
		return nil, invalid("unknown family member %q", ownerID)
	}
	if !actor.CanManage(ownerID) {
		return nil, ErrForbidden
	}
	return owner, nil
}

func (s *Service) observeMove(dir models.Direction, outcome string) {
	if s.metrics != nil {
		s.metrics.PriorityMoves.WithLabelValues(string(dir), outcome).Inc()
	}
}
