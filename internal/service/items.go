package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
)

// ListForOwner returns ownerID's items ordered by priority. Items without a
// usable priority get one derived on the fly; see normalizePriorities.
func (s *Service) ListForOwner(ctx context.Context, actor *models.FamilyUser, ownerID string) ([]*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	items, err := s.items.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, upstream("list items", err)
	}

	return normalizePriorities(items), nil
}

// AddItem appends an item to ownerID's list. Without an explicit priority
// it lands after the current last item.
func (s *Service) AddItem(ctx context.Context, actor *models.FamilyUser, ownerID string, in ItemInput) (*models.Item, error) {
	owner, err := s.authorizeManage(actor, ownerID)
	if err != nil {
		return nil, err
	}

	in = in.normalized()
	if err := in.validate(); err != nil {
		return nil, err
	}

	priority := 0
	if in.Priority != nil {
		priority = *in.Priority
	} else {
		existing, err := s.items.ListByUser(ctx, owner.ID)
		if err != nil {
			return nil, upstream("list items", err)
		}
		priority = nextPriority(normalizePriorities(existing))
		if priority > MaxPriority {
			return nil, invalid("the list already holds priority %d, set an explicit priority", MaxPriority)
		}
	}

	item := &models.Item{
		Name:        in.Name,
		Store:       in.Store,
		Price:       in.Price,
		Picture:     in.Picture,
		PurchaseURL: in.PurchaseURL,
		Description: in.Description,
		UserID:      owner.ID,
		UserName:    owner.DisplayName(),
		Priority:    &priority,
	}

	created, err := s.items.Create(ctx, item)
	if err != nil {
		return nil, upstream("create item", err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":  created.ID,
		"owner":    owner.ID,
		"actor":    actor.ID,
		"priority": priority,
	}).Info("Wish item added")

	return created, nil
}

// UpdateItem changes the editable fields of an item
func (s *Service) UpdateItem(ctx context.Context, actor *models.FamilyUser, itemID string, patch ItemPatch) (*models.Item, error) {
	item, err := s.managedItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	patch = patch.normalized()
	if err := patch.validate(); err != nil {
		return nil, err
	}

	updated, err := s.items.Update(ctx, item.ID, patch.update())
	if err != nil {
		return nil, storeError("update item", itemID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"actor":   actor.ID,
	}).Info("Wish item updated")

	return updated, nil
}

// DeleteItem removes an item from its owner's list
func (s *Service) DeleteItem(ctx context.Context, actor *models.FamilyUser, itemID string) error {
	item, err := s.managedItem(ctx, actor, itemID)
	if err != nil {
		return err
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		return storeError("delete item", itemID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"owner":   item.UserID,
		"actor":   actor.ID,
	}).Info("Wish item deleted")

	return nil
}

// ChangePriority swaps an item with its neighbour in the given direction.
// Both priorities are written in one version-checked transaction, so a
// concurrent change to either item fails the move with ErrConflict.
func (s *Service) ChangePriority(ctx context.Context, actor *models.FamilyUser, itemID string, dir models.Direction) error {
	if !dir.Valid() {
		return invalid("direction must be %q or %q", models.DirectionUp, models.DirectionDown)
	}

	item, err := s.managedItem(ctx, actor, itemID)
	if err != nil {
		return err
	}

	stored, err := s.items.ListByUser(ctx, item.UserID)
	if err != nil {
		return upstream("list items", err)
	}
	ordered := normalizePriorities(stored)

	var current *models.Item
	for _, candidate := range ordered {
		if candidate.ID == item.ID {
			current = candidate
			break
		}
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}

	neighbor := findNeighbor(ordered, current.PriorityValue(), dir)
	if neighbor == nil {
		s.observeMove(dir, "boundary")
		return newBoundaryError(dir)
	}

	err = s.items.SwapPriorities(ctx,
		repository.PriorityWrite{ID: current.ID, Priority: neighbor.PriorityValue(), ExpectedVersion: current.Version},
		repository.PriorityWrite{ID: neighbor.ID, Priority: current.PriorityValue(), ExpectedVersion: neighbor.Version},
	)
	if err != nil {
		err = storeError("move item", itemID, err)
		s.observeMove(dir, moveOutcome(err))
		return err
	}

	s.observeMove(dir, "ok")
	s.logger.WithFields(logrus.Fields{
		"item_id":   current.ID,
		"neighbor":  neighbor.ID,
		"direction": dir,
		"from":      current.PriorityValue(),
		"to":        neighbor.PriorityValue(),
	}).Info("Wish item moved")

	return nil
}

// TogglePurchased marks or unmarks someone else's item as purchased by actor
func (s *Service) TogglePurchased(ctx context.Context, actor *models.FamilyUser, itemID string, purchased bool) (*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, upstream("get item", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	if item.UserID == actor.ID {
		return nil, invalid("you cannot mark items on your own list as purchased")
	}

	purchasedBy := ""
	if purchased {
		purchasedBy = actor.DisplayName()
	}

	updated, err := s.items.Update(ctx, item.ID, repository.ItemUpdate{
		Purchased:   &purchased,
		PurchasedBy: &purchasedBy,
	})
	if err != nil {
		return nil, storeError("update item", itemID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":   item.ID,
		"owner":     item.UserID,
		"actor":     actor.ID,
		"purchased": purchased,
	}).Info("Wish item purchase status changed")

	return updated, nil
}

// AggregateAllUsers returns everyone else's items, grouped by owner in
// roster display order and by item priority within each owner.
func (s *Service) AggregateAllUsers(ctx context.Context, actor *models.FamilyUser) ([]*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, upstream("list items", err)
	}

	return orderAcrossOwners(items, s.roster, actor.ID), nil
}

// managedItem loads an item and checks that actor may edit its list.
func (s *Service) managedItem(ctx context.Context, actor *models.FamilyUser, itemID string) (*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, upstream("get item", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	if !actor.CanManage(item.UserID) {
		return nil, ErrForbidden
	}

	return item, nil
}

// moveOutcome labels a failed swap for the move metrics.
func moveOutcome(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// storeError maps repository sentinels onto service errors.
func storeError(op, itemID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, itemID)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: %s", ErrConflict, itemID)
	default:
		return upstream(op, err)
	}
}
