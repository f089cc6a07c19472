package service

import (
	"context"

	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
)

type loadFunc func(ctx context.Context) ([]*models.Item, error)

// WatchOwner streams ownerID's ordered list: the current state first, then a
// fresh copy after every change to that list. The channel closes with ctx.
func (s *Service) WatchOwner(ctx context.Context, actor *models.FamilyUser, ownerID string) (<-chan []*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	relevant := func(ev repository.ItemEvent) bool {
		return ev.UserID == "" || ev.UserID == ownerID
	}
	return s.watch(ctx, relevant, func(ctx context.Context) ([]*models.Item, error) {
		return s.ListForOwner(ctx, actor, ownerID)
	})
}

// WatchOthers streams AggregateAllUsers for actor the same way WatchOwner does.
func (s *Service) WatchOthers(ctx context.Context, actor *models.FamilyUser) (<-chan []*models.Item, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	relevant := func(ev repository.ItemEvent) bool {
		return ev.UserID != actor.ID
	}
	return s.watch(ctx, relevant, func(ctx context.Context) ([]*models.Item, error) {
		return s.AggregateAllUsers(ctx, actor)
	})
}

func (s *Service) watch(ctx context.Context, relevant func(repository.ItemEvent) bool, load loadFunc) (<-chan []*models.Item, error) {
	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before the first load so no change can slip in between.
	events, err := s.items.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, upstream("subscribe to item changes", err)
	}

	initial, err := load(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []*models.Item, 1)
	out <- initial

	if s.metrics != nil {
		s.metrics.Watchers.Inc()
	}

	go func() {
		defer close(out)
		defer cancel()
		if s.metrics != nil {
			defer s.metrics.Watchers.Dec()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				hit := relevant(ev)
				if drainRelevant(events, relevant) {
					hit = true
				}
				if !hit {
					continue
				}

				snapshot, err := load(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.WithError(err).Warn("Failed to refresh watched list")
					continue
				}

				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// drainRelevant consumes already-queued events so a burst (a priority swap
// emits two) causes a single reload. It reports whether any was relevant.
func drainRelevant(events <-chan repository.ItemEvent, relevant func(repository.ItemEvent) bool) bool {
	found := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return found
			}
			if relevant(ev) {
				found = true
			}
		default:
			return found
		}
	}
}
