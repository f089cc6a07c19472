// Package memory keeps gift list items in process memory. It backs tests and
// the STORE_BACKEND=memory development mode; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
)

type record struct {
	item *models.Item
	seq  int64
}

type itemRepository struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     int64
	now     func() time.Time
	broker  *repository.Broker
}

// Option customises the in-memory repository
type Option func(*itemRepository)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *itemRepository) { r.now = now }
}

// NewItemRepository creates an empty in-memory item repository
func NewItemRepository(opts ...Option) repository.ItemRepository {
	r := &itemRepository{
		records: make(map[string]*record),
		now:     time.Now,
		broker:  repository.NewBroker(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to create wish item: %w", err)
	}

	r.mu.Lock()
	stored := item.Clone()
	if stored.ID == "" {
		stored.ID = repository.NewID()
	}
	if _, exists := r.records[stored.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to create wish item: id %s already exists", stored.ID)
	}
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Version = 1
	if !stored.Purchased {
		stored.PurchasedBy = nil
	}
	r.seq++
	r.records[stored.ID] = &record{item: stored, seq: r.seq}
	out := stored.Clone()
	r.mu.Unlock()

	r.broker.Publish(repository.ItemEvent{Op: repository.ItemCreated, ID: out.ID, UserID: out.UserID})
	return out, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to get wish item: %w", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return rec.item.Clone(), nil
}

func (r *itemRepository) ListByUser(ctx context.Context, userID string) ([]*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to query wish items: %w", err)
	}
	return r.list(func(item *models.Item) bool { return item.UserID == userID }), nil
}

func (r *itemRepository) ListAll(ctx context.Context) ([]*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to query wish items: %w", err)
	}
	return r.list(func(*models.Item) bool { return true }), nil
}

// list returns matching items newest first, mirroring ORDER BY created_at DESC.
func (r *itemRepository) list(match func(*models.Item) bool) []*models.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if match(rec.item) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.seq > b.seq
	})

	items := make([]*models.Item, len(recs))
	for i, rec := range recs {
		items[i] = rec.item.Clone()
	}
	return items
}

func (r *itemRepository) Update(ctx context.Context, id string, update repository.ItemUpdate) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("wish item with ID %s: %w", id, repository.ErrNotFound)
	}
	item := rec.item
	applyUpdate(item, update)
	item.UpdatedAt = r.now()
	item.Version++
	out := item.Clone()
	r.mu.Unlock()

	r.broker.Publish(repository.ItemEvent{Op: repository.ItemUpdated, ID: out.ID, UserID: out.UserID})
	return out, nil
}

func applyUpdate(item *models.Item, u repository.ItemUpdate) {
	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Store != nil {
		item.Store = *u.Store
	}
	if u.ClearPrice {
		item.Price = nil
	} else if u.Price != nil {
		p := *u.Price
		item.Price = &p
	}
	if u.Picture != nil {
		item.Picture = *u.Picture
	}
	if u.PurchaseURL != nil {
		item.PurchaseURL = *u.PurchaseURL
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Purchased != nil {
		item.Purchased = *u.Purchased
	}
	if u.PurchasedBy != nil {
		if *u.PurchasedBy == "" {
			item.PurchasedBy = nil
		} else {
			s := *u.PurchasedBy
			item.PurchasedBy = &s
		}
	}
	if u.Priority != nil {
		p := *u.Priority
		item.Priority = &p
	}
}

func (r *itemRepository) SwapPriorities(ctx context.Context, a, b repository.PriorityWrite) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to swap priorities: %w", err)
	}

	r.mu.Lock()
	writes := []repository.PriorityWrite{a, b}
	for _, w := range writes {
		rec, ok := r.records[w.ID]
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("wish item with ID %s: %w", w.ID, repository.ErrNotFound)
		}
		if rec.item.Version != w.ExpectedVersion {
			r.mu.Unlock()
			return fmt.Errorf("wish item with ID %s: %w", w.ID, repository.ErrVersionConflict)
		}
	}

	now := r.now()
	events := make([]repository.ItemEvent, 0, len(writes))
	for _, w := range writes {
		item := r.records[w.ID].item
		p := w.Priority
		item.Priority = &p
		item.UpdatedAt = now
		item.Version++
		events = append(events, repository.ItemEvent{Op: repository.ItemUpdated, ID: item.ID, UserID: item.UserID})
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.broker.Publish(ev)
	}
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to delete wish item: %w", err)
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("wish item with ID %s: %w", id, repository.ErrNotFound)
	}
	delete(r.records, id)
	r.mu.Unlock()

	r.broker.Publish(repository.ItemEvent{Op: repository.ItemDeleted, ID: id, UserID: rec.item.UserID})
	return nil
}

func (r *itemRepository) Subscribe(ctx context.Context) (<-chan repository.ItemEvent, error) {
	return r.broker.Subscribe(ctx), nil
}
