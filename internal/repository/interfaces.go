package repository

import (
	"context"
	"errors"

	"github.com/msawatzky/christmas-list/internal/models"
)

var (
	// ErrNotFound is returned by writes that target a missing item
	ErrNotFound = errors.New("wish item not found")
	// ErrVersionConflict is returned when an item changed after it was read
	ErrVersionConflict = errors.New("wish item was modified concurrently")
)

// ItemRepository defines the interface for gift list item operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	// GetByID returns nil, nil when the item does not exist.
	GetByID(ctx context.Context, id string) (*models.Item, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Item, error)
	ListAll(ctx context.Context) ([]*models.Item, error)
	Update(ctx context.Context, id string, update ItemUpdate) (*models.Item, error)
	SwapPriorities(ctx context.Context, a, b PriorityWrite) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (<-chan ItemEvent, error)
}

// ItemUpdate lists the fields to change; nil pointers are left untouched
type ItemUpdate struct {
	Name        *string
	Store       *string
	Price       *float64
	ClearPrice  bool
	Picture     *string
	PurchaseURL *string
	Description *string
	Purchased   *bool
	// PurchasedBy is stored as NULL when it points to an empty string.
	PurchasedBy *string
	Priority    *int
}

// Empty reports whether the update would change nothing but timestamps
func (u ItemUpdate) Empty() bool {
	return u.Name == nil && u.Store == nil && u.Price == nil && !u.ClearPrice &&
		u.Picture == nil && u.PurchaseURL == nil && u.Description == nil &&
		u.Purchased == nil && u.PurchasedBy == nil && u.Priority == nil
}

// PriorityWrite sets one item's priority, guarded by the version it was read at
type PriorityWrite struct {
	ID              string
	Priority        int
	ExpectedVersion int64
}

// ItemEventOp names the kind of change behind an ItemEvent
type ItemEventOp string

const (
	ItemCreated ItemEventOp = "INSERT"
	ItemUpdated ItemEventOp = "UPDATE"
	ItemDeleted ItemEventOp = "DELETE"
)

// ItemEvent is a change notification from the store. UserID may be empty
// when the source could not tell whose list changed.
type ItemEvent struct {
	Op     ItemEventOp `json:"op"`
	ID     string      `json:"id"`
	UserID string      `json:"user_id"`
}
