package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
)

const itemColumns = `id, name, store, price, picture, purchase_url, description, purchased,
		purchased_by, user_id, user_name, priority, version, created_at, updated_at`

// Subscriber hands out live change events; *Notifier is the production one.
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan repository.ItemEvent
}

type itemRepository struct {
	db       *sql.DB
	notifier Subscriber
}

// NewItemRepository creates a new item repository. notifier may be nil, in
// which case Subscribe reports that live updates are unavailable.
func NewItemRepository(db *sql.DB, notifier Subscriber) repository.ItemRepository {
	return &itemRepository{db: db, notifier: notifier}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	var (
		price       sql.NullFloat64
		purchasedBy sql.NullString
		priority    sql.NullInt64
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Store,
		&price,
		&item.Picture,
		&item.PurchaseURL,
		&item.Description,
		&item.Purchased,
		&purchasedBy,
		&item.UserID,
		&item.UserName,
		&priority,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		item.Price = &price.Float64
	}
	if purchasedBy.Valid {
		item.PurchasedBy = &purchasedBy.String
	}
	if priority.Valid {
		p := int(priority.Int64)
		item.Priority = &p
	}
	return item, nil
}

func nullablePriority(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO wish_items (id, name, store, price, picture, purchase_url, description,
			purchased, purchased_by, user_id, user_name, priority, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)
		RETURNING ` + itemColumns

	if item.ID == "" {
		item.ID = repository.NewID()
	}
	now := time.Now()

	var purchasedBy any
	if item.Purchased {
		purchasedBy = nullableString(item.PurchasedBy)
	}

	created, err := scanItem(r.db.QueryRowContext(ctx, query,
		item.ID,
		item.Name,
		item.Store,
		item.Price,
		item.Picture,
		item.PurchaseURL,
		item.Description,
		item.Purchased,
		purchasedBy,
		item.UserID,
		item.UserName,
		nullablePriority(item.Priority),
		now,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create wish item: %w", err)
	}

	return created, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM wish_items
		WHERE id = $1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wish item by ID: %w", err)
	}

	return item, nil
}

func (r *itemRepository) ListByUser(ctx context.Context, userID string) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM wish_items
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return r.query(ctx, query, userID)
}

func (r *itemRepository) ListAll(ctx context.Context) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM wish_items
		ORDER BY created_at DESC`

	return r.query(ctx, query)
}

func (r *itemRepository) query(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wish items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wish item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *itemRepository) Update(ctx context.Context, id string, update repository.ItemUpdate) (*models.Item, error) {
	sets, args := updateAssignments(update)
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	sets = append(sets, "version = version + 1")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE wish_items
		SET %s
		WHERE id = $%d
		RETURNING `+itemColumns, strings.Join(sets, ", "), len(args))

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wish item with ID %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	return item, nil
}

// updateAssignments builds the SET clause for the non-nil fields of u. The
// placeholders are numbered from $1 in the order the arguments are returned.
func updateAssignments(u repository.ItemUpdate) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Store != nil {
		add("store", *u.Store)
	}
	if u.ClearPrice {
		sets = append(sets, "price = NULL")
	} else if u.Price != nil {
		add("price", *u.Price)
	}
	if u.Picture != nil {
		add("picture", *u.Picture)
	}
	if u.PurchaseURL != nil {
		add("purchase_url", *u.PurchaseURL)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Purchased != nil {
		add("purchased", *u.Purchased)
	}
	if u.PurchasedBy != nil {
		add("purchased_by", nullableString(u.PurchasedBy))
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}

	return sets, args
}

// SwapPriorities writes both priorities in one transaction. Each row is only
// touched if it still carries the version it was read at.
func (r *itemRepository) SwapPriorities(ctx context.Context, a, b repository.PriorityWrite) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin priority swap: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE wish_items
		SET priority = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4`

	now := time.Now()
	for _, w := range []repository.PriorityWrite{a, b} {
		result, err := tx.ExecContext(ctx, query, w.ID, w.Priority, now, w.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update wish item priority: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return fmt.Errorf("wish item with ID %s: %w", w.ID, repository.ErrVersionConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit priority swap: %w", err)
	}

	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM wish_items WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete wish item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wish item with ID %s: %w", id, repository.ErrNotFound)
	}

	return nil
}

func (r *itemRepository) Subscribe(ctx context.Context) (<-chan repository.ItemEvent, error) {
	if r.notifier == nil {
		return nil, fmt.Errorf("live updates are not configured for this store")
	}
	return r.notifier.Subscribe(ctx), nil
}
