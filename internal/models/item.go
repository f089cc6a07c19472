package models

import "time"

// Item represents one entry on a family member's gift list
type Item struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Store       string    `json:"store,omitempty" db:"store"`
	Price       *float64  `json:"price" db:"price"`
	Picture     string    `json:"picture,omitempty" db:"picture"`
	PurchaseURL string    `json:"purchase_url,omitempty" db:"purchase_url"`
	Description string    `json:"description,omitempty" db:"description"`
	Purchased   bool      `json:"purchased" db:"purchased"`
	PurchasedBy *string   `json:"purchased_by" db:"purchased_by"`
	UserID      string    `json:"user_id" db:"user_id"`
	UserName    string    `json:"user_name,omitempty" db:"user_name"`
	Priority    *int      `json:"priority" db:"priority"`
	Version     int64     `json:"version" db:"version"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PriorityValue returns the stored priority or 0 when none is set
func (i *Item) PriorityValue() int {
	if i.Priority == nil {
		return 0
	}
	return *i.Priority
}

// PurchasedByName returns who marked the item as purchased, if anyone
func (i *Item) PurchasedByName() string {
	if i.PurchasedBy == nil {
		return ""
	}
	return *i.PurchasedBy
}

// Clone returns a deep copy so callers can adjust derived fields freely
func (i *Item) Clone() *Item {
	c := *i
	if i.Price != nil {
		p := *i.Price
		c.Price = &p
	}
	if i.PurchasedBy != nil {
		s := *i.PurchasedBy
		c.PurchasedBy = &s
	}
	if i.Priority != nil {
		p := *i.Priority
		c.Priority = &p
	}
	return &c
}

// Direction is the way an item moves inside its owner's list
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// OwnerGroup is one member's slice of the aggregated family view
type OwnerGroup struct {
	Owner FamilyUser `json:"owner"`
	Items []*Item    `json:"items"`
}
