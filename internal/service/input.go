package service

import (
	"math"
	"net/url"
	"strings"

	"github.com/msawatzky/christmas-list/internal/repository"
)

// MaxPriority is the largest priority the store can hold
const MaxPriority = math.MaxInt32

// ItemInput carries the caller-supplied fields of a new item
type ItemInput struct {
	Name        string   `json:"name"`
	Store       string   `json:"store"`
	Price       *float64 `json:"price"`
	Picture     string   `json:"picture"`
	PurchaseURL string   `json:"purchase_url"`
	Description string   `json:"description"`
	Priority    *int     `json:"priority"`
}

func (in ItemInput) normalized() ItemInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Store = strings.TrimSpace(in.Store)
	in.Picture = strings.TrimSpace(in.Picture)
	in.PurchaseURL = strings.TrimSpace(in.PurchaseURL)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in ItemInput) validate() error {
	var v validation
	if in.Name == "" {
		v.addf("name is required")
	}
	checkPrice(&v, in.Price)
	checkURL(&v, "picture", in.Picture)
	checkURL(&v, "purchase_url", in.PurchaseURL)
	if in.Priority != nil && (*in.Priority < 1 || *in.Priority > MaxPriority) {
		v.addf("priority must be between 1 and %d", MaxPriority)
	}
	return v.err()
}

// ItemPatch carries the editable fields of an existing item; nil means unchanged
type ItemPatch struct {
	Name        *string  `json:"name"`
	Store       *string  `json:"store"`
	Price       *float64 `json:"price"`
	ClearPrice  bool     `json:"clear_price"`
	Picture     *string  `json:"picture"`
	PurchaseURL *string  `json:"purchase_url"`
	Description *string  `json:"description"`
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func (p ItemPatch) normalized() ItemPatch {
	p.Name = trimPtr(p.Name)
	p.Store = trimPtr(p.Store)
	p.Picture = trimPtr(p.Picture)
	p.PurchaseURL = trimPtr(p.PurchaseURL)
	p.Description = trimPtr(p.Description)
	return p
}

func (p ItemPatch) validate() error {
	var v validation
	if p.Name != nil && *p.Name == "" {
		v.addf("name cannot be empty")
	}
	if !p.ClearPrice {
		checkPrice(&v, p.Price)
	}
	if p.Picture != nil {
		checkURL(&v, "picture", *p.Picture)
	}
	if p.PurchaseURL != nil {
		checkURL(&v, "purchase_url", *p.PurchaseURL)
	}
	return v.err()
}

func (p ItemPatch) update() repository.ItemUpdate {
	return repository.ItemUpdate{
		Name:        p.Name,
		Store:       p.Store,
		Price:       p.Price,
		ClearPrice:  p.ClearPrice,
		Picture:     p.Picture,
		PurchaseURL: p.PurchaseURL,
		Description: p.Description,
	}
}

func checkPrice(v *validation, price *float64) {
	if price == nil {
		return
	}
	if math.IsNaN(*price) || math.IsInf(*price, 0) || *price < 0 {
		v.addf("price must be a non-negative number")
	}
}

func checkURL(v *validation, field, raw string) {
	if raw == "" {
		return
	}
	if !IsWebURL(raw) {
		v.addf("%s must be an absolute http(s) URL", field)
	}
}

// IsWebURL reports whether raw is an absolute http or https URL with a host
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
