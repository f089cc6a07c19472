package repository

import "github.com/oklog/ulid/v2"

// NewID returns a new store-assigned item identifier. ULIDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}
