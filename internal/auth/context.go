package auth

import (
	"context"

	"github.com/msawatzky/christmas-list/internal/models"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying the acting member
func WithUser(ctx context.Context, user *models.FamilyUser) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the acting member, or nil
func UserFromContext(ctx context.Context) *models.FamilyUser {
	user, _ := ctx.Value(contextKey{}).(*models.FamilyUser)
	return user
}
