package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/msawatzky/christmas-list/internal/models"
)

// CookieName is the cookie that carries the session token
const CookieName = "giftlist_session"

// ErrInvalidSession is returned for missing, expired, revoked or forged tokens
var ErrInvalidSession = errors.New("invalid session")

// Provider signs members in and resolves the acting member of a request
type Provider struct {
	roster  *Roster
	secret  []byte
	ttl     time.Duration
	revoked *cache.Cache
	now     func() time.Time
}

// NewProvider creates a session provider backed by the roster
func NewProvider(roster *Roster, secret string, ttl time.Duration) *Provider {
	return &Provider{
		roster:  roster,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: cache.New(ttl, time.Hour),
		now:     time.Now,
	}
}

// Roster returns the roster the provider resolves against
func (p *Provider) Roster() *Roster {
	return p.roster
}

// SignIn issues a session token for a roster member
func (p *Provider) SignIn(memberID string) (string, *models.FamilyUser, error) {
	member, ok := p.roster.GetFamilyMemberByID(memberID)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownMember, memberID)
	}

	now := p.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   member.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, member, nil
}

// SignOut revokes the token until it would have expired anyway
func (p *Provider) SignOut(token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return err
	}

	remaining := claims.ExpiresAt.Time.Sub(p.now())
	if remaining <= 0 {
		return nil
	}
	p.revoked.Set(claims.ID, struct{}{}, remaining)
	return nil
}

// Verify resolves the member behind a token
func (p *Provider) Verify(token string) (*models.FamilyUser, error) {
	claims, err := p.parse(token)
	if err != nil {
		return nil, err
	}

	if _, revoked := p.revoked.Get(claims.ID); revoked {
		return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidSession)
	}

	member, ok := p.roster.GetFamilyMemberByID(claims.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: member %q is no longer on the roster", ErrInvalidSession, claims.Subject)
	}

	return member, nil
}

func (p *Provider) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}

// TokenFromRequest reads the session token from the cookie or a bearer header
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// CurrentUser resolves the acting member of a request, or nil when anonymous
func (p *Provider) CurrentUser(r *http.Request) *models.FamilyUser {
	token := TokenFromRequest(r)
	if token == "" {
		return nil
	}
	member, err := p.Verify(token)
	if err != nil {
		return nil
	}
	return member
}

// SessionCookie builds the cookie that stores token
func (p *Provider) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  p.now().Add(p.ttl),
	}
}

// ClearedCookie expires the session cookie in the browser
func ClearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	}
}
