package auth

import (
	"sync"

	"github.com/msawatzky/christmas-list/internal/models"
)

// Links maps chat users to roster members. A roster entry's telegram
// username wins; otherwise the member picked with /iam is used.
type Links struct {
	roster *Roster
	mu     sync.RWMutex
	linked map[int64]string
}

// NewLinks creates an empty link table for the roster
func NewLinks(roster *Roster) *Links {
	return &Links{roster: roster, linked: make(map[int64]string)}
}

// Link binds a chat user id to a roster member
func (l *Links) Link(chatUserID int64, memberID string) (*models.FamilyUser, error) {
	member, ok := l.roster.Lookup(memberID)
	if !ok {
		return nil, ErrUnknownMember
	}
	l.mu.Lock()
	l.linked[chatUserID] = member.ID
	l.mu.Unlock()
	return member, nil
}

// Unlink forgets a chat user's explicit link
func (l *Links) Unlink(chatUserID int64) {
	l.mu.Lock()
	delete(l.linked, chatUserID)
	l.mu.Unlock()
}

// Resolve finds the member for a chat user, or nil when unknown
func (l *Links) Resolve(chatUserID int64, username string) *models.FamilyUser {
	if member, ok := l.roster.GetByTelegram(username); ok {
		return member
	}
	l.mu.RLock()
	id, ok := l.linked[chatUserID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	member, _ := l.roster.GetFamilyMemberByID(id)
	return member
}

// Roster returns the roster links resolve against
func (l *Links) Roster() *Roster {
	return l.roster
}
