// Package auth resolves who is acting: the static family roster, signed
// sessions for the web API and identity links for chat users.
package auth

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/msawatzky/christmas-list/internal/models"
)

// ErrUnknownMember is returned when an id is not on the roster
var ErrUnknownMember = errors.New("unknown family member")

// Roster is the fixed list of family members
type Roster struct {
	members []models.FamilyUser
	byID    map[string]models.FamilyUser
}

type rosterFile struct {
	Members []models.FamilyUser `yaml:"members"`
}

// NewRoster validates members and builds a roster ordered by display priority
func NewRoster(members []models.FamilyUser) (*Roster, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("roster has no members")
	}

	r := &Roster{byID: make(map[string]models.FamilyUser, len(members))}
	for _, m := range members {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("roster member %q has no id", m.Name)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate roster member id %q", m.ID)
		}
		m.Telegram = strings.TrimPrefix(strings.TrimSpace(m.Telegram), "@")
		r.byID[m.ID] = m
		r.members = append(r.members, m)
	}

	for _, m := range r.members {
		for _, managed := range m.CanManageLists {
			if _, ok := r.byID[managed]; !ok {
				return nil, fmt.Errorf("member %q manages unknown member %q", m.ID, managed)
			}
		}
	}

	sort.SliceStable(r.members, func(i, j int) bool {
		return r.members[i].Priority < r.members[j].Priority
	})

	return r, nil
}

// LoadRoster reads a YAML roster file of the form
//
//	members:
//	  - id: mom
//	    name: Mom
//	    avatar: "👩"
//	    priority: 1
//	    can_manage_lists: [liam]
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	return NewRoster(file.Members)
}

// DefaultRoster is used when no roster file is configured
func DefaultRoster() *Roster {
	r, err := NewRoster([]models.FamilyUser{
		{ID: "mom", Name: "Mom", Avatar: "👩", Priority: 1, CanManageLists: []string{"emma", "liam"}},
		{ID: "dad", Name: "Dad", Avatar: "👨", Priority: 2, CanManageLists: []string{"emma", "liam"}},
		{ID: "emma", Name: "Emma", Avatar: "👧", Priority: 3},
		{ID: "liam", Name: "Liam", Avatar: "👦", Priority: 4},
		{ID: "grandma", Name: "Grandma", Avatar: "👵", Priority: 5},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// Members returns the roster ordered by display priority
func (r *Roster) Members() []models.FamilyUser {
	out := make([]models.FamilyUser, len(r.members))
	copy(out, r.members)
	return out
}

// GetFamilyMemberByID looks a member up by id
func (r *Roster) GetFamilyMemberByID(id string) (*models.FamilyUser, bool) {
	m, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &m, true
}

// GetByTelegram finds the member whose roster entry names this Telegram username
func (r *Roster) GetByTelegram(username string) (*models.FamilyUser, bool) {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return nil, false
	}
	for _, m := range r.members {
		if strings.EqualFold(m.Telegram, username) {
			m := m
			return &m, true
		}
	}
	return nil, false
}

// DisplayRank returns the member's display priority and whether the id is on the roster
func (r *Roster) DisplayRank(id string) (int, bool) {
	m, ok := r.byID[id]
	return m.Priority, ok
}

// Lookup resolves an id or a case-insensitive name
func (r *Roster) Lookup(idOrName string) (*models.FamilyUser, bool) {
	if m, ok := r.GetFamilyMemberByID(idOrName); ok {
		return m, true
	}
	for _, m := range r.members {
		if strings.EqualFold(m.Name, idOrName) || strings.EqualFold(m.ID, idOrName) {
			m := m
			return &m, true
		}
	}
	return nil, false
}
