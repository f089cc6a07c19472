package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msawatzky/christmas-list/internal/models"
)

func TestLoadRosterOrdersByDisplayPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `members:
  - id: kid
    name: Kid
    priority: 3
  - id: mom
    name: Mom
    avatar: "👩"
    priority: 1
    can_manage_lists: [kid]
    telegram: "@mom_tg"
  - id: dad
    name: Dad
    priority: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	roster, err := LoadRoster(path)
	require.NoError(t, err)

	members := roster.Members()
	require.Len(t, members, 3)
	assert.Equal(t, []string{"mom", "dad", "kid"}, []string{members[0].ID, members[1].ID, members[2].ID})

	mom, ok := roster.GetFamilyMemberByID("mom")
	require.True(t, ok)
	assert.True(t, mom.CanManage("kid"))
	assert.True(t, mom.CanManage("mom"))
	assert.False(t, mom.CanManage("dad"))

	byTelegram, ok := roster.GetByTelegram("MOM_TG")
	require.True(t, ok)
	assert.Equal(t, "mom", byTelegram.ID)

	rank, ok := roster.DisplayRank("dad")
	assert.True(t, ok)
	assert.Equal(t, 2, rank)
}

func TestNewRosterRejectsBadInput(t *testing.T) {
	_, err := NewRoster(nil)
	assert.Error(t, err)

	_, err = NewRoster([]models.FamilyUser{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = NewRoster([]models.FamilyUser{{ID: "a", CanManageLists: []string{"ghost"}}})
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	p := NewProvider(DefaultRoster(), "test-secret", time.Hour)

	token, member, err := p.SignIn("emma")
	require.NoError(t, err)
	assert.Equal(t, "Emma", member.Name)

	got, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "emma", got.ID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(p.SessionCookie(token))
	require.NotNil(t, p.CurrentUser(req))
	assert.Equal(t, "emma", p.CurrentUser(req).ID)

	require.NoError(t, p.SignOut(token))
	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Nil(t, p.CurrentUser(req))
}

func TestSignInUnknownMember(t *testing.T) {
	p := NewProvider(DefaultRoster(), "test-secret", time.Hour)
	_, _, err := p.SignIn("santa")
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	p := NewProvider(DefaultRoster(), "test-secret", time.Minute)
	token, _, err := p.SignIn("dad")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	other := NewProvider(DefaultRoster(), "another-secret", time.Hour)
	foreign, _, err := other.SignIn("dad")
	require.NoError(t, err)
	p.now = time.Now
	_, err = p.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", TokenFromRequest(req))
}

func TestLinksPreferRosterTelegramName(t *testing.T) {
	roster, err := NewRoster([]models.FamilyUser{
		{ID: "mom", Name: "Mom", Telegram: "mommy"},
		{ID: "dad", Name: "Dad"},
	})
	require.NoError(t, err)
	links := NewLinks(roster)

	assert.Equal(t, "mom", links.Resolve(1, "mommy").ID)
	assert.Nil(t, links.Resolve(2, "someone"))

	linked, err := links.Link(2, "Dad")
	require.NoError(t, err)
	assert.Equal(t, "dad", linked.ID)
	assert.Equal(t, "dad", links.Resolve(2, "someone").ID)

	links.Unlink(2)
	assert.Nil(t, links.Resolve(2, "someone"))

	_, err = links.Link(3, "santa")
	assert.ErrorIs(t, err, ErrUnknownMember)
}
