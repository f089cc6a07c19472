package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/metrics"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
	"github.com/msawatzky/christmas-list/internal/repository/memory"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func steppingClock() func() time.Time {
	base := time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

type fixture struct {
	svc    *Service
	repo   repository.ItemRepository
	roster *auth.Roster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewItemRepository(memory.WithClock(steppingClock()))
	roster := auth.DefaultRoster()
	return &fixture{
		svc:    New(quietLogger(), repo, roster, metrics.New()),
		repo:   repo,
		roster: roster,
	}
}

func (f *fixture) member(t *testing.T, id string) *models.FamilyUser {
	t.Helper()
	m, ok := f.roster.GetFamilyMemberByID(id)
	require.True(t, ok, "member %s", id)
	return m
}

// seed stores items for owner in the given order, oldest first.
func (f *fixture) seed(t *testing.T, owner string, items ...*models.Item) []*models.Item {
	t.Helper()
	out := make([]*models.Item, 0, len(items))
	for _, item := range items {
		item.UserID = owner
		created, err := f.repo.Create(context.Background(), item)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func names(items []*models.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func priorities(items []*models.Item) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.PriorityValue()
	}
	return out
}

func TestListForOwnerBackfillsMissingAndDuplicatePriorities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mom := f.member(t, "mom")

	f.seed(t, "mom",
		&models.Item{Name: "a"},
		&models.Item{Name: "b", Priority: intPtr(2)},
		&models.Item{Name: "c"},
		&models.Item{Name: "d", Priority: intPtr(2)},
	)

	items, err := f.svc.ListForOwner(ctx, mom, "mom")
	require.NoError(t, err)

	// Store order is newest first: d, c, b, a. d keeps 2, then c, b, a are
	// backfilled with 1, 3, 4.
	if diff := cmp.Diff([]string{"c", "d", "b", "a"}, names(items)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, priorities(items))

	again, err := f.svc.ListForOwner(ctx, mom, "mom")
	require.NoError(t, err)
	assert.Equal(t, priorities(items), priorities(again), "backfill must be stable across reads")

	stored, err := f.repo.ListByUser(ctx, "mom")
	require.NoError(t, err)
	for _, item := range stored {
		if item.Name == "a" || item.Name == "c" {
			assert.Nil(t, item.Priority, "backfill is not written back")
		}
	}
}

func TestListForOwnerIsStrictlyIncreasingAndComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "emma",
		&models.Item{Name: "p5", Priority: intPtr(5)},
		&models.Item{Name: "none"},
		&models.Item{Name: "neg", Priority: intPtr(-3)},
		&models.Item{Name: "p1", Priority: intPtr(1)},
		&models.Item{Name: "p5b", Priority: intPtr(5)},
	)
	f.seed(t, "liam", &models.Item{Name: "not emma's"})

	items, err := f.svc.ListForOwner(ctx, f.member(t, "dad"), "emma")
	require.NoError(t, err)
	require.Len(t, items, len(seeded))

	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].PriorityValue(), items[i].PriorityValue())
	}
	assert.ElementsMatch(t, names(seeded), names(items))
}

func TestListForOwnerRequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListForOwner(context.Background(), nil, "mom")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAddItemAppendsAfterHighestPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mom := f.member(t, "mom")
	f.seed(t, "mom",
		&models.Item{Name: "one", Priority: intPtr(1)},
		&models.Item{Name: "two", Priority: intPtr(2)},
		&models.Item{Name: "three", Priority: intPtr(3)},
	)

	created, err := f.svc.AddItem(ctx, mom, "mom", ItemInput{Name: "  Robe  ", Price: floatPtr(49.5)})
	require.NoError(t, err)
	assert.Equal(t, 4, created.PriorityValue())
	assert.Equal(t, "Robe", created.Name)
	assert.Equal(t, "Mom", created.UserName)
	assert.False(t, created.Purchased)
}

func TestAddItemFirstItemGetsPriorityOne(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.AddItem(context.Background(), f.member(t, "grandma"), "grandma", ItemInput{Name: "Tea"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.PriorityValue())
}

func TestAddItemKeepsExplicitPriority(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "dad", &models.Item{Name: "x", Priority: intPtr(1)})
	created, err := f.svc.AddItem(context.Background(), f.member(t, "dad"), "dad", ItemInput{Name: "Drill", Priority: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, created.PriorityValue())
}

func TestAddItemValidationCollectsAllProblems(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddItem(context.Background(), f.member(t, "mom"), "mom", ItemInput{
		Name:        "   ",
		Price:       floatPtr(-1),
		PurchaseURL: "amazon.com/thing",
		Priority:    intPtr(0),
	})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems(), 4)
}

func TestAddItemRejectsPriorityBeyondStoreRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mom := f.member(t, "mom")

	_, err := f.svc.AddItem(ctx, mom, "mom", ItemInput{Name: "Kite", Priority: intPtr(MaxPriority + 1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.AddItem(ctx, mom, "mom", ItemInput{Name: "Kite", Priority: intPtr(MaxPriority)})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, mom, "mom", ItemInput{Name: "Yo-yo"})
	assert.ErrorIs(t, err, ErrValidation)

	items, err := f.svc.ListForOwner(ctx, mom, "mom")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kite"}, names(items))
}

func TestAddItemAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.member(t, "emma"), "liam", ItemInput{Name: "Skates"})
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := f.svc.AddItem(ctx, f.member(t, "mom"), "liam", ItemInput{Name: "Skates"})
	require.NoError(t, err)
	assert.Equal(t, "liam", created.UserID)

	_, err = f.svc.AddItem(ctx, nil, "liam", ItemInput{Name: "Skates"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.AddItem(ctx, f.member(t, "mom"), "santa", ItemInput{Name: "Skates"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChangePriorityUpSwapsWithPredecessorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mom := f.member(t, "mom")
	seeded := f.seed(t, "mom",
		&models.Item{Name: "1", Priority: intPtr(1)},
		&models.Item{Name: "2", Priority: intPtr(2)},
		&models.Item{Name: "3", Priority: intPtr(3)},
	)

	require.NoError(t, f.svc.ChangePriority(ctx, mom, seeded[1].ID, models.DirectionUp))

	got := map[string]int{}
	stored, err := f.repo.ListByUser(ctx, "mom")
	require.NoError(t, err)
	for _, item := range stored {
		got[item.Name] = item.PriorityValue()
	}
	assert.Equal(t, map[string]int{"1": 2, "2": 1, "3": 3}, got)
}

func TestChangePriorityDownSkipsGaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "dad",
		&models.Item{Name: "low", Priority: intPtr(2)},
		&models.Item{Name: "high", Priority: intPtr(9)},
		&models.Item{Name: "mid", Priority: intPtr(5)},
	)

	require.NoError(t, f.svc.ChangePriority(ctx, f.member(t, "dad"), seeded[0].ID, models.DirectionDown))

	items, err := f.svc.ListForOwner(ctx, f.member(t, "dad"), "dad")
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "low", "high"}, names(items))
	assert.Equal(t, []int{2, 5, 9}, priorities(items))
}

func TestChangePriorityAtBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mom := f.member(t, "mom")
	seeded := f.seed(t, "mom",
		&models.Item{Name: "first", Priority: intPtr(1)},
		&models.Item{Name: "last", Priority: intPtr(2)},
	)

	err := f.svc.ChangePriority(ctx, mom, seeded[0].ID, models.DirectionUp)
	require.ErrorIs(t, err, ErrBoundary)
	var berr *BoundaryError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "top", berr.Edge)
	assert.Contains(t, err.Error(), "up")

	err = f.svc.ChangePriority(ctx, mom, seeded[1].ID, models.DirectionDown)
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "bottom", berr.Edge)
	assert.Contains(t, err.Error(), "down")
}

func TestChangePriorityErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "liam", &models.Item{Name: "only", Priority: intPtr(1)})

	assert.ErrorIs(t, f.svc.ChangePriority(ctx, f.member(t, "liam"), "missing", models.DirectionUp), ErrNotFound)
	assert.ErrorIs(t, f.svc.ChangePriority(ctx, f.member(t, "emma"), seeded[0].ID, models.DirectionUp), ErrForbidden)
	assert.ErrorIs(t, f.svc.ChangePriority(ctx, f.member(t, "liam"), seeded[0].ID, "sideways"), ErrValidation)
	assert.ErrorIs(t, f.svc.ChangePriority(ctx, nil, seeded[0].ID, models.DirectionUp), ErrNotAuthenticated)
}

// racingRepo edits the first write's item right before a swap lands.
type racingRepo struct {
	repository.ItemRepository
}

func (r racingRepo) SwapPriorities(ctx context.Context, a, b repository.PriorityWrite) error {
	if _, err := r.ItemRepository.Update(ctx, a.ID, repository.ItemUpdate{Store: strPtr("Etsy")}); err != nil {
		return err
	}
	return r.ItemRepository.SwapPriorities(ctx, a, b)
}

func TestChangePriorityConflictWritesNothing(t *testing.T) {
	repo := memory.NewItemRepository(memory.WithClock(steppingClock()))
	roster := auth.DefaultRoster()
	svc := New(quietLogger(), racingRepo{repo}, roster, nil)
	ctx := context.Background()

	var seeded []*models.Item
	for i, name := range []string{"a", "b"} {
		created, err := repo.Create(ctx, &models.Item{Name: name, UserID: "mom", Priority: intPtr(i + 1)})
		require.NoError(t, err)
		seeded = append(seeded, created)
	}

	mom, _ := roster.GetFamilyMemberByID("mom")
	err := svc.ChangePriority(ctx, mom, seeded[1].ID, models.DirectionUp)
	require.ErrorIs(t, err, ErrConflict)

	a, _ := repo.GetByID(ctx, seeded[0].ID)
	b, _ := repo.GetByID(ctx, seeded[1].ID)
	assert.Equal(t, 1, a.PriorityValue())
	assert.Equal(t, 2, b.PriorityValue())
}

// brokenRepo fails every swap the way an unreachable database would.
type brokenRepo struct {
	repository.ItemRepository
}

func (brokenRepo) SwapPriorities(ctx context.Context, a, b repository.PriorityWrite) error {
	return errors.New("connection refused")
}

func TestChangePriorityLabelsMoveOutcomes(t *testing.T) {
	repo := memory.NewItemRepository(memory.WithClock(steppingClock()))
	roster := auth.DefaultRoster()
	m := metrics.New()
	ctx := context.Background()
	mom, _ := roster.GetFamilyMemberByID("mom")

	var seeded []*models.Item
	for i, name := range []string{"a", "b"} {
		created, err := repo.Create(ctx, &models.Item{Name: name, UserID: "mom", Priority: intPtr(i + 1)})
		require.NoError(t, err)
		seeded = append(seeded, created)
	}

	err := New(quietLogger(), brokenRepo{repo}, roster, m).ChangePriority(ctx, mom, seeded[1].ID, models.DirectionUp)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)

	err = New(quietLogger(), racingRepo{repo}, roster, m).ChangePriority(ctx, mom, seeded[1].ID, models.DirectionUp)
	require.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriorityMoves.WithLabelValues("up", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriorityMoves.WithLabelValues("up", "conflict")))
}

func TestTogglePurchased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "emma", &models.Item{Name: "Doll", Priority: intPtr(1)})

	_, err := f.svc.TogglePurchased(ctx, f.member(t, "emma"), seeded[0].ID, true)
	assert.ErrorIs(t, err, ErrValidation)

	item, err := f.svc.TogglePurchased(ctx, f.member(t, "grandma"), seeded[0].ID, true)
	require.NoError(t, err)
	assert.True(t, item.Purchased)
	assert.Equal(t, "Grandma", item.PurchasedByName())

	item, err = f.svc.TogglePurchased(ctx, f.member(t, "dad"), seeded[0].ID, false)
	require.NoError(t, err)
	assert.False(t, item.Purchased)
	assert.Nil(t, item.PurchasedBy)

	_, err = f.svc.TogglePurchased(ctx, f.member(t, "dad"), "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "liam", &models.Item{Name: "Bike", Price: floatPtr(120), Priority: intPtr(1)})

	updated, err := f.svc.UpdateItem(ctx, f.member(t, "dad"), seeded[0].ID, ItemPatch{
		Name:       strPtr(" BMX bike "),
		ClearPrice: true,
		Picture:    strPtr("https://cdn.example.com/bmx.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "BMX bike", updated.Name)
	assert.Nil(t, updated.Price)
	assert.True(t, updated.UpdatedAt.After(seeded[0].UpdatedAt))

	_, err = f.svc.UpdateItem(ctx, f.member(t, "liam"), seeded[0].ID, ItemPatch{Name: strPtr("")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateItem(ctx, f.member(t, "emma"), seeded[0].ID, ItemPatch{Name: strPtr("Mine")})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.DeleteItem(ctx, f.member(t, "liam"), seeded[0].ID))
	assert.ErrorIs(t, f.svc.DeleteItem(ctx, f.member(t, "liam"), seeded[0].ID), ErrNotFound)
}

func TestAggregateAllUsersExcludesActorAndOrdersByRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "ghost", &models.Item{Name: "ghost-1", UserName: "Cousin"})
	f.seed(t, "liam",
		&models.Item{Name: "liam-2", Priority: intPtr(2)},
		&models.Item{Name: "liam-1", Priority: intPtr(1)},
	)
	f.seed(t, "dad", &models.Item{Name: "dad-1", Priority: intPtr(1)})
	f.seed(t, "mom",
		&models.Item{Name: "mom-b"},
		&models.Item{Name: "mom-a", Priority: intPtr(1)},
	)

	items, err := f.svc.AggregateAllUsers(ctx, f.member(t, "dad"))
	require.NoError(t, err)

	want := []string{"mom-a", "mom-b", "liam-1", "liam-2", "ghost-1"}
	if diff := cmp.Diff(want, names(items)); diff != "" {
		t.Errorf("aggregate order mismatch (-want +got):\n%s", diff)
	}

	groups := GroupByOwner(items, f.roster)
	require.Len(t, groups, 3)
	assert.Equal(t, "mom", groups[0].Owner.ID)
	assert.Equal(t, []int{1, 2}, priorities(groups[0].Items))
	assert.Equal(t, "liam", groups[1].Owner.ID)
	assert.Equal(t, "Cousin", groups[2].Owner.Name)

	_, err = f.svc.AggregateAllUsers(ctx, nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGroupByOwnerUnknownUser(t *testing.T) {
	groups := GroupByOwner([]*models.Item{{ID: "1", UserID: "stranger"}}, auth.DefaultRoster())
	require.Len(t, groups, 1)
	assert.Equal(t, "Unknown User", groups[0].Owner.Name)
}

func TestWatchOwnerStreamsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mom := f.member(t, "mom")
	f.seed(t, "mom", &models.Item{Name: "first", Priority: intPtr(1)})

	stream, err := f.svc.WatchOwner(ctx, mom, "mom")
	require.NoError(t, err)

	initial := <-stream
	assert.Equal(t, []string{"first"}, names(initial))

	// A change on another list does not produce a snapshot.
	_, err = f.svc.AddItem(ctx, f.member(t, "dad"), "dad", ItemInput{Name: "elsewhere"})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, mom, "mom", ItemInput{Name: "second"})
	require.NoError(t, err)

	select {
	case snapshot := <-stream:
		assert.Equal(t, []string{"first", "second"}, names(snapshot))
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after change")
	}

	cancel()
	for range stream {
	}
}

func TestWatchOthersRequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.WatchOthers(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
