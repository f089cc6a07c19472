package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroker()
	first := b.Subscribe(ctx)
	second := b.Subscribe(ctx)
	require.Equal(t, 2, b.Subscribers())

	ev := ItemEvent{Op: ItemCreated, ID: "01H", UserID: "mom"}
	b.Publish(ev)

	assert.Equal(t, ev, <-first)
	assert.Equal(t, ev, <-second)

	cancel()
	_, ok := <-first
	assert.False(t, ok)
	_, ok = <-second
	assert.False(t, ok)
}

func TestBrokerDropsWhenSubscriberLags(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroker()
	ch := b.Subscribe(ctx)

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(ItemEvent{Op: ItemUpdated, ID: "x"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBrokerUnsubscribesOnContextDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBrokerClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroker()
	ch := b.Subscribe(ctx)
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe(ctx)
	_, ok = <-late
	assert.False(t, ok)
	b.Publish(ItemEvent{Op: ItemDeleted})
	cancel()
}
