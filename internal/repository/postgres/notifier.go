package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/repository"
)

// ItemsChannel is the NOTIFY channel fed by the wish_items trigger.
const ItemsChannel = "wish_items"

// Notifier turns Postgres NOTIFY payloads on ItemsChannel into item events.
type Notifier struct {
	databaseURL string
	logger      *logrus.Logger
	broker      *repository.Broker
}

// NewNotifier creates a notifier; call Run to start listening
func NewNotifier(databaseURL string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		databaseURL: databaseURL,
		logger:      logger,
		broker:      repository.NewBroker(),
	}
}

// Subscribe returns a channel of change events that closes when ctx is done
func (n *Notifier) Subscribe(ctx context.Context) <-chan repository.ItemEvent {
	return n.broker.Subscribe(ctx)
}

// Run listens until ctx is cancelled. It blocks, so launch it in its own goroutine.
func (n *Notifier) Run(ctx context.Context) error {
	listener := pq.NewListener(n.databaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.logger.WithError(err).WithField("event", ev).Warn("Postgres listener event")
		}
	})
	defer listener.Close()
	defer n.broker.Close()

	if err := listener.Listen(ItemsChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ItemsChannel, err)
	}

	n.logger.Infof("Listening for item changes on channel %s", ItemsChannel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Item change listener stopped")
			return nil
		case notification := <-listener.Notify:
			// A nil notification follows a reconnect; we may have missed
			// changes, so tell subscribers to refresh everything.
			if notification == nil {
				n.broker.Publish(repository.ItemEvent{Op: repository.ItemUpdated})
				continue
			}
			ev, err := decodeNotification(notification.Extra)
			if err != nil {
				n.logger.WithError(err).Warn("Ignoring malformed item notification")
				continue
			}
			n.broker.Publish(ev)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				n.logger.WithError(err).Warn("Postgres listener ping failed")
			}
		}
	}
}

func decodeNotification(payload string) (repository.ItemEvent, error) {
	var ev repository.ItemEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("failed to decode notification payload: %w", err)
	}
	switch ev.Op {
	case repository.ItemCreated, repository.ItemUpdated, repository.ItemDeleted:
	default:
		return ev, fmt.Errorf("unknown notification op %q", ev.Op)
	}
	return ev, nil
}
