package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/feed"
)

// Feed carries change events over Redis pub/sub, one channel per table
// named <prefix>:<table>. Filters are applied on the subscriber side.
type Feed struct {
	client *redis.Client
	prefix string
	logger *logrus.Entry
}

// NewFeed creates a feed on client
func NewFeed(client *redis.Client, prefix string, logger *logrus.Entry) *Feed {
	return &Feed{client: client, prefix: prefix, logger: logger}
}

// Channel returns the pub/sub channel for table
func (f *Feed) Channel(table string) string {
	return f.prefix + ":" + table
}

// Publish sends event to its table's channel
func (f *Feed) Publish(ctx context.Context, event feed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := f.client.Publish(ctx, f.Channel(event.Table), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", f.Channel(event.Table), err)
	}
	return nil
}

// Subscribe opens a subscription on table. It returns once Redis has
// confirmed the subscription, so no later publish is missed.
func (f *Feed) Subscribe(ctx context.Context, table string, filter *feed.Filter) (*feed.Subscription, error) {
	channel := f.Channel(table)
	pubsub := f.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := feed.NewSubscription(func() {
		if err := pubsub.Close(); err != nil {
			f.logger.WithError(err).WithField("channel", channel).Debug("Failed to close subscription")
		}
	})
	go f.forward(pubsub.Channel(), sub, filter, channel)

	return sub, nil
}

func (f *Feed) forward(messages <-chan *redis.Message, sub *feed.Subscription, filter *feed.Filter, channel string) {
	logger := f.logger.WithFields(logrus.Fields{
		"channel": channel,
		"filter":  filter.String(),
	})

	for {
		select {
		case <-sub.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				logger.Warn("Feed channel closed by transport, no further events will be delivered")
				go sub.Close()
				return
			}

			var event feed.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.WithError(err).Warn("Dropping malformed feed message")
				continue
			}
			if filter.Matches(event) {
				sub.Deliver(event)
			}
		}
	}
}
