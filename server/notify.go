package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/existflow/ironboard/internal/logger"
)

// DefaultChannel is the Redis channel carrying collection change notices
const DefaultChannel = "ironboard:changes"

// Notifier fans committed changes out to every server instance over Redis
type Notifier struct {
	rc      *redis.Client
	channel string
	log     *logger.Logger
}

var _ Publisher = (*Notifier)(nil)

// NewNotifier creates a notifier on channel
func NewNotifier(rc *redis.Client, channel string, log *logger.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{rc: rc, channel: channel, log: log.With(logger.F("channel", channel))}
}

// Publish announces a change to collection
func (n *Notifier) Publish(ctx context.Context, collection string) error {
	return n.rc.Publish(ctx, n.channel, collection).Err()
}

// Run listens for change notices and calls refresh for each one until ctx
// is done. A closed channel is re-subscribed after a second.
func (n *Notifier) Run(ctx context.Context, refresh func(collection string)) {
	for {
		sub := n.rc.Subscribe(ctx, n.channel)
		ch := sub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop
				}
				if msg.Payload == "" {
					continue
				}
				n.log.Debug("change notice", logger.F("collection", msg.Payload))
				refresh(msg.Payload)
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		n.log.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
