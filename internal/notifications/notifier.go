// Package notifications provides outbound notification delivery for the application.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published on decision channels.
const (
	EventElevationSubmitted = "elevation_request_submitted"
	EventElevationDecided   = "elevation_request_decided"
)

// Notifier provides helpers to publish notification events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	channel := fmt.Sprintf("notifications:user:%d", userID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishAdmin sends a notification payload to the admin broadcast channel,
// which super-admin dashboards subscribe to.
func (n *Notifier) PublishAdmin(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, "notifications:admin", payload).Err()
}

// PublishElevationEvent marshals and publishes an elevation workflow event to
// both the subject user's channel and the admin channel. Errors are returned
// for the caller to log; they must never fail the triggering operation.
func (n *Notifier) PublishElevationEvent(ctx context.Context, event string, subjectUserID uint, fields map[string]any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload := map[string]any{
		"event": event,
		"time":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := n.PublishUser(ctx, subjectUserID, string(b)); err != nil {
		return err
	}
	return n.PublishAdmin(ctx, string(b))
}

// StartPatternSubscriber subscribes to notification channels and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*", "notifications:admin")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
