// Package notify carries advisory "issues changed" events. Subscribers are
// expected to re-fetch the issue collection on every event rather than
// merge the event itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis channel and NATS subject events travel on.
const Channel = "issues.changed"

const (
	EventCreated = "issue.created"
	EventSolved  = "issue.solved"
)

type Event struct {
	Type    string    `json:"type"`
	IssueID string    `json:"issueId"`
	At      time.Time `json:"at"`
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed is a Publisher that can also be subscribed to. The returned channel
// closes when ctx is done.
type Feed interface {
	Publisher
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// RedisFeed uses Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := f.client.Subscribe(ctx, Channel)
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	out := make(chan Event, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("dropping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NATSFeed uses core NATS subjects.
type NATSFeed struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSFeed(conn *nats.Conn, logger *zap.Logger) *NATSFeed {
	return &NATSFeed{conn: conn, logger: logger}
}

func (f *NATSFeed) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.conn.Publish(Channel, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (f *NATSFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs := make(chan *nats.Msg, 64)
	sub, err := f.conn.ChanSubscribe(Channel, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	// Round-trip so the server has the subscription before we return.
	if err := f.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				f.logger.Warn("unsubscribe failed", zap.Error(err))
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					f.logger.Warn("dropping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
