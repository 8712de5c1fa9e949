package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"bitboard/internal/middleware"
	"bitboard/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Publisher writes change events and per-user payloads onto Redis.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher. A nil client turns every publish into a no-op.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends evt to its table channel and every matching filtered channel.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	payload, err := evt.Encode()
	if err != nil {
		return err
	}

	pipe := p.rdb.Pipeline()
	for _, ch := range evt.Channels() {
		pipe.Publish(ctx, ch, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s %s: %w", evt.Type, evt.Table, err)
	}
	observability.RealtimeEventsPublished.WithLabelValues(evt.Table, string(evt.Type)).Inc()
	return nil
}

// PublishChange builds and publishes an event, logging instead of failing.
// Writers call it after their transaction has committed.
func (p *Publisher) PublishChange(ctx context.Context, t EventType, table string, newRow, oldRow any) {
	if p == nil || p.rdb == nil {
		return
	}
	evt, err := NewEvent(t, table, newRow, oldRow)
	if err == nil {
		err = p.Publish(ctx, evt)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "realtime publish failed",
			slog.String("table", table),
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
	}
}

// Envelope is the JSON frame delivered to websocket clients.
type Envelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// PublishUser sends a typed frame to one user's connections.
func (p *Publisher) PublishUser(ctx context.Context, userID uint, frameType string, payload any) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	b, err := json.Marshal(Envelope{Type: frameType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.rdb.Publish(ctx, UserChannel(userID), b).Err()
}

// PublishBroadcast sends a typed frame to every connected user.
func (p *Publisher) PublishBroadcast(ctx context.Context, frameType string, payload any) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	b, err := json.Marshal(Envelope{Type: frameType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.rdb.Publish(ctx, broadcastChannel, b).Err()
}

// StartSubscriber pattern-subscribes to change and user channels and calls
// onMessage for each message until ctx is cancelled. Panics in onMessage are
// recovered so one bad payload cannot stop delivery.
func (p *Publisher) StartSubscriber(ctx context.Context, onMessage func(channel string, payload []byte)) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	sub := p.rdb.PSubscribe(ctx, channelPrefix+"*", userChannelPrefix+"*", broadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
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
							middleware.Logger.Error("panic in realtime subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
