package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is the frame published on a channel and forwarded to subscribers.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Broker publishes and subscribes to Redis pub/sub channels.
type Broker struct {
	rdb *redis.Client
}

func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Publish sends data as event name on channel. Delivery is at-most-once to
// whoever is subscribed at that moment.
func (b *Broker) Publish(ctx context.Context, channel, name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	payload, err := json.Marshal(Event{Name: name, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on channel until ctx is done. The subscription is
// confirmed before Subscribe returns, so anything published afterwards is
// delivered. The returned channel is closed when the subscription ends.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	sub := b.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Event, 16)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("panic in channel subscriber",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
			}
		}()
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
					zap.L().Warn("dropping malformed event",
						zap.String("channel", msg.Channel), zap.Error(err))
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

// Ping checks the Redis connection.
func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}
