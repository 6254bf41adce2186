// Package realtime publishes order-scoped events to the broadcast transport.
// Delivery to connected clients is owned by an external collaborator; this
// package only writes to the per-order Redis channel.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher emits one event per state-changing operation.
type Publisher interface {
	Publish(ctx context.Context, orderID int64, kind string, payload map[string]any)
}

// Broadcaster publishes JSON events over Redis pub/sub.
type Broadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, logger: logger}
}

// Channel returns the order-specific channel name.
func Channel(orderID int64) string {
	return fmt.Sprintf("orders:%d", orderID)
}

// Publish sends {id, kind, event_id, ...payload} to the order channel. The
// event_id lets consumers deduplicate after a reconnect replay. Broadcast is
// best-effort: failures are logged and never fail the calling operation.
func (b *Broadcaster) Publish(ctx context.Context, orderID int64, kind string, payload map[string]any) {
	if b == nil || b.client == nil {
		return
	}
	event := map[string]any{"id": orderID, "kind": kind, "event_id": uuid.NewString()}
	for k, v := range payload {
		if k == "id" || k == "kind" || k == "event_id" {
			continue
		}
		event[k] = v
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("realtime: marshal event", slog.String("kind", kind), slog.Any("error", err))
		return
	}
	if err := b.client.Publish(ctx, Channel(orderID), data).Err(); err != nil {
		b.logger.Warn("realtime: publish", slog.String("kind", kind), slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

// NopPublisher discards events. Used in tests and tools.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, int64, string, map[string]any) {}
