package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel(42))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(client, slog.Default())
	b.Publish(ctx, 42, "tow.quote", map[string]any{"price": 1250.0, "eta": 27})

	select {
	case msg := <-sub.Channel():
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		require.EqualValues(t, 42, event["id"])
		require.Equal(t, "tow.quote", event["kind"])
		require.EqualValues(t, 1250.0, event["price"])
		require.NotEmpty(t, event["event_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestBroadcasterPayloadCannotOverrideEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel(7))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(client, slog.Default())
	b.Publish(ctx, 7, "payment:status", map[string]any{"id": 999, "status": "COMPLETED"})

	select {
	case msg := <-sub.Channel():
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		require.EqualValues(t, 7, event["id"])
		require.Equal(t, "COMPLETED", event["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
