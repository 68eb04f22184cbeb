package relay

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupRelay(t *testing.T) (*Relay, *redis.Client) {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping relay tests")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       15,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return New(rdb, zap.NewNop()), rdb
}

func TestPublishAndPoll(t *testing.T) {
	r, _ := setupRelay(t)
	ctx := context.Background()
	bundleID := "bundle-relay-001"

	// Cursor taken before any publish sees everything that follows
	cursor, err := r.LastID(ctx, bundleID)
	if err != nil {
		t.Fatalf("LastID failed: %v", err)
	}
	if cursor != "0-0" {
		t.Fatalf("empty stream cursor must be 0-0, got %s", cursor)
	}

	r.Publish(ctx, Event{Type: EventScanned, BundleID: bundleID, Payload: map[string]interface{}{"scanned_count": 1}})
	r.Publish(ctx, Event{Type: EventPhaseComplete, BundleID: bundleID})

	events, cursor, err := r.PollSince(ctx, bundleID, cursor)
	if err != nil {
		t.Fatalf("PollSince failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event.Type != EventScanned || events[1].Event.Type != EventPhaseComplete {
		t.Fatalf("events out of order: %s, %s", events[0].Event.Type, events[1].Event.Type)
	}
	if events[0].Event.Timestamp.IsZero() {
		t.Fatal("publish must stamp the event timestamp")
	}

	// Cursor is exclusive: nothing new means no events
	events, cursor2, err := r.PollSince(ctx, bundleID, cursor)
	if err != nil {
		t.Fatalf("second PollSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no new events, got %d", len(events))
	}
	if cursor2 != cursor {
		t.Fatalf("cursor must not move without events: %s vs %s", cursor2, cursor)
	}

	r.Publish(ctx, Event{Type: EventAssemblyComplete, BundleID: bundleID})
	events, _, err = r.PollSince(ctx, bundleID, cursor)
	if err != nil {
		t.Fatalf("third PollSince failed: %v", err)
	}
	if len(events) != 1 || events[0].Event.Type != EventAssemblyComplete {
		t.Fatalf("expected only the new event, got %+v", events)
	}
}

func TestLastIDSkipsHistory(t *testing.T) {
	r, _ := setupRelay(t)
	ctx := context.Background()
	bundleID := "bundle-relay-002"

	r.Publish(ctx, Event{Type: EventScanned, BundleID: bundleID})
	r.Publish(ctx, Event{Type: EventScanned, BundleID: bundleID})

	// A subscriber connecting now must not replay the two old events
	cursor, err := r.LastID(ctx, bundleID)
	if err != nil {
		t.Fatalf("LastID failed: %v", err)
	}
	events, _, err := r.PollSince(ctx, bundleID, cursor)
	if err != nil {
		t.Fatalf("PollSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no replayed events, got %d", len(events))
	}
}

func TestStreamsIsolatedPerBundle(t *testing.T) {
	r, _ := setupRelay(t)
	ctx := context.Background()

	r.Publish(ctx, Event{Type: EventScanned, BundleID: "bundle-x"})
	r.Publish(ctx, Event{Type: EventScanned, BundleID: "bundle-y"})

	events, _, err := r.PollSince(ctx, "bundle-x", "0-0")
	if err != nil {
		t.Fatalf("PollSince failed: %v", err)
	}
	if len(events) != 1 || events[0].Event.BundleID != "bundle-x" {
		t.Fatalf("stream must only carry its own bundle, got %+v", events)
	}
}

func TestStreamTTL(t *testing.T) {
	r, rdb := setupRelay(t)
	ctx := context.Background()
	bundleID := "bundle-relay-ttl"

	r.Publish(ctx, Event{Type: EventScanned, BundleID: bundleID})

	ttl, err := rdb.TTL(ctx, streamKey(bundleID)).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Fatalf("expected bounded stream TTL, got %v", ttl)
	}
}
