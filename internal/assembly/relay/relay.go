package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 事件类型，与 SSE 的 event 字段一致
const (
	EventConnected        = "connected"
	EventScanned          = "scanned"
	EventPhaseComplete    = "phase_complete"
	EventAssemblyComplete = "assembly_complete"
)

// Event 装配进度事件。尽力送达，客户端断线重连后以 GetSession 对账。
type Event struct {
	Type      string                 `json:"type"`
	BundleID  string                 `json:"bundle_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// StreamEvent 带流内游标的事件
type StreamEvent struct {
	ID    string
	Event Event
}

// Relay 把装配事件写入按捆包分流的 Redis Stream，
// SSE 端按游标增量拉取，数据库不感知观察者。
type Relay struct {
	rdb    *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

func New(rdb *redis.Client, logger *zap.Logger) *Relay {
	return &Relay{
		rdb:    rdb,
		logger: logger,
		ttl:    24 * time.Hour,
	}
}

func streamKey(bundleID string) string {
	return "assembly:events:" + bundleID
}

// Publish 追加一条事件。失败只记日志，进度推送不阻塞装配事务。
func (r *Relay) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("relay: marshal event failed", zap.Error(err))
		return
	}
	key := streamKey(event.BundleID)
	if err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{"event": string(data)},
	}).Err(); err != nil {
		r.logger.Warn("relay: publish failed",
			zap.String("bundle_id", event.BundleID),
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}
	r.rdb.Expire(ctx, key, r.ttl)
}

// LastID 当前流尾游标，订阅者从这里开始只看新事件
func (r *Relay) LastID(ctx context.Context, bundleID string) (string, error) {
	msgs, err := r.rdb.XRevRangeN(ctx, streamKey(bundleID), "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

// PollSince 拉取游标之后的全部事件，返回新游标
func (r *Relay) PollSince(ctx context.Context, bundleID, cursor string) ([]StreamEvent, string, error) {
	start := "-"
	if cursor != "" && cursor != "0-0" {
		start = "(" + cursor
	}
	msgs, err := r.rdb.XRange(ctx, streamKey(bundleID), start, "+").Result()
	if err != nil {
		return nil, cursor, err
	}
	events := make([]StreamEvent, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			r.logger.Warn("relay: skip malformed event",
				zap.String("bundle_id", bundleID),
				zap.String("stream_id", msg.ID))
			continue
		}
		events = append(events, StreamEvent{ID: msg.ID, Event: event})
		cursor = msg.ID
	}
	return events, cursor, nil
}

// SSEData 事件的 data 帧内容
func (e Event) SSEData() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"type":%q,"bundle_id":%q}`, e.Type, e.BundleID)
	}
	return string(data)
}
