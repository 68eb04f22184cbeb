package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/packhouse/internal/assembly/relay"
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"github.com/gin-gonic/gin"
)

const (
	streamPollInterval      = 500 * time.Millisecond
	streamHeartbeatInterval = 25 * time.Second
)

// StreamHandler 把单个捆包的装配事件以 SSE 推给任意数量的观察端
type StreamHandler struct {
	relay   *relay.Relay
	bundles *repository.BundleRepository
}

func NewStreamHandler(r *relay.Relay, bundles *repository.BundleRepository) *StreamHandler {
	return &StreamHandler{relay: r, bundles: bundles}
}

// Subscribe 订阅捆包进度。尽力送达：断线期间的事件可能丢失，
// 客户端重连后应以 GetSession 对账。
// GET /api/v1/assembly/bundles/:id/events?token=xxx
func (h *StreamHandler) Subscribe(c *gin.Context) {
	bundleID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.bundles.FindByID(ctx, GetTenantID(c), bundleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "bundle not found")
		} else {
			InternalError(c, err.Error())
		}
		return
	}

	// 从流尾开始，只推订阅之后的新事件
	cursor, err := h.relay.LastID(ctx, bundleID)
	if err != nil {
		InternalError(c, "event stream unavailable: "+err.Error())
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString(fmt.Sprintf("event: connected\ndata: {\"bundle_id\":%q}\n\n", bundleID))
	c.Writer.Flush()

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	clientGone := ctx.Done()

	for {
		select {
		case <-clientGone:
			return
		case <-poll.C:
			events, next, err := h.relay.PollSince(ctx, bundleID, cursor)
			if err != nil {
				// redis 抖动下一轮再试，断流交给心跳和 clientGone
				continue
			}
			cursor = next
			for _, ev := range events {
				if _, err := c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Event.Type, ev.Event.SSEData())); err != nil {
					return
				}
			}
			if len(events) > 0 {
				c.Writer.Flush()
			}
		case <-heartbeat.C:
			// 注释帧防止中间层掐断空闲连接
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
