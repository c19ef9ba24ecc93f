// Package stream 通过 WebSocket 把帖子变更实时推送给浏览器。
package stream

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blog-posts/server/internal/events"
	"blog-posts/server/internal/model"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultBuffer       = 64
	maxClientMessage    = 512
)

// errSlowClient 表示连接的发送缓冲已满。
var errSlowClient = errors.New("client too slow")

// Subscriber 提供变更订阅，*events.Bus 实现了它。
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// Buffer 是每个连接的待发送变更上限，写不过来的连接会被断开。
	Buffer int
}

// Handler 为每个 WebSocket 连接建立一个独立订阅。
type Handler struct {
	subscriber Subscriber
	cfg        Config
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	active     atomic.Int64
}

func NewHandler(subscriber Subscriber, cfg Config, logger *zap.Logger) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		subscriber: subscriber,
		cfg:        cfg,
		logger:     logger.Named("stream"),
		upgrader: websocket.Upgrader{
			// 与 REST 接口一致，允许任意来源。
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Active 返回当前打开的连接数。
func (h *Handler) Active() int64 {
	return h.active.Load()
}

// Handle 处理 GET /api/posts/stream。
func (h *Handler) Handle(c *gin.Context) {
	// 连接被 hijack 后 request context 不再反映客户端状态，这里自行管理生命周期。
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	msgs, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		h.logger.Warn("subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "change stream unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应。
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	n := h.active.Add(1)
	defer h.active.Add(-1)
	h.logger.Info("client connected", zap.String("remote", c.Request.RemoteAddr), zap.Int64("active", n))

	out := make(chan model.PostChange, h.cfg.Buffer)
	go h.pump(ctx, cancel, msgs, out)
	go h.readLoop(conn, cancel)

	h.writeLoop(ctx, conn, out)
	h.logger.Info("client disconnected", zap.String("remote", c.Request.RemoteAddr))
}

// pump 收到消息立即 Ack，不让慢连接拖住 Bus.Publish。缓冲写满时断开该连接。
func (h *Handler) pump(ctx context.Context, cancel context.CancelCauseFunc, msgs <-chan *message.Message, out chan<- model.PostChange) {
	defer close(out)
	for msg := range msgs {
		change, err := events.DecodeChange(msg)
		msg.Ack()
		if err != nil {
			h.logger.Warn("skip undecodable change", zap.Error(err))
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		select {
		case out <- change:
		default:
			h.logger.Warn("client too slow, dropping connection", zap.Int64("seq", change.Seq))
			cancel(errSlowClient)
		}
	}
}

// readLoop 只处理控制帧；客户端断开或读超时即取消连接。
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelCauseFunc) {
	defer cancel(nil)

	pongWait := 2 * h.cfg.PingInterval
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan model.PostChange) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(conn, closeCode(ctx))
			return
		case change, ok := <-out:
			if !ok {
				// Bus 已关闭，服务正在退出。
				h.writeClose(conn, websocket.CloseGoingAway)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(change); err != nil {
				h.logger.Debug("write change failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// closeCode 区分慢连接被踢出与正常结束。
func closeCode(ctx context.Context) int {
	if errors.Is(context.Cause(ctx), errSlowClient) {
		return websocket.CloseTryAgainLater
	}
	return websocket.CloseNormalClosure
}

func (h *Handler) writeClose(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
}
