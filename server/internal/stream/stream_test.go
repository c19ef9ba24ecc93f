package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-posts/server/internal/events"
	"blog-posts/server/internal/model"
)

func newStreamServer(t *testing.T, sub Subscriber) (*Handler, *httptest.Server) {
	t.Helper()
	return newStreamServerWithConfig(t, sub, Config{PingInterval: time.Second, WriteTimeout: time.Second})
}

func newStreamServerWithConfig(t *testing.T, sub Subscriber, cfg Config) (*Handler, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(sub, cfg, nil)
	engine := gin.New()
	engine.GET("/api/posts/stream", h.Handle)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/posts/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://example.com"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStreamDeliversChanges(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	h, srv := newStreamServer(t, bus)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(model.PostChange{Seq: 1, EventID: "a", Type: model.ChangePostCreated, Post: model.Post{ID: 3, Title: "A", Content: "B"}}))
	require.NoError(t, bus.Publish(model.PostChange{Seq: 2, EventID: "b", Type: model.ChangePostDeleted, Post: model.Post{ID: 3, Title: "A", Content: "B"}}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second model.PostChange
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.EqualValues(t, 1, first.Seq)
	assert.Equal(t, model.ChangePostCreated, first.Type)
	assert.Equal(t, model.Post{ID: 3, Title: "A", Content: "B"}, first.Post)
	assert.EqualValues(t, 2, second.Seq)
	assert.Equal(t, model.ChangePostDeleted, second.Type)
}

func TestStreamReleasesSubscriptionOnClientClose(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	h, srv := newStreamServer(t, bus)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Active() == 0 }, 2*time.Second, 10*time.Millisecond)

	// 连接断开后发布不应阻塞。
	done := make(chan error, 1)
	go func() { done <- bus.Publish(model.PostChange{Seq: 1, Type: model.ChangePostCreated}) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after client disconnected")
	}
}

func TestStreamClosesWhenBusCloses(t *testing.T) {
	bus := events.NewBus(nil)

	_, srv := newStreamServer(t, bus)
	conn := dial(t, srv)

	require.NoError(t, bus.Close())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context) (<-chan *message.Message, error) {
	return nil, errors.New("Pub/Sub closed")
}

func TestStreamSubscribeFailure(t *testing.T) {
	_, srv := newStreamServer(t, failingSubscriber{})

	resp, err := http.Get(srv.URL + "/api/posts/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamDropsStalledClientWithoutBlockingPublish(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	h, srv := newStreamServerWithConfig(t, bus, Config{
		PingInterval: time.Second,
		WriteTimeout: time.Second,
		Buffer:       1,
	})
	// 客户端连上后从不读取。
	dial(t, srv)
	require.Eventually(t, func() bool { return h.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	big := strings.Repeat("x", 1<<20)
	done := make(chan error, 1)
	go func() {
		for i := 1; i <= 50; i++ {
			err := bus.Publish(model.PostChange{
				Seq:  int64(i),
				Type: model.ChangePostCreated,
				Post: model.Post{ID: i, Title: "big", Content: big},
			})
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a stalled client")
	}
	assert.Eventually(t, func() bool { return h.Active() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func newChangeMessage(t *testing.T, seq int64) *message.Message {
	t.Helper()
	payload, err := json.Marshal(model.PostChange{Seq: seq, Type: model.ChangePostCreated})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func TestPumpCancelsSlowClient(t *testing.T) {
	h := NewHandler(nil, Config{Buffer: 1}, nil)

	msgs := make(chan *message.Message, 3)
	sent := make([]*message.Message, 0, 3)
	for seq := int64(1); seq <= 3; seq++ {
		msg := newChangeMessage(t, seq)
		sent = append(sent, msg)
		msgs <- msg
	}
	close(msgs)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	out := make(chan model.PostChange, 1)
	h.pump(ctx, cancel, msgs, out)

	assert.ErrorIs(t, context.Cause(ctx), errSlowClient)
	assert.Equal(t, websocket.CloseTryAgainLater, closeCode(ctx))

	// 即使连接被踢出，所有消息也都已 Ack。
	for _, msg := range sent {
		select {
		case <-msg.Acked():
		default:
			t.Fatalf("message %s not acked", msg.UUID)
		}
	}

	first, ok := <-out
	require.True(t, ok)
	assert.EqualValues(t, 1, first.Seq)
	_, ok = <-out
	assert.False(t, ok)
}

func TestCloseCodeNormalClosure(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(nil)
	assert.Equal(t, websocket.CloseNormalClosure, closeCode(ctx))
}
