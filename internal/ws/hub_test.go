package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	hub *Hub
}

func (f *fakePipeline) GetSession(_ context.Context, _ service.Actor, id string) (*models.ChatSession, error) {
	if id != "known" {
		return nil, service.ErrSessionNotFound
	}
	return &models.ChatSession{SessionID: id, Status: models.SessionActive, RiskLevel: models.RiskLow}, nil
}

func (f *fakePipeline) SendMessage(_ context.Context, _ service.Actor, id, content, _ string) (*service.ExchangeResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, service.ErrValidation
	}
	session := &models.ChatSession{SessionID: id, Status: models.SessionActive, RiskLevel: models.RiskMedium}
	result := &service.ExchangeResult{
		Session:     session,
		UserMessage: &models.ChatMessage{MessageType: models.MessageUser, Content: content},
		BotMessage:  &models.ChatMessage{MessageType: models.MessageBot, Content: "Be careful."},
	}
	f.hub.Publish(service.Event{Type: service.EventExchange, SessionID: id, Exchange: result})
	return result, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pipeline := &fakePipeline{}
	hub := NewHub(pipeline, func(err error) FrameError {
		return FrameError{Code: "VALIDATION_ERROR", Message: err.Error()}
	}, logger.NewNop())
	pipeline.hub = hub

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	hub.RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) { c.Next() })

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestUnknownSessionClosesWith4004(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "missing")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseUnknownSession, closeErr.Code)
}

func TestSessionInfoThenBroadcast(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv, "known")
	info := readFrame(t, a)
	assert.Equal(t, FrameSessionInfo, info.Type)
	require.NotNil(t, info.Session)
	assert.Equal(t, "known", info.Session.SessionID)

	b := dial(t, srv, "known")
	assert.Equal(t, FrameSessionInfo, readFrame(t, b).Type)

	require.NoError(t, a.WriteJSON(Frame{Type: FrameMessage, Content: "Someone called about my bank"}))

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, FrameExchange, f.Type)
		require.NotNil(t, f.Exchange)
		assert.Equal(t, "Someone called about my bank", f.Exchange.UserMessage.Content)
		assert.Equal(t, "Be careful.", f.Exchange.BotMessage.Content)
	}
}

func TestPipelineErrorIsReportedToSender(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv, "known")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, Content: "   "}))
	f := readFrame(t, conn)
	assert.Equal(t, FrameErrorType, f.Type)
	require.NotNil(t, f.Error)
	assert.Equal(t, "VALIDATION_ERROR", f.Error.Code)

	require.NoError(t, conn.WriteJSON(Frame{Type: FramePing}))
	assert.Equal(t, FramePong, readFrame(t, conn).Type)
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(&fakePipeline{}, nil, logger.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(service.Event{Type: service.EventStatus, SessionID: "nobody"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
	assert.Equal(t, 0, hub.ClientCount("nobody"))
}
