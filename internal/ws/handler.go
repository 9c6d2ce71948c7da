package ws

import (
	"errors"
	"net/http"
	"time"

	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Origins are enforced by the CORS layer in front of the API
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// RegisterRoutes mounts GET /sessions/:id/ws behind the optional auth middleware
func (h *Hub) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	rg.GET("/sessions/:id/ws", optionalAuth, h.ServeWs)
}

// ServeWs upgrades the request and attaches the socket to the session.
// An unknown or invisible session is closed with CloseUnknownSession.
func (h *Hub) ServeWs(c *gin.Context) {
	sessionID := c.Param("id")
	act := service.Anonymous
	if claims, ok := middleware.Claims(c); ok {
		id := claims.UserID
		act = service.Actor{UserID: &id, Admin: claims.IsAdmin()}
	}

	log := logger.FromGin(c).WithSessionID(sessionID)

	session, lookupErr := h.chat.GetSession(c.Request.Context(), act, sessionID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Error upgrading connection", "error", err.Error())
		return
	}

	if lookupErr != nil {
		reason := "session not found"
		if !errors.Is(lookupErr, service.ErrSessionNotFound) {
			log.LogError(lookupErr, "Session lookup failed")
			reason = "session unavailable"
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseUnknownSession, reason),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	client := newClient(h, conn, session.SessionID, act, log)

	// Queued before registration so it is always the first frame
	info, _ := jsonFrame(Frame{Type: FrameSessionInfo, SessionID: session.SessionID, Session: session})
	client.send <- info

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.cancel()
		conn.Close()
		return
	}
	log.Info("Websocket connection established", "clientId", client.id)

	go client.writePump()
	go client.processMessages()
	go client.readPump()
}
