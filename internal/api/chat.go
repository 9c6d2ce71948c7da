package api

import (
	"net/http"
	"time"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/internal/service"
	apperrors "fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ChatController serves the session lifecycle and message pipeline
type ChatController struct {
	chat *service.ChatService
}

// NewChatController creates a new chat controller
func NewChatController(chat *service.ChatService) *ChatController {
	return &ChatController{chat: chat}
}

// RegisterRoutes mounts the session routes. optionalAuth attaches the caller when a token is sent.
func (h *ChatController) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	sessions := rg.Group("/sessions")
	sessions.Use(optionalAuth)
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/messages", h.ListMessages)
		sessions.POST("/:id/messages", h.SendMessage)
		sessions.POST("/:id/escalate", h.Escalate)
		sessions.POST("/:id/close", h.Close)
		sessions.POST("/:id/archive", middleware.RequireRole(jwt.RoleAdmin), h.Archive)
		sessions.POST("/:id/messages/:message_id/feedback", h.Feedback)
	}
}

type createSessionRequest struct {
	VulnerabilityFactors []string `json:"vulnerability_factors"`
	FraudType            string   `json:"fraud_type"`
	InitialMessage       string   `json:"initial_message"`
}

// createSessionResponse keeps the session id even when the initial message failed
type createSessionResponse struct {
	*service.CreateSessionResult
	InitialMessageError *apperrors.AppError `json:"initial_message_error,omitempty"`
}

// CreateSession opens a session; the body is optional
func (h *ChatController) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.FromGin(c).Warn("Error binding JSON for session", "error", err.Error())
			badRequest(c, "Invalid request format")
			return
		}
	}

	result, err := h.chat.CreateSession(c.Request.Context(), actor(c), service.CreateSessionInput{
		VulnerabilityFactors: req.VulnerabilityFactors,
		FraudType:            req.FraudType,
		InitialMessage:       req.InitialMessage,
	})
	if err != nil {
		fail(c, err)
		return
	}

	resp := createSessionResponse{CreateSessionResult: result}
	if result.InitialMessageErr != nil {
		resp.InitialMessageError = ServiceError(result.InitialMessageErr)
	}
	c.JSON(http.StatusCreated, resp)
}

// ListSessions lists the caller's sessions, or all of them for admins
func (h *ChatController) ListSessions(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	filter := repository.SessionFilter{
		Status:    models.SessionStatus(c.Query("status")),
		RiskLevel: models.RiskLevel(c.Query("risk_level")),
		Page:      p,
	}
	if filter.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = timeQuery(c, "to"); !ok {
		return
	}

	sessions, total, err := h.chat.ListSessions(c.Request.Context(), actor(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newList(sessions, total, p))
}

// GetSession returns one session
func (h *ChatController) GetSession(c *gin.Context) {
	session, err := h.chat.GetSession(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListMessages returns the session transcript oldest first
func (h *ChatController) ListMessages(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	messages, total, err := h.chat.ListMessages(c.Request.Context(), actor(c), c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newList(messages, total, p))
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage runs one exchange. A repeated Idempotency-Key replays the stored result.
func (h *ChatController) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	result, err := h.chat.SendMessage(c.Request.Context(), actor(c), c.Param("id"), req.Content, c.GetHeader("Idempotency-Key"))
	if err != nil {
		fail(c, err)
		return
	}
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, result)
}

// Escalate hands the session to a human advisor
func (h *ChatController) Escalate(c *gin.Context) {
	session, err := h.chat.Escalate(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Close ends the session
func (h *ChatController) Close(c *gin.Context) {
	session, err := h.chat.Close(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Archive moves any non-archived session to archived
func (h *ChatController) Archive(c *gin.Context) {
	session, err := h.chat.Archive(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type feedbackRequest struct {
	Feedback  *models.Feedback `json:"feedback"`
	IsHelpful *bool            `json:"is_helpful"`
}

// Feedback records the user's verdict on a message
func (h *ChatController) Feedback(c *gin.Context) {
	messageID, ok := uintParam(c, "message_id")
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	msg, err := h.chat.RecordFeedback(c.Request.Context(), actor(c), c.Param("id"), messageID, req.Feedback, req.IsHelpful)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		badRequest(c, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}
