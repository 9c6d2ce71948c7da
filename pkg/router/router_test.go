package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fraud-advisor/backend/internal/testutil"
	"fraud-advisor/backend/pkg/config"
	"fraud-advisor/backend/pkg/di"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	t         *testing.T
	router    *Router
	container *di.Container
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, k := range []string{"HIBP_API_KEY", "ABUSEIPDB_API_KEY", "PHISHSCAN_API_KEY", "OPENAPI_SCHEMA_PATH"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()
	cfg.Server.Env = "test"
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Security.TrustedProxies = nil
	cfg.Generation.Provider = "none"
	cfg.Redis.Addr = ""
	cfg.Vault.Addr = ""
	cfg.Observability.Tracing = false
	cfg.Observability.Metrics = true
	cfg.Chat.EnableWebSockets = true
	cfg.Chat.EscalationRules = ""

	container, err := di.New(cfg, testutil.NewDB(t), logger.NewNop(), nil)
	require.NoError(t, err)

	r := New(container)
	r.SetupRoutes()
	t.Cleanup(func() {
		r.Stop()
		_ = container.Close(context.Background())
	})

	return &testApp{t: t, router: r, container: container}
}

func (a *testApp) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.Engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) token(userID uint, role jwt.Role) string {
	tok, err := a.container.JWTService.GenerateToken(userID, "user@example.com", role)
	require.NoError(a.t, err)
	return "Bearer " + tok
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sessionBody struct {
	SessionID   string  `json:"session_id"`
	Status      string  `json:"status"`
	RiskLevel   string  `json:"risk_level"`
	EscalatedTo *string `json:"escalated_to"`
}

type messageBody struct {
	ID          uint           `json:"id"`
	MessageType string         `json:"message_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
}

type exchangeBody struct {
	Session     sessionBody `json:"session"`
	UserMessage messageBody `json:"user_message"`
	BotMessage  messageBody `json:"bot_message"`
	Escalated   bool        `json:"escalated"`
}

func (a *testApp) createSession(headers ...string) sessionBody {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/sessions", map[string]any{}, headers...)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[struct {
		Session  sessionBody `json:"session"`
		Greeting messageBody `json:"greeting"`
	}](a.t, w)
	require.NotEmpty(a.t, out.Session.SessionID)
	assert.NotEmpty(a.t, out.Greeting.Content)
	return out.Session
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, w).Error.Code
}

func TestCriticalExchangeEscalates(t *testing.T) {
	app := newTestApp(t)
	s := app.createSession()

	w := app.do(http.MethodPost, "/api/v1/sessions/"+s.SessionID+"/messages",
		map[string]string{"content": "A caller told me to buy gift cards and read him the numbers"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ex := decode[exchangeBody](t, w)
	assert.True(t, ex.Escalated)
	assert.Equal(t, "escalated", ex.Session.Status)
	assert.Equal(t, "critical", ex.Session.RiskLevel)
	assert.Equal(t, "bot", ex.BotMessage.MessageType)
	assert.Equal(t, "critical", ex.BotMessage.Metadata["risk_level"])
	assert.Equal(t, "safety", ex.BotMessage.Metadata["response_source"])
	assert.Equal(t, true, ex.BotMessage.Metadata["escalation_needed"])

	w = app.do(http.MethodPost, "/api/v1/sessions/"+s.SessionID+"/escalate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_ESCALATED", errorCode(t, w))
}

func TestCloseLifecycle(t *testing.T) {
	app := newTestApp(t)
	s := app.createSession()
	base := "/api/v1/sessions/" + s.SessionID

	w := app.do(http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "closed", decode[sessionBody](t, w).Status)

	w = app.do(http.MethodPost, base+"/close", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_CLOSED", errorCode(t, w))

	w = app.do(http.MethodPost, base+"/messages", map[string]string{"content": "hello?"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_CLOSED", errorCode(t, w))

	w = app.do(http.MethodPost, base+"/escalate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_CLOSED", errorCode(t, w))
}

func TestNotFoundAndValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))

	s := app.createSession()
	base := "/api/v1/sessions/" + s.SessionID

	w = app.do(http.MethodPost, base+"/messages/99999/feedback", map[string]string{"feedback": "positive"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MESSAGE_NOT_FOUND", errorCode(t, w))

	w = app.do(http.MethodPost, base+"/messages", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	// rejected by the schema before reaching the handler
	w = app.do(http.MethodPost, base+"/messages", map[string]string{"text": "wrong field"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = app.do(http.MethodGet, "/api/v1/sessions?status=sleeping", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackAndTranscript(t *testing.T) {
	app := newTestApp(t)
	s := app.createSession()
	base := "/api/v1/sessions/" + s.SessionID

	w := app.do(http.MethodPost, base+"/messages", map[string]string{"content": "I got an email saying I am a winner"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ex := decode[exchangeBody](t, w)
	assert.Equal(t, "fallback", ex.BotMessage.Metadata["response_source"])

	w = app.do(http.MethodPost, base+"/messages/"+jsonNumber(ex.BotMessage.ID)+"/feedback",
		map[string]any{"feedback": "positive", "is_helpful": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(http.MethodGet, base+"/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Items []messageBody `json:"items"`
		Total int64         `json:"total"`
	}](t, w)
	require.Len(t, list.Items, 3)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, "bot", list.Items[0].MessageType)
	assert.Equal(t, "user", list.Items[1].MessageType)
	assert.Equal(t, "bot", list.Items[2].MessageType)
}

func TestIdempotencyKeyReplays(t *testing.T) {
	app := newTestApp(t)
	s := app.createSession()
	path := "/api/v1/sessions/" + s.SessionID + "/messages"
	body := map[string]string{"content": "Is this text from my bank real?"}

	first := app.do(http.MethodPost, path, body, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := app.do(http.MethodPost, path, body, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, decode[exchangeBody](t, first).BotMessage.ID, decode[exchangeBody](t, second).BotMessage.ID)

	w := app.do(http.MethodGet, "/api/v1/sessions/"+s.SessionID+"/messages", nil)
	assert.Equal(t, int64(3), decode[struct {
		Total int64 `json:"total"`
	}](t, w).Total)
}

func TestOwnershipAndAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/api/v1/auth/signup",
		map[string]string{"email": "alice@example.com", "password": "correct-horse", "name": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	alice := "Bearer " + decode[struct {
		Token string `json:"token"`
	}](t, w).Token

	w = app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))

	w = app.do(http.MethodGet, "/api/v1/auth/me", nil, "Authorization", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")

	s := app.createSession("Authorization", alice)

	w = app.do(http.MethodGet, "/api/v1/sessions/"+s.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "anonymous callers must not see owned sessions")

	w = app.do(http.MethodGet, "/api/v1/sessions/"+s.SessionID, nil, "Authorization", app.token(4242, jwt.RoleUser))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/v1/sessions/"+s.SessionID, nil, "Authorization", app.token(1, jwt.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/v1/sessions", nil, "Authorization", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[struct {
		Total int64 `json:"total"`
	}](t, w).Total)

	w = app.do(http.MethodGet, "/api/v1/sessions", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestArchiveRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	s := app.createSession()
	path := "/api/v1/sessions/" + s.SessionID + "/archive"

	w := app.do(http.MethodPost, path, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, path, nil, "Authorization", app.token(7, jwt.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, path, nil, "Authorization", app.token(1, jwt.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "archived", decode[sessionBody](t, w).Status)
}

func TestAdvisorAssignmentOnEscalation(t *testing.T) {
	app := newTestApp(t)
	admin := app.token(1, jwt.RoleAdmin)

	w := app.do(http.MethodPost, "/api/v1/advisors",
		map[string]any{"name": "Dana", "email": "dana@advisors.example", "max_load": 2}, "Authorization", admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(http.MethodPost, "/api/v1/advisors", map[string]any{"name": "X", "email": "x@advisors.example"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s := app.createSession()
	w = app.do(http.MethodPost, "/api/v1/sessions/"+s.SessionID+"/escalate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	escalated := decode[sessionBody](t, w)
	require.NotNil(t, escalated.EscalatedTo)
	assert.Equal(t, "dana@advisors.example", *escalated.EscalatedTo)

	w = app.do(http.MethodGet, "/api/v1/advisors/available", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"current_load":1`)
}

func TestFraudReports(t *testing.T) {
	app := newTestApp(t)
	user := app.token(11, jwt.RoleUser)

	w := app.do(http.MethodPost, "/api/v1/fraud-reports",
		map[string]any{"fraud_type": "romance_scam", "description": "Met online, asked for money", "financial_loss": 1200.5},
		"Authorization", user)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	report := decode[struct {
		ID        uint   `json:"id"`
		RiskLevel string `json:"risk_level"`
		Status    string `json:"status"`
	}](t, w)
	assert.Equal(t, "medium", report.RiskLevel)
	assert.Equal(t, "open", report.Status)

	path := "/api/v1/fraud-reports/" + jsonNumber(report.ID)

	w = app.do(http.MethodPut, path, map[string]any{"status": "resolved"}, "Authorization", user)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPut, path, map[string]any{"status": "resolved"}, "Authorization", app.token(1, jwt.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"resolved_at"`)

	w = app.do(http.MethodGet, path, nil, "Authorization", app.token(12, jwt.RoleUser))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodPost, "/api/v1/fraud-reports",
		map[string]any{"fraud_type": "not_a_type", "description": "x"}, "Authorization", user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReputationWithoutKeys(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/v1/reputation/email/someone@example.com", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "REPUTATION_UNAVAILABLE", errorCode(t, w))

	w = app.do(http.MethodGet, "/api/v1/reputation/ip/not-an-ip", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/api/v1/reputation/url", map[string]string{"url": "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	// one exchange so the chat counters exist
	s := app.createSession()
	w := app.do(http.MethodPost, "/api/v1/sessions/"+s.SessionID+"/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}](t, w)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "up", body.Components["database"]["status"])
	assert.Equal(t, "degraded", body.Components["generation"]["status"])

	w = app.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chat_exchanges")

	w = app.do(http.MethodGet, "/api/docs/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodOptions, "/api/v1/sessions", nil, "Origin", "https://app.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
}

func jsonNumber(id uint) string {
	data, _ := json.Marshal(id)
	return string(data)
}
