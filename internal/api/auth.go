package api

import (
	"net/http"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts /auth. requireAuth guards /auth/me.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := rg.Group("/auth")
	{
		g.POST("/signup", h.Signup)
		g.POST("/login", h.Login)
		g.GET("/me", requireAuth, h.Me)
	}
}

// Signup handles user registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for signup", "error", err.Error())
		badRequest(c, "A valid email and a password of at least 8 characters are required")
		return
	}

	user, token, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user,
		"token": token,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for login", "error", err.Error())
		badRequest(c, "Invalid request format")
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromGin(c).Info("User logged in successfully",
		"userID", user.ID,
		"role", user.Role,
	)

	c.JSON(http.StatusOK, gin.H{
		"user":  user,
		"token": token,
	})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		fail(c, service.ErrForbidden)
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
