package api

import (
	"net/http"

	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AdvisorController exposes the human advisor roster
type AdvisorController struct {
	advisors *service.AdvisorService
}

func NewAdvisorController(advisors *service.AdvisorService) *AdvisorController {
	return &AdvisorController{advisors: advisors}
}

// RegisterRoutes mounts /advisors. Writes require an admin token.
func (h *AdvisorController) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	g := rg.Group("/advisors")
	g.Use(optionalAuth)
	{
		g.GET("", h.List)
		g.GET("/available", h.ListAvailable)
		g.GET("/:id", h.Get)

		admin := g.Group("", middleware.RequireRole(jwt.RoleAdmin))
		admin.POST("", h.Create)
		admin.PUT("/:id/availability", h.SetAvailability)
	}
}

func (h *AdvisorController) List(c *gin.Context) {
	h.list(c, false)
}

func (h *AdvisorController) ListAvailable(c *gin.Context) {
	h.list(c, true)
}

func (h *AdvisorController) list(c *gin.Context, availableOnly bool) {
	advisors, err := h.advisors.List(c.Request.Context(), availableOnly)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": advisors, "total": len(advisors)})
}

func (h *AdvisorController) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	advisor, err := h.advisors.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, advisor)
}

func (h *AdvisorController) Create(c *gin.Context) {
	var in service.CreateAdvisorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	advisor, err := h.advisors.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, advisor)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

func (h *AdvisorController) SetAvailability(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "is_available is required")
		return
	}
	advisor, err := h.advisors.SetAvailability(c.Request.Context(), id, *req.IsAvailable)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, advisor)
}
