package api

import (
	"errors"
	"net/http"

	"fraud-advisor/backend/internal/reputation"
	apperrors "fraud-advisor/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ReputationController passes breach, IP and URL lookups through to the providers
type ReputationController struct {
	reputation *reputation.Service
}

func NewReputationController(svc *reputation.Service) *ReputationController {
	return &ReputationController{reputation: svc}
}

func (h *ReputationController) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	g := rg.Group("/reputation")
	g.Use(optionalAuth)
	{
		g.GET("/email/:email", h.Email)
		g.GET("/ip/:ip", h.IP)
		g.POST("/url", h.URL)
	}
}

func (h *ReputationController) Email(c *gin.Context) {
	breaches, err := h.reputation.BreachedAccount(c.Request.Context(), c.Param("email"))
	if err != nil {
		reputationFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":    c.Param("email"),
		"breached": len(breaches) > 0,
		"breaches": breaches,
	})
}

func (h *ReputationController) IP(c *gin.Context) {
	report, err := h.reputation.CheckIP(c.Request.Context(), c.Param("ip"))
	if err != nil {
		reputationFail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *ReputationController) URL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required")
		return
	}
	report, err := h.reputation.CheckURL(c.Request.Context(), req.URL)
	if err != nil {
		reputationFail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func reputationFail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, reputation.ErrInvalidInput):
		appErr = apperrors.NewBadRequestError("VALIDATION_ERROR", err.Error())
	case errors.Is(err, reputation.ErrNotConfigured):
		appErr = apperrors.NewServiceUnavailableError("REPUTATION_UNAVAILABLE", "This lookup is not configured")
	case errors.Is(err, reputation.ErrUpstream):
		appErr = apperrors.NewError(http.StatusBadGateway, "REPUTATION_UPSTREAM_ERROR", "The reputation provider failed to answer").WithCause(err)
	default:
		appErr = ServiceError(err)
	}
	_ = c.Error(appErr)
	c.Abort()
}
