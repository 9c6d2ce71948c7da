package api

import (
	"net/http"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// FraudReportController handles incident reports
type FraudReportController struct {
	reports *service.FraudReportService
}

func NewFraudReportController(reports *service.FraudReportService) *FraudReportController {
	return &FraudReportController{reports: reports}
}

// RegisterRoutes mounts /fraud-reports
func (h *FraudReportController) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	g := rg.Group("/fraud-reports")
	g.Use(optionalAuth)
	{
		g.POST("", h.Create)
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
	}
}

func (h *FraudReportController) Create(c *gin.Context) {
	var in service.FraudReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	report, err := h.reports.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *FraudReportController) List(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	filter := repository.ReportFilter{
		Status:    models.ReportStatus(c.Query("status")),
		FraudType: models.FraudType(c.Query("fraud_type")),
		RiskLevel: models.RiskLevel(c.Query("risk_level")),
		Page:      p,
	}
	reports, total, err := h.reports.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newList(reports, total, p))
}

func (h *FraudReportController) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	report, err := h.reports.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Update applies a partial change; status and assignment need the admin role
func (h *FraudReportController) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var in service.FraudReportUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	report, err := h.reports.Update(c.Request.Context(), actor(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
