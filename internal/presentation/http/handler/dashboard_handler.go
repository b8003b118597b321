package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/request"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
	"github.com/sangkips/smartbill/pkg/apperror"
)

// DashboardHandler handles dashboard-related HTTP requests
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetStats handles getting dashboard statistics
func (h *DashboardHandler) GetStats(c *gin.Context) {
	var q request.AnalyticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindingError(err))
		return
	}
	r, err := dateRange(q.Range, enum.DateRangeToday)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.dashboardService.GetDashboardStats(c.Request.Context(), r, q.Staff)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Dashboard stats retrieved successfully", stats)
}

func dateRange(raw string, fallback enum.DateRange) (enum.DateRange, error) {
	if raw == "" {
		return fallback, nil
	}
	r, err := enum.ParseDateRange(raw)
	if err != nil {
		return "", apperror.NewFieldError("range", err.Error())
	}
	return r, nil
}
