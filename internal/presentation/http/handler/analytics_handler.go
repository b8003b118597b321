package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/request"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsHandler serves the owner analytics views and exports
type AnalyticsHandler struct {
	reportService *service.ReportService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(reportService *service.ReportService) *AnalyticsHandler {
	return &AnalyticsHandler{reportService: reportService}
}

func (h *AnalyticsHandler) query(c *gin.Context) (request.AnalyticsQuery, service.ReportQuery, bool) {
	var q request.AnalyticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindingError(err))
		return q, service.ReportQuery{}, false
	}
	r, err := dateRange(q.Range, enum.DateRangeLast7Days)
	if err != nil {
		response.Error(c, err)
		return q, service.ReportQuery{}, false
	}
	return q, service.ReportQuery{Range: r, Staff: q.Staff}, true
}

// Revenue returns the revenue chart
func (h *AnalyticsHandler) Revenue(c *gin.Context) {
	q, rq, ok := h.query(c)
	if !ok {
		return
	}
	g := enum.GranularityDaily
	if q.Granularity != "" {
		g = enum.Granularity(q.Granularity)
	}

	buckets, err := h.reportService.Revenue(c.Request.Context(), rq, g)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Revenue retrieved successfully", buckets)
}

// TopCustomers returns the biggest spenders
func (h *AnalyticsHandler) TopCustomers(c *gin.Context) {
	q, rq, ok := h.query(c)
	if !ok {
		return
	}

	customers, err := h.reportService.TopCustomers(c.Request.Context(), rq, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Top customers retrieved successfully", customers)
}

// PeakHours returns the hourly histogram
func (h *AnalyticsHandler) PeakHours(c *gin.Context) {
	_, rq, ok := h.query(c)
	if !ok {
		return
	}

	peak, err := h.reportService.PeakHours(c.Request.Context(), rq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Peak hours retrieved successfully", peak)
}

// Summary returns the report summary figures
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	_, rq, ok := h.query(c)
	if !ok {
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), rq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Summary retrieved successfully", summary)
}

// Export downloads the sales report as JSON or an XLSX workbook
func (h *AnalyticsHandler) Export(c *gin.Context) {
	q, rq, ok := h.query(c)
	if !ok {
		return
	}
	filename := "sales-report-" + rq.Range.String()

	if q.Format == "xlsx" {
		data, err := h.reportService.ExportXLSX(c.Request.Context(), rq)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, data)
		return
	}

	report, err := h.reportService.Export(c.Request.Context(), rq)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`.json"`)
	c.JSON(http.StatusOK, report)
}
