package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/request"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
)

// SyncHandler exposes the reconciler state and manual triggers
type SyncHandler struct {
	syncService *service.SyncService
	monitor     *service.ConnectivityMonitor
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *service.SyncService, monitor *service.ConnectivityMonitor) *SyncHandler {
	return &SyncHandler{syncService: syncService, monitor: monitor}
}

// Status returns the sync state with the connectivity view
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.syncService.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sync status retrieved", gin.H{
		"sync":         status,
		"connectivity": h.monitor.State(),
	})
}

// Trigger drains the offline queue now
func (h *SyncHandler) Trigger(c *gin.Context) {
	if !h.monitor.Online() {
		response.ErrorWithCode(c, http.StatusServiceUnavailable, "Device is offline; bills stay queued until connectivity returns")
		return
	}

	report, err := h.syncService.Drain(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if report.Coalesced {
		response.Accepted(c, "A sync is already running", report)
		return
	}
	response.OK(c, "Sync completed", report)
}

// SetConnectivity overrides the connectivity probe
func (h *SyncHandler) SetConnectivity(c *gin.Context) {
	var req request.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}
	h.monitor.SetOverride(c.Request.Context(), req.Online)
	response.OK(c, "Connectivity updated", h.monitor.State())
}
