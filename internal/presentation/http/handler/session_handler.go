package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/request"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
	"github.com/sangkips/smartbill/pkg/apperror"
)

// SessionHandler handles auth setup and login
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// SetupStatus reports whether the device still needs an owner
func (h *SessionHandler) SetupStatus(c *gin.Context) {
	required, err := h.sessionService.SetupRequired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Setup status retrieved", gin.H{"setup_required": required})
}

// Setup stores the first owner and staff credentials
func (h *SessionHandler) Setup(c *gin.Context) {
	h.setup(c, false)
}

// ResetSetup replaces the credentials; owner only
func (h *SessionHandler) ResetSetup(c *gin.Context) {
	h.setup(c, true)
}

func (h *SessionHandler) setup(c *gin.Context, overwrite bool) {
	var req request.SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	err := h.sessionService.Setup(c.Request.Context(), service.SetupInput{
		OwnerEmail:    req.OwnerEmail,
		OwnerPassword: req.OwnerPassword,
		StaffPIN:      req.StaffPIN,
	}, overwrite)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			response.Error(c, apperror.NewAppError(apperror.ErrConflict.Code, "Auth setup already exists"))
			return
		}
		response.Error(c, err)
		return
	}

	if overwrite {
		response.OK(c, "Auth setup updated", nil)
		return
	}
	response.Created(c, "Auth setup completed", nil)
}

// LoginOwner handles owner email/password login
func (h *SessionHandler) LoginOwner(c *gin.Context) {
	var req request.OwnerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	output, err := h.sessionService.LoginOwner(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Login successful", output)
}

// LoginStaff handles staff PIN login
func (h *SessionHandler) LoginStaff(c *gin.Context) {
	var req request.StaffLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	output, err := h.sessionService.LoginStaff(c.Request.Context(), req.StaffName, req.PIN)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Login successful", output)
}

// Me returns the current session
func (h *SessionHandler) Me(c *gin.Context) {
	session := GetSession(c)
	if session == nil {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	response.OK(c, "Session retrieved", session)
}
