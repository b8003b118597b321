package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/presentation/http/middleware"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
)

// GetSession extracts the authenticated session from the Gin context
func GetSession(c *gin.Context) *entity.Session {
	val, exists := c.Get(middleware.SessionKey)
	if !exists {
		return nil
	}
	session, _ := val.(*entity.Session)
	return session
}

// GetSessionID extracts the session ID from the Gin context
func GetSessionID(c *gin.Context) string {
	return c.GetString(middleware.SessionIDKey)
}

// GetRole extracts the session role from the Gin context
func GetRole(c *gin.Context) enum.Role {
	return enum.Role(c.GetString(middleware.RoleKey))
}

// GetStaffID extracts the staff member the session belongs to
func GetStaffID(c *gin.Context) string {
	return c.GetString(middleware.StaffIDKey)
}

// IsOwner checks if the session has the owner role
func IsOwner(c *gin.Context) bool {
	return GetRole(c) == enum.RoleOwner
}

// bindingError turns gin binding failures into a validation AppError
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewBadRequestError("Invalid request body")
	}
	fieldErrors := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, apperror.FieldError{
			Field:   fe.Field(),
			Message: "failed on the '" + fe.Tag() + "' rule",
		})
	}
	return apperror.NewValidationError(fieldErrors)
}

func parseDate(field, raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, apperror.NewFieldError(field, "expected a YYYY-MM-DD date")
	}
	return &t, nil
}

func parseAmount(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperror.NewFieldError(field, "expected a number")
	}
	return &d, nil
}

func parseLocalID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("localId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequestError("Invalid bill ID")
	}
	return id, nil
}
