package http

import (
	"errors"

	"classifier_server/pkg/apperr"
	"classifier_server/pkg/logger"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserID safely extracts user_id from fiber context.
// Returns error if not authenticated.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDVal := c.Locals("user_id")
	if userIDVal == nil {
		return uuid.Nil, ErrUnauthorized
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	return userID, nil
}

// AppErrorResponse maps an error from the service layer onto the standard
// envelope, preserving its code and status when it is an AppError.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	return response.Error(c, appErr.Status, appErr.Code, appErr.Message)
}

// InternalErrorResponse returns a safe 500 without exposing internal details.
// The error is logged with context but only a generic message reaches the
// client.
func InternalErrorResponse(c *fiber.Ctx, err error, operation string) error {
	logger.WithError(err).WithField("operation", operation).Error("internal error")
	return response.Error(c, 500, apperr.CodeInternalError, operation+" failed")
}

// ParseIDParam parses a numeric path parameter.
func ParseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return int64(id), nil
}
