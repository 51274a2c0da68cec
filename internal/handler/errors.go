package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// statusFor maps an error onto its HTTP status and response code
func statusFor(err error) (int, apperror.Code) {
	if errors.Is(err, service.ErrReportStorageDisabled) {
		return http.StatusServiceUnavailable, "STORAGE_DISABLED"
	}

	code := apperror.CodeOf(err)
	switch code {
	case apperror.CodeValidation:
		return http.StatusBadRequest, code
	case apperror.CodeNotFound:
		return http.StatusNotFound, code
	case apperror.CodeConflict, apperror.CodeInvalidState:
		return http.StatusConflict, code
	case apperror.CodeDelivery:
		return http.StatusBadGateway, code
	}
	return http.StatusInternalServerError, apperror.CodeInternal
}

// respondError writes err as an ErrorResponse. Server errors are logged with
// the failed action; client errors only at debug level.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error, fields ...zap.Field) {
	status, code := statusFor(err)

	fields = append(fields, zap.Error(err), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error("failed to "+action, fields...)
		_ = c.Error(err)
	} else {
		logger.Debug("request rejected: "+action, fields...)
	}

	resp := ErrorResponse{
		Code:    string(code),
		Message: apperror.MessageOf(err),
	}
	switch {
	case errors.Is(err, service.ErrReportStorageDisabled):
		resp.Message = err.Error()
	case status == http.StatusInternalServerError:
		resp.Message = "Failed to " + action
		resp.Details = stringPtr(err.Error())
	}

	c.JSON(status, resp)
}

// respondBindError rejects a body or query that could not be bound
func respondBindError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(apperror.CodeValidation),
		Message: "Invalid request",
		Details: stringPtr(err.Error()),
	})
}
