package api

import (
	"errors"
	"net/http"

	"github.com/cankoe/request-tester/internal/history"

	"github.com/gin-gonic/gin"
)

const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeDatabaseError    = "database_error"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeUpstreamFailed   = "upstream_failed"
)

type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ApiError) Error() string {
	return e.Message
}

func mapErrorToStatusCode(err error) (int, *ApiError) {
	if errors.Is(err, history.ErrNotFound) {
		return http.StatusNotFound, &ApiError{Code: ErrCodeNotFound, Message: "History item not found"}
	}

	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeInvalidRequest, ErrCodeUpstreamFailed:
			return http.StatusBadRequest, apiErr
		case ErrCodeNotFound:
			return http.StatusNotFound, apiErr
		case ErrCodeValidationFailed:
			return http.StatusUnprocessableEntity, apiErr
		case ErrCodeDatabaseError:
			return http.StatusInternalServerError, apiErr
		}
	}

	// Default unknown error
	return http.StatusInternalServerError, &ApiError{
		Code:    "internal_error",
		Message: "An unexpected error occurred",
	}
}

// abortWithError writes the {"detail": ...} envelope every endpoint uses for failures.
func abortWithError(c *gin.Context, err error) {
	statusCode, apiErr := mapErrorToStatusCode(err)
	c.AbortWithStatusJSON(statusCode, gin.H{"detail": apiErr.Message})
}
