package api

import (
	"context"
	"net/http"

	"github.com/cankoe/request-tester/internal/models"
	"github.com/cankoe/request-tester/internal/proxy"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// proxyRequestHandler forwards the described call. The outbound request and
// its history insert are detached from the client connection, so a caller
// that hangs up does not cancel either.
func proxyRequestHandler(svc *proxy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		var req models.ProxyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn().Err(err).Str("route", "POST /api/request").Msg("Invalid request body")
			abortWithError(c, &ApiError{Code: ErrCodeInvalidRequest, Message: "Invalid request body: " + err.Error()})
			return
		}

		res := svc.Do(context.WithoutCancel(c.Request.Context()), &req)

		if res.Outcome.Err != nil {
			statusCode, apiErr := mapErrorToStatusCode(&ApiError{Code: ErrCodeUpstreamFailed, Message: res.Outcome.Err.Error()})
			body := gin.H{"detail": apiErr.Message}
			if res.HistoryID != nil {
				body["history_id"] = *res.HistoryID
			}
			c.JSON(statusCode, body)
			return
		}

		c.JSON(http.StatusOK, res.Response())
	}
}
