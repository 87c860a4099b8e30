package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cankoe/request-tester/internal/history"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

func listHistoryHandler(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := getPaginationParams(c)

		items, err := store.List(c.Request.Context(), limit, offset)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("route", "GET /api/history").Msg("Failed to list history")
			abortWithError(c, &ApiError{Code: ErrCodeDatabaseError, Message: "Failed to fetch history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
	}
}

func getHistoryHandler(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseHistoryID(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		rec, err := store.Get(c.Request.Context(), id)
		if err != nil {
			logStoreError(c, err, "GET /api/history/:id", id)
			abortWithError(c, storeError(err, "Failed to fetch history item"))
			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

func deleteHistoryHandler(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseHistoryID(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		if err := store.Delete(c.Request.Context(), id); err != nil {
			logStoreError(c, err, "DELETE /api/history/:id", id)
			abortWithError(c, storeError(err, "Failed to delete history item"))
			return
		}

		zerolog.Ctx(c.Request.Context()).Info().Int64("history_id", id).Msg("History item deleted")
		c.JSON(http.StatusOK, gin.H{"message": "History item deleted"})
	}
}

func clearHistoryHandler(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.DeleteAll(c.Request.Context()); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("route", "DELETE /api/history").Msg("Failed to clear history")
			abortWithError(c, &ApiError{Code: ErrCodeDatabaseError, Message: "Failed to clear history"})
			return
		}

		zerolog.Ctx(c.Request.Context()).Info().Msg("History cleared")
		c.JSON(http.StatusOK, gin.H{"message": "History cleared"})
	}
}

func healthHandler(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("History store ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// getPaginationParams falls back to the defaults for missing, malformed or
// negative values. No upper bound is applied to limit.
func getPaginationParams(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = defaultOffset
	}

	return limit, offset
}

func parseHistoryID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, &ApiError{Code: ErrCodeValidationFailed, Message: "History id must be an integer"}
	}
	return id, nil
}

// storeError keeps ErrNotFound recognizable and hides everything else
// behind a database error.
func storeError(err error, message string) error {
	if errors.Is(err, history.ErrNotFound) {
		return err
	}
	return &ApiError{Code: ErrCodeDatabaseError, Message: message}
}

func logStoreError(c *gin.Context, err error, route string, id int64) {
	logger := zerolog.Ctx(c.Request.Context())
	if errors.Is(err, history.ErrNotFound) {
		logger.Warn().Str("route", route).Int64("history_id", id).Msg("History item not found")
		return
	}
	logger.Error().Err(err).Str("route", route).Int64("history_id", id).Msg("History store error")
}
