// Package proxy runs a caller-described request through the executor and
// records exactly one history entry per attempt, whatever the outcome.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cankoe/request-tester/internal/executor"
	"github.com/cankoe/request-tester/internal/history"
	"github.com/cankoe/request-tester/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Executor performs the outbound call.
type Executor interface {
	Execute(ctx context.Context, req *models.ProxyRequest) executor.Outcome
}

// Result is the outcome of one proxied call together with whether it was
// logged. HistoryID is nil exactly when LogErr is set.
type Result struct {
	Outcome   executor.Outcome
	Record    models.HistoryRecord
	HistoryID *int64
	LogErr    error
}

// Logged reports whether the history insert succeeded.
func (r *Result) Logged() bool {
	return r.HistoryID != nil
}

// Response builds the caller-facing payload for a successful call.
func (r *Result) Response() models.ProxyResponse {
	return models.ProxyResponse{
		StatusCode: r.Outcome.StatusCode,
		Headers:    r.Outcome.Headers,
		Content:    r.Outcome.Body,
		HistoryID:  r.HistoryID,
	}
}

type Service struct {
	exec  Executor
	store history.Store
}

func NewService(exec Executor, store history.Store) *Service {
	return &Service{exec: exec, store: store}
}

// Do executes req and appends its history record. A failed insert never
// turns into an error here; it is reported through Result.LogErr.
func (s *Service) Do(ctx context.Context, req *models.ProxyRequest) *Result {
	resolved := *req
	resolved.URL = executor.NormalizeURL(req.URL)

	start := time.Now()
	outcome := s.exec.Execute(ctx, &resolved)
	elapsed := time.Since(start).Milliseconds()

	rec, err := buildRecord(&resolved, outcome, elapsed)
	res := &Result{Outcome: outcome}
	if err == nil {
		var id int64
		id, err = s.store.Insert(ctx, &rec)
		if err == nil {
			res.HistoryID = &id
		}
	}
	res.Record = rec
	if err != nil {
		res.LogErr = err
		log.Error().Err(err).Str("method", rec.Method).Str("url", rec.URL).
			Msg("Failed to record request history")
	}

	var event *zerolog.Event
	if outcome.Err != nil {
		event = log.Warn().Err(outcome.Err).Str("error_kind", string(executor.Classify(outcome.Err)))
	} else {
		event = log.Info().Int("status_code", outcome.StatusCode).
			Str("size", humanize.Bytes(uint64(len(outcome.Body))))
	}
	if res.HistoryID != nil {
		event = event.Int64("history_id", *res.HistoryID)
	}
	event.Str("method", rec.Method).Str("url", rec.URL).Int64("duration_ms", elapsed).
		Msg("Proxied request finished")

	return res
}

func buildRecord(req *models.ProxyRequest, outcome executor.Outcome, elapsed int64) (models.HistoryRecord, error) {
	rec := models.HistoryRecord{
		Method:     strings.ToUpper(req.Method),
		URL:        req.URL,
		DurationMs: elapsed,
	}

	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	encoded, err := encodeJSON(headers)
	if err != nil {
		return rec, fmt.Errorf("encoding request headers: %w", err)
	}
	rec.RequestHeaders = &encoded

	if len(req.Body) > 0 {
		encoded, err := encodeJSON(req.Body)
		if err != nil {
			return rec, fmt.Errorf("encoding request body: %w", err)
		}
		rec.RequestBody = &encoded
	}

	if outcome.Err != nil {
		msg := outcome.Err.Error()
		rec.Error = &msg
		return rec, nil
	}

	rec.StatusCode = outcome.StatusCode
	respHeaders, err := encodeJSON(outcome.Headers)
	if err != nil {
		return rec, fmt.Errorf("encoding response headers: %w", err)
	}
	rec.ResponseHeaders = &respHeaders
	body := outcome.Body
	rec.ResponseBody = &body
	return rec, nil
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
