package models

import "time"

// HistoryRecord is one attempted proxied call and its outcome.
// StatusCode 0 means the call failed before a response was obtained.
type HistoryRecord struct {
	ID              int64     `bson:"_id" json:"id"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
	Method          string    `bson:"method" json:"method"`
	URL             string    `bson:"url" json:"url"`
	RequestHeaders  *string   `bson:"headers,omitempty" json:"headers"`
	RequestBody     *string   `bson:"body,omitempty" json:"body"`
	StatusCode      int       `bson:"status_code" json:"status_code"`
	ResponseHeaders *string   `bson:"response_headers,omitempty" json:"response_headers"`
	ResponseBody    *string   `bson:"response_body,omitempty" json:"response_body"`
	Error           *string   `bson:"error,omitempty" json:"error"`
	DurationMs      int64     `bson:"duration_ms" json:"duration_ms"`
}

// Failed reports whether the call never produced a response.
func (r *HistoryRecord) Failed() bool {
	return r.Error != nil
}
