package models

// ProxyRequest is the caller's description of the call to forward.
type ProxyRequest struct {
	Method  string            `json:"method" binding:"required"`
	URL     string            `json:"url" binding:"required"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

// ProxyResponse is returned to the caller when the target answered.
type ProxyResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Content    string            `json:"content"`
	HistoryID  *int64            `json:"history_id,omitempty"`
}
