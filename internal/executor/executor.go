// Package executor performs the outbound HTTP call described by a
// models.ProxyRequest and captures either the response or the failure.
package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cankoe/request-tester/internal/models"
)

// DefaultTimeout bounds the whole outbound call, body read included.
const DefaultTimeout = 30 * time.Second

// Outcome is the captured result of one call. Err is set if and only if no
// response was obtained; the other fields are then zero.
type Outcome struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	Err        error
}

// Options configure an Executor.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Executor sends requests through one shared http.Client.
type Executor struct {
	client *http.Client
}

func New(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	return &Executor{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// NormalizeURL prefixes raw with http:// unless it already names http or https.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "http://" + raw
}

// Execute performs the call. The URL is normalized first, so callers that
// already normalized get the same result.
func (e *Executor) Execute(ctx context.Context, req *models.ProxyRequest) Outcome {
	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return Outcome{Err: &requestError{err: err}}
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Outcome{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Err: fmt.Errorf("reading response body: %w", err)}
	}

	return Outcome{
		StatusCode: resp.StatusCode,
		Headers:    FlattenHeaders(resp.Header),
		Body:       string(body),
	}
}

func buildRequest(ctx context.Context, req *models.ProxyRequest) (*http.Request, error) {
	target := NormalizeURL(req.URL)
	method := strings.ToLower(req.Method)

	var payload io.Reader
	switch method {
	case "get":
		if len(req.Body) > 0 {
			u, err := url.Parse(target)
			if err != nil {
				return nil, fmt.Errorf("invalid URL %q: %w", target, err)
			}
			u.RawQuery = mergeQuery(u.Query(), req.Body).Encode()
			target = u.String()
		}
	default:
		// post, put, delete and any other verb carry the body as JSON
		if len(req.Body) > 0 {
			raw, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}
			payload = bytes.NewReader(raw)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, payload)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func mergeQuery(q url.Values, params map[string]any) url.Values {
	for k, v := range params {
		switch val := v.(type) {
		case []any:
			q.Del(k)
			for _, item := range val {
				q.Add(k, queryValue(item))
			}
		default:
			q.Set(k, queryValue(val))
		}
	}
	return q
}

func queryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

// FlattenHeaders joins repeated header values with ", " and lower-cases the
// names.
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}
