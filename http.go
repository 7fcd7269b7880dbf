package outfit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// request describes one backend call.
type request struct {
	method   string
	path     string
	endpoint string // metrics label

	jsonBody    any
	body        io.Reader
	contentType string

	// token overrides the session token. Anonymous requests never carry
	// one and never touch the session.
	token     string
	anonymous bool

	// authFlow marks login and register: every failure is an AuthError.
	authFlow bool
	// fallback is the error message used when the body carries none.
	fallback string
}

// do performs r and passes a 2xx response to handle. handle may be nil.
//
// 401 clears the session if it still holds the token that was sent and
// fails with *AuthError. Other non-2xx statuses fail with *RequestError.
// Nothing is retried.
func (c *Client) do(ctx context.Context, r request, handle func(*http.Response) error) error {
	if !r.anonymous && r.token == "" {
		r.token = c.Session.Token()
	}

	body := r.body
	contentType := r.contentType
	if r.jsonBody != nil {
		raw, err := json.Marshal(r.jsonBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = contentTypeJSON
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	reqID := uuid.NewString()
	req.Header.Set(headerUserAgent, c.userAgent)
	req.Header.Set(headerRequestID, reqID)
	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	if !r.anonymous && r.token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.observe(r.endpoint, 0, duration)
		c.logger.Debug("request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.Duration("duration", duration),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		return &TransportError{Op: r.method + " " + r.path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.metrics.observe(r.endpoint, resp.StatusCode, duration)
	c.logger.Debug("request",
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.String("request_id", reqID),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.statusError(ctx, r, resp.StatusCode, errBody)
	}

	if handle == nil {
		return nil
	}
	return handle(resp)
}

func (c *Client) statusError(ctx context.Context, r request, status int, body []byte) error {
	if r.authFlow {
		return &AuthError{StatusCode: status, Message: errorMessage(body, r.fallback)}
	}
	if status == http.StatusUnauthorized {
		if !r.anonymous {
			c.handleUnauthorized(ctx, r.token)
		}
		return &AuthError{StatusCode: status, Message: errorMessage(body, "session expired")}
	}
	return &RequestError{
		StatusCode: status,
		Method:     r.method,
		Path:       r.path,
		Message:    errorMessage(body, r.fallback),
	}
}

// handleUnauthorized clears the session held under token and fires the
// hook once per actual clear. A request sent without a token fires the
// hook as well since the caller needs to log in either way.
func (c *Client) handleUnauthorized(ctx context.Context, token string) {
	fire := token == ""
	if token != "" && c.Session.InvalidateIfCurrent(ctx, token) {
		fire = true
		c.metrics.sessionInvalidated()
	}
	if fire && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// doJSON performs r and decodes a JSON success body into out.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	return c.do(ctx, r, func(resp *http.Response) error {
		return decodeJSON(r.method+" "+r.path, resp.Body, out)
	})
}

func decodeJSON(op string, body io.Reader, out any) error {
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
