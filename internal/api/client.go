package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxResponseBody bounds how much of a response is read into memory.
const maxResponseBody = 4 << 20

// SessionHook supplies the bearer token for authenticated requests and
// is notified when the backend rejects one, so the session can be
// purged in exactly one place.
type SessionHook interface {
	BearerToken() (string, bool)
	HandleUnauthorized()
}

// Client is the single HTTP wrapper all services go through. It owns
// base URL resolution, bearer token injection and the mapping from
// HTTP failures to the error taxonomy.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu      sync.RWMutex
	session SessionHook
}

// New creates a client rooted at baseURL. The /api prefix is appended
// per request, matching the backend's route layout.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// AttachSession wires the session store in after construction. The
// store needs the client for its own login calls, so the dependency is
// closed here rather than in the constructor.
func (c *Client) AttachSession(h SessionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = h
}

func (c *Client) sessionHook() SessionHook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Get performs an unauthenticated GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, false)
}

// GetAuth performs a GET with the session's bearer token.
func (c *Client) GetAuth(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, true)
}

// Post performs an unauthenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, false)
}

// PostAuth performs a POST with the session's bearer token.
func (c *Client) PostAuth(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, true)
}

// PutAuth performs a PUT with the session's bearer token.
func (c *Client) PutAuth(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out, true)
}

// DeleteAuth performs a DELETE with the session's bearer token.
func (c *Client) DeleteAuth(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	op := method + " " + path

	target := c.baseURL + "/api" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		hook := c.sessionHook()
		var token string
		var ok bool
		if hook != nil {
			token, ok = hook.BearerToken()
		}
		if !ok {
			return &AuthError{Message: "no active session"}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Request transport failure", zap.String("op", op), zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
			}
		}
		return nil
	}

	return c.mapError(op, resp.StatusCode, data, authed)
}

// mapError converts a non-2xx response into the error taxonomy. A 401
// on an authenticated call also purges the session: the persisted
// credentials are stale and every dependent component must see the
// unauthenticated state from now on.
func (c *Client) mapError(op string, status int, body []byte, authed bool) error {
	message, fields := parseErrorBody(body)

	switch status {
	case http.StatusUnauthorized:
		if authed {
			if hook := c.sessionHook(); hook != nil {
				c.logger.Info("Session rejected by backend, purging", zap.String("op", op))
				hook.HandleUnauthorized()
			}
		}
		return &AuthError{Message: message}
	case http.StatusForbidden:
		return &ForbiddenError{Message: message}
	case http.StatusNotFound:
		return &NotFoundError{Message: message}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Message: message, Fields: fields}
	default:
		c.logger.Warn("Unexpected backend response",
			zap.String("op", op),
			zap.Int("status", status),
		)
		return &NetworkError{Op: op, Err: fmt.Errorf("server returned status %d: %s", status, message)}
	}
}

// errorBody matches the backend's error envelope: detail is either a
// plain message or a list of field rejections.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func parseErrorBody(body []byte) (string, []FieldError) {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body)), nil
	}

	var message string
	if err := json.Unmarshal(envelope.Detail, &message); err == nil {
		return message, nil
	}

	var details []fieldDetail
	if err := json.Unmarshal(envelope.Detail, &details); err == nil {
		fields := make([]FieldError, 0, len(details))
		for _, d := range details {
			field := ""
			if len(d.Loc) > 0 {
				field = fmt.Sprint(d.Loc[len(d.Loc)-1])
			}
			fields = append(fields, FieldError{Field: field, Message: d.Msg})
		}
		return "validation failed", fields
	}

	return strings.TrimSpace(string(envelope.Detail)), nil
}
