// Package api is the typed client for the storefront REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("storefront/api")

// TokenSource supplies the persisted bearer token, or "" when there is none.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.requests, _ = meter.Int64Counter("storefront.api.requests",
		metric.WithDescription("Backend API calls by route and outcome"))
	c.duration, _ = meter.Float64Histogram("storefront.api.duration",
		metric.WithDescription("Backend API call latency"),
		metric.WithUnit("s"))

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the source consulted when preparing requests.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

// OnUnauthorized registers the hook run whenever an authenticated request
// comes back 401. The session store uses it to force a logout.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any

	contentType string
	raw         io.Reader

	// public requests never carry the bearer token.
	public bool
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	start := time.Now()
	status, err := c.send(ctx, r, out)

	outcome := "ok"
	if err != nil {
		outcome = kindLabel(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.route),
		attribute.Int("http.status_code", status),
		attribute.String("outcome", outcome),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	c.logger.Debug("api request", "method", r.method, "path", r.path, "status", status, "duration", time.Since(start))
	return err
}

func (c *Client) send(ctx context.Context, r request, out any) (int, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	body := r.raw
	contentType := r.contentType
	if body == nil && r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("marshal %s %s: %w", r.method, r.route, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("create %s %s: %w", r.method, r.route, err)
	}
	authenticated := c.prepare(req, contentType, r.public)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &Error{Kind: ErrNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, c.failure(resp, authenticated)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &Error{Kind: ErrServer, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return resp.StatusCode, nil
}

// prepare attaches headers shared by every call and reports whether a bearer token was sent.
func (c *Client) prepare(req *http.Request, contentType string, public bool) bool {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if public {
		return false
	}

	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()

	if tokens == nil {
		return false
	}
	token := tokens.Token()
	if token == "" {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return true
}

func (c *Client) failure(resp *http.Response, authenticated bool) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(data))
	}

	kind := classify(resp.StatusCode, eb.Error)
	if errors.Is(kind, ErrAuth) && authenticated {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			c.logger.Warn("session rejected by backend", "status", resp.StatusCode)
			hook()
		}
	}

	return &Error{Kind: kind, Status: resp.StatusCode, Message: eb.Error}
}

func kindLabel(err error) string {
	for _, k := range []error{ErrNetwork, ErrAuth, ErrForbidden, ErrNotFound, ErrConflict, ErrOutOfStock, ErrBadRequest, ErrServer} {
		if errors.Is(err, k) {
			return strings.ReplaceAll(k.Error(), " ", "_")
		}
	}
	return "error"
}

func itemPath(prefix, id string, suffix ...string) string {
	p := prefix + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
