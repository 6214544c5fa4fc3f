package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 512
)

// Options configures a controller client.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	// Verify enables TLS certificate verification.
	Verify bool
	// RequestTimeout bounds each HTTP exchange. Defaults to 30s.
	RequestTimeout time.Duration
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	// StrictResponses rejects list replies that lack the response envelope.
	StrictResponses bool
	Logger    ports.Logger
	Metrics   ports.MetricsCollector
}

// Client is the HTTPS/JSON gateway to a Catalyst Center controller.
type Client struct {
	baseURL  string
	username string
	password string

	http    *http.Client
	limiter *rate.Limiter
	strict  bool

	tokenMu sync.RWMutex
	token   string
	refresh singleflight.Group

	logger  ports.Logger
	metrics ports.MetricsCollector
}

var _ ports.Gateway = (*Client)(nil)

// New builds a client. No network call is made until the first request.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, reconcile.NewValidationError("controller host is required", nil)
	}
	if opts.Port == 0 {
		opts.Port = 443
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	base := "https://" + opts.Host
	if opts.Port != 443 {
		base = fmt.Sprintf("https://%s:%d", opts.Host, opts.Port)
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.Verify}, //nolint:gosec // operator-controlled toggle
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	return &Client{
		baseURL:  base,
		username: opts.Username,
		password: opts.Password,
		http:     &http.Client{Transport: transport, Timeout: opts.RequestTimeout},
		limiter:  limiter,
		strict:   opts.StrictResponses,
		logger:   opts.Logger,
		metrics:  metrics,
	}, nil
}

// HTTPClient exposes the underlying client so callers can install transports.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the controller root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	op     reconcile.Operation
	method string
	path   string
	query  url.Values
	body   any
}

// statusError is an unexpected HTTP status.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// do performs an authenticated exchange and decodes the body into out.
// A 401 triggers one token refresh and a single replay.
func (c *Client) do(ctx context.Context, req request, out any) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}

	status, body, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.invalidate(token)
		if token, err = c.currentToken(ctx); err != nil {
			return err
		}
		if status, body, err = c.send(ctx, req, token); err != nil {
			return err
		}
	}

	switch {
	case status == http.StatusNotFound:
		return errNotFound
	case status < 200 || status > 299:
		return reconcile.NewTransportError(string(req.op), &statusError{Status: status, Body: truncate(body)})
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decode(body, out); err != nil {
		return reconcile.NewTransportError(string(req.op), fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, contextError(ctx, req.op, err)
		}
	}

	var payload io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, reconcile.NewError(reconcile.ErrCodeInternal, "encode request", err, nil)
		}
		payload = bytes.NewReader(encoded)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, payload)
	if err != nil {
		return 0, nil, reconcile.NewTransportError(string(req.op), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set(authHeader, token)
	}

	start := time.Now()
	c.metrics.IncCounter(ctx, ports.MetricAPICallsTotal, map[string]string{"operation": string(req.op)})
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, contextError(ctx, req.op, ctx.Err())
		}
		return 0, nil, reconcile.NewTransportError(string(req.op), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, reconcile.NewTransportError(string(req.op), fmt.Errorf("read response: %w", err))
	}

	c.debug(ctx, "controller call",
		"operation", string(req.op),
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, body, nil
}

func (c *Client) debug(ctx context.Context, msg string, fields ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(ctx, msg, fields...)
	}
}

func decode(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

func contextError(ctx context.Context, op reconcile.Operation, err error) error {
	code := reconcile.CodeOf(ctx.Err())
	if code == reconcile.ErrCodeInternal || code == "" {
		code = reconcile.ErrCodeCancelled
	}
	return reconcile.NewError(code, string(op)+" interrupted", err, map[string]interface{}{"operation": string(op)})
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
