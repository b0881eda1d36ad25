// Package gigapi is the JSON-over-HTTP client every store in the engagement
// core calls through. It owns per-request timeouts, bounded retries for
// idempotent reads, a circuit breaker, bearer-token attachment, and the
// mapping from HTTP status to error kind.
package gigapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ethgigs/gigboard/internal/config"
	"github.com/ethgigs/gigboard/pkg/apierr"
)

var ErrCircuitOpen = errors.New("gigapi circuit open")

// Client wraps an http.Client and adds retries, timeout, and circuit breaker.
type Client struct {
	base   *url.URL
	cfg    config.APIConfig
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()
}

// NewClient creates a new API client. A nil httpClient gets a default with
// the configured timeout.
func NewClient(cfg config.APIConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		base:   u,
		cfg:    cfg,
		client: httpClient,
	}
	logger.Info("gigapi: client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

// NewDefaultClient creates a client with a tuned HTTP transport.
func NewDefaultClient(cfg config.APIConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// package-level logger for pkg/gigapi; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/gigapi. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// attempt half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// Close releases resources held by the client: idle connections on the
// underlying transport when supported. Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// Get issues a GET to path and decodes the JSON response into out. GETs are
// idempotent and retried up to the configured retry count; only transport
// failures are retried, classified failures return immediately.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		err := c.do(ctx, http.MethodGet, path, "", nil, out)
		if err == nil {
			return nil
		}
		if !apierr.IsTransport(err) {
			return err
		}

		lastErr = err
		if attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return apierr.Wrap(apierr.KindTransport, "GET "+path, ctx.Err())
		case <-time.After(c.cfg.Backoff * time.Duration(attempt+1)):
		}
	}
	return lastErr
}

// Post issues a POST with an optional bearer token and JSON body. Writes are
// never retried: the caller decides whether a retry is safe.
func (c *Client) Post(ctx context.Context, path, token string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, token, in, out)
}

// Patch issues a PATCH with a bearer token and JSON body.
func (c *Client) Patch(ctx context.Context, path, token string, in, out any) error {
	return c.do(ctx, http.MethodPatch, path, token, in, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	op := method + " " + path
	if c.isCircuitOpen() {
		return apierr.Wrap(apierr.KindTransport, op, ErrCircuitOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apierr.Wrap(apierr.KindValidation, op, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return apierr.Wrap(apierr.KindTransport, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure()
		return apierr.Wrap(apierr.KindTransport, op, err)
	}
	defer resp.Body.Close()

	logger.Debug("gigapi: response",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classify(op, resp)
	}

	atomic.StoreInt32(&c.failures, 0)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.recordFailure()
		return apierr.Wrap(apierr.KindTransport, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a non-2xx response to an error kind. Only statuses that
// indicate a broken service count against the circuit breaker.
func (c *Client) classify(op string, resp *http.Response) error {
	msg := serverMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return apierr.New(apierr.KindValidation, op, msg)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apierr.New(apierr.KindAuth, op, msg)
	case resp.StatusCode == http.StatusNotFound:
		return apierr.New(apierr.KindNotFound, op, msg)
	default:
		c.recordFailure()
		return apierr.New(apierr.KindTransport, op, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, msg))
	}
}

// serverMessage extracts the backend's error message, accepting either a
// plain-text body or a JSON object with an "error" or "message" field.
func serverMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(bytes.TrimSpace(b))
}
