// Package transport fetches from the activity source and classifies every
// failure as offline, timeout, http or parse.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/pkg/logger"
)

// Activity source endpoints
const (
	PathHealth         = "/health"
	PathActivity       = "/api/activity"
	PathEntries        = "/entries"
	PathWorkspaces     = "/api/workspaces"
	PathFileContents   = "/api/file-contents"
	PathContextChanges = "/api/analytics/context/changes"
	PathGit            = "/raw-data/git"
	PathShareCreate    = "/api/share/create"
)

const maxRetries = 1

// Options controls a single request.
type Options struct {
	// Timeout is the per-attempt deadline; zero uses the transport default.
	Timeout time.Duration
	// Retries is capped at one and applies to offline and timeout failures only.
	Retries int
	// Silent downgrades expected offline failures to debug logs.
	Silent bool
}

// Transport is the read side of the activity source plus the share endpoint.
type Transport interface {
	Get(ctx context.Context, path string, opts Options) ([]byte, error)
	Post(ctx context.Context, path string, body any, opts Options) ([]byte, error)
}

// Config holds what HTTPTransport needs from the client configuration.
type Config struct {
	BaseURL        string
	DefaultTimeout time.Duration
	Spacing        time.Duration
}

type HTTPTransport struct {
	baseURL        string
	defaultTimeout time.Duration
	client         *fasthttp.Client
	limiter        *rate.Limiter
	metrics        *metrics.Metrics
	logger         logger.Logger
}

// NewHTTPTransport creates a transport whose requests are spaced at least
// cfg.Spacing apart.
func NewHTTPTransport(cfg Config, m *metrics.Metrics, logger logger.Logger) *HTTPTransport {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.Spacing > 0 {
		limit = rate.Every(cfg.Spacing)
	}
	return &HTTPTransport{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		defaultTimeout: cfg.DefaultTimeout,
		client: &fasthttp.Client{
			MaxIdleConnDuration: 90 * time.Second,
			MaxConnsPerHost:     16,
		},
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		logger:  logger,
	}
}

func (t *HTTPTransport) Get(ctx context.Context, path string, opts Options) ([]byte, error) {
	return t.do(ctx, fasthttp.MethodGet, path, nil, opts)
}

func (t *HTTPTransport) Post(ctx context.Context, path string, body any, opts Options) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Parse(fasthttp.MethodPost+" "+endpoint(path), err)
	}
	return t.do(ctx, fasthttp.MethodPost, path, payload, opts)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body []byte, opts Options) ([]byte, error) {
	ep := endpoint(path)
	op := method + " " + ep
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	retries := min(max(opts.Retries, 0), maxRetries)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			lastErr = classifyContext(op, ctx, err)
			break
		}
		data, err := t.once(ctx, method, path, body, timeout, op)
		if err == nil {
			t.metrics.TransportRequest(ctx, ep, "ok")
			return data, nil
		}
		lastErr = err
		if !errs.Retryable(err) || ctx.Err() != nil {
			break
		}
		t.logger.Debug("transport: %s attempt %d failed, retrying: %v", op, attempt+1, err)
	}

	t.metrics.TransportRequest(ctx, ep, string(errs.KindOf(lastErr)))
	if opts.Silent && errs.Is(lastErr, errs.KindOffline) {
		t.logger.Debug("transport: %s offline: %v", op, lastErr)
	} else {
		t.logger.Warn("transport: %s failed: %v", op, lastErr)
	}
	return nil, lastErr
}

type reply struct {
	status int
	body   []byte
	err    error
}

func (t *HTTPTransport) once(ctx context.Context, method, path string, body []byte, timeout time.Duration, op string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyContext(op, ctx, err)
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	ch := make(chan reply, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer func() {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()

		req.SetRequestURI(t.baseURL + path)
		req.Header.SetMethod(method)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(body)
		}
		err := t.client.DoDeadline(req, resp, deadline)
		r := reply{err: err}
		if err == nil {
			r.status = resp.StatusCode()
			r.body = append([]byte(nil), resp.Body()...)
		}
		ch <- r
	}()

	select {
	case <-ctx.Done():
		return nil, classifyContext(op, ctx, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, classify(op, r.err)
		}
		if r.status < 200 || r.status > 299 {
			return nil, errs.HTTP(op, r.status, string(r.body))
		}
		return r.body, nil
	}
}

// classify maps a client error to offline or timeout.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, fasthttp.ErrTimeout), errors.Is(err, fasthttp.ErrDialTimeout):
		return errs.Timeout(op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Timeout(op, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return errs.Timeout(op, err)
	default:
		// refused connections, DNS failures, resets and aborted requests
		return errs.Offline(op, err)
	}
}

func classifyContext(op string, ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.Timeout(op, err)
	}
	return errs.Offline(op, err)
}

// endpoint strips the query so metrics labels stay bounded.
func endpoint(path string) string {
	if u, err := url.Parse(path); err == nil {
		return u.Path
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// GetJSON fetches path and decodes the body into T.
func GetJSON[T any](ctx context.Context, t Transport, path string, opts Options) (T, error) {
	var v T
	data, err := t.Get(ctx, path, opts)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errs.Parse(fasthttp.MethodGet+" "+endpoint(path), err)
	}
	return v, nil
}
