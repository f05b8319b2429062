package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxResponseSize = 4 << 20 // 4MB

type Options struct {
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	// HTTPClient overrides the traced default client; tests pass httptest clients.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks JSON to the REST gateway. Calls are traced, bounded by a
// per-call timeout and guarded by a circuit breaker. Nothing is retried.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

func NewClient(baseURL string, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: opts.Timeout,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "gateway",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var he *HTTPError
			if errors.As(err, &he) {
				return !he.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type request struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   any
}

type RequestOption func(*request)

func WithQuery(q url.Values) RequestOption {
	return func(r *request) { r.query = q }
}

func WithIdempotencyKey(key string) RequestOption {
	return func(r *request) {
		if key != "" {
			r.header.Set("Idempotency-Key", key)
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// Do performs one call. A {"data": {...}} envelope around a single resource is
// unwrapped before decoding into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	req := &request{method: method, path: path, header: http.Header{}, body: body}
	for _, opt := range opts {
		opt(req)
	}
	op := method + " " + path

	payload, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &NetworkError{Op: op, Err: err}
		}
		c.log.Warn("gateway call failed", zap.String("op", op), zap.Error(err))
		return err
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapResource(payload), out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r *request) ([]byte, error) {
	op := r.method + " " + r.path
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	httpReq.Header = r.header
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:  r.method,
			Path:    r.path,
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, data),
		}
	}
	return data, nil
}
