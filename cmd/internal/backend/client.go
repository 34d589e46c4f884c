package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"studyrooms/cmd/internal/metrics"
)

// Client calls the backend API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *slog.Logger
	breaker *gobreaker.CircuitBreaker[reply]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a Client from cfg.
func New(cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.breaker = newBreaker(cfg, log)
	return c, nil
}

// reply is the decoded envelope every endpoint shares.
type reply struct {
	Status  int
	Message string
	Body    []byte
}

type envelope struct {
	Status *int   `json:"status"`
	Error  string `json:"error"`
}

// call posts in to endpoint and, on status 200, decodes the body into out.
// Non-200 statuses are returned in reply without error; callers map them.
func (c *Client) call(ctx context.Context, endpoint string, in, out any) (reply, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return reply{}, fmt.Errorf("backend %s: encode: %w", endpoint, err)
	}

	start := time.Now()
	// The out decode runs inside the breaker so a garbled 200 counts as a failure.
	r, err := c.breaker.Execute(func() (reply, error) {
		r, err := c.do(ctx, endpoint, payload)
		if err != nil || r.Status != 200 || out == nil {
			return r, err
		}
		if err := json.Unmarshal(r.Body, out); err != nil {
			return reply{}, &UnavailableError{Endpoint: endpoint, Err: fmt.Errorf("decode: %w", err)}
		}
		return r, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ObserveBackend(endpoint, "rejected", elapsed)
			return reply{}, &UnavailableError{Endpoint: endpoint, Err: err}
		}
		metrics.ObserveBackend(endpoint, "unavailable", elapsed)
		c.log.Warn("backend.call.fail",
			"endpoint", endpoint,
			"duration_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return reply{}, err
	}

	if r.Status != 200 {
		metrics.ObserveBackend(endpoint, "status", elapsed)
		c.log.Debug("backend.call.status", "endpoint", endpoint, "status", r.Status)
		return r, nil
	}

	metrics.ObserveBackend(endpoint, "ok", elapsed)
	return r, nil
}

func (c *Client) do(ctx context.Context, endpoint string, payload []byte) (reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpointURL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: errors.New("response too large")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply{}, &UnavailableError{Endpoint: endpoint, HTTPStatus: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: fmt.Errorf("decode: %w", err)}
	}
	if env.Status == nil {
		return reply{}, &UnavailableError{Endpoint: endpoint, Err: errors.New("missing status")}
	}
	return reply{Status: *env.Status, Message: env.Error, Body: body}, nil
}
