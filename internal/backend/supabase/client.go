// Package supabase implements the backend collaborator on top of a hosted
// Supabase project: GoTrue for auth and PostgREST for tables.
package supabase

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
	"time"

	"github.com/suanfamama/atelier/internal/backend"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	authPrefix     = "/auth/v1"
	restPrefix     = "/rest/v1"
)

// Config holds Supabase client configuration.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
	// RateLimit caps outgoing requests per second. Zero disables the limiter.
	RateLimit float64
	Burst     int
}

// Client talks to GoTrue and PostgREST.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ backend.Client = (*Client)(nil)

// NewClient creates a new Supabase client.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("supabase: url is required")
	}
	if config.AnonKey == "" {
		return nil, errors.New("supabase: anon key is required")
	}

	base, err := url.Parse(strings.TrimRight(config.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: parse url: %w", err)
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	slog.Info("supabase client configured",
		"url", base.String(),
		"timeout", config.Timeout,
		"rate_limit", config.RateLimit,
	)

	return &Client{
		baseURL:    base,
		anonKey:    config.AnonKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// Ping checks the GoTrue health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: authPrefix + "/health"})
	if err != nil {
		return err
	}
	return drain(resp)
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	bearer      string
	headers     map[string]string
	allowStatus []int
}

// do sends the request and returns the response when its status is 2xx or
// listed in allowStatus. Any other status is turned into an *APIError.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	u := *c.baseURL
	u.Path += r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	bearer := r.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	for _, s := range r.allowStatus {
		if resp.StatusCode == s {
			return resp, nil
		}
	}

	defer func() { _ = resp.Body.Close() }()
	return nil, parseError(resp)
}

// decode reads a JSON body into dest and closes it.
func decode(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
