package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gregjones/httpcache"
	"github.com/krshsl/staffline/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxResponseBytes = 4 << 20

// ClientOptions tune every partner client built by a Registry.
type ClientOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	CacheResponses bool
	// Cache backs CacheResponses. Nil gives each client its own memory cache.
	Cache httpcache.Cache
	// CacheScope partitions Cache so clients with different credentials
	// never read each other's responses.
	CacheScope     string
	InitialBackoff time.Duration
	// Transport overrides the base round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	return o
}

// APIError is a non-2xx answer from a partner API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a JSON client for one partner API. Requests are authorized by
// an oauth2 token source, retried with exponential backoff, and timed.
type Client struct {
	provider string
	baseURL  string
	headers  http.Header
	http     *http.Client
	opts     ClientOptions
}

func NewClient(provider, baseURL string, ts oauth2.TokenSource, opts ClientOptions) *Client {
	opts = opts.withDefaults()

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.CacheResponses {
		cache := opts.Cache
		if cache == nil {
			cache = httpcache.NewMemoryCache()
		}
		if opts.CacheScope != "" {
			cache = scopedCache{prefix: opts.CacheScope + " ", Cache: cache}
		}
		cached := httpcache.NewTransport(cache)
		cached.Transport = base
		base = cached
	}

	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headers:  http.Header{},
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		},
		opts: opts,
	}
}

type scopedCache struct {
	prefix string
	httpcache.Cache
}

func (s scopedCache) Get(key string) ([]byte, bool) { return s.Cache.Get(s.prefix + key) }
func (s scopedCache) Set(key string, b []byte)      { s.Cache.Set(s.prefix+key, b) }
func (s scopedCache) Delete(key string)             { s.Cache.Delete(s.prefix + key) }

type noCacheKey struct{}

// NoCache marks ctx so requests made with it go to the partner even when a
// cached response is fresh.
func NoCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey{}, true)
}

// SetHeader adds a header sent on every request.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

func (c *Client) Get(ctx context.Context, op, path string, out interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, op, path string, body, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, op, path string, body, out interface{}) error {
	return c.do(ctx, op, http.MethodPut, path, body, out)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// retryable decides whether a failed status is worth another attempt. A 429
// means the request was not processed, so any method may retry it.
func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && idempotent(method)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", c.provider, err)
		}
	}

	attempt := func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if ctx.Value(noCacheKey{}) != nil {
			req.Header.Set("Cache-Control", "no-cache")
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if idempotent(method) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			apiErr := &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: errorMessage(data)}
			if retryable(method, resp.StatusCode) {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return data, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff

	start := time.Now()
	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
	)
	observeCall(c.provider, op, err, time.Since(start))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fmt.Errorf("%s: %s failed: %w", c.provider, op, err)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: failed to decode %s response: %w", c.provider, op, err)
		}
	}
	return nil
}

// errorMessage pulls a human message out of the common partner error shapes.
func errorMessage(data []byte) string {
	var body struct {
		Message      string `json:"message"`
		Error        string `json:"error"`
		ErrorCode    string `json:"errorCode"`
		ErrorSummary string `json:"errorSummary"`
		Errors       []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch {
	case body.ErrorSummary != "":
		return body.ErrorSummary
	case body.Message != "":
		return body.Message
	case len(body.Errors) > 0 && body.Errors[0].Message != "":
		return body.Errors[0].Message
	case body.ErrorCode != "":
		return body.ErrorCode
	}
	return body.Error
}

// TokenSource builds the token source for an integration's credentials.
// client_id + client_secret + token_url select the client credentials
// grant; otherwise access_token (or api_token) is used as a static token.
func TokenSource(ctx context.Context, creds models.JSONMap, tokenType string) (oauth2.TokenSource, error) {
	if id, secret, url := creds.String("client_id"), creds.String("client_secret"), creds.String("token_url"); id != "" && secret != "" && url != "" {
		cfg := clientcredentials.Config{
			ClientID:     id,
			ClientSecret: secret,
			TokenURL:     url,
			Scopes:       strings.Fields(creds.String("scopes")),
		}
		return cfg.TokenSource(context.WithoutCancel(ctx)), nil
	}

	token := creds.String("access_token")
	if token == "" {
		token = creds.String("api_token")
	}
	if token == "" {
		return nil, ErrMissingCredentials
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: tokenType}), nil
}
