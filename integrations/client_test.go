package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testOptions() ClientOptions {
	return ClientOptions{Timeout: 5 * time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}
}

func staticToken(tokenType string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret", TokenType: tokenType})
}

func TestClientRetriesIdempotentRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "ok"})
	}))
	defer srv.Close()

	c := NewClient("gusto", srv.URL, staticToken("Bearer"), testOptions())
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(context.Background(), "test", "/thing", &out))
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryPostOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient("docusign", srv.URL, staticToken("Bearer"), testOptions())
	err := c.Post(context.Background(), "test", "/thing", map[string]string{"a": "b"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "docusign: boom (status 500)", apiErr.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientRetriesRateLimitedPost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient("okta", srv.URL, staticToken("SSWS"), testOptions())
	require.NoError(t, c.Post(context.Background(), "test", "/thing", nil, nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorSummary":"Not found: Resource not found: x (User)"}`))
	}))
	defer srv.Close()

	c := NewClient("okta", srv.URL, staticToken("SSWS"), testOptions())
	err := c.Get(context.Background(), "test", "/users/x", nil)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "okta: Not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientSendsAuthAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SSWS secret", r.Header.Get("Authorization"))
		assert.Equal(t, "v1", r.Header.Get("X-Test"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient("okta", srv.URL, staticToken("SSWS"), testOptions())
	c.SetHeader("X-Test", "v1")
	require.NoError(t, c.Get(context.Background(), "test", "/", nil))
}

func TestTokenSource(t *testing.T) {
	ts, err := TokenSource(context.Background(), models.JSONMap{"api_token": "abc"}, "SSWS")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "SSWS", tok.Type())
	assert.Equal(t, "abc", tok.AccessToken)

	_, err = TokenSource(context.Background(), models.JSONMap{}, "Bearer")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry(testOptions())
	assert.Equal(t, []string{"docusign", "gusto", "okta"}, r.Providers())

	_, err := r.Build(context.Background(), &models.Integration{Provider: "adp"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = r.Build(context.Background(), &models.Integration{Provider: "gusto", Credentials: models.JSONMap{"access_token": "t"}})
	assert.ErrorIs(t, err, ErrMissingConfig)

	p, err := r.Payroll(context.Background(), &models.Integration{
		Provider:    "gusto",
		Config:      models.JSONMap{"company_id": "c1", "environment": "demo"},
		Credentials: models.JSONMap{"access_token": "t"},
	})
	require.NoError(t, err)
	assert.Equal(t, TypePayroll, p.Type())

	_, err = r.Signature(context.Background(), &models.Integration{
		Provider:    "okta",
		Config:      models.JSONMap{"domain": "acme.okta.com"},
		Credentials: models.JSONMap{"api_token": "t"},
	})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestRegistrySharesResponseCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "max-age=300")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"u1","status":"ACTIVE","profile":{"login":"ann@example.com","email":"ann@example.com"}}]`))
	}))
	defer srv.Close()

	opts := testOptions()
	opts.CacheResponses = true
	r := NewRegistry(opts)

	okta := func(id string) *OktaProvider {
		p, err := r.Build(context.Background(), &models.Integration{
			ID:          id,
			Provider:    ProviderOkta,
			Config:      models.JSONMap{"base_url": srv.URL},
			Credentials: models.JSONMap{"api_token": "t-" + id},
		})
		require.NoError(t, err)
		return p.(*OktaProvider)
	}

	tests := []struct {
		name     string
		id       string
		call     func(*OktaProvider) error
		wantHits int32
	}{
		{"first build fetches", "in1", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 1},
		{"second build reuses", "in1", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 1},
		{"third build reuses", "in1", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 1},
		{"other integration is isolated", "in2", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 2},
		{"connection test fetches", "in1", func(o *OktaProvider) error { return o.TestConnection(context.Background()) }, 3},
		{"connection test never reads the cache", "in1", func(o *OktaProvider) error { return o.TestConnection(context.Background()) }, 4},
		{"no-cache context bypasses cache", "in1", func(o *OktaProvider) error { _, err := o.ListUsers(NoCache(context.Background()), 5); return err }, 5},
		{"unsaved integration is not cached", "", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 6},
		{"unsaved integration again", "", func(o *OktaProvider) error { _, err := o.ListUsers(context.Background(), 5); return err }, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call(okta(tt.id)))
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
		})
	}
}
