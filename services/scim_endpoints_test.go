package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserNameFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   string
		ok     bool
	}{
		{"", "", true},
		{`userName eq "jane@acme.io"`, "jane@acme.io", true},
		{`  username EQ "Jane@Acme.io" `, "Jane@Acme.io", true},
		{`userName co "jane"`, "", false},
		{`emails.value eq "jane@acme.io"`, "", false},
		{`userName eq jane`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, ok := parseUserNameFilter(tt.filter)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSCIMPage(t *testing.T) {
	tests := []struct {
		query                  string
		startIndex, off, limit int
	}{
		{"", 1, 0, 100},
		{"startIndex=11&count=10", 11, 10, 10},
		{"startIndex=0&count=0", 1, 0, 0},
		{"count=1000", 1, 0, scimMaxCount},
		{"startIndex=x&count=-3", 1, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/scim/v2/Users?"+tt.query, nil)
			start, off, limit := scimPage(r)
			assert.Equal(t, tt.startIndex, start)
			assert.Equal(t, tt.off, off)
			assert.Equal(t, tt.limit, limit)
		})
	}
}

func TestSCIMToken(t *testing.T) {
	in := &models.Integration{WebhookSecret: "fallback"}
	assert.Equal(t, "fallback", scimToken(in))

	in.Credentials = models.JSONMap{"scim_token": "dedicated"}
	assert.Equal(t, "dedicated", scimToken(in))
}

func TestToSCIM(t *testing.T) {
	ext := "00u1abc"
	u := &models.UserProfile{
		ID:         "u1",
		Email:      "jane@acme.io",
		FirstName:  "Jane",
		LastName:   "Doe",
		FullName:   "Jane Doe",
		IsActive:   false,
		ExternalID: &ext,
		CreatedAt:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	out := toSCIM(u)
	assert.Equal(t, []string{scimUserSchema}, out.Schemas)
	assert.Equal(t, "jane@acme.io", out.UserName)
	assert.Equal(t, "00u1abc", out.ExternalID)
	assert.Equal(t, "Jane", out.Name.GivenName)
	require.NotNil(t, out.Active)
	assert.False(t, *out.Active)
	require.Len(t, out.Emails, 1)
	assert.True(t, out.Emails[0].Primary)
}

func TestSCIMAuthenticateRequiresBearer(t *testing.T) {
	e := NewSCIMEndpoints(nil)
	h := e.authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer    "} {
		r := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "application/scim+json", w.Header().Get("Content-Type"))
	}
}
