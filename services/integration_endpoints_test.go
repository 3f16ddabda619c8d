package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestConfigHandler(t *testing.T) {
	var hits int32
	okta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "SSWS good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorSummary":"Invalid token provided"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer okta.Close()

	registry := integrations.NewRegistry(integrations.ClientOptions{CacheResponses: true})
	e := NewIntegrationEndpoints(nil, registry, NewHealthChecker(nil, registry, 0))
	router := chi.NewRouter()
	e.RegisterRoutes(router)

	owner := &models.UserProfile{ID: "u1", OrgID: "o1", Role: models.RoleOwner}
	body := func(token string) string {
		return `{"provider":"okta","config":{"base_url":"` + okta.URL + `"},"credentials":{"api_token":"` + token + `"}}`
	}

	tests := []struct {
		name        string
		user        *models.UserProfile
		body        string
		wantStatus  int
		wantHealthy bool
		wantMessage string
	}{
		{name: "valid credentials", user: owner, body: body("good"), wantStatus: http.StatusOK, wantHealthy: true},
		{name: "rejected credentials", user: owner, body: body("bad"), wantStatus: http.StatusOK, wantMessage: "Invalid token provided"},
		{name: "missing credentials", user: owner, body: `{"provider":"okta","config":{"base_url":"` + okta.URL + `"}}`, wantStatus: http.StatusOK, wantMessage: "missing credentials"},
		{name: "unknown provider", user: owner, body: `{"provider":"adp"}`, wantStatus: http.StatusBadRequest},
		{name: "provider required", user: owner, body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "recruiters cannot test", user: &models.UserProfile{ID: "u2", OrgID: "o1", Role: models.RoleRecruiter}, body: body("good"), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/integrations/test", strings.NewReader(tt.body))
			req = req.WithContext(withUser(req.Context(), tt.user))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got struct {
				Healthy bool   `json:"healthy"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantHealthy, got.Healthy)
			assert.Contains(t, got.Message, tt.wantMessage)
		})
	}

	t.Run("repeated tests always reach the provider", func(t *testing.T) {
		before := atomic.LoadInt32(&hits)
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/integrations/test", strings.NewReader(body("good")))
			req = req.WithContext(withUser(req.Context(), owner))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
		assert.Equal(t, before+2, atomic.LoadInt32(&hits))
	})
}
