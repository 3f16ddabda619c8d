package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.UserProfile
		status int
	}{
		{"no user", nil, http.StatusUnauthorized},
		{"allowed role", &models.UserProfile{ID: "u1", Role: models.RoleAdmin}, http.StatusOK},
		{"other allowed role", &models.UserProfile{ID: "u2", Role: models.RoleOwner}, http.StatusOK},
		{"forbidden role", &models.UserProfile{ID: "u3", Role: models.RoleRecruiter}, http.StatusForbidden},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireRole(models.RoleOwner, models.RoleAdmin)(next)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/integrations", nil)
			if tt.user != nil {
				r = r.WithContext(withUser(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestUserFromContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserFromContext(r.Context())
	assert.False(t, ok)

	var nilUser *models.UserProfile
	_, ok = UserFromContext(withUser(r.Context(), nilUser))
	assert.False(t, ok)

	user := &models.UserProfile{ID: "u1", OrgID: "o1"}
	got, ok := UserFromContext(withUser(r.Context(), user))
	assert.True(t, ok)
	assert.Same(t, user, got)
}

func TestOrgSlug(t *testing.T) {
	assert.Regexp(t, `^acme-staffing-[0-9a-f]{6}$`, orgSlug("  Acme Staffing! "))
	assert.Regexp(t, `^org-[0-9a-f]{6}$`, orgSlug("!!!"))
	assert.NotEqual(t, orgSlug("Acme"), orgSlug("Acme"))
}
