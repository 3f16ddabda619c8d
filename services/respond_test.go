package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krshsl/staffline/repository"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", fmt.Errorf("job: %w", repository.ErrNotFound), http.StatusNotFound, "job: not found"},
		{"conflict", repository.Conflict("slug %q taken", "intro"), http.StatusConflict, ""},
		{"invalid transition", repository.ErrInvalidTransition, http.StatusUnprocessableEntity, ""},
		{"validation", repository.Invalid("rate_min must not exceed rate_max"), http.StatusBadRequest, ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

type patchJobRequest struct {
	Title    *string   `json:"title"`
	Skills   *[]string `json:"required_skills"`
	Rate     *float64  `json:"rate_min,omitempty"`
	Owner    *string   `json:"owner" col:"owner_id"`
	Ignored  *string   `json:"-"`
	NotPtr   string    `json:"not_ptr"`
	Untagged *int
}

func TestChangeSet(t *testing.T) {
	title := "Go Engineer"
	skills := []string{"go", "sql"}
	rate := 80.0
	owner := "u-1"
	ignored := "x"

	changes := changeSet(&patchJobRequest{
		Title:   &title,
		Skills:  &skills,
		Rate:    &rate,
		Owner:   &owner,
		Ignored: &ignored,
		NotPtr:  "skip",
	})

	assert.Equal(t, map[string]interface{}{
		"title":           "Go Engineer",
		"required_skills": pq.StringArray{"go", "sql"},
		"rate_min":        80.0,
		"owner_id":        "u-1",
	}, changes)
}

func TestChangeSetEmpty(t *testing.T) {
	assert.Empty(t, changeSet(&patchJobRequest{}))
}

func TestPageFromQuery(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 25, 0},
		{"limit=10&offset=30", 10, 30},
		{"limit=500", 100, 0},
		{"limit=abc&offset=-4", 25, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			p := pageFromQuery(r, 25, 100)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestQueryList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?status=open,%20on_hold&status=filled&status=", nil)
	assert.Equal(t, []string{"open", "on_hold", "filled"}, queryList(r, "status"))
	assert.Nil(t, queryList(r, "missing"))
}

type decodeRequest struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"omitempty,email"`
	Kind  string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ok     bool
		errMsg string
	}{
		{"valid", `{"name":"acme","email":"ops@acme.io"}`, true, ""},
		{"malformed", `{"name":`, false, "Invalid request body"},
		{"missing required", `{}`, false, "name is required"},
		{"bad email", `{"name":"acme","email":"nope"}`, false, "email must be a valid email"},
		{"bad enum", `{"name":"acme","kind":"c"}`, false, "kind must be one of [a b]"},
		{"too long", `{"name":"abcdefghijk"}`, false, "name must be at most 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req decodeRequest

			ok := decode(w, r, &req)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.errMsg, body["error"])
		})
	}
}
