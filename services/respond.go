package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	"github.com/lib/pq"
)

type ctxKey int

const userKey ctxKey = iota

func withUser(ctx context.Context, user *models.UserProfile) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user set by AuthService.Middleware.
func UserFromContext(ctx context.Context) (*models.UserProfile, bool) {
	user, ok := ctx.Value(userKey).(*models.UserProfile)
	return user, ok && user != nil
}

// currentUser is for handlers mounted behind the auth middleware.
func currentUser(r *http.Request) *models.UserProfile {
	user, _ := UserFromContext(r.Context())
	return user
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps repository sentinels onto HTTP status codes. Anything
// unrecognised is logged and reported as a 500 without details.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, repository.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validateStruct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// pageFromQuery reads limit/offset, applying def and clamping to max.
func pageFromQuery(r *http.Request, def, max int) repository.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repository.Page{Limit: limit, Offset: offset}.Normalize(def, max)
}

func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type listResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func urlID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// changeSet turns a patch request of pointer fields into a gorm Updates map.
// Nil fields are skipped. The column is the `col` tag when present, else the
// json name. String slices become pq.StringArray for text[] columns.
func changeSet(req interface{}) map[string]interface{} {
	changes := map[string]interface{}{}
	v := reflect.Indirect(reflect.ValueOf(req))
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		col := f.Tag.Get("col")
		if col == "" {
			col = strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		}
		if col == "" || col == "-" {
			continue
		}
		val := fv.Elem().Interface()
		if ss, ok := val.([]string); ok {
			val = pq.StringArray(ss)
		}
		changes[col] = val
	}
	return changes
}
