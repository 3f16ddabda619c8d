package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

const (
	scimUserSchema  = "urn:ietf:params:scim:schemas:core:2.0:User"
	scimListSchema  = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	scimErrorSchema = "urn:ietf:params:scim:api:messages:2.0:Error"
	scimContentType = "application/scim+json"
	scimMaxCount    = 200
)

type scimContextKey struct{}

// SCIMEndpoints serves the SCIM 2.0 Users resource for an identity provider
// pushing users into an org. The bearer token picks the org's integration.
type SCIMEndpoints struct {
	repo *repository.GORMRepository
}

func NewSCIMEndpoints(repo *repository.GORMRepository) *SCIMEndpoints {
	return &SCIMEndpoints{repo: repo}
}

func (e *SCIMEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/scim/v2", func(r chi.Router) {
		r.Use(e.authenticate)
		r.Get("/Users", e.ListUsersHandler)
		r.Post("/Users", e.CreateUserHandler)
		r.Get("/Users/{id}", e.GetUserHandler)
		r.Put("/Users/{id}", e.ReplaceUserHandler)
		r.Patch("/Users/{id}", e.PatchUserHandler)
		r.Delete("/Users/{id}", e.DeleteUserHandler)
	})
}

type scimName struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

type scimEmail struct {
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

type scimMeta struct {
	ResourceType string    `json:"resourceType"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"lastModified"`
}

type SCIMUser struct {
	Schemas    []string    `json:"schemas"`
	ID         string      `json:"id,omitempty"`
	ExternalID string      `json:"externalId,omitempty"`
	UserName   string      `json:"userName"`
	Name       scimName    `json:"name"`
	Emails     []scimEmail `json:"emails,omitempty"`
	Active     *bool       `json:"active,omitempty"`
	Meta       *scimMeta   `json:"meta,omitempty"`
}

type scimListResponse struct {
	Schemas      []string   `json:"schemas"`
	TotalResults int64      `json:"totalResults"`
	StartIndex   int        `json:"startIndex"`
	ItemsPerPage int        `json:"itemsPerPage"`
	Resources    []SCIMUser `json:"Resources"`
}

type scimPatchRequest struct {
	Schemas    []string `json:"schemas"`
	Operations []struct {
		Op    string          `json:"op"`
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value"`
	} `json:"Operations"`
}

func writeSCIM(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", scimContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode SCIM response", "error", err)
	}
}

func scimError(w http.ResponseWriter, status int, detail string) {
	writeSCIM(w, status, map[string]interface{}{
		"schemas": []string{scimErrorSchema},
		"status":  strconv.Itoa(status),
		"detail":  detail,
	})
}

func scimFail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		scimError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, repository.ErrConflict):
		scimError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrValidation):
		scimError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("SCIM request failed", "error", err)
		scimError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// scimToken is the credential an identity provider presents: the
// credentials scim_token when set, else the integration's webhook secret.
func scimToken(in *models.Integration) string {
	if t := in.Credentials.String("scim_token"); t != "" {
		return t
	}
	return in.WebhookSecret
}

func (e *SCIMEndpoints) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			scimError(w, http.StatusUnauthorized, "Bearer token required")
			return
		}
		candidates, err := e.repo.ActiveByProvider(r.Context(), integrations.ProviderOkta)
		if err != nil {
			scimFail(w, err)
			return
		}
		for i := range candidates {
			want := scimToken(&candidates[i])
			if want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1 {
				ctx := context.WithValue(r.Context(), scimContextKey{}, &candidates[i])
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		slog.Warn("SCIM token rejected", "remote_addr", r.RemoteAddr)
		scimError(w, http.StatusUnauthorized, "Invalid bearer token")
	})
}

func scimIntegration(r *http.Request) *models.Integration {
	in, _ := r.Context().Value(scimContextKey{}).(*models.Integration)
	return in
}

func toSCIM(u *models.UserProfile) SCIMUser {
	active := u.IsActive
	out := SCIMUser{
		Schemas:  []string{scimUserSchema},
		ID:       u.ID,
		UserName: u.Email,
		Name:     scimName{GivenName: u.FirstName, FamilyName: u.LastName, Formatted: u.FullName},
		Emails:   []scimEmail{{Value: u.Email, Type: "work", Primary: true}},
		Active:   &active,
		Meta:     &scimMeta{ResourceType: "User", Created: u.CreatedAt, LastModified: u.UpdatedAt},
	}
	if u.ExternalID != nil {
		out.ExternalID = *u.ExternalID
	}
	return out
}

// email prefers the primary email, then userName.
func (s *SCIMUser) email() string {
	for _, em := range s.Emails {
		if em.Primary && em.Value != "" {
			return em.Value
		}
	}
	if len(s.Emails) > 0 && s.Emails[0].Value != "" {
		return s.Emails[0].Value
	}
	return s.UserName
}

func (s *SCIMUser) apply(u *models.UserProfile) {
	u.Email = strings.ToLower(strings.TrimSpace(s.email()))
	u.FirstName = s.Name.GivenName
	u.LastName = s.Name.FamilyName
	u.FullName = strings.TrimSpace(s.Name.GivenName + " " + s.Name.FamilyName)
	if u.FullName == "" {
		u.FullName = s.Name.Formatted
	}
	if s.ExternalID != "" {
		ext := s.ExternalID
		u.ExternalID = &ext
	}
	if s.Active != nil {
		u.IsActive = *s.Active
	}
}

var userNameFilter = regexp.MustCompile(`(?i)^\s*userName\s+eq\s+"([^"]*)"\s*$`)

// parseUserNameFilter supports the single filter identity providers send
// before provisioning. ok is false for any other filter expression.
func parseUserNameFilter(filter string) (string, bool) {
	if strings.TrimSpace(filter) == "" {
		return "", true
	}
	m := userNameFilter.FindStringSubmatch(filter)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// scimPage converts SCIM's 1-based startIndex and count into offset/limit.
func scimPage(r *http.Request) (startIndex, offset, limit int) {
	startIndex, limit = 1, 100
	if v, err := strconv.Atoi(r.URL.Query().Get("startIndex")); err == nil && v > 1 {
		startIndex = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && v >= 0 {
		limit = v
	}
	if limit > scimMaxCount {
		limit = scimMaxCount
	}
	return startIndex, startIndex - 1, limit
}

func (e *SCIMEndpoints) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	userName, ok := parseUserNameFilter(r.URL.Query().Get("filter"))
	if !ok {
		scimError(w, http.StatusBadRequest, "Unsupported filter")
		return
	}
	startIndex, offset, limit := scimPage(r)
	in := scimIntegration(r)

	users, total, err := e.repo.ListProvisionedUsers(r.Context(), in.OrgID, userName, offset, limit)
	if err != nil {
		scimFail(w, err)
		return
	}
	resources := make([]SCIMUser, len(users))
	for i := range users {
		resources[i] = toSCIM(&users[i])
	}
	writeSCIM(w, http.StatusOK, scimListResponse{
		Schemas:      []string{scimListSchema},
		TotalResults: total,
		StartIndex:   startIndex,
		ItemsPerPage: len(resources),
		Resources:    resources,
	})
}

func (e *SCIMEndpoints) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := e.repo.GetOrgUser(r.Context(), scimIntegration(r).OrgID, urlID(r))
	if err != nil {
		scimFail(w, err)
		return
	}
	writeSCIM(w, http.StatusOK, toSCIM(u))
}

func decodeSCIMUser(w http.ResponseWriter, r *http.Request) (*SCIMUser, bool) {
	var req SCIMUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		scimError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.email() == "" {
		scimError(w, http.StatusBadRequest, "userName is required")
		return nil, false
	}
	return &req, true
}

func (e *SCIMEndpoints) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSCIMUser(w, r)
	if !ok {
		return
	}
	in := scimIntegration(r)
	role := in.Config.String("default_role")
	if role == "" {
		role = models.RoleRecruiter
	}
	u := &models.UserProfile{OrgID: in.OrgID, Role: role, IsActive: true}
	req.apply(u)

	if err := e.repo.ProvisionUser(r.Context(), u); err != nil {
		scimFail(w, err)
		return
	}
	slog.Info("User provisioned", "user_id", u.ID, "org_id", u.OrgID, "integration_id", in.ID)
	writeSCIM(w, http.StatusCreated, toSCIM(u))
}

func (e *SCIMEndpoints) ReplaceUserHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSCIMUser(w, r)
	if !ok {
		return
	}
	orgID := scimIntegration(r).OrgID
	u, err := e.repo.GetOrgUser(r.Context(), orgID, urlID(r))
	if err != nil {
		scimFail(w, err)
		return
	}
	wasActive := u.IsActive
	req.apply(u)
	if err := e.repo.UpdateUser(r.Context(), u); err != nil {
		scimFail(w, err)
		return
	}
	if wasActive && !u.IsActive {
		if u, err = e.repo.SetUserActive(r.Context(), orgID, u.ID, false); err != nil {
			scimFail(w, err)
			return
		}
	}
	writeSCIM(w, http.StatusOK, toSCIM(u))
}

// PatchUserHandler handles the active flag, the only attribute identity
// providers patch in practice. Both the path form and the value-object form
// are accepted.
func (e *SCIMEndpoints) PatchUserHandler(w http.ResponseWriter, r *http.Request) {
	var req scimPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		scimError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	orgID := scimIntegration(r).OrgID

	var active *bool
	for _, op := range req.Operations {
		if !strings.EqualFold(op.Op, "replace") && !strings.EqualFold(op.Op, "add") {
			continue
		}
		if strings.EqualFold(op.Path, "active") {
			var v bool
			if err := json.Unmarshal(op.Value, &v); err != nil {
				scimError(w, http.StatusBadRequest, "active must be a boolean")
				return
			}
			active = &v
			continue
		}
		if op.Path == "" {
			var obj struct {
				Active *bool `json:"active"`
			}
			if err := json.Unmarshal(op.Value, &obj); err == nil && obj.Active != nil {
				active = obj.Active
			}
		}
	}

	var (
		u   *models.UserProfile
		err error
	)
	if active != nil {
		u, err = e.repo.SetUserActive(r.Context(), orgID, urlID(r), *active)
	} else {
		u, err = e.repo.GetOrgUser(r.Context(), orgID, urlID(r))
	}
	if err != nil {
		scimFail(w, err)
		return
	}
	writeSCIM(w, http.StatusOK, toSCIM(u))
}

// DeleteUserHandler deactivates the user; rows are never removed.
func (e *SCIMEndpoints) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := e.repo.SetUserActive(r.Context(), scimIntegration(r).OrgID, urlID(r), false); err != nil {
		scimFail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
