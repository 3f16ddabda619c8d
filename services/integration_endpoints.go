package services

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

type IntegrationEndpoints struct {
	repo     *repository.GORMRepository
	registry *integrations.Registry
	checker  *HealthChecker
}

func NewIntegrationEndpoints(repo *repository.GORMRepository, registry *integrations.Registry, checker *HealthChecker) *IntegrationEndpoints {
	return &IntegrationEndpoints{repo: repo, registry: registry, checker: checker}
}

func (e *IntegrationEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/integrations", func(r chi.Router) {
		r.Use(RequireRole(models.RoleOwner, models.RoleAdmin))

		r.Get("/types", e.ListTypesHandler)
		r.Get("/stats", e.StatsHandler)
		r.Get("/alerts", e.AlertsHandler)
		r.Get("/audit", e.AuditHandler)
		r.Get("/", e.ListHandler)
		r.Post("/", e.CreateHandler)
		r.Post("/test", e.TestConfigHandler)
		r.Get("/{id}", e.GetHandler)
		r.Patch("/{id}", e.UpdateHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Post("/{id}/toggle", e.ToggleHandler)
		r.Post("/{id}/test", e.TestConnectionHandler)
		r.Get("/{id}/health", e.HealthLogsHandler)
		r.Get("/{id}/directory-users", e.DirectoryUsersHandler)
		r.Post("/{id}/directory-users", e.PushDirectoryUserHandler)
		r.Get("/{id}/directory-users/{externalID}", e.GetDirectoryUserHandler)
		r.Post("/{id}/directory-users/{externalID}/deactivate", e.DeactivateDirectoryUserHandler)
	})
}

type CreateIntegrationRequest struct {
	Name          string         `json:"name" validate:"required,max=255"`
	Type          string         `json:"type" validate:"required,oneof=payroll e_signature identity"`
	Provider      string         `json:"provider" validate:"required,max=50"`
	Description   string         `json:"description"`
	Config        models.JSONMap `json:"config"`
	Credentials   models.JSONMap `json:"credentials"`
	WebhookSecret string         `json:"webhook_secret" validate:"max=255"`
}

type TestConfigRequest struct {
	Provider    string         `json:"provider" validate:"required,max=50"`
	Config      models.JSONMap `json:"config"`
	Credentials models.JSONMap `json:"credentials"`
}

type PushDirectoryUserRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	Activate bool   `json:"activate"`
}

type UpdateIntegrationRequest struct {
	Name          *string         `json:"name" validate:"omitempty,max=255"`
	Description   *string         `json:"description"`
	Config        *models.JSONMap `json:"config"`
	Credentials   *models.JSONMap `json:"credentials"`
	WebhookSecret *string         `json:"webhook_secret" validate:"omitempty,max=255"`
}

func (e *IntegrationEndpoints) audit(r *http.Request, action string, in *models.Integration, values models.JSONMap) {
	user := currentUser(r)
	e.repo.WriteAudit(r.Context(), &models.AuditLog{
		OrgID:     user.OrgID,
		UserID:    &user.ID,
		UserEmail: user.Email,
		Action:    action,
		Table:     "integrations",
		RecordID:  in.ID,
		NewValues: values,
	})
}

func (e *IntegrationEndpoints) ListTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := e.repo.ListIntegrationTypes(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"types": types, "supported_providers": e.registry.Providers()})
}

func (e *IntegrationEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := e.repo.IntegrationStats(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *IntegrationEndpoints) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := e.repo.CriticalAlerts(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": redactAll(alerts)})
}

func (e *IntegrationEndpoints) AuditHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := e.repo.ListAudit(r.Context(), currentUser(r).OrgID, r.URL.Query().Get("table"), r.URL.Query().Get("record_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit": logs})
}

func redactAll(in []models.Integration) []models.Integration {
	out := make([]models.Integration, len(in))
	for i := range in {
		out[i] = in[i].Redacted()
	}
	return out
}

func (e *IntegrationEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	q := r.URL.Query()
	items, total, err := e.repo.ListIntegrations(r.Context(), currentUser(r).OrgID, repository.IntegrationFilter{
		Page:   page,
		Search: q.Get("search"),
		Type:   q.Get("type"),
		Status: q.Get("status"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: redactAll(items), Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *IntegrationEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	in, err := e.repo.GetIntegration(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in.Redacted())
}

func (e *IntegrationEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateIntegrationRequest
	if !decode(w, r, &req) {
		return
	}
	if !e.registry.Supports(req.Provider) {
		writeError(w, http.StatusBadRequest, "Unsupported provider: "+req.Provider)
		return
	}
	user := currentUser(r)
	in := &models.Integration{
		OrgID:         user.OrgID,
		Name:          req.Name,
		Type:          req.Type,
		Provider:      req.Provider,
		Description:   req.Description,
		Config:        req.Config,
		Credentials:   req.Credentials,
		WebhookSecret: req.WebhookSecret,
		CreatedBy:     &user.ID,
	}
	// The provider decides its category; a mismatch is a client error.
	if p, err := e.registry.Build(r.Context(), in); err == nil && p.Type() != in.Type {
		writeError(w, http.StatusBadRequest, "Provider "+in.Provider+" is a "+p.Type()+" integration")
		return
	}
	if err := e.repo.CreateIntegration(r.Context(), in); err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r, "integration.created", in, models.JSONMap{"provider": in.Provider, "name": in.Name})
	writeJSON(w, http.StatusCreated, in.Redacted())
}

func (e *IntegrationEndpoints) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateIntegrationRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	in, err := e.repo.UpdateIntegration(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	fields := make([]string, 0, len(changes))
	for k := range changes {
		fields = append(fields, k)
	}
	e.audit(r, "integration.updated", in, models.JSONMap{"fields": fields})
	writeJSON(w, http.StatusOK, in.Redacted())
}

func (e *IntegrationEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	orgID := currentUser(r).OrgID
	in, err := e.repo.GetIntegration(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := e.repo.DeleteIntegration(r.Context(), orgID, in.ID); err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r, "integration.deleted", in, models.JSONMap{"provider": in.Provider})
	w.WriteHeader(http.StatusNoContent)
}

func (e *IntegrationEndpoints) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	in, err := e.repo.ToggleIntegrationStatus(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r, "integration.toggled", in, models.JSONMap{"status": in.Status})
	writeJSON(w, http.StatusOK, in.Redacted())
}

// TestConnectionHandler runs a health check now and returns the updated
// integration along with the latest log entry.
func (e *IntegrationEndpoints) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	orgID := currentUser(r).OrgID
	in, err := e.repo.GetIntegration(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := e.checker.Check(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	logs, err := e.repo.ListHealthLogs(r.Context(), orgID, in.ID, 1)
	if err != nil {
		handleError(w, r, err)
		return
	}
	resp := map[string]interface{}{
		"integration": updated.Redacted(),
		"healthy":     updated.HealthStatus == models.HealthHealthy,
	}
	if len(logs) > 0 {
		resp["check"] = logs[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

// TestConfigHandler tries a provider configuration before it is saved.
// Nothing is recorded.
func (e *IntegrationEndpoints) TestConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req TestConfigRequest
	if !decode(w, r, &req) {
		return
	}
	if !e.registry.Supports(req.Provider) {
		handleError(w, r, repository.Invalid("unsupported provider %q", req.Provider))
		return
	}
	res := e.checker.Probe(r.Context(), &models.Integration{
		OrgID:       currentUser(r).OrgID,
		Provider:    req.Provider,
		Config:      req.Config,
		Credentials: req.Credentials,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":          res.Healthy,
		"message":          res.Message,
		"response_time_ms": res.Duration.Milliseconds(),
	})
}

func (e *IntegrationEndpoints) HealthLogsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	logs, err := e.repo.ListHealthLogs(r.Context(), currentUser(r).OrgID, urlID(r), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

func (e *IntegrationEndpoints) identity(w http.ResponseWriter, r *http.Request) (*models.Integration, integrations.IdentityProvider, bool) {
	in, err := e.repo.GetIntegration(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return nil, nil, false
	}
	idp, err := e.registry.Identity(r.Context(), in)
	if err != nil {
		handleError(w, r, repository.Invalid("%v", err))
		return nil, nil, false
	}
	return in, idp, true
}

// DirectoryUsersHandler lists users from an identity provider integration.
func (e *IntegrationEndpoints) DirectoryUsersHandler(w http.ResponseWriter, r *http.Request) {
	_, idp, ok := e.identity(w, r)
	if !ok {
		return
	}
	limit := 200
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	users, err := idp.ListUsers(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to list directory users: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (e *IntegrationEndpoints) GetDirectoryUserHandler(w http.ResponseWriter, r *http.Request) {
	_, idp, ok := e.identity(w, r)
	if !ok {
		return
	}
	u, err := idp.GetUser(r.Context(), chi.URLParam(r, "externalID"))
	if integrations.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Directory user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to get directory user: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// PushDirectoryUserHandler creates a local user in the directory and links
// the two through the user's external id.
func (e *IntegrationEndpoints) PushDirectoryUserHandler(w http.ResponseWriter, r *http.Request) {
	var req PushDirectoryUserRequest
	if !decode(w, r, &req) {
		return
	}
	in, idp, ok := e.identity(w, r)
	if !ok {
		return
	}
	user, err := e.repo.GetOrgUser(r.Context(), in.OrgID, req.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if user.ExternalID != nil && *user.ExternalID != "" {
		writeError(w, http.StatusConflict, "User is already linked to a directory account")
		return
	}
	created, err := idp.CreateUser(r.Context(), integrations.DirectoryUser{
		Email:     user.Email,
		Login:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, req.Activate)
	if err != nil {
		slog.Error("Failed to create directory user", "error", err, "user_id", user.ID, "provider", in.Provider)
		writeError(w, http.StatusBadGateway, "Failed to create directory user: "+err.Error())
		return
	}
	user.ExternalID = &created.ID
	if err := e.repo.UpdateUser(r.Context(), user); err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r, "integration.directory_user_created", in, models.JSONMap{"user_id": user.ID, "external_id": created.ID})
	writeJSON(w, http.StatusCreated, created)
}

func (e *IntegrationEndpoints) DeactivateDirectoryUserHandler(w http.ResponseWriter, r *http.Request) {
	in, idp, ok := e.identity(w, r)
	if !ok {
		return
	}
	externalID := chi.URLParam(r, "externalID")
	if err := idp.DeactivateUser(r.Context(), externalID); err != nil {
		if integrations.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Directory user not found")
			return
		}
		writeError(w, http.StatusBadGateway, "Failed to deactivate directory user: "+err.Error())
		return
	}
	e.audit(r, "integration.directory_user_deactivated", in, models.JSONMap{"external_id": externalID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Directory user deactivated"})
}
