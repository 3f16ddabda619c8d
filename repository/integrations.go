package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
	"gorm.io/gorm/clause"
)

// FailureThreshold is how many consecutive failed health checks put an
// integration into the error status.
const FailureThreshold = 3

func (r *GORMRepository) ListIntegrationTypes(ctx context.Context) ([]models.IntegrationType, error) {
	var out []models.IntegrationType
	if err := r.db.WithContext(ctx).Order("category, display_name").Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// UpsertIntegrationType inserts or refreshes a catalog entry by provider.
func (r *GORMRepository) UpsertIntegrationType(ctx context.Context, t *models.IntegrationType) error {
	return mapError(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "display_name", "description", "config_keys", "is_available", "updated_at"}),
	}).Create(t).Error)
}

// IntegrationFilter narrows ListIntegrations.
type IntegrationFilter struct {
	Page
	Search string
	Type   string
	Status string
}

func (r *GORMRepository) ListIntegrations(ctx context.Context, orgID string, f IntegrationFilter) ([]models.Integration, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Integration{})
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("(name ILIKE ? OR provider ILIKE ?)", like, like)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var out []models.Integration
	if err := q.Order("name").Limit(f.Limit).Offset(f.Offset).Find(&out).Error; err != nil {
		slog.Error("Failed to list integrations", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return out, total, nil
}

func (r *GORMRepository) GetIntegration(ctx context.Context, orgID, id string) (*models.Integration, error) {
	var in models.Integration
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// GetIntegrationByID loads an integration without an org scope, for inbound
// webhooks and SCIM where the id identifies the tenant.
func (r *GORMRepository) GetIntegrationByID(ctx context.Context, id string) (*models.Integration, error) {
	var in models.Integration
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// ActiveIntegration returns the org's active integration for provider.
func (r *GORMRepository) ActiveIntegration(ctx context.Context, orgID, provider string) (*models.Integration, error) {
	var in models.Integration
	err := first(r.org(ctx, orgID).
		Where("provider = ? AND status = ?", provider, models.IntegrationActive).
		Order("created_at"), &in)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *GORMRepository) CreateIntegration(ctx context.Context, in *models.Integration) error {
	if in.Status == "" {
		in.Status = models.IntegrationInactive
	}
	in.HealthStatus = models.HealthUnknown
	if err := r.db.WithContext(ctx).Create(in).Error; err != nil {
		slog.Error("Failed to create integration", "error", err, "provider", in.Provider)
		return mapError(err)
	}
	slog.Info("Integration created", "integration_id", in.ID, "provider", in.Provider)
	return nil
}

func (r *GORMRepository) UpdateIntegration(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Integration, error) {
	in, err := r.GetIntegration(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Integration{ID: in.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update integration", "error", err, "integration_id", id)
		return nil, mapError(err)
	}
	return r.GetIntegration(ctx, orgID, id)
}

func (r *GORMRepository) DeleteIntegration(ctx context.Context, orgID, id string) error {
	res := r.org(ctx, orgID).Where("id = ?", id).Delete(&models.Integration{})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	slog.Info("Integration deleted", "integration_id", id)
	return nil
}

// ToggleIntegrationStatus switches between active and inactive. Activating
// clears any recorded error.
func (r *GORMRepository) ToggleIntegrationStatus(ctx context.Context, orgID, id string) (*models.Integration, error) {
	in, err := r.GetIntegration(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	if in.Status == models.IntegrationActive {
		changes["status"] = models.IntegrationInactive
	} else {
		changes["status"] = models.IntegrationActive
		changes["error_message"] = ""
		changes["error_count"] = 0
	}
	return r.UpdateIntegration(ctx, orgID, id, changes)
}

// HealthResult is the outcome of one connection test.
type HealthResult struct {
	Healthy  bool
	Duration time.Duration
	Message  string
}

// RecordHealthCheck logs a check and updates the integration's health. A
// failure bumps error_count and, at FailureThreshold, sets status error. A
// success resets the count and lifts error back to active.
func (r *GORMRepository) RecordHealthCheck(ctx context.Context, in *models.Integration, res HealthResult) (*models.Integration, error) {
	now := time.Now()
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		entry := models.IntegrationHealthLog{
			OrgID:          in.OrgID,
			IntegrationID:  in.ID,
			Healthy:        res.Healthy,
			ResponseTimeMS: res.Duration.Milliseconds(),
			Message:        res.Message,
			CheckedAt:      now,
		}
		if err := tx.db.Create(&entry).Error; err != nil {
			return mapError(err)
		}
		changes := map[string]interface{}{"last_health_check": now}
		if res.Healthy {
			changes["health_status"] = models.HealthHealthy
			changes["error_count"] = 0
			changes["error_message"] = ""
			if in.Status == models.IntegrationError {
				changes["status"] = models.IntegrationActive
			}
		} else {
			count := in.ErrorCount + 1
			changes["health_status"] = models.HealthUnhealthy
			changes["error_count"] = count
			changes["error_message"] = res.Message
			if count >= FailureThreshold && in.Status == models.IntegrationActive {
				changes["status"] = models.IntegrationError
			}
		}
		return mapError(tx.db.Model(&models.Integration{ID: in.ID}).Updates(changes).Error)
	})
	if err != nil {
		slog.Error("Failed to record health check", "error", err, "integration_id", in.ID)
		return nil, err
	}
	return r.GetIntegration(ctx, in.OrgID, in.ID)
}

func (r *GORMRepository) ListHealthLogs(ctx context.Context, orgID, integrationID string, limit int) ([]models.IntegrationHealthLog, error) {
	var out []models.IntegrationHealthLog
	if err := r.org(ctx, orgID).Where("integration_id = ?", integrationID).
		Order("checked_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// IntegrationsDueForCheck returns active and errored integrations across
// all orgs.
func (r *GORMRepository) IntegrationsDueForCheck(ctx context.Context) ([]models.Integration, error) {
	var out []models.Integration
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.IntegrationActive, models.IntegrationError}).
		Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// ActiveByProvider returns every org's active integrations for provider.
func (r *GORMRepository) ActiveByProvider(ctx context.Context, provider string) ([]models.Integration, error) {
	var out []models.Integration
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND status IN ?", provider, []string{models.IntegrationActive, models.IntegrationError}).
		Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// IntegrationStats summarises an org's integrations.
type IntegrationStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	ByType   map[string]int64 `json:"by_type"`
	Healthy  int64            `json:"healthy"`
}

func (r *GORMRepository) IntegrationStats(ctx context.Context, orgID string) (*IntegrationStats, error) {
	var all []models.Integration
	if err := r.org(ctx, orgID).Select("status, type, health_status").Find(&all).Error; err != nil {
		return nil, mapError(err)
	}
	s := &IntegrationStats{ByStatus: map[string]int64{}, ByType: map[string]int64{}}
	for _, in := range all {
		s.Total++
		s.ByStatus[in.Status]++
		s.ByType[in.Type]++
		if in.HealthStatus == models.HealthHealthy {
			s.Healthy++
		}
	}
	return s, nil
}

// CriticalAlerts lists integrations in error or failing their checks.
func (r *GORMRepository) CriticalAlerts(ctx context.Context, orgID string) ([]models.Integration, error) {
	var out []models.Integration
	if err := r.org(ctx, orgID).
		Where("status = ? OR (status = ? AND health_status = ?)", models.IntegrationError, models.IntegrationActive, models.HealthUnhealthy).
		Order("error_count DESC, updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// RecordWebhookEvent stores an inbound event once per (provider, external
// id). It reports false when the event was already stored.
func (r *GORMRepository) RecordWebhookEvent(ctx context.Context, evt *models.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(evt)
	if res.Error != nil {
		slog.Error("Failed to record webhook event", "error", res.Error, "provider", evt.Provider)
		return false, mapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMRepository) MarkWebhookProcessed(ctx context.Context, id string, procErr error) {
	changes := map[string]interface{}{"processed_at": time.Now()}
	if procErr != nil {
		changes["error"] = procErr.Error()
	}
	if err := r.db.WithContext(ctx).Model(&models.WebhookEvent{ID: id}).Updates(changes).Error; err != nil {
		slog.Error("Failed to mark webhook processed", "error", err, "event_id", id)
	}
}
