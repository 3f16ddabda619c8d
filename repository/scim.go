package repository

import (
	"context"
	"log/slog"

	"github.com/krshsl/staffline/models"
)

// ListProvisionedUsers pages through an org's users for SCIM, optionally
// filtered by exact email (userName).
func (r *GORMRepository) ListProvisionedUsers(ctx context.Context, orgID, userName string, offset, limit int) ([]models.UserProfile, int64, error) {
	q := r.org(ctx, orgID).Model(&models.UserProfile{}).Where("candidate_status IS NULL")
	if userName != "" {
		q = q.Where("lower(email) = lower(?)", userName)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var users []models.UserProfile
	if err := q.Order("created_at").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		slog.Error("Failed to list provisioned users", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return users, total, nil
}

// ProvisionUser creates a SCIM user or conflicts on an existing email.
func (r *GORMRepository) ProvisionUser(ctx context.Context, u *models.UserProfile) error {
	existing, err := r.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return Conflict("user %s already exists", u.Email)
	}
	return r.CreateUser(ctx, u)
}

// SetUserActive flips is_active and, on deactivation, revokes sessions.
func (r *GORMRepository) SetUserActive(ctx context.Context, orgID, id string, active bool) (*models.UserProfile, error) {
	u, err := r.GetOrgUser(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(u).Update("is_active", active).Error; err != nil {
		return nil, mapError(err)
	}
	if !active {
		if err := r.DeleteAllUserTokens(ctx, id); err != nil {
			return nil, err
		}
	}
	slog.Info("User active flag changed", "user_id", id, "active", active)
	return r.GetOrgUser(ctx, orgID, id)
}
