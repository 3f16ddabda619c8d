package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	if err := r.db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		slog.Warn("Could not ensure pgcrypto extension", "error", err)
	}
	return r.db.AutoMigrate(models.All()...)
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *GORMRepository) Transaction(ctx context.Context, fn func(tx *GORMRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMRepository{db: tx})
	})
}

// Ping reports whether the database answers.
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Page is a limit/offset window.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize applies def when no limit is set and clamps to max.
func (p Page) Normalize(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (r *GORMRepository) org(ctx context.Context, orgID string) *gorm.DB {
	return r.db.WithContext(ctx).Where("org_id = ?", orgID)
}

// first loads one row into dest and maps not-found to ErrNotFound.
func first(q *gorm.DB, dest interface{}) error {
	return mapError(q.First(dest).Error)
}

// Organization operations
func (r *GORMRepository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		slog.Error("Failed to create organization", "error", err, "slug", org.Slug)
		return mapError(err)
	}
	slog.Info("Organization created", "org_id", org.ID, "slug", org.Slug)
	return nil
}

func (r *GORMRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *GORMRepository) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	if err := first(r.db.WithContext(ctx).Where("slug = ?", slug), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.UserProfile) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return mapError(err)
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email, "org_id", user.OrgID)
	return nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.UserProfile) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return mapError(err)
	}
	return nil
}

// GetUserByEmail returns nil, nil when no user has the address.
func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := r.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

// GetUserByID returns nil, nil when the user does not exist.
func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// GetOrgUser loads a user that belongs to orgID.
func (r *GORMRepository) GetOrgUser(ctx context.Context, orgID, id string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CountOrgUsers returns how many of ids are users of orgID.
func (r *GORMRepository) CountOrgUsers(ctx context.Context, orgID string, ids []string) (int64, error) {
	var n int64
	err := r.org(ctx, orgID).Model(&models.UserProfile{}).Where("id IN ?", ids).Count(&n).Error
	return n, mapError(err)
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	var permanentToken models.PermanentToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&permanentToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get permanent token", "error", err)
		return nil, err
	}
	return &permanentToken, nil
}

func (r *GORMRepository) DeletePermanentToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete user permanent tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Audit
func (r *GORMRepository) WriteAudit(ctx context.Context, entry *models.AuditLog) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		slog.Error("Failed to write audit log", "error", err, "action", entry.Action, "record_id", entry.RecordID)
	}
}

func (r *GORMRepository) ListAudit(ctx context.Context, orgID, table, recordID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := r.org(ctx, orgID).Order("created_at DESC")
	if table != "" {
		q = q.Where("table_name = ?", table)
	}
	if recordID != "" {
		q = q.Where("record_id = ?", recordID)
	}
	if err := q.Limit(200).Find(&logs).Error; err != nil {
		return nil, mapError(err)
	}
	return logs, nil
}
