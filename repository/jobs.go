package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/krshsl/staffline/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Account operations
func (r *GORMRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		slog.Error("Failed to create account", "error", err, "org_id", account.OrgID)
		return mapError(err)
	}
	slog.Info("Account created", "account_id", account.ID, "name", account.Name)
	return nil
}

func (r *GORMRepository) GetAccount(ctx context.Context, orgID, id string) (*models.Account, error) {
	var account models.Account
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *GORMRepository) ListAccounts(ctx context.Context, orgID string) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.org(ctx, orgID).Order("name").Find(&accounts).Error; err != nil {
		slog.Error("Failed to list accounts", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return accounts, nil
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Page
	Status    string
	AccountID string
}

func (r *GORMRepository) ListJobs(ctx context.Context, orgID string, f JobFilter) ([]models.Job, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		slog.Error("Failed to count jobs", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}

	var jobs []models.Job
	if err := q.Preload("Account").Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&jobs).Error; err != nil {
		slog.Error("Failed to list jobs", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return jobs, total, nil
}

func (r *GORMRepository) GetJob(ctx context.Context, orgID, id string) (*models.Job, error) {
	var job models.Job
	if err := first(r.org(ctx, orgID).Preload("Account").Where("id = ?", id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func validateJobRates(job *models.Job) error {
	if job.RateMin != nil && job.RateMax != nil && *job.RateMin > *job.RateMax {
		return Invalid("rate_min must not exceed rate_max")
	}
	return nil
}

func (r *GORMRepository) CreateJob(ctx context.Context, job *models.Job) error {
	if err := validateJobRates(job); err != nil {
		return err
	}
	if job.AccountID != nil {
		if _, err := r.GetAccount(ctx, job.OrgID, *job.AccountID); err != nil {
			return err
		}
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		slog.Error("Failed to create job", "error", err, "org_id", job.OrgID)
		return mapError(err)
	}
	slog.Info("Job created", "job_id", job.ID, "title", job.Title)
	return nil
}

// UpdateJob applies a partial update and re-checks the rate range.
func (r *GORMRepository) UpdateJob(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Job, error) {
	var job models.Job
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := first(tx.org(ctx, orgID).Where("id = ?", id), &job); err != nil {
			return err
		}
		if err := tx.db.Model(&job).Updates(changes).Error; err != nil {
			return mapError(err)
		}
		if err := first(tx.db.Where("id = ?", id), &job); err != nil {
			return err
		}
		return validateJobRates(&job)
	})
	if err != nil {
		slog.Error("Failed to update job", "error", err, "job_id", id)
		return nil, err
	}
	slog.Info("Job updated", "job_id", id)
	return &job, nil
}

// SubmissionCountsByStatus groups a job's submissions by status.
func (r *GORMRepository) SubmissionCountsByStatus(ctx context.Context, orgID, jobID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.org(ctx, orgID).Model(&models.Submission{}).
		Select("status, count(*) AS count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		slog.Error("Failed to count submissions", "error", err, "job_id", jobID)
		return nil, mapError(err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *GORMRepository) CountInterviewsForJob(ctx context.Context, orgID, jobID string) (int64, error) {
	var n int64
	err := r.org(ctx, orgID).Model(&models.Interview{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, mapError(err)
}

func (r *GORMRepository) CountOffersForJob(ctx context.Context, orgID, jobID string) (int64, error) {
	var n int64
	err := r.org(ctx, orgID).Model(&models.Offer{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, mapError(err)
}

// CandidateSearch narrows SearchCandidates.
type CandidateSearch struct {
	Query        string
	Skills       []string
	VisaTypes    []string
	Availability string
	Limit        int
}

// SearchCandidates returns active and bench candidates. Query matches name,
// email and skills case-insensitively; Skills matches any listed skill.
func (r *GORMRepository) SearchCandidates(ctx context.Context, orgID string, s CandidateSearch) ([]models.UserProfile, error) {
	q := r.org(ctx, orgID).
		Where("candidate_status IN ?", []string{models.CandidateActive, models.CandidateBench})

	if term := strings.TrimSpace(s.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("(full_name ILIKE ? OR email ILIKE ? OR array_to_string(candidate_skills, ' ') ILIKE ?)", like, like, like)
	}
	if len(s.Skills) > 0 {
		q = q.Where("candidate_skills && ?::text[]", pq.StringArray(s.Skills))
	}
	if len(s.VisaTypes) > 0 {
		q = q.Where("candidate_current_visa IN ?", s.VisaTypes)
	}
	if s.Availability != "" {
		q = q.Where("candidate_availability = ?", s.Availability)
	}

	var candidates []models.UserProfile
	if err := q.Order("updated_at DESC").Limit(s.Limit).Find(&candidates).Error; err != nil {
		slog.Error("Failed to search candidates", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return candidates, nil
}

// GetCandidate loads a profile that is tracked as a candidate.
func (r *GORMRepository) GetCandidate(ctx context.Context, orgID, id string) (*models.UserProfile, error) {
	var c models.UserProfile
	if err := first(r.org(ctx, orgID).Where("id = ? AND candidate_status IS NOT NULL", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCandidate inserts the candidate and, when an account is given, a
// sourced submission: to jobID if set, otherwise to the account's oldest
// open job if it has one.
func (r *GORMRepository) CreateCandidate(ctx context.Context, c *models.UserProfile, accountID, jobID *string, ownerID string) (*models.Submission, error) {
	var sub *models.Submission
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		existing, err := tx.GetUserByEmail(ctx, c.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return Conflict("a candidate with email %s already exists", c.Email)
		}
		if err := tx.db.Create(c).Error; err != nil {
			return mapError(err)
		}
		if accountID == nil {
			return nil
		}
		sub, err = tx.linkCandidate(ctx, c.OrgID, c.ID, *accountID, jobID, ownerID, false)
		return err
	})
	if err != nil {
		slog.Error("Failed to create candidate", "error", err, "email", c.Email)
		return nil, err
	}
	slog.Info("Candidate created", "candidate_id", c.ID, "org_id", c.OrgID)
	return sub, nil
}

func (r *GORMRepository) UpdateCandidate(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.UserProfile, error) {
	c, err := r.GetCandidate(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if email, ok := changes["email"].(string); ok && !strings.EqualFold(email, c.Email) {
		other, err := r.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, Conflict("a candidate with email %s already exists", email)
		}
	}
	if err := r.db.WithContext(ctx).Model(c).Updates(changes).Error; err != nil {
		slog.Error("Failed to update candidate", "error", err, "candidate_id", id)
		return nil, mapError(err)
	}
	return r.GetCandidate(ctx, orgID, id)
}

// LinkCandidateToAccount creates a sourced submission for the candidate on
// jobID, or on the account's oldest open job when jobID is nil.
func (r *GORMRepository) LinkCandidateToAccount(ctx context.Context, orgID, candidateID, accountID string, jobID *string, ownerID string) (*models.Submission, error) {
	var sub *models.Submission
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		if _, err := tx.GetCandidate(ctx, orgID, candidateID); err != nil {
			return err
		}
		var err error
		sub, err = tx.linkCandidate(ctx, orgID, candidateID, accountID, jobID, ownerID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *GORMRepository) linkCandidate(ctx context.Context, orgID, candidateID, accountID string, jobID *string, ownerID string, requireJob bool) (*models.Submission, error) {
	if _, err := r.GetAccount(ctx, orgID, accountID); err != nil {
		return nil, err
	}

	var job models.Job
	q := r.org(ctx, orgID).Where("account_id = ?", accountID)
	if jobID != nil {
		q = q.Where("id = ?", *jobID)
	} else {
		q = q.Where("status = ?", models.JobOpen).Order("created_at")
	}
	if err := q.First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if jobID == nil && !requireJob {
				return nil, nil
			}
			if jobID == nil {
				return nil, Invalid("account has no open jobs")
			}
			return nil, ErrNotFound
		}
		return nil, mapError(err)
	}

	sub := &models.Submission{
		OrgID:       orgID,
		JobID:       job.ID,
		CandidateID: candidateID,
		AccountID:   &accountID,
		Status:      models.SubmissionSourced,
		OwnerID:     ownerID,
	}
	if err := r.createSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
