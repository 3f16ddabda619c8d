package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/board"
	"github.com/krshsl/staffline/models"
)

// SubmissionFilter narrows ListSubmissions.
type SubmissionFilter struct {
	Page
	Status      string
	JobID       string
	CandidateID string
}

func (r *GORMRepository) ListSubmissions(ctx context.Context, orgID string, f SubmissionFilter) ([]models.Submission, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Submission{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.JobID != "" {
		q = q.Where("job_id = ?", f.JobID)
	}
	if f.CandidateID != "" {
		q = q.Where("candidate_id = ?", f.CandidateID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var subs []models.Submission
	err := q.Preload("Job").Preload("Candidate").
		Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).
		Find(&subs).Error
	if err != nil {
		slog.Error("Failed to list submissions", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return subs, total, nil
}

// ListSubmissionsByAccount returns the account's submissions with the
// candidate and job loaded.
func (r *GORMRepository) ListSubmissionsByAccount(ctx context.Context, orgID, accountID string) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.org(ctx, orgID).
		Where("account_id = ?", accountID).
		Preload("Job").Preload("Candidate").
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		slog.Error("Failed to list account submissions", "error", err, "account_id", accountID)
		return nil, mapError(err)
	}
	return subs, nil
}

func (r *GORMRepository) GetSubmission(ctx context.Context, orgID, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := first(r.org(ctx, orgID).Preload("Job").Preload("Candidate").Where("id = ?", id), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *GORMRepository) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		job, err := tx.GetJob(ctx, sub.OrgID, sub.JobID)
		if err != nil {
			return err
		}
		if _, err := tx.GetCandidate(ctx, sub.OrgID, sub.CandidateID); err != nil {
			return err
		}
		if sub.AccountID == nil {
			sub.AccountID = job.AccountID
		}
		if sub.Status == "" {
			sub.Status = models.SubmissionSourced
		}
		return tx.createSubmission(ctx, sub)
	})
}

func (r *GORMRepository) createSubmission(ctx context.Context, sub *models.Submission) error {
	var n int64
	if err := r.org(ctx, sub.OrgID).Model(&models.Submission{}).
		Where("job_id = ? AND candidate_id = ?", sub.JobID, sub.CandidateID).
		Count(&n).Error; err != nil {
		return mapError(err)
	}
	if n > 0 {
		return Conflict("candidate is already submitted to this job")
	}
	var maxOrder *int
	if err := r.org(ctx, sub.OrgID).Model(&models.Submission{}).
		Where("job_id = ? AND status = ?", sub.JobID, sub.Status).
		Select("MAX(pipeline_order)").Scan(&maxOrder).Error; err != nil {
		slog.Error("Failed to read pipeline order", "error", err, "job_id", sub.JobID)
		return mapError(err)
	}
	if maxOrder != nil {
		sub.PipelineOrder = *maxOrder + 1
	}

	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		slog.Error("Failed to create submission", "error", err, "job_id", sub.JobID)
		return mapError(err)
	}
	slog.Info("Submission created", "submission_id", sub.ID, "job_id", sub.JobID, "candidate_id", sub.CandidateID)
	return nil
}

func (r *GORMRepository) UpdateSubmission(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Submission, error) {
	sub, err := r.GetSubmission(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Submission{ID: sub.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update submission", "error", err, "submission_id", id)
		return nil, mapError(err)
	}
	return r.GetSubmission(ctx, orgID, id)
}

// statusChanges returns the columns written when a submission enters to.
func statusChanges(to string, now time.Time) map[string]interface{} {
	changes := map[string]interface{}{"status": to, "updated_at": now}
	switch to {
	case models.SubmissionSubmittedToClient:
		changes["submitted_to_client_at"] = now
	case models.SubmissionClientAccepted:
		changes["client_decision"] = "accepted"
	case models.SubmissionClientRejected:
		changes["client_decision"] = "rejected"
		changes["rejected_at"] = now
		changes["rejection_source"] = "client"
	case models.SubmissionVendorRejected:
		changes["rejected_at"] = now
		changes["rejection_source"] = "vendor"
	case models.SubmissionRejected:
		changes["rejected_at"] = now
		changes["rejection_source"] = "internal"
	case models.SubmissionSourced, models.SubmissionScreening:
		changes["rejected_at"] = nil
	}
	return changes
}

// UpdateSubmissionStatus moves a submission to status after checking the
// transition table. Notes, when given, replace the submission notes.
func (r *GORMRepository) UpdateSubmissionStatus(ctx context.Context, orgID, id, status string, notes *string) (*models.Submission, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		return tx.setSubmissionStatus(ctx, orgID, id, status, notes)
	})
	if err != nil {
		return nil, err
	}
	return r.GetSubmission(ctx, orgID, id)
}

func (r *GORMRepository) setSubmissionStatus(ctx context.Context, orgID, id, status string, notes *string) error {
	var sub models.Submission
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &sub); err != nil {
		return err
	}
	if !models.CanTransitionSubmission(sub.Status, status) {
		return Transition("submission", sub.Status, status)
	}
	changes := statusChanges(status, time.Now())
	if notes != nil {
		changes["submission_notes"] = *notes
	}
	if err := r.db.WithContext(ctx).Model(&sub).Updates(changes).Error; err != nil {
		slog.Error("Failed to update submission status", "error", err, "submission_id", id)
		return mapError(err)
	}
	slog.Info("Submission status changed", "submission_id", id, "from", sub.Status, "to", status)
	return nil
}

// advanceSubmission moves a submission forward to status unless it is
// already at or past it, or terminal.
func (r *GORMRepository) advanceSubmission(ctx context.Context, orgID, id, status string) error {
	var sub models.Submission
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &sub); err != nil {
		return err
	}
	if models.IsTerminalSubmission(sub.Status) || models.StageIndex(sub.Status) >= models.StageIndex(status) {
		return nil
	}
	return r.setSubmissionStatus(ctx, orgID, id, status, nil)
}

var submittableStatuses = []string{models.SubmissionSourced, models.SubmissionScreening, models.SubmissionVendorAccepted}

// SubmitToClient sends a submission to the client from sourced, screening
// or vendor_accepted.
func (r *GORMRepository) SubmitToClient(ctx context.Context, orgID, id string, rate *float64, notes *string) (*models.Submission, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var sub models.Submission
		if err := first(tx.org(ctx, orgID).Where("id = ?", id), &sub); err != nil {
			return err
		}
		if !models.Contains(submittableStatuses, sub.Status) {
			return Transition("submission", sub.Status, models.SubmissionSubmittedToClient)
		}
		changes := statusChanges(models.SubmissionSubmittedToClient, time.Now())
		if rate != nil {
			changes["submitted_rate"] = *rate
		}
		if notes != nil {
			changes["submission_notes"] = *notes
		}
		return mapError(tx.db.Model(&sub).Updates(changes).Error)
	})
	if err != nil {
		slog.Error("Failed to submit to client", "error", err, "submission_id", id)
		return nil, err
	}
	slog.Info("Submission sent to client", "submission_id", id)
	return r.GetSubmission(ctx, orgID, id)
}

// PipelineColumn is one Kanban column.
type PipelineColumn struct {
	Status      string              `json:"status"`
	Submissions []models.Submission `json:"submissions"`
}

// Pipeline groups submissions into status columns, pipeline stages first
// and the closed statuses after them.
func (r *GORMRepository) Pipeline(ctx context.Context, orgID, jobID string) ([]PipelineColumn, error) {
	q := r.org(ctx, orgID).Preload("Candidate").Preload("Job")
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	var subs []models.Submission
	if err := q.Order("pipeline_order, created_at").Find(&subs).Error; err != nil {
		slog.Error("Failed to load pipeline", "error", err, "org_id", orgID, "job_id", jobID)
		return nil, mapError(err)
	}

	byStatus := map[string][]models.Submission{}
	for _, s := range subs {
		byStatus[s.Status] = append(byStatus[s.Status], s)
	}
	cols := make([]PipelineColumn, 0, len(models.SubmissionStatuses))
	for _, status := range models.SubmissionStatuses {
		items := byStatus[status]
		if items == nil {
			items = []models.Submission{}
		}
		cols = append(cols, PipelineColumn{Status: status, Submissions: items})
	}
	return cols, nil
}

// MoveSubmission is the drag-drop form of a status change: the card lands at
// position in the target column of its job and both columns are renumbered.
func (r *GORMRepository) MoveSubmission(ctx context.Context, orgID, id, status string, position int) (*models.Submission, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var sub models.Submission
		if err := first(tx.org(ctx, orgID).Where("id = ?", id), &sub); err != nil {
			return err
		}
		if !models.CanTransitionSubmission(sub.Status, status) {
			return Transition("submission", sub.Status, status)
		}

		b := board.Board{sub.Status: nil, status: nil}
		var peers []models.Submission
		if err := tx.org(ctx, orgID).
			Where("job_id = ? AND status IN ?", sub.JobID, []string{sub.Status, status}).
			Order("pipeline_order, created_at").
			Find(&peers).Error; err != nil {
			return mapError(err)
		}
		for _, p := range peers {
			b[p.Status] = append(b[p.Status], p.ID)
		}

		positions, err := board.Move(b, sub.ID, status, position)
		if err != nil {
			return Invalid("%s", err.Error())
		}
		if sub.Status != status {
			if err := tx.db.Model(&sub).Updates(statusChanges(status, time.Now())).Error; err != nil {
				return mapError(err)
			}
		}
		for _, p := range positions {
			if err := tx.db.Model(&models.Submission{}).Where("id = ?", p.ID).
				UpdateColumn("pipeline_order", p.Order).Error; err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to move submission", "error", err, "submission_id", id)
		return nil, err
	}
	slog.Info("Submission moved", "submission_id", id, "status", status, "position", position)
	return r.GetSubmission(ctx, orgID, id)
}
