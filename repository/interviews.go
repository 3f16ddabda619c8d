package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
)

// InterviewFilter narrows ListInterviews.
type InterviewFilter struct {
	Page
	Status       string
	SubmissionID string
}

func (r *GORMRepository) ListInterviews(ctx context.Context, orgID string, f InterviewFilter) ([]models.Interview, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Interview{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SubmissionID != "" {
		q = q.Where("submission_id = ?", f.SubmissionID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var interviews []models.Interview
	if err := q.Preload("Feedback").Order("scheduled_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&interviews).Error; err != nil {
		slog.Error("Failed to list interviews", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return interviews, total, nil
}

func (r *GORMRepository) GetInterview(ctx context.Context, orgID, id string) (*models.Interview, error) {
	var iv models.Interview
	if err := first(r.org(ctx, orgID).Preload("Feedback").Where("id = ?", id), &iv); err != nil {
		return nil, err
	}
	return &iv, nil
}

// ScheduleInterview books an interview for an open submission. Job and
// candidate are taken from the submission. Client interviews pull the
// submission forward to client_interview.
func (r *GORMRepository) ScheduleInterview(ctx context.Context, iv *models.Interview) error {
	if !iv.ScheduledAt.After(time.Now()) {
		return Invalid("scheduled_at must be in the future")
	}
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var sub models.Submission
		if err := first(tx.org(ctx, iv.OrgID).Where("id = ?", iv.SubmissionID), &sub); err != nil {
			return err
		}
		if models.IsTerminalSubmission(sub.Status) {
			return Invalid("cannot schedule an interview for a %s submission", sub.Status)
		}
		iv.JobID = sub.JobID
		iv.CandidateID = sub.CandidateID
		if iv.Status == "" {
			iv.Status = models.InterviewScheduled
		}
		if err := tx.db.Create(iv).Error; err != nil {
			return mapError(err)
		}
		if iv.InterviewType == models.InterviewTypeClient {
			return tx.advanceSubmission(ctx, iv.OrgID, sub.ID, models.SubmissionClientInterview)
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to schedule interview", "error", err, "submission_id", iv.SubmissionID)
		return err
	}
	slog.Info("Interview scheduled", "interview_id", iv.ID, "submission_id", iv.SubmissionID, "at", iv.ScheduledAt)
	return nil
}

// UpdateInterview applies a partial update. A new scheduled_at must be in
// the future.
func (r *GORMRepository) UpdateInterview(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Interview, error) {
	iv, err := r.GetInterview(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if at, ok := changes["scheduled_at"].(time.Time); ok && !at.After(time.Now()) {
		return nil, Invalid("scheduled_at must be in the future")
	}
	if iv.Status == models.InterviewCancelled || iv.Status == models.InterviewCompleted {
		if _, ok := changes["scheduled_at"]; ok {
			return nil, Invalid("cannot reschedule a %s interview", iv.Status)
		}
	}
	if err := r.db.WithContext(ctx).Model(&models.Interview{ID: iv.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update interview", "error", err, "interview_id", id)
		return nil, mapError(err)
	}
	return r.GetInterview(ctx, orgID, id)
}

func (r *GORMRepository) setInterviewStatus(ctx context.Context, orgID, id, to string, from []string, extra map[string]interface{}) (*models.Interview, error) {
	iv, err := r.GetInterview(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(from, iv.Status) {
		return nil, Transition("interview", iv.Status, to)
	}
	changes := map[string]interface{}{"status": to}
	for k, v := range extra {
		changes[k] = v
	}
	if err := r.db.WithContext(ctx).Model(&models.Interview{ID: iv.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to change interview status", "error", err, "interview_id", id, "status", to)
		return nil, mapError(err)
	}
	slog.Info("Interview status changed", "interview_id", id, "from", iv.Status, "to", to)
	return r.GetInterview(ctx, orgID, id)
}

func (r *GORMRepository) CancelInterview(ctx context.Context, orgID, id, reason string) (*models.Interview, error) {
	return r.setInterviewStatus(ctx, orgID, id, models.InterviewCancelled,
		[]string{models.InterviewScheduled, models.InterviewConfirmed},
		map[string]interface{}{"cancellation_reason": reason})
}

func (r *GORMRepository) MarkInterviewNoShow(ctx context.Context, orgID, id string) (*models.Interview, error) {
	return r.setInterviewStatus(ctx, orgID, id, models.InterviewNoShow,
		[]string{models.InterviewScheduled, models.InterviewConfirmed, models.InterviewInProgress}, nil)
}

var feedbackStatuses = []string{
	models.InterviewScheduled,
	models.InterviewConfirmed,
	models.InterviewInProgress,
	models.InterviewCompleted,
}

// RecordFeedback stores the one scorecard an interview may have and marks
// the interview completed.
func (r *GORMRepository) RecordFeedback(ctx context.Context, fb *models.InterviewFeedback) error {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var iv models.Interview
		if err := first(tx.org(ctx, fb.OrgID).Where("id = ?", fb.InterviewID), &iv); err != nil {
			return err
		}
		if !models.Contains(feedbackStatuses, iv.Status) {
			return Invalid("cannot record feedback for a %s interview", iv.Status)
		}
		var n int64
		if err := tx.db.Model(&models.InterviewFeedback{}).Where("interview_id = ?", iv.ID).Count(&n).Error; err != nil {
			return mapError(err)
		}
		if n > 0 {
			return Conflict("feedback already recorded for this interview")
		}
		if err := tx.db.Create(fb).Error; err != nil {
			return mapError(err)
		}
		return mapError(tx.db.Model(&iv).Update("status", models.InterviewCompleted).Error)
	})
	if err != nil {
		slog.Error("Failed to record interview feedback", "error", err, "interview_id", fb.InterviewID)
		return err
	}
	slog.Info("Interview feedback recorded", "interview_id", fb.InterviewID, "rating", fb.Rating, "recommendation", fb.Recommendation)
	return nil
}
