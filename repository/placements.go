package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
)

// PlacementFilter narrows ListPlacements.
type PlacementFilter struct {
	Page
	Status    string
	AccountID string
}

func (r *GORMRepository) ListPlacements(ctx context.Context, orgID string, f PlacementFilter) ([]models.Placement, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Placement{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var placements []models.Placement
	if err := q.Preload("Candidate").Order("start_date DESC").Limit(f.Limit).Offset(f.Offset).Find(&placements).Error; err != nil {
		slog.Error("Failed to list placements", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return placements, total, nil
}

func (r *GORMRepository) GetPlacement(ctx context.Context, orgID, id string) (*models.Placement, error) {
	var p models.Placement
	if err := first(r.org(ctx, orgID).Preload("Candidate").Where("id = ?", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlacement starts an engagement from a submission. The submission
// becomes placed and the candidate's status placed.
func (r *GORMRepository) CreatePlacement(ctx context.Context, p *models.Placement) error {
	if p.BillRate < p.PayRate {
		return Invalid("bill_rate must be at least pay_rate")
	}
	if p.EndDate != nil && !p.EndDate.After(p.StartDate) {
		return Invalid("end_date must be after start_date")
	}
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var sub models.Submission
		if err := first(tx.org(ctx, p.OrgID).Where("id = ?", p.SubmissionID), &sub); err != nil {
			return err
		}
		if sub.Status == models.SubmissionPlaced {
			return Conflict("submission is already placed")
		}
		if !models.CanTransitionSubmission(sub.Status, models.SubmissionPlaced) {
			return Transition("submission", sub.Status, models.SubmissionPlaced)
		}
		var existing int64
		if err := tx.db.Model(&models.Placement{}).Where("submission_id = ?", sub.ID).Count(&existing).Error; err != nil {
			return mapError(err)
		}
		if existing > 0 {
			return Conflict("submission already has a placement")
		}
		p.JobID = sub.JobID
		p.CandidateID = sub.CandidateID
		if p.AccountID == nil {
			p.AccountID = sub.AccountID
		}
		if p.Status == "" {
			p.Status = models.PlacementPendingStart
		}
		if err := tx.db.Create(p).Error; err != nil {
			return mapError(err)
		}
		if err := tx.setSubmissionStatus(ctx, p.OrgID, sub.ID, models.SubmissionPlaced, nil); err != nil {
			return err
		}
		return mapError(tx.db.Model(&models.UserProfile{}).Where("id = ?", sub.CandidateID).
			Update("candidate_status", models.CandidatePlaced).Error)
	})
	if err != nil {
		slog.Error("Failed to create placement", "error", err, "submission_id", p.SubmissionID)
		return err
	}
	slog.Info("Placement created", "placement_id", p.ID, "candidate_id", p.CandidateID)
	return nil
}

func (r *GORMRepository) UpdatePlacement(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Placement, error) {
	p, err := r.GetPlacement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	bill, pay := p.BillRate, p.PayRate
	if v, ok := changes["bill_rate"].(float64); ok {
		bill = v
	}
	if v, ok := changes["pay_rate"].(float64); ok {
		pay = v
	}
	if bill < pay {
		return nil, Invalid("bill_rate must be at least pay_rate")
	}
	if err := r.db.WithContext(ctx).Model(&models.Placement{ID: p.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update placement", "error", err, "placement_id", id)
		return nil, mapError(err)
	}
	return r.GetPlacement(ctx, orgID, id)
}

var liveStatuses = []string{models.PlacementPendingStart, models.PlacementActive, models.PlacementExtended}

// ExtendPlacement pushes the end date out and counts the extension.
func (r *GORMRepository) ExtendPlacement(ctx context.Context, orgID, id string, newEnd time.Time) (*models.Placement, error) {
	p, err := r.GetPlacement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(liveStatuses, p.Status) {
		return nil, Transition("placement", p.Status, models.PlacementExtended)
	}
	current := p.StartDate
	if p.EndDate != nil {
		current = *p.EndDate
	}
	if !newEnd.After(current) {
		return nil, Invalid("new end date must be after %s", current.Format("2006-01-02"))
	}
	changes := map[string]interface{}{
		"status":          models.PlacementExtended,
		"end_date":        newEnd,
		"extension_count": p.ExtensionCount + 1,
	}
	if err := r.db.WithContext(ctx).Model(&models.Placement{ID: p.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to extend placement", "error", err, "placement_id", id)
		return nil, mapError(err)
	}
	slog.Info("Placement extended", "placement_id", id, "end_date", newEnd, "extensions", p.ExtensionCount+1)
	return r.GetPlacement(ctx, orgID, id)
}

// TerminatePlacement ends a live placement early.
func (r *GORMRepository) TerminatePlacement(ctx context.Context, orgID, id string, endDate time.Time, reason, notes string) (*models.Placement, error) {
	if !models.Contains(models.TerminationReasons, reason) {
		return nil, Invalid("unknown termination reason %q", reason)
	}
	p, err := r.GetPlacement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(liveStatuses, p.Status) {
		return nil, Transition("placement", p.Status, models.PlacementTerminated)
	}
	changes := map[string]interface{}{
		"status":             models.PlacementTerminated,
		"actual_end_date":    endDate,
		"termination_reason": reason,
		"termination_notes":  notes,
	}
	err = r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := tx.db.Model(&models.Placement{ID: p.ID}).Updates(changes).Error; err != nil {
			return mapError(err)
		}
		return mapError(tx.db.Model(&models.UserProfile{}).Where("id = ?", p.CandidateID).
			Update("candidate_status", models.CandidateBench).Error)
	})
	if err != nil {
		slog.Error("Failed to terminate placement", "error", err, "placement_id", id)
		return nil, err
	}
	slog.Info("Placement terminated", "placement_id", id, "reason", reason)
	return r.GetPlacement(ctx, orgID, id)
}

func (r *GORMRepository) CountActivePlacements(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.org(ctx, orgID).Model(&models.Placement{}).
		Where("status IN ?", []string{models.PlacementActive, models.PlacementExtended}).
		Count(&n).Error
	return n, mapError(err)
}
