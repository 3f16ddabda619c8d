package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
)

// TimesheetFilter narrows ListTimesheets.
type TimesheetFilter struct {
	Page
	Status      string
	PlacementID string
}

func (r *GORMRepository) ListTimesheets(ctx context.Context, orgID string, f TimesheetFilter) ([]models.Timesheet, error) {
	q := r.org(ctx, orgID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PlacementID != "" {
		q = q.Where("placement_id = ?", f.PlacementID)
	}
	var sheets []models.Timesheet
	if err := q.Order("period_start DESC").Limit(f.Limit).Offset(f.Offset).Find(&sheets).Error; err != nil {
		slog.Error("Failed to list timesheets", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return sheets, nil
}

func (r *GORMRepository) GetTimesheet(ctx context.Context, orgID, id string) (*models.Timesheet, error) {
	var ts models.Timesheet
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (r *GORMRepository) CreateTimesheet(ctx context.Context, ts *models.Timesheet) error {
	if ts.PeriodEnd.Before(ts.PeriodStart) {
		return Invalid("period_end must not be before period_start")
	}
	if _, err := r.GetPlacement(ctx, ts.OrgID, ts.PlacementID); err != nil {
		return err
	}
	ts.Status = models.TimesheetDraft
	if err := r.db.WithContext(ctx).Create(ts).Error; err != nil {
		slog.Error("Failed to create timesheet", "error", err, "placement_id", ts.PlacementID)
		return mapError(err)
	}
	slog.Info("Timesheet created", "timesheet_id", ts.ID, "placement_id", ts.PlacementID)
	return nil
}

func (r *GORMRepository) moveTimesheet(ctx context.Context, orgID, id, to string, from []string, extra map[string]interface{}) (*models.Timesheet, error) {
	ts, err := r.GetTimesheet(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(from, ts.Status) {
		return nil, Transition("timesheet", ts.Status, to)
	}
	changes := map[string]interface{}{"status": to}
	for k, v := range extra {
		changes[k] = v
	}
	if err := r.db.WithContext(ctx).Model(ts).Updates(changes).Error; err != nil {
		slog.Error("Failed to update timesheet", "error", err, "timesheet_id", id)
		return nil, mapError(err)
	}
	slog.Info("Timesheet status changed", "timesheet_id", id, "to", to)
	return r.GetTimesheet(ctx, orgID, id)
}

func (r *GORMRepository) SubmitTimesheet(ctx context.Context, orgID, id string) (*models.Timesheet, error) {
	return r.moveTimesheet(ctx, orgID, id, models.TimesheetSubmitted,
		[]string{models.TimesheetDraft, models.TimesheetRejected}, nil)
}

func (r *GORMRepository) ApproveTimesheet(ctx context.Context, orgID, id, approverID string) (*models.Timesheet, error) {
	return r.moveTimesheet(ctx, orgID, id, models.TimesheetApproved,
		[]string{models.TimesheetSubmitted},
		map[string]interface{}{"approved_at": time.Now(), "approved_by": approverID})
}

func (r *GORMRepository) RejectTimesheet(ctx context.Context, orgID, id string) (*models.Timesheet, error) {
	return r.moveTimesheet(ctx, orgID, id, models.TimesheetRejected,
		[]string{models.TimesheetSubmitted}, nil)
}
