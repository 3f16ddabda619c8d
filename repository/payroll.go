package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/payroll"
	"gorm.io/gorm"
)

func (r *GORMRepository) ListPayPeriods(ctx context.Context, orgID string) ([]models.PayPeriod, error) {
	var out []models.PayPeriod
	if err := r.org(ctx, orgID).Order("period_start DESC").Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *GORMRepository) GetPayPeriod(ctx context.Context, orgID, id string) (*models.PayPeriod, error) {
	var p models.PayPeriod
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GORMRepository) CreatePayPeriod(ctx context.Context, p *models.PayPeriod) error {
	if !p.PeriodEnd.After(p.PeriodStart) {
		return Invalid("period_end must be after period_start")
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		slog.Error("Failed to create pay period", "error", err, "org_id", p.OrgID)
		return mapError(err)
	}
	slog.Info("Pay period created", "pay_period_id", p.ID, "start", p.PeriodStart, "end", p.PeriodEnd)
	return nil
}

// CurrentPayPeriod returns the period containing now, falling back to the
// most recent one.
func (r *GORMRepository) CurrentPayPeriod(ctx context.Context, orgID string, now time.Time) (*models.PayPeriod, error) {
	var p models.PayPeriod
	err := r.org(ctx, orgID).Where("period_start <= ? AND period_end >= ?", now, now).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, mapError(err)
	}
	if err := first(r.org(ctx, orgID).Order("period_start DESC"), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GORMRepository) ListPayRuns(ctx context.Context, orgID, status string) ([]models.PayRun, error) {
	q := r.org(ctx, orgID).Preload("PayPeriod")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.PayRun
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list pay runs", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return out, nil
}

func (r *GORMRepository) GetPayRun(ctx context.Context, orgID, id string) (*models.PayRun, error) {
	var run models.PayRun
	err := first(r.org(ctx, orgID).
		Preload("PayPeriod").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("worker_id") }).
		Preload("Items.Worker").
		Where("id = ?", id), &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetPayRunByExternalID finds a run pushed to a payroll provider.
func (r *GORMRepository) GetPayRunByExternalID(ctx context.Context, orgID, externalID string) (*models.PayRun, error) {
	var run models.PayRun
	if err := first(r.org(ctx, orgID).Where("external_run_id = ?", externalID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// CreatePayRun opens a draft run numbered PR-YYYYMMDD-NNN.
func (r *GORMRepository) CreatePayRun(ctx context.Context, run *models.PayRun) error {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		period, err := tx.GetPayPeriod(ctx, run.OrgID, run.PayPeriodID)
		if err != nil {
			return err
		}
		now := time.Now()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		var n int64
		if err := tx.org(ctx, run.OrgID).Model(&models.PayRun{}).Unscoped().
			Where("created_at >= ?", day).Count(&n).Error; err != nil {
			return mapError(err)
		}
		run.RunNumber = payroll.RunNumber(now, int(n)+1)
		run.Status = models.PayRunDraft
		if run.RunType == "" {
			run.RunType = "regular"
		}
		if run.CheckDate.IsZero() {
			run.CheckDate = period.PayDate
		}
		return mapError(tx.db.Create(run).Error)
	})
	if err != nil {
		slog.Error("Failed to create pay run", "error", err, "pay_period_id", run.PayPeriodID)
		return err
	}
	slog.Info("Pay run created", "pay_run_id", run.ID, "run_number", run.RunNumber)
	return nil
}

func (r *GORMRepository) guardRun(ctx context.Context, orgID, id, action string) (*models.PayRun, error) {
	var run models.PayRun
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &run); err != nil {
		return nil, err
	}
	if !payroll.CanRun(action, run.Status) {
		return nil, Invalid("cannot %s a %s pay run", strings.ReplaceAll(action, "_", " "), run.Status)
	}
	return &run, nil
}

func (r *GORMRepository) UpdatePayRun(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.PayRun, error) {
	run, err := r.guardRun(ctx, orgID, id, "update")
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(run).Updates(changes).Error; err != nil {
		return nil, mapError(err)
	}
	return r.GetPayRun(ctx, orgID, id)
}

func (r *GORMRepository) DeletePayRun(ctx context.Context, orgID, id string) error {
	run, err := r.guardRun(ctx, orgID, id, "delete")
	if err != nil {
		return err
	}
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := tx.db.Where("pay_run_id = ?", run.ID).Delete(&models.PayItem{}).Error; err != nil {
			return mapError(err)
		}
		return mapError(tx.db.Delete(run).Error)
	})
}

// payableTimesheets loads approved, unlinked timesheets with their
// placements. Explicit ids win over the period window.
func (r *GORMRepository) payableTimesheets(ctx context.Context, orgID string, period *models.PayPeriod, ids []string) ([]models.Timesheet, error) {
	q := r.org(ctx, orgID).Preload("Placement").
		Where("status = ? AND payroll_run_id IS NULL", models.TimesheetApproved)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	} else {
		q = q.Where("period_end >= ? AND period_start <= ?", period.PeriodStart, period.PeriodEnd)
	}
	var sheets []models.Timesheet
	if err := q.Order("period_start").Find(&sheets).Error; err != nil {
		return nil, mapError(err)
	}
	return sheets, nil
}

// CalculatePayRun replaces the run's items with a fresh calculation from
// approved timesheets and stores the totals.
func (r *GORMRepository) CalculatePayRun(ctx context.Context, orgID, id string, timesheetIDs []string) (*models.PayRun, error) {
	run, err := r.guardRun(ctx, orgID, id, "calculate")
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(run).Update("status", models.PayRunCalculating).Error; err != nil {
		return nil, mapError(err)
	}

	err = r.Transaction(ctx, func(tx *GORMRepository) error {
		period, err := tx.GetPayPeriod(ctx, orgID, run.PayPeriodID)
		if err != nil {
			return err
		}
		sheets, err := tx.payableTimesheets(ctx, orgID, period, timesheetIDs)
		if err != nil {
			return err
		}

		entries := make([]payroll.Entry, 0, len(sheets))
		for _, ts := range sheets {
			if ts.Placement == nil {
				continue
			}
			entries = append(entries, payroll.Entry{
				TimesheetID:    ts.ID,
				WorkerID:       ts.Placement.CandidateID,
				PlacementID:    ts.PlacementID,
				Regular:        ts.TotalRegularHours,
				Overtime:       ts.TotalOvertimeHours,
				DoubleTime:     ts.TotalDoubleTimeHours,
				PTO:            ts.TotalPTOHours,
				Holiday:        ts.TotalHolidayHours,
				PayRate:        ts.Placement.PayRate,
				OvertimeRate:   ts.Placement.OvertimePayRate,
				DoubleTimeRate: ts.Placement.DoubleTimePayRate,
			})
		}
		res := payroll.Calculate(entries)

		if err := tx.db.Where("pay_run_id = ?", run.ID).Delete(&models.PayItem{}).Error; err != nil {
			return mapError(err)
		}
		for _, l := range res.Lines {
			item := payItem(orgID, run.ID, l)
			if err := tx.db.Create(&item).Error; err != nil {
				return mapError(err)
			}
		}
		now := time.Now()
		return mapError(tx.db.Model(&models.PayRun{ID: run.ID}).Updates(map[string]interface{}{
			"status":               models.PayRunDraft,
			"total_gross":          res.Gross,
			"total_employee_taxes": res.EmployeeTax,
			"total_employer_taxes": res.EmployerTax,
			"total_net":            res.Net,
			"total_employer_cost":  res.EmployerCost,
			"employee_count":       0,
			"contractor_count":     len(res.Lines),
			"calculated_at":        now,
		}).Error)
	})
	if err != nil {
		slog.Error("Failed to calculate pay run", "error", err, "pay_run_id", id)
		// leave the run editable
		if rerr := r.db.WithContext(ctx).Model(&models.PayRun{}).
			Where("id = ? AND status = ?", run.ID, models.PayRunCalculating).
			Update("status", models.PayRunDraft).Error; rerr != nil {
			slog.Error("Failed to reset pay run to draft", "error", rerr, "pay_run_id", id)
			return nil, errors.Join(err, mapError(rerr))
		}
		return nil, err
	}
	slog.Info("Pay run calculated", "pay_run_id", id)
	return r.GetPayRun(ctx, orgID, id)
}

func payItem(orgID, runID string, l payroll.Line) models.PayItem {
	var placementID *string
	if l.PlacementID != "" {
		p := l.PlacementID
		placementID = &p
	}
	return models.PayItem{
		OrgID:              orgID,
		PayRunID:           runID,
		WorkerID:           l.WorkerID,
		PlacementID:        placementID,
		WorkerType:         "consultant",
		RegularHours:       l.RegularHours,
		OvertimeHours:      l.OvertimeHours,
		DoubleTimeHours:    l.DoubleTimeHours,
		PTOHours:           l.PTOHours,
		HolidayHours:       l.HolidayHours,
		RegularRate:        l.RegularRate,
		OvertimeRate:       l.OvertimeRate,
		DoubleTimeRate:     l.DoubleTimeRate,
		RegularEarnings:    l.RegularEarnings,
		OvertimeEarnings:   l.OvertimeEarnings,
		DoubleTimeEarnings: l.DoubleTimeEarnings,
		PTOEarnings:        l.PTOEarnings,
		HolidayEarnings:    l.HolidayEarnings,
		GrossPay:           l.Gross,
		FederalIncomeTax:   l.FederalTax,
		StateIncomeTax:     l.StateTax,
		SocialSecurityTax:  l.SSTax,
		MedicareTax:        l.MedicareTax,
		TotalEmployeeTaxes: l.EmployeeTax,
		EmployerSSTax:      l.EmployerSS,
		EmployerMedicare:   l.EmployerMedicare,
		FUTATax:            l.FUTA,
		SUTATax:            l.SUTA,
		TotalEmployerTaxes: l.EmployerTax,
		NetPay:             l.Net,
		TimesheetIDs:       strings.Join(l.TimesheetIDs, ","),
	}
}

func (r *GORMRepository) SubmitPayRunForApproval(ctx context.Context, orgID, id string) (*models.PayRun, error) {
	run, err := r.guardRun(ctx, orgID, id, "submit_for_approval")
	if err != nil {
		return nil, err
	}
	if run.TotalGross <= 0 {
		return nil, Invalid("pay run has no gross pay; calculate it first")
	}
	if err := r.db.WithContext(ctx).Model(run).Update("status", models.PayRunPendingApproval).Error; err != nil {
		return nil, mapError(err)
	}
	slog.Info("Pay run submitted for approval", "pay_run_id", id)
	return r.GetPayRun(ctx, orgID, id)
}

func (r *GORMRepository) ApprovePayRun(ctx context.Context, orgID, id, approverID string) (*models.PayRun, error) {
	run, err := r.guardRun(ctx, orgID, id, "approve")
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      models.PayRunApproved,
		"approved_at": time.Now(),
		"approved_by": approverID,
	}).Error
	if err != nil {
		return nil, mapError(err)
	}
	slog.Info("Pay run approved", "pay_run_id", id, "approved_by", approverID)
	return r.GetPayRun(ctx, orgID, id)
}

// ClaimPayRun moves an approved run to processing. Only one caller can
// claim a run; the others get ErrConflict.
func (r *GORMRepository) ClaimPayRun(ctx context.Context, orgID, id string) (*models.PayRun, error) {
	if _, err := r.guardRun(ctx, orgID, id, "process"); err != nil {
		return nil, err
	}
	res := r.org(ctx, orgID).Model(&models.PayRun{}).
		Where("id = ? AND status = ?", id, models.PayRunApproved).
		Update("status", models.PayRunProcessing)
	if res.Error != nil {
		return nil, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Conflict("pay run is already being processed")
	}
	return r.GetPayRun(ctx, orgID, id)
}

// ReleasePayRun returns a claimed run to approved so it can be retried.
func (r *GORMRepository) ReleasePayRun(ctx context.Context, orgID, id string) error {
	err := r.org(ctx, orgID).Model(&models.PayRun{}).
		Where("id = ? AND status = ?", id, models.PayRunProcessing).
		Update("status", models.PayRunApproved).Error
	if err != nil {
		slog.Error("Failed to release pay run", "error", err, "pay_run_id", id)
		return mapError(err)
	}
	return nil
}

// MarkPayRunProcessed links a claimed run's timesheets as processed. A run
// handed to a provider (externalID set) is submitted and completes later by
// webhook; otherwise it is completed now.
func (r *GORMRepository) MarkPayRunProcessed(ctx context.Context, orgID, id, userID, provider string, externalID *string) (*models.PayRun, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		run, err := tx.guardRun(ctx, orgID, id, "finish_processing")
		if err != nil {
			return err
		}
		var items []models.PayItem
		if err := tx.db.Where("pay_run_id = ?", run.ID).Find(&items).Error; err != nil {
			return mapError(err)
		}
		var ids []string
		seen := map[string]bool{}
		for _, it := range items {
			if it.TimesheetIDs == "" {
				continue
			}
			for _, tid := range strings.Split(it.TimesheetIDs, ",") {
				if !seen[tid] {
					seen[tid] = true
					ids = append(ids, tid)
				}
			}
		}
		now := time.Now()
		if len(ids) > 0 {
			res := tx.org(ctx, orgID).Model(&models.Timesheet{}).
				Where("id IN ? AND status = ? AND payroll_run_id IS NULL", ids, models.TimesheetApproved).
				Updates(map[string]interface{}{
					"status":         models.TimesheetProcessed,
					"payroll_run_id": run.ID,
					"processed_at":   now,
					"processed_by":   userID,
				})
			if res.Error != nil {
				return mapError(res.Error)
			}
			if int(res.RowsAffected) < len(ids) {
				return Conflict("%d of %d timesheets are no longer payable; recalculate the run", len(ids)-int(res.RowsAffected), len(ids))
			}
		}
		changes := map[string]interface{}{"processed_at": now}
		if externalID != nil {
			changes["status"] = models.PayRunSubmitted
			changes["submitted_at"] = now
			changes["payroll_provider"] = provider
			changes["external_run_id"] = *externalID
		} else {
			changes["status"] = models.PayRunCompleted
		}
		return mapError(tx.db.Model(run).Updates(changes).Error)
	})
	if err != nil {
		slog.Error("Failed to process pay run", "error", err, "pay_run_id", id)
		return nil, err
	}
	slog.Info("Pay run processed", "pay_run_id", id, "provider", provider)
	return r.GetPayRun(ctx, orgID, id)
}

// CompleteExternalPayRun finishes a run the provider reports as paid.
func (r *GORMRepository) CompleteExternalPayRun(ctx context.Context, orgID, externalID string) (*models.PayRun, error) {
	run, err := r.GetPayRunByExternalID(ctx, orgID, externalID)
	if err != nil {
		return nil, err
	}
	if run.Status == models.PayRunCompleted || run.Status == models.PayRunVoid {
		return run, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.PayRun{ID: run.ID}).
		Update("status", models.PayRunCompleted).Error; err != nil {
		return nil, mapError(err)
	}
	slog.Info("Pay run completed by provider", "pay_run_id", run.ID, "external_run_id", externalID)
	return r.GetPayRun(ctx, orgID, run.ID)
}

// VoidPayRun cancels a run and releases its timesheets back to approved.
func (r *GORMRepository) VoidPayRun(ctx context.Context, orgID, id, reason string) (*models.PayRun, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		run, err := tx.guardRun(ctx, orgID, id, "void")
		if err != nil {
			return err
		}
		if err := tx.org(ctx, orgID).Model(&models.Timesheet{}).Where("payroll_run_id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":         models.TimesheetApproved,
				"payroll_run_id": nil,
				"processed_at":   nil,
				"processed_by":   nil,
			}).Error; err != nil {
			return mapError(err)
		}
		return mapError(tx.db.Model(run).Updates(map[string]interface{}{
			"status": models.PayRunVoid,
			"notes":  payroll.VoidNotes(run.Status, run.Notes, reason),
		}).Error)
	})
	if err != nil {
		slog.Error("Failed to void pay run", "error", err, "pay_run_id", id)
		return nil, err
	}
	slog.Info("Pay run voided", "pay_run_id", id)
	return r.GetPayRun(ctx, orgID, id)
}

// PayrollStats summarises pay runs.
type PayrollStats struct {
	ByStatus        map[string]int64 `json:"by_status"`
	YTDGross        float64          `json:"ytd_gross"`
	PendingApproval int64            `json:"pending_approval"`
}

func (r *GORMRepository) PayrollStats(ctx context.Context, orgID string, now time.Time) (*PayrollStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.org(ctx, orgID).Model(&models.PayRun{}).
		Select("status, count(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	s := &PayrollStats{ByStatus: map[string]int64{}}
	for _, row := range rows {
		s.ByStatus[row.Status] = row.Count
	}
	s.PendingApproval = s.ByStatus[models.PayRunPendingApproval]

	var gross *float64
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	if err := r.org(ctx, orgID).Model(&models.PayRun{}).
		Select("SUM(total_gross)").
		Where("status IN ? AND check_date >= ?", []string{models.PayRunCompleted, models.PayRunSubmitted}, yearStart).
		Scan(&gross).Error; err != nil {
		return nil, mapError(err)
	}
	if gross != nil {
		s.YTDGross = payroll.Round(*gross)
	}
	return s, nil
}
