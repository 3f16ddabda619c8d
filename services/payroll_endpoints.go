package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

type PayrollEndpoints struct {
	repo     *repository.GORMRepository
	registry *integrations.Registry
}

func NewPayrollEndpoints(repo *repository.GORMRepository, registry *integrations.Registry) *PayrollEndpoints {
	return &PayrollEndpoints{repo: repo, registry: registry}
}

func (e *PayrollEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Use(RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager))

		r.Get("/stats", e.StatsHandler)
		r.Get("/periods", e.ListPeriodsHandler)
		r.Post("/periods", e.CreatePeriodHandler)
		r.Get("/periods/current", e.CurrentPeriodHandler)

		r.Get("/runs", e.ListRunsHandler)
		r.Post("/runs", e.CreateRunHandler)
		r.Get("/runs/{id}", e.GetRunHandler)
		r.Patch("/runs/{id}", e.UpdateRunHandler)
		r.Delete("/runs/{id}", e.DeleteRunHandler)
		r.Post("/runs/{id}/calculate", e.CalculateRunHandler)
		r.Post("/runs/{id}/submit", e.SubmitRunHandler)
		r.With(RequireRole(models.RoleOwner, models.RoleAdmin)).Post("/runs/{id}/approve", e.ApproveRunHandler)
		r.With(RequireRole(models.RoleOwner, models.RoleAdmin)).Post("/runs/{id}/process", e.ProcessRunHandler)
		r.With(RequireRole(models.RoleOwner, models.RoleAdmin)).Post("/runs/{id}/void", e.VoidRunHandler)
	})
}

type CreatePayPeriodRequest struct {
	PeriodType  string    `json:"period_type" validate:"omitempty,oneof=weekly biweekly semimonthly monthly"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
	PayDate     time.Time `json:"pay_date" validate:"required"`
}

type CreatePayRunRequest struct {
	PayPeriodID string     `json:"pay_period_id" validate:"required,uuid"`
	RunType     string     `json:"run_type" validate:"omitempty,oneof=regular off_cycle bonus correction"`
	CheckDate   *time.Time `json:"check_date"`
	Notes       string     `json:"notes"`
}

type UpdatePayRunRequest struct {
	RunType   *string    `json:"run_type" validate:"omitempty,oneof=regular off_cycle bonus correction"`
	CheckDate *time.Time `json:"check_date"`
	Notes     *string    `json:"notes"`
}

type CalculatePayRunRequest struct {
	TimesheetIDs []string `json:"timesheet_ids" validate:"omitempty,dive,uuid"`
}

type VoidPayRunRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// audit records a pay run transition and counts it.
func (e *PayrollEndpoints) audit(ctx context.Context, user *models.UserProfile, action string, run *models.PayRun) {
	payRunTransitions.WithLabelValues(run.Status).Inc()
	e.repo.WriteAudit(ctx, &models.AuditLog{
		OrgID:     user.OrgID,
		UserID:    &user.ID,
		UserEmail: user.Email,
		Action:    action,
		Table:     "pay_runs",
		RecordID:  run.ID,
		NewValues: models.JSONMap{"status": run.Status, "run_number": run.RunNumber, "total_gross": run.TotalGross},
	})
}

func (e *PayrollEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := e.repo.PayrollStats(r.Context(), currentUser(r).OrgID, time.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Periods

func (e *PayrollEndpoints) ListPeriodsHandler(w http.ResponseWriter, r *http.Request) {
	periods, err := e.repo.ListPayPeriods(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

func (e *PayrollEndpoints) CurrentPeriodHandler(w http.ResponseWriter, r *http.Request) {
	p, err := e.repo.CurrentPayPeriod(r.Context(), currentUser(r).OrgID, time.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *PayrollEndpoints) CreatePeriodHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePayPeriodRequest
	if !decode(w, r, &req) {
		return
	}
	p := &models.PayPeriod{
		OrgID:       currentUser(r).OrgID,
		PeriodType:  req.PeriodType,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		PayDate:     req.PayDate,
	}
	if p.PeriodType == "" {
		p.PeriodType = "biweekly"
	}
	if err := e.repo.CreatePayPeriod(r.Context(), p); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Runs

func (e *PayrollEndpoints) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := e.repo.ListPayRuns(r.Context(), currentUser(r).OrgID, r.URL.Query().Get("status"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pay_runs": runs})
}

func (e *PayrollEndpoints) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := e.repo.GetPayRun(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (e *PayrollEndpoints) CreateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePayRunRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	run := &models.PayRun{
		OrgID:       user.OrgID,
		PayPeriodID: req.PayPeriodID,
		RunType:     req.RunType,
		Notes:       req.Notes,
		CreatedBy:   user.ID,
	}
	if req.CheckDate != nil {
		run.CheckDate = *req.CheckDate
	}
	if err := e.repo.CreatePayRun(r.Context(), run); err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.created", run)
	writeJSON(w, http.StatusCreated, run)
}

func (e *PayrollEndpoints) UpdateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdatePayRunRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	run, err := e.repo.UpdatePayRun(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (e *PayrollEndpoints) DeleteRunHandler(w http.ResponseWriter, r *http.Request) {
	if err := e.repo.DeletePayRun(r.Context(), currentUser(r).OrgID, urlID(r)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *PayrollEndpoints) CalculateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req CalculatePayRunRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	run, err := e.repo.CalculatePayRun(r.Context(), user.OrgID, urlID(r), req.TimesheetIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.calculated", run)
	writeJSON(w, http.StatusOK, run)
}

func (e *PayrollEndpoints) SubmitRunHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	run, err := e.repo.SubmitPayRunForApproval(r.Context(), user.OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.submitted_for_approval", run)
	writeJSON(w, http.StatusOK, run)
}

func (e *PayrollEndpoints) ApproveRunHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	run, err := e.repo.ApprovePayRun(r.Context(), user.OrgID, urlID(r), user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.approved", run)
	writeJSON(w, http.StatusOK, run)
}

// ProcessRunHandler hands an approved run to the org's payroll provider when
// one is active. Without a provider the run is completed locally.
func (e *PayrollEndpoints) ProcessRunHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	run, err := e.repo.ClaimPayRun(r.Context(), user.OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}

	provider, externalID, err := e.pushToProvider(r.Context(), run)
	if err != nil {
		if rerr := e.repo.ReleasePayRun(context.WithoutCancel(r.Context()), user.OrgID, run.ID); rerr != nil {
			slog.Error("Pay run left in processing", "error", rerr, "pay_run_id", run.ID)
		}
		handleError(w, r, err)
		return
	}

	run, err = e.repo.MarkPayRunProcessed(r.Context(), user.OrgID, run.ID, user.ID, provider, externalID)
	if err != nil {
		if externalID == nil {
			if rerr := e.repo.ReleasePayRun(context.WithoutCancel(r.Context()), user.OrgID, urlID(r)); rerr != nil {
				slog.Error("Pay run left in processing", "error", rerr, "pay_run_id", urlID(r))
			}
		} else {
			slog.Error("Pay run accepted by provider but not recorded", "error", err, "pay_run_id", urlID(r), "provider", provider, "external_run_id", *externalID)
		}
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.processed", run)
	writeJSON(w, http.StatusOK, run)
}

func (e *PayrollEndpoints) pushToProvider(ctx context.Context, run *models.PayRun) (string, *string, error) {
	in, err := e.repo.ActiveIntegration(ctx, run.OrgID, integrations.ProviderGusto)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	p, err := e.registry.Payroll(ctx, in)
	if err != nil {
		return "", nil, repository.Invalid("payroll integration is misconfigured: %v", err)
	}

	req := payRunRequest(run)
	if len(req.Lines) == 0 {
		return "", nil, repository.Invalid("pay run has no items to submit")
	}
	externalID, err := p.SubmitPayRun(ctx, req)
	if err != nil {
		slog.Error("Failed to submit pay run to provider", "error", err, "pay_run_id", run.ID, "provider", p.Name())
		return "", nil, fmt.Errorf("failed to submit pay run to %s: %w", p.Name(), err)
	}
	slog.Info("Pay run submitted to provider", "pay_run_id", run.ID, "provider", p.Name(), "external_run_id", externalID)
	return p.Name(), &externalID, nil
}

func payRunRequest(run *models.PayRun) integrations.PayRunRequest {
	req := integrations.PayRunRequest{
		RunNumber: run.RunNumber,
		CheckDate: run.CheckDate,
	}
	if run.PayPeriod != nil {
		req.PeriodStart = run.PayPeriod.PeriodStart
		req.PeriodEnd = run.PayPeriod.PeriodEnd
	}
	for _, it := range run.Items {
		if it.Worker == nil || it.Worker.Email == "" {
			slog.Warn("Skipping pay item without worker email", "pay_item_id", it.ID, "worker_id", it.WorkerID)
			continue
		}
		req.Lines = append(req.Lines, integrations.PayLine{
			WorkerEmail:   it.Worker.Email,
			RegularHours:  it.RegularHours,
			OvertimeHours: it.OvertimeHours,
			DoubleHours:   it.DoubleTimeHours,
			PTOHours:      it.PTOHours,
			HolidayHours:  it.HolidayHours,
			GrossPay:      it.GrossPay,
		})
	}
	return req
}

func (e *PayrollEndpoints) VoidRunHandler(w http.ResponseWriter, r *http.Request) {
	var req VoidPayRunRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	run, err := e.repo.VoidPayRun(r.Context(), user.OrgID, urlID(r), req.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.audit(r.Context(), user, "pay_run.voided", run)
	writeJSON(w, http.StatusOK, run)
}
