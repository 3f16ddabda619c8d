package services

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

func (e *ATSEndpoints) registerPlacementRoutes(r chi.Router) {
	r.Route("/placements", func(r chi.Router) {
		r.Get("/", e.ListPlacementsHandler)
		r.Post("/", e.CreatePlacementHandler)
		r.Get("/active-count", e.ActivePlacementCountHandler)
		r.Get("/{id}", e.GetPlacementHandler)
		r.Patch("/{id}", e.UpdatePlacementHandler)
		r.Post("/{id}/extend", e.ExtendPlacementHandler)
		r.Post("/{id}/terminate", e.TerminatePlacementHandler)
	})

	r.Route("/timesheets", func(r chi.Router) {
		r.Get("/", e.ListTimesheetsHandler)
		r.Post("/", e.CreateTimesheetHandler)
		r.Get("/{id}", e.GetTimesheetHandler)
		r.Post("/{id}/submit", e.SubmitTimesheetHandler)
		r.With(RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)).
			Post("/{id}/approve", e.ApproveTimesheetHandler)
		r.With(RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)).
			Post("/{id}/reject", e.RejectTimesheetHandler)
	})
}

type CreatePlacementRequest struct {
	SubmissionID      string     `json:"submission_id" validate:"required,uuid"`
	OfferID           *string    `json:"offer_id" validate:"omitempty,uuid"`
	PlacementType     string     `json:"placement_type" validate:"required,oneof=contract contract_to_hire full_time part_time"`
	StartDate         time.Time  `json:"start_date" validate:"required"`
	EndDate           *time.Time `json:"end_date"`
	BillRate          float64    `json:"bill_rate" validate:"gte=0"`
	PayRate           float64    `json:"pay_rate" validate:"gte=0"`
	OvertimePayRate   *float64   `json:"overtime_pay_rate" validate:"omitempty,gte=0"`
	DoubleTimePayRate *float64   `json:"double_time_pay_rate" validate:"omitempty,gte=0"`
	Currency          string     `json:"currency" validate:"omitempty,len=3"`
}

type UpdatePlacementRequest struct {
	BillRate          *float64   `json:"bill_rate" validate:"omitempty,gte=0"`
	PayRate           *float64   `json:"pay_rate" validate:"omitempty,gte=0"`
	OvertimePayRate   *float64   `json:"overtime_pay_rate" validate:"omitempty,gte=0"`
	DoubleTimePayRate *float64   `json:"double_time_pay_rate" validate:"omitempty,gte=0"`
	EndDate           *time.Time `json:"end_date"`
	Status            *string    `json:"status" validate:"omitempty,oneof=pending_start active completed"`
}

type ExtendPlacementRequest struct {
	NewEndDate time.Time `json:"new_end_date" validate:"required"`
}

type TerminatePlacementRequest struct {
	ActualEndDate time.Time `json:"actual_end_date" validate:"required"`
	Reason        string    `json:"reason" validate:"required,oneof=contract_ended candidate_resigned client_terminated performance_issues other"`
	Notes         string    `json:"notes"`
}

type CreateTimesheetRequest struct {
	PlacementID          string    `json:"placement_id" validate:"required,uuid"`
	PeriodStart          time.Time `json:"period_start" validate:"required"`
	PeriodEnd            time.Time `json:"period_end" validate:"required"`
	TotalRegularHours    float64   `json:"total_regular_hours" validate:"gte=0,lte=168"`
	TotalOvertimeHours   float64   `json:"total_overtime_hours" validate:"gte=0,lte=168"`
	TotalDoubleTimeHours float64   `json:"total_double_time_hours" validate:"gte=0,lte=168"`
	TotalPTOHours        float64   `json:"total_pto_hours" validate:"gte=0,lte=168"`
	TotalHolidayHours    float64   `json:"total_holiday_hours" validate:"gte=0,lte=168"`
}

func (e *ATSEndpoints) ListPlacementsHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	placements, total, err := e.repo.ListPlacements(r.Context(), currentUser(r).OrgID, repository.PlacementFilter{
		Page:      page,
		Status:    r.URL.Query().Get("status"),
		AccountID: r.URL.Query().Get("account_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: placements, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *ATSEndpoints) ListAccountPlacementsHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	placements, total, err := e.repo.ListPlacements(r.Context(), currentUser(r).OrgID, repository.PlacementFilter{
		Page:      page,
		AccountID: urlID(r),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: placements, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *ATSEndpoints) GetPlacementHandler(w http.ResponseWriter, r *http.Request) {
	p, err := e.repo.GetPlacement(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *ATSEndpoints) ActivePlacementCountHandler(w http.ResponseWriter, r *http.Request) {
	n, err := e.repo.CountActivePlacements(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (e *ATSEndpoints) CreatePlacementHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePlacementRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	p := &models.Placement{
		OrgID:             user.OrgID,
		SubmissionID:      req.SubmissionID,
		OfferID:           req.OfferID,
		PlacementType:     req.PlacementType,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		BillRate:          req.BillRate,
		PayRate:           req.PayRate,
		OvertimePayRate:   req.OvertimePayRate,
		DoubleTimePayRate: req.DoubleTimePayRate,
		Currency:          req.Currency,
		CreatedBy:         user.ID,
	}
	if err := e.repo.CreatePlacement(r.Context(), p); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (e *ATSEndpoints) UpdatePlacementHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlacementRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	p, err := e.repo.UpdatePlacement(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *ATSEndpoints) ExtendPlacementHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtendPlacementRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := e.repo.ExtendPlacement(r.Context(), currentUser(r).OrgID, urlID(r), req.NewEndDate)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *ATSEndpoints) TerminatePlacementHandler(w http.ResponseWriter, r *http.Request) {
	var req TerminatePlacementRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := e.repo.TerminatePlacement(r.Context(), currentUser(r).OrgID, urlID(r), req.ActualEndDate, req.Reason, req.Notes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Timesheets

func (e *ATSEndpoints) ListTimesheetsHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	sheets, err := e.repo.ListTimesheets(r.Context(), currentUser(r).OrgID, repository.TimesheetFilter{
		Page:        page,
		Status:      r.URL.Query().Get("status"),
		PlacementID: r.URL.Query().Get("placement_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"timesheets": sheets})
}

func (e *ATSEndpoints) GetTimesheetHandler(w http.ResponseWriter, r *http.Request) {
	ts, err := e.repo.GetTimesheet(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (e *ATSEndpoints) CreateTimesheetHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTimesheetRequest
	if !decode(w, r, &req) {
		return
	}
	ts := &models.Timesheet{
		OrgID:                currentUser(r).OrgID,
		PlacementID:          req.PlacementID,
		PeriodStart:          req.PeriodStart,
		PeriodEnd:            req.PeriodEnd,
		TotalRegularHours:    req.TotalRegularHours,
		TotalOvertimeHours:   req.TotalOvertimeHours,
		TotalDoubleTimeHours: req.TotalDoubleTimeHours,
		TotalPTOHours:        req.TotalPTOHours,
		TotalHolidayHours:    req.TotalHolidayHours,
	}
	if err := e.repo.CreateTimesheet(r.Context(), ts); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ts)
}

func (e *ATSEndpoints) SubmitTimesheetHandler(w http.ResponseWriter, r *http.Request) {
	ts, err := e.repo.SubmitTimesheet(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (e *ATSEndpoints) ApproveTimesheetHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ts, err := e.repo.ApproveTimesheet(r.Context(), user.OrgID, urlID(r), user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (e *ATSEndpoints) RejectTimesheetHandler(w http.ResponseWriter, r *http.Request) {
	ts, err := e.repo.RejectTimesheet(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}
