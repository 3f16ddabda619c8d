package services

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

func (e *ATSEndpoints) registerInterviewRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Get("/", e.ListInterviewsHandler)
		r.Post("/schedule", e.ScheduleInterviewHandler)
		r.Get("/{id}", e.GetInterviewHandler)
		r.Patch("/{id}", e.UpdateInterviewHandler)
		r.Post("/{id}/cancel", e.CancelInterviewHandler)
		r.Post("/{id}/no-show", e.NoShowHandler)
		r.Post("/{id}/feedback", e.RecordFeedbackHandler)
	})
}

type ScheduleInterviewRequest struct {
	SubmissionID      string    `json:"submission_id" validate:"required,uuid"`
	InterviewType     string    `json:"interview_type" validate:"required,oneof=phone_screen technical behavioral panel final client"`
	Round             int       `json:"round" validate:"omitempty,gte=1,lte=10"`
	ScheduledAt       time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes   int       `json:"duration_minutes" validate:"omitempty,gte=15,lte=480"`
	Timezone          string    `json:"timezone" validate:"omitempty,timezone"`
	Location          string    `json:"location" validate:"max=255"`
	MeetingLink       string    `json:"meeting_link" validate:"omitempty,url"`
	InterviewerNames  []string  `json:"interviewer_names"`
	InterviewerEmails []string  `json:"interviewer_emails" validate:"omitempty,dive,email"`
}

type UpdateInterviewRequest struct {
	ScheduledAt       *time.Time `json:"scheduled_at"`
	DurationMinutes   *int       `json:"duration_minutes" validate:"omitempty,gte=15,lte=480"`
	Timezone          *string    `json:"timezone" validate:"omitempty,timezone"`
	Location          *string    `json:"location" validate:"omitempty,max=255"`
	MeetingLink       *string    `json:"meeting_link" validate:"omitempty,url"`
	InterviewerNames  *[]string  `json:"interviewer_names"`
	InterviewerEmails *[]string  `json:"interviewer_emails" validate:"omitempty,dive,email"`
	Status            *string    `json:"status" validate:"omitempty,oneof=scheduled confirmed in_progress"`
}

type CancelInterviewRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RecordFeedbackRequest struct {
	Rating              int    `json:"rating" validate:"required,gte=1,lte=5"`
	TechnicalRating     *int   `json:"technical_rating" validate:"omitempty,gte=1,lte=5"`
	CultureFitRating    *int   `json:"culture_fit_rating" validate:"omitempty,gte=1,lte=5"`
	CommunicationRating *int   `json:"communication_rating" validate:"omitempty,gte=1,lte=5"`
	Recommendation      string `json:"recommendation" validate:"required,oneof=strong_no no maybe yes strong_yes"`
	Feedback            string `json:"feedback" validate:"required"`
	Strengths           string `json:"strengths"`
	Concerns            string `json:"concerns"`
}

func (e *ATSEndpoints) ListInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	ivs, total, err := e.repo.ListInterviews(r.Context(), currentUser(r).OrgID, repository.InterviewFilter{
		Page:         page,
		Status:       r.URL.Query().Get("status"),
		SubmissionID: r.URL.Query().Get("submission_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: ivs, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *ATSEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	iv, err := e.repo.GetInterview(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (e *ATSEndpoints) ScheduleInterviewHandler(w http.ResponseWriter, r *http.Request) {
	var req ScheduleInterviewRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)

	iv := &models.Interview{
		OrgID:             user.OrgID,
		SubmissionID:      req.SubmissionID,
		InterviewType:     req.InterviewType,
		Round:             req.Round,
		ScheduledAt:       req.ScheduledAt,
		DurationMinutes:   req.DurationMinutes,
		Timezone:          req.Timezone,
		Location:          req.Location,
		MeetingLink:       req.MeetingLink,
		InterviewerNames:  req.InterviewerNames,
		InterviewerEmails: req.InterviewerEmails,
		ScheduledBy:       user.ID,
	}
	if iv.Round == 0 {
		iv.Round = 1
	}
	if iv.DurationMinutes == 0 {
		iv.DurationMinutes = 60
	}

	if err := e.repo.ScheduleInterview(r.Context(), iv); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (e *ATSEndpoints) UpdateInterviewHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateInterviewRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	iv, err := e.repo.UpdateInterview(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (e *ATSEndpoints) CancelInterviewHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelInterviewRequest
	if !decode(w, r, &req) {
		return
	}
	iv, err := e.repo.CancelInterview(r.Context(), currentUser(r).OrgID, urlID(r), req.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (e *ATSEndpoints) NoShowHandler(w http.ResponseWriter, r *http.Request) {
	iv, err := e.repo.MarkInterviewNoShow(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (e *ATSEndpoints) RecordFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req RecordFeedbackRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)

	fb := &models.InterviewFeedback{
		OrgID:               user.OrgID,
		InterviewID:         urlID(r),
		Rating:              req.Rating,
		TechnicalRating:     req.TechnicalRating,
		CultureFitRating:    req.CultureFitRating,
		CommunicationRating: req.CommunicationRating,
		Recommendation:      req.Recommendation,
		Feedback:            req.Feedback,
		Strengths:           req.Strengths,
		Concerns:            req.Concerns,
		SubmittedBy:         user.ID,
	}
	if err := e.repo.RecordFeedback(r.Context(), fb); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}
