package services

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	ws "github.com/krshsl/staffline/websocket"
)

func (e *ATSEndpoints) registerSubmissionRoutes(r chi.Router) {
	r.Route("/submissions", func(r chi.Router) {
		r.Get("/", e.ListSubmissionsHandler)
		r.Post("/", e.CreateSubmissionHandler)
		r.Get("/pipeline", e.PipelineHandler)
		r.Get("/{id}", e.GetSubmissionHandler)
		r.Patch("/{id}", e.UpdateSubmissionHandler)
		r.Post("/{id}/status", e.UpdateSubmissionStatusHandler)
		r.Post("/{id}/submit-to-client", e.SubmitToClientHandler)
		r.Post("/{id}/move", e.MoveSubmissionHandler)
		r.Post("/{id}/score", e.ScoreSubmissionHandler)
	})
}

type CreateSubmissionRequest struct {
	JobID           string   `json:"job_id" validate:"required,uuid"`
	CandidateID     string   `json:"candidate_id" validate:"required,uuid"`
	AccountID       *string  `json:"account_id" validate:"omitempty,uuid"`
	Status          string   `json:"status" validate:"omitempty,oneof=sourced screening vendor_pending vendor_screening vendor_accepted"`
	SubmissionNotes string   `json:"submission_notes"`
	SubmittedRate   *float64 `json:"submitted_rate" validate:"omitempty,gte=0"`
	RateType        string   `json:"submitted_rate_type" validate:"omitempty,oneof=hourly daily weekly monthly annual"`
}

type UpdateSubmissionRequest struct {
	SubmissionNotes     *string  `json:"submission_notes"`
	SubmittedRate       *float64 `json:"submitted_rate" validate:"omitempty,gte=0"`
	SubmittedRateType   *string  `json:"submitted_rate_type" validate:"omitempty,oneof=hourly daily weekly monthly annual"`
	RecruiterMatchScore *int     `json:"recruiter_match_score" validate:"omitempty,gte=0,lte=100"`
	ClientFeedback      *string  `json:"client_feedback"`
	RejectionReason     *string  `json:"rejection_reason"`
}

type UpdateSubmissionStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes"`
}

type SubmitToClientRequest struct {
	SubmittedRate *float64 `json:"submitted_rate" validate:"omitempty,gte=0"`
	Notes         *string  `json:"notes"`
}

type MoveSubmissionRequest struct {
	Status   string `json:"status" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

func (e *ATSEndpoints) publishSubmission(sub *models.Submission, from string) {
	e.hub.Publish(ws.Event{
		Type:     ws.EventSubmissionMoved,
		OrgID:    sub.OrgID,
		EntityID: sub.ID,
		Payload: map[string]interface{}{
			"job_id":         sub.JobID,
			"from":           from,
			"status":         sub.Status,
			"pipeline_order": sub.PipelineOrder,
		},
	})
}

func (e *ATSEndpoints) ListSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(r, 50, 100)
	subs, total, err := e.repo.ListSubmissions(r.Context(), currentUser(r).OrgID, repository.SubmissionFilter{
		Page:        page,
		Status:      q.Get("status"),
		JobID:       q.Get("job_id"),
		CandidateID: q.Get("candidate_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: subs, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// AccountSubmission flattens the names the account view shows.
type AccountSubmission struct {
	models.Submission
	CandidateName string `json:"candidate_name"`
	JobTitle      string `json:"job_title"`
}

func (e *ATSEndpoints) ListAccountSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := e.repo.ListSubmissionsByAccount(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]AccountSubmission, 0, len(subs))
	for _, s := range subs {
		item := AccountSubmission{Submission: s}
		if s.Candidate != nil {
			item.CandidateName = s.Candidate.FullName
		}
		if s.Job != nil {
			item.JobTitle = s.Job.Title
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": out})
}

func (e *ATSEndpoints) GetSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	sub, err := e.repo.GetSubmission(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (e *ATSEndpoints) CreateSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmissionRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)

	sub := &models.Submission{
		OrgID:             user.OrgID,
		JobID:             req.JobID,
		CandidateID:       req.CandidateID,
		AccountID:         req.AccountID,
		Status:            req.Status,
		SubmissionNotes:   req.SubmissionNotes,
		SubmittedRate:     req.SubmittedRate,
		SubmittedRateType: req.RateType,
		OwnerID:           user.ID,
	}
	if err := e.repo.CreateSubmission(r.Context(), sub); err != nil {
		handleError(w, r, err)
		return
	}
	e.publishSubmission(sub, "")
	writeJSON(w, http.StatusCreated, sub)
}

func (e *ATSEndpoints) UpdateSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubmissionRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	sub, err := e.repo.UpdateSubmission(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (e *ATSEndpoints) UpdateSubmissionStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubmissionStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if !models.Contains(models.SubmissionStatuses, req.Status) {
		writeError(w, http.StatusBadRequest, "Unknown submission status")
		return
	}
	orgID := currentUser(r).OrgID
	before, err := e.repo.GetSubmission(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	sub, err := e.repo.UpdateSubmissionStatus(r.Context(), orgID, before.ID, req.Status, req.Notes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publishSubmission(sub, before.Status)
	writeJSON(w, http.StatusOK, sub)
}

func (e *ATSEndpoints) SubmitToClientHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitToClientRequest
	if !decode(w, r, &req) {
		return
	}
	orgID := currentUser(r).OrgID
	before, err := e.repo.GetSubmission(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	sub, err := e.repo.SubmitToClient(r.Context(), orgID, before.ID, req.SubmittedRate, req.Notes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publishSubmission(sub, before.Status)
	writeJSON(w, http.StatusOK, sub)
}

func (e *ATSEndpoints) PipelineHandler(w http.ResponseWriter, r *http.Request) {
	cols, err := e.repo.Pipeline(r.Context(), currentUser(r).OrgID, r.URL.Query().Get("job_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": cols})
}

func (e *ATSEndpoints) MoveSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveSubmissionRequest
	if !decode(w, r, &req) {
		return
	}
	if !models.Contains(models.SubmissionStatuses, req.Status) {
		writeError(w, http.StatusBadRequest, "Unknown submission status")
		return
	}
	orgID := currentUser(r).OrgID
	before, err := e.repo.GetSubmission(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	sub, err := e.repo.MoveSubmission(r.Context(), orgID, before.ID, req.Status, req.Position)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publishSubmission(sub, before.Status)
	writeJSON(w, http.StatusOK, sub)
}

func (e *ATSEndpoints) ScoreSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	if e.matcher == nil || !e.matcher.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "AI matching is not configured")
		return
	}
	orgID := currentUser(r).OrgID
	sub, err := e.repo.GetSubmission(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if sub.Job == nil || sub.Candidate == nil {
		handleError(w, r, errors.New("submission is missing its job or candidate"))
		return
	}

	match, err := e.matcher.Score(r.Context(), sub.Job, sub.Candidate)
	if err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := e.repo.UpdateSubmission(r.Context(), orgID, sub.ID, map[string]interface{}{
		"ai_match_score":     match.Score,
		"ai_match_rationale": match.Rationale,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submission": updated, "match": match})
}
