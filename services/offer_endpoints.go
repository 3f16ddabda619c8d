package services

import (
	"bytes"
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

func (e *ATSEndpoints) registerOfferRoutes(r chi.Router) {
	r.Route("/offers", func(r chi.Router) {
		r.Get("/", e.ListOffersHandler)
		r.Post("/", e.CreateOfferHandler)
		r.Get("/{id}", e.GetOfferHandler)
		r.Patch("/{id}", e.UpdateOfferHandler)
		r.Post("/{id}/send", e.SendOfferHandler)
		r.Post("/{id}/respond", e.RespondOfferHandler)
		r.Post("/{id}/withdraw", e.WithdrawOfferHandler)
	})
}

type CreateOfferRequest struct {
	SubmissionID  string     `json:"submission_id" validate:"required,uuid"`
	OfferType     string     `json:"offer_type" validate:"omitempty,oneof=verbal written"`
	BillRate      *float64   `json:"bill_rate" validate:"omitempty,gte=0"`
	PayRate       *float64   `json:"pay_rate" validate:"omitempty,gte=0"`
	Salary        *float64   `json:"salary" validate:"omitempty,gte=0"`
	StartDate     time.Time  `json:"start_date" validate:"required"`
	ExpiryDate    *time.Time `json:"offer_expiry_date"`
	InternalNotes string     `json:"internal_notes"`
}

type UpdateOfferRequest struct {
	BillRate      *float64   `json:"bill_rate" validate:"omitempty,gte=0"`
	PayRate       *float64   `json:"pay_rate" validate:"omitempty,gte=0"`
	Salary        *float64   `json:"salary" validate:"omitempty,gte=0"`
	StartDate     *time.Time `json:"start_date"`
	ExpiryDate    *time.Time `json:"offer_expiry_date" col:"expiry_date"`
	InternalNotes *string    `json:"internal_notes"`
	Status        *string    `json:"status" validate:"omitempty,oneof=draft pending_approval"`
}

type SendOfferRequest struct {
	SendForSignature bool `json:"send_for_signature"`
}

type RespondOfferRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline counter"`
	Notes    string `json:"notes"`
}

func (e *ATSEndpoints) ListOffersHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	offers, total, err := e.repo.ListOffers(r.Context(), currentUser(r).OrgID, repository.OfferFilter{
		Page:         page,
		Status:       r.URL.Query().Get("status"),
		SubmissionID: r.URL.Query().Get("submission_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: offers, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *ATSEndpoints) GetOfferHandler(w http.ResponseWriter, r *http.Request) {
	offer, err := e.repo.GetOffer(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (e *ATSEndpoints) CreateOfferHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	offer := &models.Offer{
		OrgID:         user.OrgID,
		SubmissionID:  req.SubmissionID,
		OfferType:     req.OfferType,
		BillRate:      req.BillRate,
		PayRate:       req.PayRate,
		Salary:        req.Salary,
		StartDate:     req.StartDate,
		ExpiryDate:    req.ExpiryDate,
		InternalNotes: req.InternalNotes,
		CreatedBy:     user.ID,
	}
	if err := e.repo.CreateOffer(r.Context(), offer); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (e *ATSEndpoints) UpdateOfferHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateOfferRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	offer, err := e.repo.UpdateOffer(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// SendOfferHandler marks the offer sent. With send_for_signature and an
// active DocuSign integration the letter goes out as an envelope first.
func (e *ATSEndpoints) SendOfferHandler(w http.ResponseWriter, r *http.Request) {
	var req SendOfferRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	orgID := currentUser(r).OrgID

	offer, err := e.repo.GetOffer(r.Context(), orgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := repository.CanSendOffer(offer); err != nil {
		handleError(w, r, err)
		return
	}

	var envelopeID *string
	if req.SendForSignature {
		id, err := e.sendForSignature(r.Context(), offer)
		if err != nil {
			handleError(w, r, err)
			return
		}
		envelopeID = id
	}

	sent, err := e.repo.MarkOfferSent(r.Context(), orgID, offer.ID, envelopeID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

// sendForSignature returns nil when the org has no active DocuSign
// integration.
func (e *ATSEndpoints) sendForSignature(ctx context.Context, offer *models.Offer) (*string, error) {
	in, err := e.repo.ActiveIntegration(ctx, offer.OrgID, integrations.ProviderDocuSign)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Offer sent without signature, no active DocuSign integration", "offer_id", offer.ID, "org_id", offer.OrgID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	signer, err := e.registry.Signature(ctx, in)
	if err != nil {
		return nil, repository.Invalid("docusign integration is misconfigured: %v", err)
	}

	candidate, err := e.repo.GetCandidate(ctx, offer.OrgID, offer.CandidateID)
	if err != nil {
		return nil, err
	}
	job, err := e.repo.GetJob(ctx, offer.OrgID, offer.JobID)
	if err != nil {
		return nil, err
	}

	env, err := signer.SendForSignature(ctx, integrations.EnvelopeRequest{
		Subject:      fmt.Sprintf("Offer letter: %s", job.Title),
		DocumentName: fmt.Sprintf("offer-%s.txt", offer.ID),
		Document:     offerLetter(offer, candidate, job),
		Signers:      []integrations.Signer{{Name: candidate.FullName, Email: candidate.Email}},
	})
	if err != nil {
		slog.Error("Failed to send offer for signature", "error", err, "offer_id", offer.ID)
		return nil, fmt.Errorf("failed to send offer for signature: %w", err)
	}
	slog.Info("Offer envelope created", "offer_id", offer.ID, "envelope_id", env.ID)
	return &env.ID, nil
}

func offerLetter(offer *models.Offer, candidate *models.UserProfile, job *models.Job) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Dear %s,\n\n", candidate.FullName)
	fmt.Fprintf(&b, "We are pleased to offer you the position of %s", job.Title)
	if job.Location != "" {
		fmt.Fprintf(&b, " (%s)", job.Location)
	}
	fmt.Fprintf(&b, ", starting %s.\n\n", offer.StartDate.Format("January 2, 2006"))
	switch {
	case offer.PayRate != nil:
		fmt.Fprintf(&b, "Pay rate: %.2f %s per hour\n", *offer.PayRate, job.Currency)
	case offer.Salary != nil:
		fmt.Fprintf(&b, "Annual salary: %.2f %s\n", *offer.Salary, job.Currency)
	}
	if offer.ExpiryDate != nil {
		fmt.Fprintf(&b, "This offer expires on %s.\n", offer.ExpiryDate.Format("January 2, 2006"))
	}
	b.WriteString("\nPlease sign below to accept.\n")
	return b.Bytes()
}

func (e *ATSEndpoints) RespondOfferHandler(w http.ResponseWriter, r *http.Request) {
	var req RespondOfferRequest
	if !decode(w, r, &req) {
		return
	}
	offer, err := e.repo.RespondToOffer(r.Context(), currentUser(r).OrgID, urlID(r), req.Response, req.Notes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (e *ATSEndpoints) WithdrawOfferHandler(w http.ResponseWriter, r *http.Request) {
	offer, err := e.repo.WithdrawOffer(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}
