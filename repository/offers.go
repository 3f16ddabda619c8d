package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
)

// OfferFilter narrows ListOffers.
type OfferFilter struct {
	Page
	Status       string
	SubmissionID string
}

func (r *GORMRepository) ListOffers(ctx context.Context, orgID string, f OfferFilter) ([]models.Offer, int64, error) {
	q := r.org(ctx, orgID).Model(&models.Offer{})
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
	var offers []models.Offer
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&offers).Error; err != nil {
		slog.Error("Failed to list offers", "error", err, "org_id", orgID)
		return nil, 0, mapError(err)
	}
	return offers, total, nil
}

func (r *GORMRepository) GetOffer(ctx context.Context, orgID, id string) (*models.Offer, error) {
	var offer models.Offer
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// GetOfferByEnvelope finds the offer a signature envelope was created for.
func (r *GORMRepository) GetOfferByEnvelope(ctx context.Context, orgID, envelopeID string) (*models.Offer, error) {
	var offer models.Offer
	if err := first(r.org(ctx, orgID).Where("signature_envelope_id = ?", envelopeID), &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// CreateOffer drafts an offer for a submission.
func (r *GORMRepository) CreateOffer(ctx context.Context, offer *models.Offer) error {
	var sub models.Submission
	if err := first(r.org(ctx, offer.OrgID).Where("id = ?", offer.SubmissionID), &sub); err != nil {
		return err
	}
	if models.IsTerminalSubmission(sub.Status) {
		return Invalid("cannot create an offer for a %s submission", sub.Status)
	}
	offer.JobID = sub.JobID
	offer.CandidateID = sub.CandidateID
	offer.Status = models.OfferDraft
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		slog.Error("Failed to create offer", "error", err, "submission_id", offer.SubmissionID)
		return mapError(err)
	}
	slog.Info("Offer created", "offer_id", offer.ID, "submission_id", offer.SubmissionID)
	return nil
}

var editableOffer = []string{models.OfferDraft, models.OfferPendingApproval, models.OfferCountered}

func (r *GORMRepository) UpdateOffer(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Offer, error) {
	offer, err := r.GetOffer(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(editableOffer, offer.Status) {
		return nil, Invalid("a %s offer cannot be edited", offer.Status)
	}
	if err := r.db.WithContext(ctx).Model(offer).Updates(changes).Error; err != nil {
		slog.Error("Failed to update offer", "error", err, "offer_id", id)
		return nil, mapError(err)
	}
	return r.GetOffer(ctx, orgID, id)
}

// CanSendOffer reports whether offer may be sent.
func CanSendOffer(offer *models.Offer) error {
	if offer.Status != models.OfferDraft && offer.Status != models.OfferPendingApproval {
		return Transition("offer", offer.Status, models.OfferSent)
	}
	return nil
}

// MarkOfferSent records the offer as sent, with the signature envelope when
// one was created.
func (r *GORMRepository) MarkOfferSent(ctx context.Context, orgID, id string, envelopeID *string) (*models.Offer, error) {
	offer, err := r.GetOffer(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := CanSendOffer(offer); err != nil {
		return nil, err
	}
	changes := map[string]interface{}{"status": models.OfferSent, "sent_at": time.Now()}
	if envelopeID != nil {
		changes["signature_envelope_id"] = *envelopeID
		changes["signature_status"] = "sent"
	}
	if err := r.db.WithContext(ctx).Model(offer).Updates(changes).Error; err != nil {
		slog.Error("Failed to send offer", "error", err, "offer_id", id)
		return nil, mapError(err)
	}
	slog.Info("Offer sent", "offer_id", id, "envelope", envelopeID != nil)
	return r.GetOffer(ctx, orgID, id)
}

// Offer responses
const (
	OfferAccept  = "accept"
	OfferDecline = "decline"
	OfferCounter = "counter"
)

// RespondToOffer applies the candidate's answer to a sent offer. Accepting
// moves the submission to offer_stage.
func (r *GORMRepository) RespondToOffer(ctx context.Context, orgID, id, response, notes string) (*models.Offer, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var offer models.Offer
		if err := first(tx.org(ctx, orgID).Where("id = ?", id), &offer); err != nil {
			return err
		}
		if offer.Status != models.OfferSent {
			return Invalid("only sent offers can be answered, this one is %s", offer.Status)
		}
		return tx.respond(ctx, &offer, response, notes)
	})
	if err != nil {
		slog.Error("Failed to respond to offer", "error", err, "offer_id", id, "response", response)
		return nil, err
	}
	slog.Info("Offer answered", "offer_id", id, "response", response)
	return r.GetOffer(ctx, orgID, id)
}

func (r *GORMRepository) respond(ctx context.Context, offer *models.Offer, response, notes string) error {
	now := time.Now()
	changes := map[string]interface{}{}
	switch response {
	case OfferAccept:
		changes["status"] = models.OfferAccepted
		changes["accepted_at"] = now
	case OfferDecline:
		changes["status"] = models.OfferDeclined
		changes["declined_at"] = now
		changes["decline_reason"] = notes
	case OfferCounter:
		changes["status"] = models.OfferCountered
		changes["counter_notes"] = notes
	default:
		return Invalid("unknown offer response %q", response)
	}
	if err := r.db.WithContext(ctx).Model(offer).Updates(changes).Error; err != nil {
		return mapError(err)
	}
	if response == OfferAccept {
		return r.advanceSubmission(ctx, offer.OrgID, offer.SubmissionID, models.SubmissionOfferStage)
	}
	return nil
}

var withdrawableOffer = []string{models.OfferDraft, models.OfferPendingApproval, models.OfferSent, models.OfferCountered}

func (r *GORMRepository) WithdrawOffer(ctx context.Context, orgID, id string) (*models.Offer, error) {
	offer, err := r.GetOffer(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !models.Contains(withdrawableOffer, offer.Status) {
		return nil, Transition("offer", offer.Status, models.OfferWithdrawn)
	}
	if err := r.db.WithContext(ctx).Model(offer).Update("status", models.OfferWithdrawn).Error; err != nil {
		slog.Error("Failed to withdraw offer", "error", err, "offer_id", id)
		return nil, mapError(err)
	}
	slog.Info("Offer withdrawn", "offer_id", id)
	return r.GetOffer(ctx, orgID, id)
}

// ApplySignatureEvent records an envelope status change. A completed
// envelope accepts a still-sent offer.
func (r *GORMRepository) ApplySignatureEvent(ctx context.Context, orgID, envelopeID, signatureStatus string) (*models.Offer, error) {
	var out *models.Offer
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		offer, err := tx.GetOfferByEnvelope(ctx, orgID, envelopeID)
		if err != nil {
			return err
		}
		if err := tx.db.Model(offer).Update("signature_status", signatureStatus).Error; err != nil {
			return mapError(err)
		}
		if signatureStatus == "completed" && offer.Status == models.OfferSent {
			if err := tx.respond(ctx, offer, OfferAccept, ""); err != nil {
				return err
			}
		}
		out = offer
		return nil
	})
	if err != nil {
		slog.Error("Failed to apply signature event", "error", err, "envelope_id", envelopeID)
		return nil, err
	}
	return r.GetOffer(ctx, orgID, out.ID)
}
