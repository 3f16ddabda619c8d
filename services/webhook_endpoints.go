package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

const maxWebhookBody = 1 << 20

// WebhookEndpoints receives partner callbacks. The integration id in the
// path selects the tenant and the secret used to verify the signature.
type WebhookEndpoints struct {
	repo *repository.GORMRepository
}

func NewWebhookEndpoints(repo *repository.GORMRepository) *WebhookEndpoints {
	return &WebhookEndpoints{repo: repo}
}

func (e *WebhookEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/gusto/{id}", e.GustoHandler)
		r.Post("/docusign/{id}", e.DocuSignHandler)
	})
}

type webhookKind struct {
	provider string
	header   string
	verify   func(secret string, body []byte, signature string) error
	parse    func(body []byte) (*integrations.Event, error)
	apply    func(ctx context.Context, in *models.Integration, evt *integrations.Event) error
}

func (e *WebhookEndpoints) GustoHandler(w http.ResponseWriter, r *http.Request) {
	e.receive(w, r, webhookKind{
		provider: integrations.ProviderGusto,
		header:   integrations.GustoSignatureHeader,
		verify:   integrations.VerifyGustoSignature,
		parse:    integrations.ParseGustoEvent,
		apply:    e.applyGusto,
	})
}

func (e *WebhookEndpoints) DocuSignHandler(w http.ResponseWriter, r *http.Request) {
	e.receive(w, r, webhookKind{
		provider: integrations.ProviderDocuSign,
		header:   integrations.DocuSignSignatureHeader,
		verify:   integrations.VerifyDocuSignSignature,
		parse:    integrations.ParseDocuSignEvent,
		apply:    e.applyDocuSign,
	})
}

// receive verifies, stores and applies one event. Duplicates are
// acknowledged without being applied again. Failures while applying are
// recorded on the event and still acknowledged so the partner does not
// retry forever.
func (e *WebhookEndpoints) receive(w http.ResponseWriter, r *http.Request, kind webhookKind) {
	in, err := e.repo.GetIntegrationByID(r.Context(), urlID(r))
	if err != nil || in.Provider != kind.provider {
		writeError(w, http.StatusNotFound, "Unknown integration")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Body too large")
		return
	}
	if err := kind.verify(in.WebhookSecret, body, r.Header.Get(kind.header)); err != nil {
		slog.Warn("Webhook signature rejected", "provider", kind.provider, "integration_id", in.ID)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	evt, err := kind.parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event: "+err.Error())
		return
	}

	record := &models.WebhookEvent{
		OrgID:           in.OrgID,
		IntegrationID:   in.ID,
		Provider:        kind.provider,
		ExternalEventID: evt.ID,
		EventType:       evt.Type,
		Payload:         models.JSONMap(evt.Payload),
	}
	fresh, err := e.repo.RecordWebhookEvent(r.Context(), record)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !fresh {
		slog.Info("Duplicate webhook ignored", "provider", kind.provider, "event_id", evt.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	applyErr := kind.apply(r.Context(), in, evt)
	if applyErr != nil {
		slog.Error("Failed to apply webhook", "error", applyErr, "provider", kind.provider, "event_type", evt.Type, "event_id", evt.ID)
	} else {
		slog.Info("Webhook applied", "provider", kind.provider, "event_type", evt.Type, "event_id", evt.ID)
	}
	e.repo.MarkWebhookProcessed(r.Context(), record.ID, applyErr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (e *WebhookEndpoints) applyGusto(ctx context.Context, in *models.Integration, evt *integrations.Event) error {
	switch evt.Type {
	case "payroll.paid", "payroll.processed":
		_, err := e.repo.CompleteExternalPayRun(ctx, in.OrgID, evt.ResourceID)
		if errors.Is(err, repository.ErrNotFound) {
			// payroll created outside this app
			return nil
		}
		return err
	}
	return nil
}

func (e *WebhookEndpoints) applyDocuSign(ctx context.Context, in *models.Integration, evt *integrations.Event) error {
	switch evt.Type {
	case "envelope-completed", "envelope-declined", "envelope-voided", "envelope-delivered", "envelope-sent":
		_, err := e.repo.ApplySignatureEvent(ctx, in.OrgID, evt.ResourceID, strings.TrimPrefix(evt.Type, "envelope-"))
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}
