package integrations

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

const (
	GustoSignatureHeader    = "X-Gusto-Signature"
	DocuSignSignatureHeader = "X-DocuSign-Signature-1"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// VerifyGustoSignature checks a hex encoded HMAC-SHA256 of the raw body.
func VerifyGustoSignature(secret string, body []byte, signature string) error {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if secret == "" || err != nil || !hmac.Equal(got, sign(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyDocuSignSignature checks a base64 encoded HMAC-SHA256 of the raw
// body, as sent by DocuSign Connect.
func VerifyDocuSignSignature(secret string, body []byte, signature string) error {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if secret == "" || err != nil || !hmac.Equal(got, sign(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Event is an inbound webhook reduced to what the app acts on.
type Event struct {
	ID         string
	Type       string
	ResourceID string
	Payload    map[string]interface{}
}

// ParseGustoEvent reads a Gusto webhook body. Gusto events carry their own
// uuid which is used for deduplication.
func ParseGustoEvent(body []byte) (*Event, error) {
	var raw struct {
		UUID         string `json:"uuid"`
		EventType    string `json:"event_type"`
		ResourceType string `json:"resource_type"`
		EntityType   string `json:"entity_type"`
		EntityUUID   string `json:"entity_uuid"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.UUID == "" || raw.EventType == "" {
		return nil, errors.New("gusto: event missing uuid or event_type")
	}
	payload := map[string]interface{}{}
	_ = json.Unmarshal(body, &payload)
	return &Event{ID: raw.UUID, Type: raw.EventType, ResourceID: raw.EntityUUID, Payload: payload}, nil
}

// ParseDocuSignEvent reads a Connect JSON notification. Connect has no event
// id, so envelope id plus event name identifies it.
func ParseDocuSignEvent(body []byte) (*Event, error) {
	var raw struct {
		Event string `json:"event"`
		Data  struct {
			EnvelopeID string `json:"envelopeId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.Event == "" || raw.Data.EnvelopeID == "" {
		return nil, errors.New("docusign: event missing event or envelopeId")
	}
	payload := map[string]interface{}{}
	_ = json.Unmarshal(body, &payload)
	return &Event{
		ID:         raw.Data.EnvelopeID + ":" + raw.Event,
		Type:       raw.Event,
		ResourceID: raw.Data.EnvelopeID,
		Payload:    payload,
	}, nil
}
