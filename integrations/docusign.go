package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strconv"

	"github.com/krshsl/staffline/models"
)

const docuSignDemoURL = "https://demo.docusign.net/restapi"

// DocuSignProvider sends offer letters through the eSignature REST API.
type DocuSignProvider struct {
	client    *Client
	accountID string
}

func newDocuSign(ctx context.Context, in *models.Integration, opts ClientOptions) (Provider, error) {
	accountID := in.Config.String("account_id")
	if accountID == "" {
		return nil, fmt.Errorf("docusign: account_id: %w", ErrMissingConfig)
	}
	ts, err := TokenSource(ctx, in.Credentials, "Bearer")
	if err != nil {
		return nil, fmt.Errorf("docusign: %w", err)
	}
	base := in.Config.String("base_url")
	if base == "" {
		base = docuSignDemoURL
	}
	return NewDocuSign(NewClient(ProviderDocuSign, base, ts, opts), accountID), nil
}

func NewDocuSign(client *Client, accountID string) *DocuSignProvider {
	return &DocuSignProvider{client: client, accountID: accountID}
}

func (d *DocuSignProvider) Name() string { return ProviderDocuSign }
func (d *DocuSignProvider) Type() string { return TypeSignature }

func (d *DocuSignProvider) accountPath(suffix string) string {
	return "/v2.1/accounts/" + url.PathEscape(d.accountID) + suffix
}

func (d *DocuSignProvider) TestConnection(ctx context.Context) error {
	var out struct {
		AccountName string `json:"accountName"`
	}
	return d.client.Get(NoCache(ctx), "get_account", d.accountPath(""), &out)
}

type docuSignDocument struct {
	DocumentBase64 string `json:"documentBase64"`
	DocumentID     string `json:"documentId"`
	FileExtension  string `json:"fileExtension"`
	Name           string `json:"name"`
}

type docuSignSigner struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RecipientID  string `json:"recipientId"`
	RoutingOrder string `json:"routingOrder"`
}

type docuSignEnvelopeDefinition struct {
	EmailSubject string             `json:"emailSubject"`
	Documents    []docuSignDocument `json:"documents"`
	Recipients   struct {
		Signers []docuSignSigner `json:"signers"`
	} `json:"recipients"`
	Status string `json:"status"`
}

// SendForSignature creates an envelope with status sent so DocuSign mails
// the signers right away.
func (d *DocuSignProvider) SendForSignature(ctx context.Context, req EnvelopeRequest) (*Envelope, error) {
	if len(req.Signers) == 0 {
		return nil, fmt.Errorf("docusign: envelope needs at least one signer")
	}
	ext := path.Ext(req.DocumentName)
	if len(ext) > 1 {
		ext = ext[1:]
	} else {
		ext = "pdf"
	}

	def := docuSignEnvelopeDefinition{
		EmailSubject: req.Subject,
		Documents: []docuSignDocument{{
			DocumentBase64: base64.StdEncoding.EncodeToString(req.Document),
			DocumentID:     "1",
			FileExtension:  ext,
			Name:           req.DocumentName,
		}},
		Status: "sent",
	}
	for i, s := range req.Signers {
		def.Recipients.Signers = append(def.Recipients.Signers, docuSignSigner{
			Email:        s.Email,
			Name:         s.Name,
			RecipientID:  strconv.Itoa(i + 1),
			RoutingOrder: strconv.Itoa(i + 1),
		})
	}

	var out Envelope
	if err := d.client.Post(ctx, "create_envelope", d.accountPath("/envelopes"), def, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DocuSignProvider) GetEnvelope(ctx context.Context, envelopeID string) (*Envelope, error) {
	var out Envelope
	if err := d.client.Get(ctx, "get_envelope", d.accountPath("/envelopes/"+url.PathEscape(envelopeID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DocuSignProvider) VoidEnvelope(ctx context.Context, envelopeID, reason string) error {
	body := map[string]string{"status": "voided", "voidedReason": reason}
	return d.client.Put(ctx, "void_envelope", d.accountPath("/envelopes/"+url.PathEscape(envelopeID)), body, nil)
}
