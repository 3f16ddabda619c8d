// Package integrations holds typed clients for the partner APIs an org can
// connect: Gusto for payroll, DocuSign for offer signatures and Okta for
// identity.
package integrations

import (
	"context"
	"errors"
	"time"
)

// Provider categories, matching IntegrationType.Category.
const (
	TypePayroll   = "payroll"
	TypeSignature = "e_signature"
	TypeIdentity  = "identity"
)

// Built-in provider names, matching Integration.Provider.
const (
	ProviderGusto    = "gusto"
	ProviderDocuSign = "docusign"
	ProviderOkta     = "okta"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrMissingConfig       = errors.New("missing configuration")
)

// Provider is implemented by every partner client.
type Provider interface {
	Name() string
	Type() string
	// TestConnection makes the cheapest authenticated call the API offers.
	TestConnection(ctx context.Context) error
}

// PayrollProvider pushes calculated pay runs to an external payroll system.
type PayrollProvider interface {
	Provider
	SubmitPayRun(ctx context.Context, req PayRunRequest) (string, error)
}

// SignatureProvider sends documents out for e-signature.
type SignatureProvider interface {
	Provider
	SendForSignature(ctx context.Context, req EnvelopeRequest) (*Envelope, error)
	GetEnvelope(ctx context.Context, envelopeID string) (*Envelope, error)
	VoidEnvelope(ctx context.Context, envelopeID, reason string) error
}

// IdentityProvider manages users in an external directory.
type IdentityProvider interface {
	Provider
	GetUser(ctx context.Context, id string) (*DirectoryUser, error)
	CreateUser(ctx context.Context, u DirectoryUser, activate bool) (*DirectoryUser, error)
	DeactivateUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, limit int) ([]DirectoryUser, error)
}

// PayRunRequest is a pay run in provider-neutral form.
type PayRunRequest struct {
	RunNumber   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	CheckDate   time.Time
	Lines       []PayLine
}

// PayLine is one worker's hours and earnings. Workers are matched to the
// provider's employees by email.
type PayLine struct {
	WorkerEmail   string
	RegularHours  float64
	OvertimeHours float64
	DoubleHours   float64
	PTOHours      float64
	HolidayHours  float64
	GrossPay      float64
}

type Signer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EnvelopeRequest is a single-document signature request.
type EnvelopeRequest struct {
	Subject      string
	DocumentName string
	Document     []byte
	Signers      []Signer
}

type Envelope struct {
	ID     string `json:"envelopeId"`
	Status string `json:"status"`
}

// DirectoryUser is a user as an identity provider sees it.
type DirectoryUser struct {
	ID        string `json:"id,omitempty"`
	Status    string `json:"status,omitempty"`
	Email     string `json:"email"`
	Login     string `json:"login"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
