package integrations

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGustoSubmitPayRun(t *testing.T) {
	var (
		created   GustoOffCyclePayroll
		updated   map[string]interface{}
		submitted bool
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/companies/co1/employees", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, gustoAPIVersion, r.Header.Get("X-Gusto-API-Version"))
		_ = json.NewEncoder(w).Encode([]GustoEmployee{
			{UUID: "e1", Email: "Ann@example.com"},
			{UUID: "e2", Email: "gone@example.com", Terminated: true},
		})
	})
	mux.HandleFunc("POST /v1/companies/co1/payrolls", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_ = json.NewEncoder(w).Encode(GustoPayroll{UUID: "p1", Version: "v1"})
	})
	mux.HandleFunc("PUT /v1/companies/co1/payrolls/p1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
		_ = json.NewEncoder(w).Encode(GustoPayroll{UUID: "p1", Version: "v2"})
	})
	mux.HandleFunc("PUT /v1/companies/co1/payrolls/p1/submit", func(w http.ResponseWriter, r *http.Request) {
		submitted = true
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGusto(NewClient("gusto", srv.URL, staticToken("Bearer"), testOptions()), "co1")
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	id, err := g.SubmitPayRun(context.Background(), PayRunRequest{
		RunNumber:   "PR-20260316-001",
		PeriodStart: day(1),
		PeriodEnd:   day(14),
		CheckDate:   day(20),
		Lines:       []PayLine{{WorkerEmail: "ann@example.com", RegularHours: 40, OvertimeHours: 5, PTOHours: 8}},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	assert.True(t, created.OffCycle)
	assert.Equal(t, "2026-03-20", created.CheckDate)
	assert.Equal(t, []string{"e1"}, created.EmployeeUUIDs)
	assert.Equal(t, "v1", updated["version"])
	assert.True(t, submitted)

	_, err = g.SubmitPayRun(context.Background(), PayRunRequest{Lines: []PayLine{{WorkerEmail: "gone@example.com"}}})
	assert.ErrorContains(t, err, "no active employee")
}

func TestGustoCompensation(t *testing.T) {
	c := gustoCompensation("e1", PayLine{RegularHours: 40, DoubleHours: 2.5, HolidayHours: 8})
	require.Len(t, c.HourlyCompensations, 2)
	assert.Equal(t, GustoHourlyCompensation{Name: "Regular Hours", Hours: "40.00"}, c.HourlyCompensations[0])
	assert.Equal(t, GustoHourlyCompensation{Name: "Double overtime", Hours: "2.50"}, c.HourlyCompensations[1])
	require.Len(t, c.PaidTimeOff, 1)
	assert.Equal(t, "Holiday Hours", c.PaidTimeOff[0].Name)
}

func TestDocuSignSendForSignature(t *testing.T) {
	var def docuSignEnvelopeDefinition
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2.1/accounts/acc1/envelopes", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"envelopeId":"env-1","status":"sent"}`))
	}))
	defer srv.Close()

	d := NewDocuSign(NewClient("docusign", srv.URL, staticToken("Bearer"), testOptions()), "acc1")
	env, err := d.SendForSignature(context.Background(), EnvelopeRequest{
		Subject:      "Your offer",
		DocumentName: "offer.html",
		Document:     []byte("<p>offer</p>"),
		Signers:      []Signer{{Name: "Ann", Email: "ann@example.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "env-1", env.ID)
	assert.Equal(t, "sent", def.Status)
	assert.Equal(t, "html", def.Documents[0].FileExtension)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<p>offer</p>")), def.Documents[0].DocumentBase64)
	assert.Equal(t, "1", def.Recipients.Signers[0].RecipientID)

	_, err = d.SendForSignature(context.Background(), EnvelopeRequest{Subject: "x"})
	assert.Error(t, err)
}

func TestOktaUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("activate"))
		var body oktaUser
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body.ID = "00u1"
		body.Status = "ACTIVE"
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("POST /api/v1/users/00u1/lifecycle/deactivate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOkta(NewClient("okta", srv.URL, staticToken("SSWS"), testOptions()))
	u, err := o.CreateUser(context.Background(), DirectoryUser{Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"}, true)
	require.NoError(t, err)
	assert.Equal(t, "00u1", u.ID)
	assert.Equal(t, "ann@example.com", u.Login)
	require.NoError(t, o.DeactivateUser(context.Background(), "00u1"))
}

func TestWebhookSignatures(t *testing.T) {
	body := []byte(`{"uuid":"evt-1","event_type":"payroll.paid","entity_uuid":"p1"}`)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(body)
	sum := mac.Sum(nil)

	assert.NoError(t, VerifyGustoSignature("shh", body, hex.EncodeToString(sum)))
	assert.ErrorIs(t, VerifyGustoSignature("other", body, hex.EncodeToString(sum)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyGustoSignature("", body, ""), ErrInvalidSignature)

	assert.NoError(t, VerifyDocuSignSignature("shh", body, base64.StdEncoding.EncodeToString(sum)))
	assert.ErrorIs(t, VerifyDocuSignSignature("shh", body, "not base64!"), ErrInvalidSignature)
}

func TestParseEvents(t *testing.T) {
	evt, err := ParseGustoEvent([]byte(`{"uuid":"evt-1","event_type":"payroll.paid","entity_type":"Payroll","entity_uuid":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", evt.ID)
	assert.Equal(t, "p1", evt.ResourceID)

	_, err = ParseGustoEvent([]byte(`{"event_type":"payroll.paid"}`))
	assert.Error(t, err)

	evt, err = ParseDocuSignEvent([]byte(`{"event":"envelope-completed","data":{"envelopeId":"env-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "env-1:envelope-completed", evt.ID)
	assert.Equal(t, "env-1", evt.ResourceID)
}
