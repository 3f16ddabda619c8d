//go:build integration

package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDatabase(t *testing.T, ctx context.Context) (*repository.GORMRepository, *gorm.DB) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "staffline",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/staffline?sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	repo := repository.NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo, db
}

func gustoSignature(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestIntegration_GustoWebhook(t *testing.T) {
	ctx := context.Background()
	repo, db := setupDatabase(t, ctx)

	org := &models.Organization{Name: "Acme", Slug: "acme-hooks"}
	require.NoError(t, repo.CreateOrganization(ctx, org))
	owner := &models.UserProfile{OrgID: org.ID, Email: "owner@acme-hooks.io", FullName: "Owner", Role: models.RoleOwner, IsActive: true}
	require.NoError(t, repo.CreateUser(ctx, owner))

	const secret = "whsec_test"
	gusto := &models.Integration{OrgID: org.ID, Name: "Gusto", Type: integrations.TypePayroll, Provider: integrations.ProviderGusto, Status: models.IntegrationActive, WebhookSecret: secret}
	require.NoError(t, repo.CreateIntegration(ctx, gusto))

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	period := &models.PayPeriod{OrgID: org.ID, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 13), PayDate: start.AddDate(0, 0, 18)}
	require.NoError(t, repo.CreatePayPeriod(ctx, period))
	run := &models.PayRun{OrgID: org.ID, PayPeriodID: period.ID, CreatedBy: owner.ID}
	require.NoError(t, repo.CreatePayRun(ctx, run))
	require.NoError(t, db.Model(&models.PayRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":          models.PayRunSubmitted,
		"external_run_id": "gp-1",
	}).Error)

	router := chi.NewRouter()
	NewWebhookEndpoints(repo).RegisterRoutes(router)

	paid := `{"uuid":"evt-1","event_type":"payroll.paid","entity_type":"Payroll","entity_uuid":"gp-1"}`

	tests := []struct {
		name       string
		path       string
		body       string
		signature  string
		wantStatus int
		wantResult string
	}{
		{"bad signature", "/webhooks/gusto/" + gusto.ID, paid, gustoSignature("wrong", paid), http.StatusUnauthorized, ""},
		{"missing signature", "/webhooks/gusto/" + gusto.ID, paid, "", http.StatusUnauthorized, ""},
		{"unknown integration", "/webhooks/gusto/" + org.ID, paid, gustoSignature(secret, paid), http.StatusNotFound, ""},
		{"wrong provider route", "/webhooks/docusign/" + gusto.ID, paid, gustoSignature(secret, paid), http.StatusNotFound, ""},
		{"malformed event", "/webhooks/gusto/" + gusto.ID, `{"uuid":""}`, gustoSignature(secret, `{"uuid":""}`), http.StatusBadRequest, ""},
		{"payroll paid is applied", "/webhooks/gusto/" + gusto.ID, paid, gustoSignature(secret, paid), http.StatusOK, "received"},
		{"redelivery is a duplicate", "/webhooks/gusto/" + gusto.ID, paid, gustoSignature(secret, paid), http.StatusOK, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set(integrations.GustoSignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantResult == "" {
				return
			}
			var got map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantResult, got["status"])
		})
	}

	completed, err := repo.GetPayRun(ctx, org.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayRunCompleted, completed.Status)

	var events []models.WebhookEvent
	require.NoError(t, db.Where("integration_id = ?", gusto.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ExternalEventID)
	assert.NotNil(t, events[0].ProcessedAt)
}
