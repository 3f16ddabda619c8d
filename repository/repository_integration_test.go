//go:build integration

package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPostgres(t *testing.T, ctx context.Context) (*GORMRepository, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "staffline",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/staffline?sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	repo := NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = container.Terminate(ctx)
	}
	return repo, cleanup
}

type fixture struct {
	org     *models.Organization
	owner   *models.UserProfile
	account *models.Account
	job     *models.Job
}

func seedFixture(t *testing.T, ctx context.Context, repo *GORMRepository, slug string) fixture {
	org := &models.Organization{Name: "Acme " + slug, Slug: slug}
	require.NoError(t, repo.CreateOrganization(ctx, org))

	owner := &models.UserProfile{OrgID: org.ID, Email: slug + "-owner@example.com", FullName: "Owner", Role: models.RoleOwner, IsActive: true}
	require.NoError(t, repo.CreateUser(ctx, owner))

	account := &models.Account{OrgID: org.ID, Name: "Globex"}
	require.NoError(t, repo.CreateAccount(ctx, account))

	job := &models.Job{
		OrgID:     org.ID,
		AccountID: &account.ID,
		Title:     "Go Engineer",
		Status:    models.JobOpen,
		OwnerID:   owner.ID,
		CreatedBy: owner.ID,
	}
	require.NoError(t, repo.CreateJob(ctx, job))

	return fixture{org: org, owner: owner, account: account, job: job}
}

func newCandidate(orgID, email string) *models.UserProfile {
	status := models.CandidateActive
	return &models.UserProfile{
		OrgID:           orgID,
		Email:           email,
		FullName:        "Candidate " + email,
		Role:            models.RoleCandidate,
		IsActive:        true,
		CandidateStatus: &status,
		CandidateSkills: []string{"go", "postgres"},
	}
}

func TestIntegration_SubmissionPipeline(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "pipeline")

	t.Run("candidate on account gets a sourced submission", func(t *testing.T) {
		sub, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, "c1@example.com"), &fx.account.ID, nil, fx.owner.ID)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, fx.job.ID, sub.JobID)
		assert.Equal(t, models.SubmissionSourced, sub.Status)
	})

	t.Run("duplicate candidate email conflicts", func(t *testing.T) {
		_, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, "C1@example.com"), nil, nil, fx.owner.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("submit to client then reject", func(t *testing.T) {
		c := newCandidate(fx.org.ID, "c2@example.com")
		sub, err := repo.CreateCandidate(ctx, c, &fx.account.ID, &fx.job.ID, fx.owner.ID)
		require.NoError(t, err)

		got, err := repo.SubmitToClient(ctx, fx.org.ID, sub.ID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionSubmittedToClient, got.Status)
		assert.NotNil(t, got.SubmittedToClientAt)

		got, err = repo.UpdateSubmissionStatus(ctx, fx.org.ID, sub.ID, models.SubmissionClientRejected, nil)
		require.NoError(t, err)
		assert.NotNil(t, got.RejectedAt)

		_, err = repo.UpdateSubmissionStatus(ctx, fx.org.ID, sub.ID, models.SubmissionOfferStage, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		got, err = repo.UpdateSubmissionStatus(ctx, fx.org.ID, sub.ID, models.SubmissionScreening, nil)
		require.NoError(t, err)
		assert.Nil(t, got.RejectedAt)
	})

	t.Run("pipeline lists every status", func(t *testing.T) {
		cols, err := repo.Pipeline(ctx, fx.org.ID, fx.job.ID)
		require.NoError(t, err)
		assert.Len(t, cols, len(models.SubmissionStatuses))
	})

	t.Run("other orgs cannot see the job", func(t *testing.T) {
		other := seedFixture(t, ctx, repo, "other")
		_, err := repo.GetJob(ctx, other.org.ID, fx.job.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestIntegration_SprintBoard(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "sprints")

	pod := &models.Pod{OrgID: fx.org.ID, Name: "Pod A", PodType: "recruiting", IsActive: true}
	require.NoError(t, repo.CreatePod(ctx, pod, []string{fx.owner.ID}))

	start := time.Now()
	end := start.AddDate(0, 0, 14)
	sprint := &models.Sprint{OrgID: fx.org.ID, PodID: pod.ID, Name: "Sprint 1", CreatedBy: fx.owner.ID, StartDate: &start, EndDate: &end}
	require.NoError(t, repo.CreateSprint(ctx, sprint))
	_, err := repo.StartSprint(ctx, fx.org.ID, sprint.ID)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		it := &models.SprintItem{OrgID: fx.org.ID, PodID: pod.ID, SprintID: &sprint.ID, Title: fmt.Sprintf("Item %d", i), CreatedBy: fx.owner.ID}
		require.NoError(t, repo.CreateItem(ctx, it))
		assert.Equal(t, i+1, it.ItemNumber)
		ids = append(ids, it.ID)
	}

	moved, err := repo.MoveItem(ctx, fx.org.ID, ids[2], models.ItemInProgress, 0, fx.owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, moved.StartedAt)

	cols, err := repo.SprintBoard(ctx, fx.org.ID, sprint.ID)
	require.NoError(t, err)
	for _, col := range cols {
		for i, it := range col.Items {
			assert.Equal(t, i, it.BoardOrder, "column %s", col.Status)
		}
	}

	history, err := repo.GetHistory(ctx, fx.org.ID, ids[2])
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "status", history[0].Field)

	_, returned, err := repo.CompleteSprint(ctx, fx.org.ID, sprint.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, returned)

	t.Run("assignee and epic must belong to the org and pod", func(t *testing.T) {
		outsider := seedFixture(t, ctx, repo, "sprints-other")
		otherPod := &models.Pod{OrgID: fx.org.ID, Name: "Pod B", PodType: "recruiting", IsActive: true}
		require.NoError(t, repo.CreatePod(ctx, otherPod, nil))

		epic := &models.SprintItem{OrgID: fx.org.ID, PodID: pod.ID, Title: "Hiring push", ItemType: models.ItemTypeEpic, CreatedBy: fx.owner.ID}
		require.NoError(t, repo.CreateItem(ctx, epic))
		foreignEpic := &models.SprintItem{OrgID: fx.org.ID, PodID: otherPod.ID, Title: "Elsewhere", ItemType: models.ItemTypeEpic, CreatedBy: fx.owner.ID}
		require.NoError(t, repo.CreateItem(ctx, foreignEpic))

		tests := []struct {
			name     string
			assignee *string
			epic     *string
			wantErr  error
		}{
			{"own assignee and epic", &fx.owner.ID, &epic.ID, nil},
			{"assignee from another org", &outsider.owner.ID, nil, ErrValidation},
			{"task used as epic", nil, &ids[0], ErrValidation},
			{"epic from another pod", nil, &foreignEpic.ID, ErrValidation},
			{"unknown epic", nil, &outsider.job.ID, ErrValidation},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				it := &models.SprintItem{OrgID: fx.org.ID, PodID: pod.ID, Title: tt.name, AssigneeID: tt.assignee, EpicID: tt.epic, CreatedBy: fx.owner.ID}
				err := repo.CreateItem(ctx, it)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
			})
		}

		_, err := repo.UpdateItem(ctx, fx.org.ID, ids[0], fx.owner.ID, map[string]interface{}{"assignee_id": outsider.owner.ID})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = repo.UpdateItem(ctx, fx.org.ID, epic.ID, fx.owner.ID, map[string]interface{}{"epic_id": epic.ID})
		assert.ErrorIs(t, err, ErrValidation)
		updated, err := repo.UpdateItem(ctx, fx.org.ID, ids[0], fx.owner.ID, map[string]interface{}{"epic_id": epic.ID})
		require.NoError(t, err)
		require.NotNil(t, updated.EpicID)
		assert.Equal(t, epic.ID, *updated.EpicID)
	})
}

func TestIntegration_WebhookDedupe(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "hooks")
	in := &models.Integration{OrgID: fx.org.ID, Name: "Gusto", Type: "payroll", Provider: "gusto", Status: models.IntegrationActive}
	require.NoError(t, repo.CreateIntegration(ctx, in))

	evt := func() *models.WebhookEvent {
		return &models.WebhookEvent{OrgID: fx.org.ID, IntegrationID: in.ID, Provider: "gusto", ExternalEventID: "evt-1", EventType: "payroll.paid"}
	}
	created, err := repo.RecordWebhookEvent(ctx, evt())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.RecordWebhookEvent(ctx, evt())
	require.NoError(t, err)
	assert.False(t, created)

	for i := 0; i < FailureThreshold; i++ {
		in, err = repo.RecordHealthCheck(ctx, in, HealthResult{Healthy: false, Message: "timeout"})
		require.NoError(t, err)
	}
	assert.Equal(t, models.IntegrationError, in.Status)
	assert.Equal(t, FailureThreshold, in.ErrorCount)

	in, err = repo.RecordHealthCheck(ctx, in, HealthResult{Healthy: true, Duration: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, models.IntegrationActive, in.Status)
	assert.Zero(t, in.ErrorCount)
}

// placeCandidate creates a candidate on the fixture job and places them.
func placeCandidate(t *testing.T, ctx context.Context, repo *GORMRepository, fx fixture, email string, start time.Time) (*models.Submission, *models.Placement) {
	sub, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, email), &fx.account.ID, &fx.job.ID, fx.owner.ID)
	require.NoError(t, err)
	p := &models.Placement{
		OrgID:         fx.org.ID,
		SubmissionID:  sub.ID,
		PlacementType: "contract",
		StartDate:     start,
		BillRate:      100,
		PayRate:       60,
		CreatedBy:     fx.owner.ID,
	}
	require.NoError(t, repo.CreatePlacement(ctx, p))
	return sub, p
}

func approvedTimesheet(t *testing.T, ctx context.Context, repo *GORMRepository, fx fixture, placementID string, start time.Time, hours float64) *models.Timesheet {
	ts := &models.Timesheet{
		OrgID:             fx.org.ID,
		PlacementID:       placementID,
		PeriodStart:       start,
		PeriodEnd:         start.AddDate(0, 0, 6),
		TotalRegularHours: hours,
	}
	require.NoError(t, repo.CreateTimesheet(ctx, ts))
	_, err := repo.SubmitTimesheet(ctx, fx.org.ID, ts.ID)
	require.NoError(t, err)
	ts, err = repo.ApproveTimesheet(ctx, fx.org.ID, ts.ID, fx.owner.ID)
	require.NoError(t, err)
	return ts
}

func approvedPayRun(t *testing.T, ctx context.Context, repo *GORMRepository, fx fixture, periodID string) *models.PayRun {
	run := &models.PayRun{OrgID: fx.org.ID, PayPeriodID: periodID, CreatedBy: fx.owner.ID}
	require.NoError(t, repo.CreatePayRun(ctx, run))
	_, err := repo.CalculatePayRun(ctx, fx.org.ID, run.ID, nil)
	require.NoError(t, err)
	_, err = repo.SubmitPayRunForApproval(ctx, fx.org.ID, run.ID)
	require.NoError(t, err)
	run, err = repo.ApprovePayRun(ctx, fx.org.ID, run.ID, fx.owner.ID)
	require.NoError(t, err)
	return run
}

func TestIntegration_PayrollLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "payroll")
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, placement := placeCandidate(t, ctx, repo, fx, "worker@example.com", start)

	period := &models.PayPeriod{OrgID: fx.org.ID, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 13), PayDate: start.AddDate(0, 0, 18)}
	require.NoError(t, repo.CreatePayPeriod(ctx, period))

	ts := approvedTimesheet(t, ctx, repo, fx, placement.ID, start, 40)

	t.Run("calculate, approve, process then void", func(t *testing.T) {
		run := approvedPayRun(t, ctx, repo, fx, period.ID)
		assert.Equal(t, models.PayRunApproved, run.Status)
		assert.InDelta(t, 2400.0, run.TotalGross, 0.001)
		require.Len(t, run.Items, 1)

		claimed, err := repo.ClaimPayRun(ctx, fx.org.ID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PayRunProcessing, claimed.Status)

		_, err = repo.ClaimPayRun(ctx, fx.org.ID, run.ID)
		assert.ErrorIs(t, err, ErrValidation)

		done, err := repo.MarkPayRunProcessed(ctx, fx.org.ID, run.ID, fx.owner.ID, "", nil)
		require.NoError(t, err)
		assert.Equal(t, models.PayRunCompleted, done.Status)

		linked, err := repo.GetTimesheet(ctx, fx.org.ID, ts.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TimesheetProcessed, linked.Status)
		require.NotNil(t, linked.PayrollRunID)
		assert.Equal(t, run.ID, *linked.PayrollRunID)

		voided, err := repo.VoidPayRun(ctx, fx.org.ID, run.ID, "paid twice")
		require.NoError(t, err)
		assert.Equal(t, models.PayRunVoid, voided.Status)
		assert.True(t, strings.HasPrefix(voided.Notes, "VOIDED: "))

		released, err := repo.GetTimesheet(ctx, fx.org.ID, ts.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TimesheetApproved, released.Status)
		assert.Nil(t, released.PayrollRunID)

		_, err = repo.VoidPayRun(ctx, fx.org.ID, run.ID, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("only one concurrent claim wins", func(t *testing.T) {
		run := approvedPayRun(t, ctx, repo, fx, period.ID)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.ClaimPayRun(ctx, fx.org.ID, run.ID)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
			}
		}
		assert.Equal(t, 1, won)

		require.NoError(t, repo.ReleasePayRun(ctx, fx.org.ID, run.ID))
		got, err := repo.GetPayRun(ctx, fx.org.ID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PayRunApproved, got.Status)
	})

	t.Run("timesheet that stopped being payable blocks processing", func(t *testing.T) {
		other := approvedTimesheet(t, ctx, repo, fx, placement.ID, start.AddDate(0, 0, 7), 8)

		var runs []models.PayRun
		require.NoError(t, repo.db.Where("org_id = ? AND status = ?", fx.org.ID, models.PayRunApproved).Find(&runs).Error)
		for _, r := range runs {
			_, err := repo.VoidPayRun(ctx, fx.org.ID, r.ID, "")
			require.NoError(t, err)
		}

		run := approvedPayRun(t, ctx, repo, fx, period.ID)
		require.NoError(t, repo.db.Model(&models.Timesheet{}).Where("id = ?", other.ID).
			Update("status", models.TimesheetRejected).Error)

		_, err := repo.ClaimPayRun(ctx, fx.org.ID, run.ID)
		require.NoError(t, err)
		_, err = repo.MarkPayRunProcessed(ctx, fx.org.ID, run.ID, fx.owner.ID, "", nil)
		assert.ErrorIs(t, err, ErrConflict)

		untouched, err := repo.GetTimesheet(ctx, fx.org.ID, ts.ID)
		require.NoError(t, err)
		assert.Nil(t, untouched.PayrollRunID)

		require.NoError(t, repo.ReleasePayRun(ctx, fx.org.ID, run.ID))
		got, err := repo.GetPayRun(ctx, fx.org.ID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PayRunApproved, got.Status)
	})

	t.Run("failed calculation leaves the run in draft", func(t *testing.T) {
		run := &models.PayRun{OrgID: fx.org.ID, PayPeriodID: period.ID, CreatedBy: fx.owner.ID}
		require.NoError(t, repo.CreatePayRun(ctx, run))

		_, err := repo.CalculatePayRun(ctx, fx.org.ID, run.ID, []string{"not-a-uuid"})
		assert.ErrorIs(t, err, ErrValidation)

		got, err := repo.GetPayRun(ctx, fx.org.ID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PayRunDraft, got.Status)
	})
}

func TestIntegration_AcademyProgress(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "academy")

	course := &models.Course{OrgID: fx.org.ID, Slug: "go-basics", Title: "Go Basics", IsPublished: true, CreatedBy: fx.owner.ID}
	require.NoError(t, repo.CreateCourse(ctx, course))
	module := &models.CourseModule{OrgID: fx.org.ID, CourseID: course.ID, Title: "Syntax"}
	require.NoError(t, repo.CreateModule(ctx, module))
	intro := &models.ModuleTopic{OrgID: fx.org.ID, ModuleID: module.ID, Title: "Variables"}
	require.NoError(t, repo.CreateTopic(ctx, intro))
	loops := &models.ModuleTopic{OrgID: fx.org.ID, ModuleID: module.ID, Title: "Loops", PrerequisiteTopicIDs: []string{intro.ID}}
	require.NoError(t, repo.CreateTopic(ctx, loops))

	enroll := func(t *testing.T, userID string) *models.Enrollment {
		e := &models.Enrollment{OrgID: fx.org.ID, UserID: userID, CourseID: course.ID, PaymentType: "free"}
		require.NoError(t, repo.Enroll(ctx, e))
		return e
	}
	student := func(t *testing.T, email string) *models.UserProfile {
		u := newCandidate(fx.org.ID, email)
		require.NoError(t, repo.CreateUser(ctx, u))
		return u
	}

	t.Run("topics unlock in order and graduation follows", func(t *testing.T) {
		u := student(t, "s1@example.com")
		e := enroll(t, u.ID)

		_, _, err := repo.CompleteTopic(ctx, fx.org.ID, e.ID, loops.ID, u.ID, 60)
		assert.ErrorIs(t, err, ErrValidation)

		_, got, err := repo.CompleteTopic(ctx, fx.org.ID, e.ID, intro.ID, u.ID, 60)
		require.NoError(t, err)
		assert.Equal(t, 50, got.CompletionPercentage)

		_, err = repo.ProcessGraduation(ctx, fx.org.ID, e.ID)
		assert.ErrorIs(t, err, ErrValidation)

		_, got, err = repo.CompleteTopic(ctx, fx.org.ID, e.ID, loops.ID, u.ID, 60)
		require.NoError(t, err)
		assert.Equal(t, 100, got.CompletionPercentage)

		graduated, err := repo.ProcessGraduation(ctx, fx.org.ID, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EnrollmentCompleted, graduated.Status)
		assert.NotNil(t, graduated.CompletedAt)

		_, err = repo.ProcessGraduation(ctx, fx.org.ID, e.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("re-enrolling keeps earlier completions", func(t *testing.T) {
		u := student(t, "s2@example.com")
		e := enroll(t, u.ID)
		for _, topic := range []*models.ModuleTopic{intro, loops} {
			_, _, err := repo.CompleteTopic(ctx, fx.org.ID, e.ID, topic.ID, u.ID, 30)
			require.NoError(t, err)
		}

		_, err := repo.DropEnrollment(ctx, fx.org.ID, e.ID, u.ID)
		require.NoError(t, err)
		_, err = repo.ProcessGraduation(ctx, fx.org.ID, e.ID)
		assert.ErrorIs(t, err, ErrValidation)

		again := enroll(t, u.ID)
		assert.Equal(t, e.ID, again.ID)
		assert.Equal(t, 100, again.CompletionPercentage)

		_, got, err := repo.CompleteTopic(ctx, fx.org.ID, again.ID, intro.ID, u.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, 100, got.CompletionPercentage)

		graduated, err := repo.ProcessGraduation(ctx, fx.org.ID, again.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EnrollmentCompleted, graduated.Status)
	})

	t.Run("repeat completion repairs a stale percentage", func(t *testing.T) {
		u := student(t, "s3@example.com")
		e := enroll(t, u.ID)
		_, _, err := repo.CompleteTopic(ctx, fx.org.ID, e.ID, intro.ID, u.ID, 30)
		require.NoError(t, err)
		require.NoError(t, repo.db.Model(&models.Enrollment{ID: e.ID}).Update("completion_percentage", 0).Error)

		_, got, err := repo.CompleteTopic(ctx, fx.org.ID, e.ID, intro.ID, u.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, 50, got.CompletionPercentage)
	})
}

func TestIntegration_OffersAndPlacements(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fx := seedFixture(t, ctx, repo, "offers")
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)

	t.Run("submissions in one stage are ordered", func(t *testing.T) {
		a, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, "order-a@example.com"), &fx.account.ID, &fx.job.ID, fx.owner.ID)
		require.NoError(t, err)
		b, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, "order-b@example.com"), &fx.account.ID, &fx.job.ID, fx.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, a.PipelineOrder+1, b.PipelineOrder)
	})

	t.Run("accepted offer moves the submission to offer stage", func(t *testing.T) {
		sub, err := repo.CreateCandidate(ctx, newCandidate(fx.org.ID, "offer@example.com"), &fx.account.ID, &fx.job.ID, fx.owner.ID)
		require.NoError(t, err)

		offer := &models.Offer{OrgID: fx.org.ID, SubmissionID: sub.ID, StartDate: start, CreatedBy: fx.owner.ID}
		require.NoError(t, repo.CreateOffer(ctx, offer))

		_, err = repo.RespondToOffer(ctx, fx.org.ID, offer.ID, OfferAccept, "")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = repo.MarkOfferSent(ctx, fx.org.ID, offer.ID, nil)
		require.NoError(t, err)
		got, err := repo.RespondToOffer(ctx, fx.org.ID, offer.ID, OfferAccept, "")
		require.NoError(t, err)
		assert.Equal(t, models.OfferAccepted, got.Status)

		s, err := repo.GetSubmission(ctx, fx.org.ID, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionOfferStage, s.Status)
	})

	t.Run("placement extend and terminate", func(t *testing.T) {
		sub, p := placeCandidate(t, ctx, repo, fx, "placed@example.com", start)
		assert.Equal(t, models.PlacementPendingStart, p.Status)

		dup := &models.Placement{OrgID: fx.org.ID, SubmissionID: sub.ID, PlacementType: "contract", StartDate: start, BillRate: 100, PayRate: 60, CreatedBy: fx.owner.ID}
		assert.ErrorIs(t, repo.CreatePlacement(ctx, dup), ErrConflict)

		_, err := repo.ExtendPlacement(ctx, fx.org.ID, p.ID, start.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, ErrValidation)

		extended, err := repo.ExtendPlacement(ctx, fx.org.ID, p.ID, start.AddDate(0, 6, 0))
		require.NoError(t, err)
		assert.Equal(t, models.PlacementExtended, extended.Status)
		assert.Equal(t, 1, extended.ExtensionCount)

		ended, err := repo.TerminatePlacement(ctx, fx.org.ID, p.ID, start.AddDate(0, 2, 0), "client_terminated", "budget cut")
		require.NoError(t, err)
		assert.Equal(t, models.PlacementTerminated, ended.Status)

		candidate, err := repo.GetCandidate(ctx, fx.org.ID, p.CandidateID)
		require.NoError(t, err)
		require.NotNil(t, candidate.CandidateStatus)
		assert.Equal(t, models.CandidateBench, *candidate.CandidateStatus)

		_, err = repo.TerminatePlacement(ctx, fx.org.ID, p.ID, start.AddDate(0, 3, 0), "other", "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
