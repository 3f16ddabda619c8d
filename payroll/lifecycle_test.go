package payroll

import (
	"testing"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
)

func TestRunNumber(t *testing.T) {
	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "PR-20260307-001", RunNumber(day, 1))
	assert.Equal(t, "PR-20260307-112", RunNumber(day, 112))
}

func TestCanRun(t *testing.T) {
	assert.True(t, CanRun("calculate", models.PayRunDraft))
	assert.True(t, CanRun("calculate", models.PayRunCalculating))
	assert.False(t, CanRun("calculate", models.PayRunApproved))
	assert.True(t, CanRun("approve", models.PayRunPendingApproval))
	assert.False(t, CanRun("approve", models.PayRunDraft))
	assert.True(t, CanRun("process", models.PayRunApproved))
	assert.True(t, CanRun("void", models.PayRunCompleted))
	assert.False(t, CanRun("void", models.PayRunVoid))
	assert.False(t, CanRun("unknown", models.PayRunDraft))
}

func TestVoidNotes(t *testing.T) {
	assert.Equal(t, "VOIDED: paid twice", VoidNotes(models.PayRunCompleted, "", "paid twice"))
	assert.Equal(t, "batch 4\nwrong period", VoidNotes(models.PayRunApproved, "batch 4", "wrong period"))
	assert.Equal(t, "VOIDED: x", VoidNotes(models.PayRunCompleted, "VOIDED: x", ""))
}
