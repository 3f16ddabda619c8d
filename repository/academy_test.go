package repository

import (
	"testing"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, 0, CompletionPercent(0, 0))
	assert.Equal(t, 33, CompletionPercent(1, 3))
	assert.Equal(t, 66, CompletionPercent(2, 3))
	assert.Equal(t, 100, CompletionPercent(3, 3))
	assert.Equal(t, 100, CompletionPercent(5, 3))
}

func TestGraduationEligibility(t *testing.T) {
	grade := func(g int) *int { return &g }

	tests := []struct {
		name       string
		completion int
		capstone   *models.CapstoneSubmission
		want       bool
	}{
		{"complete without capstone", 100, nil, true},
		{"incomplete", 99, nil, false},
		{"approved passing capstone", 100, &models.CapstoneSubmission{Status: models.CapstoneApproved, Grade: grade(70)}, true},
		{"approved failing grade", 100, &models.CapstoneSubmission{Status: models.CapstoneApproved, Grade: grade(69)}, false},
		{"approved without grade", 100, &models.CapstoneSubmission{Status: models.CapstoneApproved}, false},
		{"capstone under review", 100, &models.CapstoneSubmission{Status: "submitted", Grade: grade(95)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GraduationEligibility(tt.completion, tt.capstone)
			assert.Equal(t, tt.want, got.Eligible)
			if !tt.want {
				assert.NotEmpty(t, got.Reasons)
			}
		})
	}
}

func TestStatusChanges(t *testing.T) {
	c := statusChanges(models.SubmissionSubmittedToClient, fixedNow)
	assert.Equal(t, fixedNow, c["submitted_to_client_at"])

	c = statusChanges(models.SubmissionClientRejected, fixedNow)
	assert.Equal(t, "client", c["rejection_source"])
	assert.Equal(t, fixedNow, c["rejected_at"])

	c = statusChanges(models.SubmissionSourced, fixedNow)
	assert.Contains(t, c, "rejected_at")
	assert.Nil(t, c["rejected_at"])
}
