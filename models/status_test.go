package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionSubmission(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"forward", SubmissionSourced, SubmissionScreening, true},
		{"skip ahead", SubmissionSourced, SubmissionClientInterview, true},
		{"backward while open", SubmissionClientReview, SubmissionScreening, true},
		{"reject", SubmissionClientInterview, SubmissionClientRejected, true},
		{"same status", SubmissionPlaced, SubmissionPlaced, true},
		{"placed is final", SubmissionPlaced, SubmissionSourced, false},
		{"reopen rejected", SubmissionRejected, SubmissionSourced, true},
		{"reopen withdrawn to screening", SubmissionWithdrawn, SubmissionScreening, true},
		{"rejected cannot jump ahead", SubmissionClientRejected, SubmissionOfferStage, false},
		{"unknown target", SubmissionSourced, "hired", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionSubmission(tt.from, tt.to))
		})
	}
}

func TestStageIndex(t *testing.T) {
	assert.Equal(t, 0, StageIndex(SubmissionSourced))
	assert.Equal(t, len(PipelineStages)-1, StageIndex(SubmissionPlaced))
	assert.Equal(t, -1, StageIndex(SubmissionRejected))
	assert.Len(t, SubmissionStatuses, 15)
}

func TestIntegrationRedacted(t *testing.T) {
	in := Integration{Credentials: JSONMap{"api_key": "secret"}}
	out := in.Redacted()
	assert.Equal(t, "********", out.Credentials["api_key"])
	assert.Equal(t, "secret", in.Credentials["api_key"])
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	assert.NoError(t, m.Scan([]byte(`{"a":"b"}`)))
	assert.Equal(t, "b", m.String("a"))
	assert.Equal(t, "", m.String("missing"))
	assert.Error(t, m.Scan(42))
}
