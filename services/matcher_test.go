package services

import (
	"testing"

	"github.com/krshsl/staffline/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatch(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		score   int
		wantErr bool
	}{
		{"bare object", `{"score": 82, "rationale": "Strong Go background."}`, 82, false},
		{"fenced", "```json\n{\"score\": 40, \"rationale\": \"Partial.\"}\n```", 40, false},
		{"leading prose", `Here you go: {"score": 0, "rationale": "None."}`, 0, false},
		{"no object", "I cannot score this candidate.", 0, true},
		{"out of range", `{"score": 140, "rationale": "?"}`, 0, true},
		{"negative", `{"score": -1, "rationale": "?"}`, 0, true},
		{"invalid json", `{"score": "high"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseMatch(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.score, m.Score)
			assert.NotEmpty(t, m.Rationale)
		})
	}
}

func TestSkillOverlap(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		have     []string
		score    int
	}{
		{"no required skills", nil, []string{"go"}, 50},
		{"full match case-insensitive", []string{"Go", "PostgreSQL"}, []string{"go", " postgresql "}, 100},
		{"partial rounds down", []string{"go", "sql", "k8s"}, []string{"go"}, 33},
		{"none", []string{"java"}, []string{"go"}, 0},
		{"candidate without skills", []string{"go"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &models.Job{RequiredSkills: pq.StringArray(tt.required)}
			c := &models.UserProfile{CandidateSkills: pq.StringArray(tt.have)}
			m := SkillOverlap(job, c)
			assert.Equal(t, tt.score, m.Score)
			assert.NotEmpty(t, m.Rationale)
		})
	}
}

func TestMatchServiceDisabledWithoutKey(t *testing.T) {
	m := NewMatchService("", "")
	assert.Nil(t, m)
	assert.False(t, m.Enabled())
}
