package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/staffline/models"

	"google.golang.org/genai"
)

const DefaultMatchModel = "gemini-2.5-flash"

// Match is a 0-100 fit between a candidate and a job.
type Match struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// MatchService scores candidates against jobs with Gemini. When the model
// reply cannot be used it falls back to a skill overlap score.
type MatchService struct {
	genaiClient *genai.Client
	model       string
}

// NewMatchService returns nil when no API key is configured.
func NewMatchService(apiKey, model string) *MatchService {
	if apiKey == "" {
		slog.Warn("Gemini API key not set, AI match scoring disabled")
		return nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}
	if model == "" {
		model = DefaultMatchModel
	}
	return &MatchService{genaiClient: client, model: model}
}

func (m *MatchService) Enabled() bool {
	return m != nil && m.genaiClient != nil
}

func (m *MatchService) Score(ctx context.Context, job *models.Job, candidate *models.UserProfile) (*Match, error) {
	if job == nil || candidate == nil {
		return nil, fmt.Errorf("job and candidate are required")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a technical recruiter. Rate how well a candidate fits a job. "+
				`Reply with JSON only: {"score": <integer 0-100>, "rationale": "<two sentences>"}.`,
			genai.RoleUser,
		),
		ResponseMIMEType: "application/json",
	}

	result, err := m.genaiClient.Models.GenerateContent(ctx, m.model, genai.Text(matchPrompt(job, candidate)), config)
	if err != nil {
		slog.Error("Failed to score match", "error", err, "job_id", job.ID, "candidate_id", candidate.ID)
		return nil, fmt.Errorf("failed to score match: %w", err)
	}

	match, err := parseMatch(result.Text())
	if err != nil {
		slog.Warn("Unusable match response, using skill overlap", "error", err, "job_id", job.ID, "candidate_id", candidate.ID)
		return SkillOverlap(job, candidate), nil
	}
	slog.Info("Match scored", "job_id", job.ID, "candidate_id", candidate.ID, "score", match.Score)
	return match, nil
}

func matchPrompt(job *models.Job, c *models.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "JOB\nTitle: %s\n", job.Title)
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(job.RequiredSkills, ", "))
	if len(job.NiceToHaveSkills) > 0 {
		fmt.Fprintf(&b, "Nice to have: %s\n", strings.Join(job.NiceToHaveSkills, ", "))
	}
	if job.MinExperience != nil {
		fmt.Fprintf(&b, "Minimum experience: %d years\n", *job.MinExperience)
	}
	if len(job.VisaRequirements) > 0 {
		fmt.Fprintf(&b, "Accepted visas: %s\n", strings.Join(job.VisaRequirements, ", "))
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", job.Description)
	}

	fmt.Fprintf(&b, "\nCANDIDATE\nName: %s\n", c.FullName)
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(c.CandidateSkills, ", "))
	if c.CandidateExperienceYears != nil {
		fmt.Fprintf(&b, "Experience: %d years\n", *c.CandidateExperienceYears)
	}
	if c.CandidateCurrentVisa != nil {
		fmt.Fprintf(&b, "Visa: %s\n", *c.CandidateCurrentVisa)
	}
	if c.CandidateLocation != nil {
		fmt.Fprintf(&b, "Location: %s (relocate: %t)\n", *c.CandidateLocation, c.CandidateWillingToRelocate)
	}
	return b.String()
}

// parseMatch accepts a bare JSON object, optionally wrapped in a markdown
// code fence.
func parseMatch(text string) (*Match, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var m Match
	if err := json.Unmarshal([]byte(text[start:end+1]), &m); err != nil {
		return nil, err
	}
	if m.Score < 0 || m.Score > 100 {
		return nil, fmt.Errorf("score %d out of range", m.Score)
	}
	return &m, nil
}

// SkillOverlap scores the share of required skills the candidate lists,
// case-insensitively. A job with no required skills scores 50.
func SkillOverlap(job *models.Job, c *models.UserProfile) *Match {
	if len(job.RequiredSkills) == 0 {
		return &Match{Score: 50, Rationale: "Job lists no required skills."}
	}
	have := make(map[string]bool, len(c.CandidateSkills))
	for _, s := range c.CandidateSkills {
		have[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var matched []string
	for _, s := range job.RequiredSkills {
		if have[strings.ToLower(strings.TrimSpace(s))] {
			matched = append(matched, s)
		}
	}
	score := len(matched) * 100 / len(job.RequiredSkills)
	rationale := fmt.Sprintf("Matches %d of %d required skills", len(matched), len(job.RequiredSkills))
	if len(matched) > 0 {
		rationale += ": " + strings.Join(matched, ", ")
	}
	return &Match{Score: score, Rationale: rationale + "."}
}
