package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Account is a client company that jobs are opened for.
type Account struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string         `gorm:"type:uuid;not null;index" json:"org_id"`
	Name      string         `gorm:"not null" json:"name"`
	Industry  string         `gorm:"size:100" json:"industry,omitempty"`
	Status    string         `gorm:"size:50;default:'active'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Job is a requisition opened for an account.
type Job struct {
	ID                string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID             string         `gorm:"type:uuid;not null;index" json:"org_id"`
	AccountID         *string        `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description,omitempty"`
	JobType           string         `gorm:"size:50;not null;default:'contract'" json:"job_type"`
	RequiredSkills    pq.StringArray `gorm:"type:text[]" json:"required_skills"`
	NiceToHaveSkills  pq.StringArray `gorm:"type:text[]" json:"nice_to_have_skills"`
	MinExperience     *int           `json:"min_experience_years,omitempty"`
	MaxExperience     *int           `json:"max_experience_years,omitempty"`
	VisaRequirements  pq.StringArray `gorm:"type:text[]" json:"visa_requirements"`
	Location          string         `gorm:"size:255" json:"location,omitempty"`
	IsRemote          bool           `gorm:"default:false" json:"is_remote"`
	HybridDays        *int           `json:"hybrid_days,omitempty"`
	RateMin           *float64       `gorm:"type:numeric(12,2)" json:"rate_min,omitempty"`
	RateMax           *float64       `gorm:"type:numeric(12,2)" json:"rate_max,omitempty"`
	RateType          string         `gorm:"size:20;default:'hourly'" json:"rate_type"`
	Currency          string         `gorm:"size:3;default:'USD'" json:"currency"`
	PositionsCount    int            `gorm:"default:1" json:"positions_count"`
	Status            string         `gorm:"size:50;not null;default:'draft';index" json:"status"`
	Urgency           string         `gorm:"size:20;default:'medium'" json:"urgency"`
	PostedDate        *time.Time     `json:"posted_date,omitempty"`
	TargetFillDate    *time.Time     `json:"target_fill_date,omitempty"`
	OwnerID           string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedBy         string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
	ClientSubmissions string         `gorm:"type:text" json:"client_submission_instructions,omitempty"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

// Submission attaches a candidate to a job and tracks it through the pipeline.
type Submission struct {
	ID                  string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID               string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_job_candidate,priority:1" json:"org_id"`
	JobID               string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_job_candidate,priority:2" json:"job_id"`
	CandidateID         string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_job_candidate,priority:3" json:"candidate_id"`
	AccountID           *string        `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Status              string         `gorm:"size:50;not null;default:'sourced';index" json:"status"`
	SubmissionNotes     string         `gorm:"type:text" json:"submission_notes,omitempty"`
	SubmittedRate       *float64       `gorm:"type:numeric(12,2)" json:"submitted_rate,omitempty"`
	SubmittedRateType   string         `gorm:"size:20" json:"submitted_rate_type,omitempty"`
	AIMatchScore        *int           `json:"ai_match_score,omitempty"`
	AIMatchRationale    string         `gorm:"type:text" json:"ai_match_rationale,omitempty"`
	RecruiterMatchScore *int           `json:"recruiter_match_score,omitempty"`
	SubmittedToClientAt *time.Time     `json:"submitted_to_client_at,omitempty"`
	ClientDecision      string         `gorm:"size:20" json:"client_decision,omitempty"`
	ClientFeedback      string         `gorm:"type:text" json:"client_feedback,omitempty"`
	RejectionReason     string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectionSource     string         `gorm:"size:20" json:"rejection_source,omitempty"`
	RejectedAt          *time.Time     `json:"rejected_at,omitempty"`
	PipelineOrder       int            `gorm:"default:0" json:"pipeline_order"`
	OwnerID             string         `gorm:"type:uuid;not null" json:"owner_id"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`

	Job       *Job         `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Candidate *UserProfile `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
}

// Interview is a scheduled conversation between a candidate and interviewers.
type Interview struct {
	ID                 string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID              string         `gorm:"type:uuid;not null;index" json:"org_id"`
	SubmissionID       string         `gorm:"type:uuid;not null;index" json:"submission_id"`
	JobID              string         `gorm:"type:uuid;not null;index" json:"job_id"`
	CandidateID        string         `gorm:"type:uuid;not null;index" json:"candidate_id"`
	InterviewType      string         `gorm:"size:50;not null" json:"interview_type"`
	Round              int            `gorm:"not null;default:1" json:"round"`
	ScheduledAt        time.Time      `gorm:"not null;index" json:"scheduled_at"`
	DurationMinutes    int            `gorm:"not null;default:60" json:"duration_minutes"`
	Timezone           string         `gorm:"size:64;default:'UTC'" json:"timezone"`
	Location           string         `gorm:"size:255" json:"location,omitempty"`
	MeetingLink        string         `gorm:"size:500" json:"meeting_link,omitempty"`
	InterviewerNames   pq.StringArray `gorm:"type:text[]" json:"interviewer_names"`
	InterviewerEmails  pq.StringArray `gorm:"type:text[]" json:"interviewer_emails"`
	Status             string         `gorm:"size:50;not null;default:'scheduled';index" json:"status"`
	CancellationReason string         `gorm:"type:text" json:"cancellation_reason,omitempty"`
	ScheduledBy        string         `gorm:"type:uuid;not null" json:"scheduled_by"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	Feedback *InterviewFeedback `gorm:"foreignKey:InterviewID" json:"feedback,omitempty"`
}

// InterviewFeedback is the scorecard recorded once per interview.
type InterviewFeedback struct {
	ID                  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID               string    `gorm:"type:uuid;not null;index" json:"org_id"`
	InterviewID         string    `gorm:"type:uuid;not null;uniqueIndex" json:"interview_id"`
	Rating              int       `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	TechnicalRating     *int      `json:"technical_rating,omitempty"`
	CultureFitRating    *int      `json:"culture_fit_rating,omitempty"`
	CommunicationRating *int      `json:"communication_rating,omitempty"`
	Recommendation      string    `gorm:"size:20;not null" json:"recommendation"`
	Feedback            string    `gorm:"type:text;not null" json:"feedback"`
	Strengths           string    `gorm:"type:text" json:"strengths,omitempty"`
	Concerns            string    `gorm:"type:text" json:"concerns,omitempty"`
	SubmittedBy         string    `gorm:"type:uuid;not null" json:"submitted_by"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Offer is extended to a candidate for a submission.
type Offer struct {
	ID                  string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID               string         `gorm:"type:uuid;not null;index" json:"org_id"`
	SubmissionID        string         `gorm:"type:uuid;not null;index" json:"submission_id"`
	JobID               string         `gorm:"type:uuid;not null" json:"job_id"`
	CandidateID         string         `gorm:"type:uuid;not null" json:"candidate_id"`
	OfferType           string         `gorm:"size:20;default:'written'" json:"offer_type"`
	Status              string         `gorm:"size:50;not null;default:'draft';index" json:"status"`
	BillRate            *float64       `gorm:"type:numeric(12,2)" json:"bill_rate,omitempty"`
	PayRate             *float64       `gorm:"type:numeric(12,2)" json:"pay_rate,omitempty"`
	Salary              *float64       `gorm:"type:numeric(12,2)" json:"salary,omitempty"`
	StartDate           time.Time      `gorm:"not null" json:"start_date"`
	ExpiryDate          *time.Time     `json:"offer_expiry_date,omitempty"`
	SentAt              *time.Time     `json:"sent_at,omitempty"`
	AcceptedAt          *time.Time     `json:"accepted_at,omitempty"`
	DeclinedAt          *time.Time     `json:"declined_at,omitempty"`
	DeclineReason       string         `gorm:"type:text" json:"decline_reason,omitempty"`
	CounterNotes        string         `gorm:"type:text" json:"counter_notes,omitempty"`
	InternalNotes       string         `gorm:"type:text" json:"internal_notes,omitempty"`
	SignatureEnvelopeID *string        `gorm:"size:100;index" json:"signature_envelope_id,omitempty"`
	SignatureStatus     string         `gorm:"size:50" json:"signature_status,omitempty"`
	CreatedBy           string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// Placement is a started engagement that timesheets and payroll hang off.
type Placement struct {
	ID                string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID             string         `gorm:"type:uuid;not null;index" json:"org_id"`
	SubmissionID      string         `gorm:"type:uuid;not null;uniqueIndex" json:"submission_id"`
	JobID             string         `gorm:"type:uuid;not null" json:"job_id"`
	CandidateID       string         `gorm:"type:uuid;not null;index" json:"candidate_id"`
	AccountID         *string        `gorm:"type:uuid;index" json:"account_id,omitempty"`
	OfferID           *string        `gorm:"type:uuid" json:"offer_id,omitempty"`
	Status            string         `gorm:"size:50;not null;default:'pending_start';index" json:"status"`
	PlacementType     string         `gorm:"size:50;not null" json:"placement_type"`
	StartDate         time.Time      `gorm:"not null;index" json:"start_date"`
	EndDate           *time.Time     `json:"end_date,omitempty"`
	ActualEndDate     *time.Time     `json:"actual_end_date,omitempty"`
	BillRate          float64        `gorm:"type:numeric(12,2);not null" json:"bill_rate"`
	PayRate           float64        `gorm:"type:numeric(12,2);not null" json:"pay_rate"`
	OvertimePayRate   *float64       `gorm:"type:numeric(12,2)" json:"overtime_pay_rate,omitempty"`
	DoubleTimePayRate *float64       `gorm:"type:numeric(12,2)" json:"double_time_pay_rate,omitempty"`
	Currency          string         `gorm:"size:3;default:'USD'" json:"currency"`
	ExtensionCount    int            `gorm:"default:0" json:"extension_count"`
	TerminationReason string         `gorm:"size:50" json:"termination_reason,omitempty"`
	TerminationNotes  string         `gorm:"type:text" json:"termination_notes,omitempty"`
	CreatedBy         string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Candidate *UserProfile `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
}

// Timesheet records hours worked on a placement for a period.
type Timesheet struct {
	ID                   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID                string         `gorm:"type:uuid;not null;index" json:"org_id"`
	PlacementID          string         `gorm:"type:uuid;not null;index" json:"placement_id"`
	PeriodStart          time.Time      `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd            time.Time      `gorm:"type:date;not null" json:"period_end"`
	TotalRegularHours    float64        `gorm:"type:numeric(8,2);default:0" json:"total_regular_hours"`
	TotalOvertimeHours   float64        `gorm:"type:numeric(8,2);default:0" json:"total_overtime_hours"`
	TotalDoubleTimeHours float64        `gorm:"type:numeric(8,2);default:0" json:"total_double_time_hours"`
	TotalPTOHours        float64        `gorm:"type:numeric(8,2);default:0" json:"total_pto_hours"`
	TotalHolidayHours    float64        `gorm:"type:numeric(8,2);default:0" json:"total_holiday_hours"`
	Status               string         `gorm:"size:20;not null;default:'draft';index" json:"status"`
	PayrollRunID         *string        `gorm:"type:uuid;index" json:"payroll_run_id,omitempty"`
	ApprovedAt           *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy           *string        `gorm:"type:uuid" json:"approved_by,omitempty"`
	ProcessedAt          *time.Time     `json:"processed_at,omitempty"`
	ProcessedBy          *string        `gorm:"type:uuid" json:"processed_by,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	Placement *Placement `gorm:"foreignKey:PlacementID" json:"placement,omitempty"`
}
