package models

// Submission statuses, in pipeline stage order.
const (
	SubmissionSourced           = "sourced"
	SubmissionScreening         = "screening"
	SubmissionVendorPending     = "vendor_pending"
	SubmissionVendorScreening   = "vendor_screening"
	SubmissionVendorAccepted    = "vendor_accepted"
	SubmissionVendorRejected    = "vendor_rejected"
	SubmissionSubmittedToClient = "submitted_to_client"
	SubmissionClientReview      = "client_review"
	SubmissionClientInterview   = "client_interview"
	SubmissionClientAccepted    = "client_accepted"
	SubmissionClientRejected    = "client_rejected"
	SubmissionOfferStage        = "offer_stage"
	SubmissionPlaced            = "placed"
	SubmissionRejected          = "rejected"
	SubmissionWithdrawn         = "withdrawn"
)

// PipelineStages are the Kanban columns, left to right.
var PipelineStages = []string{
	SubmissionSourced,
	SubmissionScreening,
	SubmissionVendorPending,
	SubmissionVendorScreening,
	SubmissionVendorAccepted,
	SubmissionSubmittedToClient,
	SubmissionClientReview,
	SubmissionClientInterview,
	SubmissionClientAccepted,
	SubmissionOfferStage,
	SubmissionPlaced,
}

// SubmissionStatuses is every valid submission status.
var SubmissionStatuses = append(append([]string{}, PipelineStages...),
	SubmissionVendorRejected,
	SubmissionClientRejected,
	SubmissionRejected,
	SubmissionWithdrawn,
)

var terminalSubmission = map[string]bool{
	SubmissionPlaced:         true,
	SubmissionRejected:       true,
	SubmissionWithdrawn:      true,
	SubmissionVendorRejected: true,
	SubmissionClientRejected: true,
}

// IsTerminalSubmission reports whether status ends the pipeline.
func IsTerminalSubmission(status string) bool {
	return terminalSubmission[status]
}

// IsRejectedSubmission reports whether status is one of the rejection states.
func IsRejectedSubmission(status string) bool {
	switch status {
	case SubmissionRejected, SubmissionVendorRejected, SubmissionClientRejected:
		return true
	}
	return false
}

// StageIndex returns the pipeline position of status, or -1 when the status
// is not a pipeline column.
func StageIndex(status string) int {
	for i, s := range PipelineStages {
		if s == status {
			return i
		}
	}
	return -1
}

// CanTransitionSubmission reports whether a submission may move from one
// status to another. Non-terminal submissions may move freely; terminal
// ones can only be reopened into sourced or screening, and placed is final.
func CanTransitionSubmission(from, to string) bool {
	if !Contains(SubmissionStatuses, to) {
		return false
	}
	if from == to {
		return true
	}
	if !IsTerminalSubmission(from) {
		return true
	}
	if from == SubmissionPlaced {
		return false
	}
	return to == SubmissionSourced || to == SubmissionScreening
}

// Job statuses
const (
	JobDraft     = "draft"
	JobOpen      = "open"
	JobOnHold    = "on_hold"
	JobFilled    = "filled"
	JobCancelled = "cancelled"
	JobClosed    = "closed"
)

var JobStatuses = []string{JobDraft, JobOpen, JobOnHold, JobFilled, JobCancelled, JobClosed}

// Candidate statuses
const (
	CandidateActive      = "active"
	CandidatePlaced      = "placed"
	CandidateBench       = "bench"
	CandidateInactive    = "inactive"
	CandidateBlacklisted = "blacklisted"
)

var (
	VisaTypes          = []string{"USC", "GC", "GC_EAD", "H1B", "H4_EAD", "L2_EAD", "OPT", "CPT", "TN", "other"}
	AvailabilityValues = []string{"immediate", "2_weeks", "1_month"}
)

// Interview types and statuses
const (
	InterviewScheduled  = "scheduled"
	InterviewConfirmed  = "confirmed"
	InterviewInProgress = "in_progress"
	InterviewCompleted  = "completed"
	InterviewCancelled  = "cancelled"
	InterviewNoShow     = "no_show"

	InterviewTypeClient = "client"
)

var (
	InterviewTypes    = []string{"phone_screen", "technical", "behavioral", "panel", "final", InterviewTypeClient}
	InterviewStatuses = []string{InterviewScheduled, InterviewConfirmed, InterviewInProgress, InterviewCompleted, InterviewCancelled, InterviewNoShow}
	Recommendations   = []string{"strong_no", "no", "maybe", "yes", "strong_yes"}
)

// Offer statuses
const (
	OfferDraft           = "draft"
	OfferPendingApproval = "pending_approval"
	OfferSent            = "sent"
	OfferAccepted        = "accepted"
	OfferDeclined        = "declined"
	OfferCountered       = "countered"
	OfferExpired         = "expired"
	OfferWithdrawn       = "withdrawn"
)

// Placement statuses
const (
	PlacementPendingStart = "pending_start"
	PlacementActive       = "active"
	PlacementExtended     = "extended"
	PlacementCompleted    = "completed"
	PlacementTerminated   = "terminated"
)

var TerminationReasons = []string{"contract_ended", "candidate_resigned", "client_terminated", "performance_issues", "other"}

// Timesheet statuses
const (
	TimesheetDraft     = "draft"
	TimesheetSubmitted = "submitted"
	TimesheetApproved  = "approved"
	TimesheetProcessed = "processed"
	TimesheetRejected  = "rejected"
)

// Sprint and sprint item statuses
const (
	SprintPlanning  = "planning"
	SprintActive    = "active"
	SprintCompleted = "completed"
	SprintCancelled = "cancelled"

	ItemBacklog    = "backlog"
	ItemTodo       = "todo"
	ItemInProgress = "in_progress"
	ItemReview     = "review"
	ItemDone       = "done"
	ItemBlocked    = "blocked"

	ItemTypeEpic = "epic"
)

var (
	BoardColumns = []string{ItemTodo, ItemInProgress, ItemReview, ItemDone, ItemBlocked}
	ItemTypes    = []string{ItemTypeEpic, "story", "task", "bug", "spike"}
	PodTypes     = []string{"recruiting", "bench_sales", "ta", "hr", "mixed"}
)

// Enrollment statuses
const (
	EnrollmentPending   = "pending"
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
	EnrollmentExpired   = "expired"

	CapstoneApproved = "approved"
)

var PaymentTypes = []string{"stripe", "free", "scholarship", "sponsored"}

// Pay run statuses
const (
	PayRunDraft           = "draft"
	PayRunCalculating     = "calculating"
	PayRunPendingApproval = "pending_approval"
	PayRunApproved        = "approved"
	PayRunSubmitted       = "submitted"
	PayRunProcessing      = "processing"
	PayRunCompleted       = "completed"
	PayRunVoid            = "void"
)

// Integration statuses
const (
	IntegrationActive   = "active"
	IntegrationInactive = "inactive"
	IntegrationError    = "error"

	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// Contains reports whether v is in values.
func Contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
