package models

// This file serves as the central export point for all database models.
//
// Database schema overview:
//  1. organizations, user_profiles, refresh/permanent tokens - tenancy and auth
//  2. accounts, jobs, submissions, interviews, interview_feedback, offers,
//     placements, timesheets - recruiting pipeline (ATS)
//  3. pods, pod_members, sprints, sprint_items, sprint_item_comments,
//     sprint_item_history - team structure and sprint boards
//  4. courses, course_modules, module_topics, enrollments,
//     topic_completions, capstone_submissions - training academy
//  5. pay_periods, pay_runs, pay_items - payroll
//  6. integrations, integration_health_logs, webhook_events, audit_logs -
//     partner integrations and auditing
//
// Every tenant-owned table carries org_id; queries are always scoped by it.

// All returns every model for AutoMigrate, parents before children.
func All() []interface{} {
	return []interface{}{
		&Organization{},
		&UserProfile{},
		&RefreshToken{},
		&PermanentToken{},
		&Account{},
		&Pod{},
		&PodMember{},
		&Job{},
		&Submission{},
		&Interview{},
		&InterviewFeedback{},
		&Offer{},
		&Placement{},
		&Timesheet{},
		&Sprint{},
		&SprintItem{},
		&SprintItemComment{},
		&SprintItemHistory{},
		&Course{},
		&CourseModule{},
		&ModuleTopic{},
		&Enrollment{},
		&TopicCompletion{},
		&CapstoneSubmission{},
		&PayPeriod{},
		&PayRun{},
		&PayItem{},
		&IntegrationType{},
		&Integration{},
		&IntegrationHealthLog{},
		&WebhookEvent{},
		&AuditLog{},
	}
}
