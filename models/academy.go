package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Course struct {
	ID                    string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID                 string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_course_slug,priority:1" json:"org_id"`
	Slug                  string         `gorm:"size:255;not null;uniqueIndex:idx_course_slug,priority:2" json:"slug"`
	Title                 string         `gorm:"size:255;not null" json:"title"`
	Subtitle              string         `gorm:"size:500" json:"subtitle,omitempty"`
	Description           string         `gorm:"type:text" json:"description,omitempty"`
	SkillLevel            string         `gorm:"size:20;default:'beginner'" json:"skill_level"`
	IsPublished           bool           `gorm:"default:false;index" json:"is_published"`
	PrerequisiteCourseIDs pq.StringArray `gorm:"type:text[]" json:"prerequisite_course_ids"`
	TotalModules          int            `gorm:"default:0" json:"total_modules"`
	TotalTopics           int            `gorm:"default:0" json:"total_topics"`
	EstimatedHours        int            `gorm:"default:0" json:"estimated_duration_hours"`
	Price                 float64        `gorm:"type:numeric(10,2);default:0" json:"price"`
	CreatedBy             string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	Modules []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

type CourseModule struct {
	ID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID        string    `gorm:"type:uuid;not null;index" json:"org_id"`
	CourseID     string    `gorm:"type:uuid;not null;index" json:"course_id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	ModuleNumber int       `gorm:"not null" json:"module_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Topics []ModuleTopic `gorm:"foreignKey:ModuleID" json:"topics,omitempty"`
}

type ModuleTopic struct {
	ID                   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID                string         `gorm:"type:uuid;not null;index" json:"org_id"`
	CourseID             string         `gorm:"type:uuid;not null;index" json:"course_id"`
	ModuleID             string         `gorm:"type:uuid;not null;index" json:"module_id"`
	Title                string         `gorm:"size:255;not null" json:"title"`
	TopicNumber          int            `gorm:"not null" json:"topic_number"`
	ContentType          string         `gorm:"size:20;not null;default:'reading'" json:"content_type"`
	ContentURL           string         `gorm:"size:500" json:"content_url,omitempty"`
	EstimatedMinutes     int            `gorm:"default:10" json:"estimated_minutes"`
	PrerequisiteTopicIDs pq.StringArray `gorm:"type:text[]" json:"prerequisite_topic_ids"`
	XPReward             int            `gorm:"default:10" json:"xp_reward"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

type Enrollment struct {
	ID                   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID                string     `gorm:"type:uuid;not null;index" json:"org_id"`
	UserID               string     `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"user_id"`
	CourseID             string     `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:2;index" json:"course_id"`
	Status               string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaymentType          string     `gorm:"size:20;not null" json:"payment_type"`
	PaymentAmount        float64    `gorm:"type:numeric(10,2);default:0" json:"payment_amount"`
	PaymentID            string     `gorm:"size:255" json:"payment_id,omitempty"`
	EnrolledAt           time.Time  `json:"enrolled_at"`
	StartsAt             *time.Time `json:"starts_at,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CompletionPercentage int        `gorm:"default:0" json:"completion_percentage"`
	CurrentModuleID      *string    `gorm:"type:uuid" json:"current_module_id,omitempty"`
	CurrentTopicID       *string    `gorm:"type:uuid" json:"current_topic_id,omitempty"`
	LastActivityAt       *time.Time `json:"last_activity_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	DroppedAt            *time.Time `json:"dropped_at,omitempty"`
	AtRisk               bool       `gorm:"default:false" json:"at_risk"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	Course *Course      `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   *UserProfile `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type TopicCompletion struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID            string    `gorm:"type:uuid;not null;index" json:"org_id"`
	EnrollmentID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_completion_enrollment_topic,priority:1" json:"enrollment_id"`
	TopicID          string    `gorm:"type:uuid;not null;uniqueIndex:idx_completion_enrollment_topic,priority:2" json:"topic_id"`
	UserID           string    `gorm:"type:uuid;not null;index" json:"user_id"`
	TimeSpentSeconds int       `gorm:"default:0" json:"time_spent_seconds"`
	XPEarned         int       `gorm:"default:0" json:"xp_earned"`
	CompletedAt      time.Time `json:"completed_at"`
}

type CapstoneSubmission struct {
	ID            string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID         string     `gorm:"type:uuid;not null;index" json:"org_id"`
	EnrollmentID  string     `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	StudentID     string     `gorm:"type:uuid;not null" json:"student_id"`
	RepositoryURL string     `gorm:"size:500" json:"repository_url,omitempty"`
	Status        string     `gorm:"size:30;not null;default:'submitted'" json:"status"`
	Grade         *int       `json:"grade,omitempty"`
	ReviewerID    *string    `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
