package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User roles
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleRecruiter = "recruiter"
	RoleManager   = "manager"
	RoleTrainer   = "trainer"
	RoleStudent   = "student"
	RoleCandidate = "candidate"
)

// Organization is a tenant. Everything else hangs off an org_id.
type Organization struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`
	Plan      string         `gorm:"size:50;default:'starter'" json:"plan"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserProfile covers staff users, students and candidates. Candidate-only
// attributes use the candidate_ prefix, matching the recruiting screens.
type UserProfile struct {
	ID        string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string  `gorm:"type:uuid;not null;index" json:"org_id"`
	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	Password  string  `gorm:"size:255" json:"-"` // Hashed password (excluded from JSON)
	FirstName string  `gorm:"size:100" json:"first_name"`
	LastName  string  `gorm:"size:100" json:"last_name"`
	FullName  string  `gorm:"size:255;index" json:"full_name"`
	Phone     *string `gorm:"size:50" json:"phone,omitempty"`
	AvatarURL string  `gorm:"size:500" json:"avatar_url,omitempty"`
	Role      string  `gorm:"size:50;not null;default:'recruiter'" json:"role"`
	IsActive  bool    `gorm:"default:true" json:"is_active"`

	// ExternalID is the identity provider's id for SCIM-provisioned users.
	ExternalID *string `gorm:"size:255;index" json:"external_id,omitempty"`

	CandidateStatus            *string        `gorm:"size:50;index" json:"candidate_status,omitempty"`
	CandidateSkills            pq.StringArray `gorm:"type:text[]" json:"candidate_skills,omitempty"`
	CandidateExperienceYears   *int           `json:"candidate_experience_years,omitempty"`
	CandidateCurrentVisa       *string        `gorm:"size:20" json:"candidate_current_visa,omitempty"`
	CandidateVisaExpiry        *time.Time     `json:"candidate_visa_expiry,omitempty"`
	CandidateHourlyRate        *float64       `gorm:"type:numeric(10,2)" json:"candidate_hourly_rate,omitempty"`
	CandidateAvailability      *string        `gorm:"size:20" json:"candidate_availability,omitempty"`
	CandidateLocation          *string        `gorm:"size:255" json:"candidate_location,omitempty"`
	CandidateWillingToRelocate bool           `gorm:"default:false" json:"candidate_willing_to_relocate"`
	CandidateResumeURL         *string        `gorm:"size:500" json:"candidate_resume_url,omitempty"`

	CreatedBy *string        `gorm:"type:uuid" json:"created_by,omitempty"`
	UpdatedBy *string        `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrgID" json:"organization,omitempty"`
}

// IsCandidate reports whether the profile is tracked in the talent pool.
func (u *UserProfile) IsCandidate() bool {
	return u.CandidateStatus != nil
}

type RefreshToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User UserProfile `gorm:"foreignKey:UserID" json:"-"`
}

type PermanentToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User UserProfile `gorm:"foreignKey:UserID" json:"-"`
}

// AuditLog records admin mutations (integration changes, pay run approvals).
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string    `gorm:"type:uuid;not null;index" json:"org_id"`
	UserID    *string   `gorm:"type:uuid" json:"user_id,omitempty"`
	UserEmail string    `gorm:"size:255" json:"user_email,omitempty"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Table     string    `gorm:"column:table_name;size:100;not null" json:"table_name"`
	RecordID  string    `gorm:"type:uuid" json:"record_id"`
	NewValues JSONMap   `gorm:"type:jsonb" json:"new_values,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
