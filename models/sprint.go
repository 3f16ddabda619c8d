package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Pod is a small team (recruiting, bench sales, HR...) that owns a board.
type Pod struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID       string         `gorm:"type:uuid;not null;index" json:"org_id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	PodType     string         `gorm:"size:50;not null;default:'recruiting'" json:"pod_type"`
	Region      string         `gorm:"size:100" json:"region,omitempty"`
	ManagerID   *string        `gorm:"type:uuid;index" json:"manager_id,omitempty"`
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Manager *UserProfile `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Members []PodMember  `gorm:"foreignKey:PodID" json:"members,omitempty"`
}

type PodMember struct {
	ID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string     `gorm:"type:uuid;not null;index" json:"org_id"`
	PodID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_pod_member,priority:1" json:"pod_id"`
	UserID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_pod_member,priority:2;index" json:"user_id"`
	Role      string     `gorm:"size:50;default:'member'" json:"role"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	User *UserProfile `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type Sprint struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID       string         `gorm:"type:uuid;not null;index" json:"org_id"`
	PodID       string         `gorm:"type:uuid;not null;index" json:"pod_id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Goal        string         `gorm:"type:text" json:"goal,omitempty"`
	Status      string         `gorm:"size:20;not null;default:'planning';index" json:"status"`
	StartDate   *time.Time     `gorm:"type:date" json:"start_date,omitempty"`
	EndDate     *time.Time     `gorm:"type:date" json:"end_date,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedBy   string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// SprintItem is a card that lives either in a pod backlog (SprintID nil,
// BacklogOrder set) or on a sprint board (BoardColumn/BoardOrder).
type SprintItem struct {
	ID               string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID            string         `gorm:"type:uuid;not null;index" json:"org_id"`
	PodID            string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_pod_item_number,priority:1" json:"pod_id"`
	SprintID         *string        `gorm:"type:uuid;index" json:"sprint_id,omitempty"`
	ItemNumber       int            `gorm:"not null;uniqueIndex:idx_pod_item_number,priority:2" json:"item_number"`
	Title            string         `gorm:"size:500;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description,omitempty"`
	ItemType         string         `gorm:"size:20;not null;default:'task'" json:"item_type"`
	Status           string         `gorm:"size:20;not null;default:'backlog';index" json:"status"`
	Priority         string         `gorm:"size:20;default:'medium'" json:"priority"`
	StoryPoints      *int           `json:"story_points,omitempty"`
	AssigneeID       *string        `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	EpicID           *string        `gorm:"type:uuid" json:"epic_id,omitempty"`
	Labels           pq.StringArray `gorm:"type:text[]" json:"labels"`
	BoardColumn      string         `gorm:"size:20" json:"board_column,omitempty"`
	BoardOrder       int            `gorm:"default:0" json:"board_order"`
	BacklogOrder     *int           `json:"backlog_order,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	LinkedEntityType string         `gorm:"size:50" json:"linked_entity_type,omitempty"`
	LinkedEntityID   *string        `gorm:"type:uuid" json:"linked_entity_id,omitempty"`
	CreatedBy        string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Assignee *UserProfile `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

type SprintItemComment struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string         `gorm:"type:uuid;not null;index" json:"org_id"`
	ItemID    string         `gorm:"type:uuid;not null;index" json:"item_id"`
	AuthorID  string         `gorm:"type:uuid;not null" json:"author_id"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Author *UserProfile `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// SprintItemHistory is one changed field of one update.
type SprintItemHistory struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID     string    `gorm:"type:uuid;not null;index" json:"org_id"`
	ItemID    string    `gorm:"type:uuid;not null;index" json:"item_id"`
	Field     string    `gorm:"size:50;not null" json:"field"`
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	ChangedBy string    `gorm:"type:uuid;not null" json:"changed_by"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SprintItemHistory) TableName() string { return "sprint_item_history" }
