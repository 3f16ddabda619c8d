package models

import (
	"time"

	"gorm.io/gorm"
)

// IntegrationType is a catalog entry (seeded) describing a supported provider.
type IntegrationType struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Provider    string    `gorm:"size:50;not null;uniqueIndex" json:"provider"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	DisplayName string    `gorm:"size:100;not null" json:"display_name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ConfigKeys  string    `gorm:"type:text" json:"config_keys,omitempty"`
	IsAvailable bool      `gorm:"default:true" json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Integration is an org's configured connection to a partner.
type Integration struct {
	ID              string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID           string         `gorm:"type:uuid;not null;index" json:"org_id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Type            string         `gorm:"size:50;not null;index" json:"type"`
	Provider        string         `gorm:"size:50;not null;index" json:"provider"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	Status          string         `gorm:"size:20;not null;default:'inactive';index" json:"status"`
	Config          JSONMap        `gorm:"type:jsonb" json:"config"`
	Credentials     JSONMap        `gorm:"type:jsonb" json:"credentials,omitempty"`
	WebhookSecret   string         `gorm:"size:255" json:"-"`
	HealthStatus    string         `gorm:"size:20;default:'unknown'" json:"health_status"`
	LastHealthCheck *time.Time     `json:"last_health_check,omitempty"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	ErrorCount      int            `gorm:"default:0" json:"error_count"`
	CreatedBy       *string        `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// Redacted returns a copy safe to serialize: credentials are replaced with
// a list of which keys are set.
func (i Integration) Redacted() Integration {
	if len(i.Credentials) == 0 {
		i.Credentials = nil
		return i
	}
	masked := JSONMap{}
	for k := range i.Credentials {
		masked[k] = "********"
	}
	i.Credentials = masked
	return i
}

type IntegrationHealthLog struct {
	ID             string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID          string    `gorm:"type:uuid;not null;index" json:"org_id"`
	IntegrationID  string    `gorm:"type:uuid;not null;index" json:"integration_id"`
	Healthy        bool      `json:"healthy"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	Message        string    `gorm:"type:text" json:"message,omitempty"`
	CheckedAt      time.Time `gorm:"index" json:"checked_at"`
}

// WebhookEvent stores inbound partner events once per (provider, external id).
type WebhookEvent struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID           string     `gorm:"type:uuid;not null;index" json:"org_id"`
	IntegrationID   string     `gorm:"type:uuid;not null;index" json:"integration_id"`
	Provider        string     `gorm:"size:50;not null;uniqueIndex:idx_webhook_provider_event,priority:1" json:"provider"`
	ExternalEventID string     `gorm:"size:255;not null;uniqueIndex:idx_webhook_provider_event,priority:2" json:"external_event_id"`
	EventType       string     `gorm:"size:100;not null" json:"event_type"`
	Payload         JSONMap    `gorm:"type:jsonb" json:"payload"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	Error           string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
