package model

import (
	"time"
)

// AuditEvent is an immutable record of a user action.
type AuditEvent struct {
	ID           uint                       `gorm:"primaryKey;autoIncrement"`
	UserID       string                     `gorm:"not null;type:VARCHAR(255);index:audit_events_user_idx"`
	Action       string                     `gorm:"not null;type:VARCHAR(100)"`
	ResourceType string                     `gorm:"not null;type:VARCHAR(100)"`
	ResourceID   *string                    `gorm:"type:VARCHAR(255)"`
	Metadata     *JSONField[map[string]any] `gorm:"type:jsonb"`
	Timestamp    time.Time                  `gorm:"not null"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
