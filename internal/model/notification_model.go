package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification types form an open vocabulary; these are the ones the
// platform currently emits.
const (
	NotificationAppointment = "appointment"
	NotificationReport      = "report"
	NotificationSystem      = "system"
	NotificationReminder    = "reminder"
	NotificationFeedback    = "feedback"
	NotificationGeneral     = "general"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is a durable per-user message. Read and Dismissed move
// false -> true only; rows are removed only by the expiry sweep.
type Notification struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_notifications_user_unread,priority:1;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Message    string         `gorm:"type:text;not null" json:"message"`
	Type       string         `gorm:"type:varchar(20);not null;default:'general'" json:"type"`
	Priority   string         `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	ActionURL  string         `gorm:"type:varchar(255)" json:"action_url,omitempty"`
	ActionText string         `gorm:"type:varchar(50)" json:"action_text,omitempty"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	Read       bool           `gorm:"default:false;index:idx_notifications_user_unread,priority:2" json:"read"`
	Dismissed  bool           `gorm:"default:false;index:idx_notifications_user_unread,priority:3" json:"dismissed"`
	CreatedAt  time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_notifications_user_created,priority:2" json:"created_at"`
	ExpiresAt  *time.Time     `gorm:"index" json:"expires_at,omitempty"`
}

// IsExpired reports whether the expiry sweep may remove the row.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}
