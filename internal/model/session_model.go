package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LiveSession statuses. Transitions only move forward along
// scheduled -> waiting -> active -> {completed, no_show}; cancelled is
// reachable from scheduled or waiting. Completed, cancelled and no_show
// are terminal.
const (
	SessionScheduled = "scheduled"
	SessionWaiting   = "waiting"
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
	SessionNoShow    = "no_show"
)

const (
	SessionTypeVideo = "video"
	SessionTypeAudio = "audio"
	SessionTypeChat  = "chat"
)

const (
	PrivacyPrivate    = "private"
	PrivacySupervised = "supervised"
	PrivacyTraining   = "training"
)

// LiveSession is the realtime counterpart of one appointment (1:1).
// RoomID is assigned once at creation and never changes.
type LiveSession struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AppointmentID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"appointment_id"`
	SessionType    string         `gorm:"type:varchar(20);not null;default:'video'" json:"session_type"`
	Status         string         `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	RoomID         string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"room_id"`
	ScheduledStart time.Time      `gorm:"not null" json:"scheduled_start"`
	ScheduledEnd   time.Time      `gorm:"not null" json:"scheduled_end"`
	ActualStart    *time.Time     `json:"actual_start,omitempty"`
	ActualEnd      *time.Time     `json:"actual_end,omitempty"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
	SessionData    datatypes.JSON `gorm:"type:jsonb" json:"session_data,omitempty"`
	IsRecorded     bool           `gorm:"default:false" json:"is_recorded"`
	ConsentGiven   bool           `gorm:"default:false" json:"consent_given"`
	PrivacyLevel   string         `gorm:"type:varchar(20);not null;default:'private'" json:"privacy_level"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IsTerminal reports whether the session can never change status again.
func (s *LiveSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionCancelled || s.Status == SessionNoShow
}

// Participant roles. Role is derived from the appointment, never taken
// from the client.
const (
	RoleStudent   = "student"
	RoleCounselor = "counselor"
	RoleObserver  = "observer"
)

// SessionParticipant tracks who is (or was) connected to a session.
// One row per (session, user); reconnects refresh the existing row.
type SessionParticipant struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_session_user,priority:1" json:"session_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_session_user,priority:2" json:"user_id"`
	Role      string     `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt  time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// SessionMessage is the append-only chat log of a session. Rows are
// never mutated or deleted.
type SessionMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null;index:idx_session_messages_session_ts,priority:1" json:"session_id"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	SenderName  string    `gorm:"type:varchar(150)" json:"sender_name"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	MessageType string    `gorm:"type:varchar(20);not null;default:'text'" json:"message_type"`
	Timestamp   time.Time `gorm:"not null;index:idx_session_messages_session_ts,priority:2" json:"timestamp"`
}
