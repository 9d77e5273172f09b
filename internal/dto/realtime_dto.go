package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Frame type tags shared by both directions of the socket protocol.
const (
	FrameWebRTCSignal     = "webrtc_signal"
	FrameChatMessage      = "chat_message"
	FrameUserJoined       = "user_joined"
	FrameUserLeft         = "user_left"
	FrameSessionStarted   = "session_started"
	FrameMarkRead         = "mark_read"
	FrameMarkAllRead      = "mark_all_read"
	FrameGetNotifications = "get_notifications"
	FrameNewNotification  = "new_notification"
	FrameNotifications    = "notifications"
	FrameNotifCount       = "notification_count"
	FrameError            = "error"
)

// InboundFrame is the envelope every client frame is parsed into
// before dispatch on Type.
type InboundFrame struct {
	Type           string          `json:"type"`
	Signal         json.RawMessage `json:"signal,omitempty"`
	Message        string          `json:"message,omitempty"`
	NotificationID uuid.UUID       `json:"notification_id,omitempty"`
}

type UserJoinedFrame struct {
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type UserLeftFrame struct {
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type SessionStartedFrame struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"` // ISO 8601
}

type WebRTCSignalFrame struct {
	Type   string          `json:"type"`
	Signal json.RawMessage `json:"signal"`
	Sender uuid.UUID       `json:"sender"`
}

type ChatMessageFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"` // ISO 8601
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Message: message}
}

type NewNotificationFrame struct {
	Type         string      `json:"type"`
	Notification interface{} `json:"notification"`
}

type NotificationListFrame struct {
	Type          string      `json:"type"`
	Notifications interface{} `json:"notifications"`
}

// NotificationCountFrame carries the authoritative unread count; it is
// a refresh signal, not a delta.
type NotificationCountFrame struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}
