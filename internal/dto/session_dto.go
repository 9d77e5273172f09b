package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	RoomID    string    `json:"room_id"`
	Status    string    `json:"status"`
	Created   bool      `json:"created"`
}

type JoinSessionResponse struct {
	RoomID      string `json:"room_id"`
	SessionType string `json:"session_type"`
	Status      string `json:"status"`
	Role        string `json:"role"`
}

type EndSessionResponse struct {
	RoomID  string     `json:"room_id"`
	Status  string     `json:"status"`
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

type SessionMessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type UpdateSessionNotesRequest struct {
	Notes string `json:"notes" validate:"max=10000"`
}
