package dto

import "github.com/google/uuid"

// CreateNotificationRequest is the synchronous collaborator surface:
// any platform workflow (booking, reporting, follow-up approval) posts
// one of these and never learns about delivery mechanics.
type CreateNotificationRequest struct {
	UserID         uuid.UUID              `json:"user_id" validate:"required"`
	Message        string                 `json:"message" validate:"required"`
	Type           string                 `json:"type"`
	Priority       string                 `json:"priority"`
	ActionURL      string                 `json:"action_url"`
	ActionText     string                 `json:"action_text"`
	ExpiresInHours int                    `json:"expires_in_hours" validate:"min=0"`
	Metadata       map[string]interface{} `json:"metadata"`
}

type CreateNotificationResponse struct {
	ID uuid.UUID `json:"id"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
