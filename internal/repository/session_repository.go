package repository

import (
	"context"
	"time"

	"calmconnect-be/internal/model"

	"github.com/google/uuid"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.LiveSession) error
	FindSessionByRoomID(ctx context.Context, roomID string) (*model.LiveSession, error)
	FindSessionByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*model.LiveSession, error)
	UpdateSessionNotes(ctx context.Context, sessionID uuid.UUID, notes string) error

	// CompareAndSetStatus atomically moves the session from one status
	// to another, applying extra column updates in the same statement.
	// Returns false when the session was no longer in the expected
	// status, which is how concurrent transition races are decided.
	CompareAndSetStatus(ctx context.Context, sessionID uuid.UUID, from, to string, updates map[string]interface{}) (bool, error)

	// UpsertParticipant inserts the (session, user) row or, on
	// reconnect, refreshes joined_at and clears left_at on the
	// existing one. Never creates duplicates.
	UpsertParticipant(ctx context.Context, participant *model.SessionParticipant) error
	MarkParticipantLeft(ctx context.Context, sessionID, userID uuid.UUID, leftAt time.Time) error
	FindConnectedParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.SessionParticipant, error)

	CreateMessage(ctx context.Context, message *model.SessionMessage) error
	FindMessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionMessage, error)
}

type AppointmentRepository interface {
	FindAppointmentByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	MarkAppointmentCompleted(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}
