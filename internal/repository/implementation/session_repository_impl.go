package implementation

import (
	"context"
	"errors"
	"time"

	"calmconnect-be/internal/model"
	"calmconnect-be/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) CreateSession(ctx context.Context, session *model.LiveSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepositoryImpl) FindSessionByRoomID(ctx context.Context, roomID string) (*model.LiveSession, error) {
	var session model.LiveSession
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) FindSessionByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*model.LiveSession, error) {
	var session model.LiveSession
	err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) UpdateSessionNotes(ctx context.Context, sessionID uuid.UUID, notes string) error {
	return r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"notes":      notes,
			"updated_at": time.Now(),
		}).Error
}

func (r *SessionRepositoryImpl) CompareAndSetStatus(ctx context.Context, sessionID uuid.UUID, from, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ? AND status = ?", sessionID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *SessionRepositoryImpl) UpsertParticipant(ctx context.Context, participant *model.SessionParticipant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"role":      participant.Role,
			"joined_at": participant.JoinedAt,
			"left_at":   nil,
		}),
	}).Create(participant).Error
}

func (r *SessionRepositoryImpl) MarkParticipantLeft(ctx context.Context, sessionID, userID uuid.UUID, leftAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.SessionParticipant{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Update("left_at", leftAt).Error
}

func (r *SessionRepositoryImpl) FindConnectedParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.SessionParticipant, error) {
	var participants []model.SessionParticipant
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND left_at IS NULL", sessionID).
		Find(&participants).Error
	return participants, err
}

func (r *SessionRepositoryImpl) CreateMessage(ctx context.Context, message *model.SessionMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *SessionRepositoryImpl) FindMessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionMessage, error) {
	var messages []model.SessionMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}
