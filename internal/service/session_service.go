package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/model"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/logger"
	"calmconnect-be/internal/repository"
	"calmconnect-be/internal/websocket"
	"calmconnect-be/pkg/events"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Delivery pushes frames to every connection on a topic. Implemented
// by the websocket hub; pushes are best-effort and never fail the
// calling operation.
type Delivery interface {
	Broadcast(topic string, payload interface{})
}

// LifecyclePublisher carries session lifecycle events to the
// in-process bus, where the notification worker picks them up.
type LifecyclePublisher interface {
	PublishLifecycle(ctx context.Context, event events.Event) error
}

// allowedTransitions is the whole lifecycle graph. Completed,
// cancelled and no_show are terminal: they have no outgoing edges.
var allowedTransitions = map[string][]string{
	model.SessionScheduled: {model.SessionWaiting, model.SessionCancelled, model.SessionNoShow},
	model.SessionWaiting:   {model.SessionActive, model.SessionCancelled, model.SessionNoShow},
	model.SessionActive:    {model.SessionCompleted, model.SessionNoShow},
}

// CanTransition reports whether the lifecycle graph has an edge
// from -> to.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ResolveRole derives the caller's role from the appointment's two
// designated parties by explicit equality. It never consults profile
// shape or client-supplied data.
func ResolveRole(appointment *model.Appointment, userID uuid.UUID) string {
	if appointment == nil {
		return ""
	}
	if userID == appointment.UserID {
		return model.RoleStudent
	}
	if userID == appointment.CounselorUserID {
		return model.RoleCounselor
	}
	return ""
}

// NewRoomID mints the immutable room identifier, assigned once at
// session creation.
func NewRoomID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

type ISessionService interface {
	CreateForAppointment(ctx context.Context, appointmentID, actorID uuid.UUID) (*dto.CreateSessionResponse, error)

	// Authorize resolves the session behind roomID and the caller's
	// role, applying the two-party rule plus the supervised-observer
	// exception. Returns AccessDenied or NotFound errors.
	Authorize(ctx context.Context, roomID string, userID uuid.UUID) (*model.LiveSession, string, error)

	// RegisterJoin is the gateway's join hook: it upserts the
	// participant row and runs the reactive lifecycle checks
	// (scheduled->waiting on first join, waiting->active once both a
	// student and a counselor are connected).
	RegisterJoin(ctx context.Context, session *model.LiveSession, userID uuid.UUID, role string) error

	// RegisterLeave stamps left_at. It runs even when the session is
	// already terminal, and its failures are logged, not surfaced.
	RegisterLeave(ctx context.Context, session *model.LiveSession, userID uuid.UUID)

	End(ctx context.Context, roomID string, userID uuid.UUID) (*dto.EndSessionResponse, error)
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error
	MarkNoShow(ctx context.Context, roomID string) error

	PostChatMessage(ctx context.Context, session *model.LiveSession, topic string, senderID uuid.UUID, senderName, text string) error
	Messages(ctx context.Context, roomID string, userID uuid.UUID) ([]*dto.SessionMessageResponse, error)
	UpdateNotes(ctx context.Context, roomID string, userID uuid.UUID, notes string) error
}

type sessionService struct {
	sessions     repository.SessionRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	delivery     Delivery
	lifecycle    LifecyclePublisher
	logger       logger.ILogger

	// roleCache memoizes (room, user) -> role so reconnect storms
	// don't re-read the appointment row.
	roleCache *gocache.Cache
}

func NewSessionService(
	sessions repository.SessionRepository,
	appointments repository.AppointmentRepository,
	users repository.UserRepository,
	delivery Delivery,
	lifecycle LifecyclePublisher,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		sessions:     sessions,
		appointments: appointments,
		users:        users,
		delivery:     delivery,
		lifecycle:    lifecycle,
		logger:       log,
		roleCache:    gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// CreateForAppointment is idempotent on appointment id: the second
// call returns the session created by the first, room_id included.
func (s *sessionService) CreateForAppointment(ctx context.Context, appointmentID, actorID uuid.UUID) (*dto.CreateSessionResponse, error) {
	appointment, err := s.appointments.FindAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Internal("failed to load appointment", err)
	}
	if appointment == nil {
		return nil, apperr.NotFound("appointment not found")
	}
	if ResolveRole(appointment, actorID) == "" {
		return nil, apperr.AccessDenied("not a party to this appointment")
	}

	if existing, err := s.sessions.FindSessionByAppointmentID(ctx, appointmentID); err != nil {
		return nil, apperr.Internal("failed to look up session", err)
	} else if existing != nil {
		return &dto.CreateSessionResponse{
			SessionID: existing.ID,
			RoomID:    existing.RoomID,
			Status:    existing.Status,
			Created:   false,
		}, nil
	}

	start := time.Date(
		appointment.Date.Year(), appointment.Date.Month(), appointment.Date.Day(),
		0, 0, 0, 0, appointment.Date.Location(),
	)
	if t, err := time.Parse("15:04:05", appointment.Time); err == nil {
		start = start.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}

	session := &model.LiveSession{
		ID:             uuid.New(),
		AppointmentID:  appointmentID,
		SessionType:    appointment.SessionType,
		Status:         model.SessionScheduled,
		RoomID:         NewRoomID(),
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		PrivacyLevel:   model.PrivacyPrivate,
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		// A concurrent creator may have won the unique appointment_id
		// race; their row is the answer either way.
		if existing, findErr := s.sessions.FindSessionByAppointmentID(ctx, appointmentID); findErr == nil && existing != nil {
			return &dto.CreateSessionResponse{
				SessionID: existing.ID,
				RoomID:    existing.RoomID,
				Status:    existing.Status,
				Created:   false,
			}, nil
		}
		return nil, apperr.Internal("failed to create session", err)
	}

	s.logger.Info("SessionService", "Live session created", map[string]interface{}{
		"room_id":        session.RoomID,
		"appointment_id": appointmentID,
	})

	return &dto.CreateSessionResponse{
		SessionID: session.ID,
		RoomID:    session.RoomID,
		Status:    session.Status,
		Created:   true,
	}, nil
}

func (s *sessionService) Authorize(ctx context.Context, roomID string, userID uuid.UUID) (*model.LiveSession, string, error) {
	session, err := s.sessions.FindSessionByRoomID(ctx, roomID)
	if err != nil {
		return nil, "", apperr.Internal("failed to load session", err)
	}
	if session == nil {
		return nil, "", apperr.NotFound("session not found")
	}

	cacheKey := roomID + "|" + userID.String()
	if cached, ok := s.roleCache.Get(cacheKey); ok {
		return session, cached.(string), nil
	}

	appointment, err := s.appointments.FindAppointmentByID(ctx, session.AppointmentID)
	if err != nil {
		return nil, "", apperr.Internal("failed to load appointment", err)
	}
	if appointment == nil {
		return nil, "", apperr.NotFound("appointment not found")
	}

	role := ResolveRole(appointment, userID)
	if role == "" {
		// Admins may sit in on supervised sessions as observers.
		user, err := s.users.FindUserByID(ctx, userID)
		if err != nil {
			return nil, "", apperr.Internal("failed to load user", err)
		}
		if user != nil && user.Role == "admin" && session.PrivacyLevel == model.PrivacySupervised {
			role = model.RoleObserver
		}
	}
	if role == "" {
		return nil, "", apperr.AccessDenied("not a party to this session")
	}

	s.roleCache.Set(cacheKey, role, gocache.DefaultExpiration)
	return session, role, nil
}

func (s *sessionService) RegisterJoin(ctx context.Context, session *model.LiveSession, userID uuid.UUID, role string) error {
	now := time.Now()
	participant := &model.SessionParticipant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  now,
	}
	if err := s.sessions.UpsertParticipant(ctx, participant); err != nil {
		return apperr.Internal("failed to upsert participant", err)
	}

	// First join moves a scheduled session into the waiting room. The
	// CAS losing just means someone else got there first.
	if session.Status == model.SessionScheduled {
		if _, err := s.sessions.CompareAndSetStatus(ctx, session.ID, model.SessionScheduled, model.SessionWaiting, nil); err != nil {
			return apperr.Internal("failed to move session to waiting", err)
		}
		session.Status = model.SessionWaiting
	}

	return s.tryActivate(ctx, session)
}

// tryActivate runs the waiting->active check. It re-reads the set of
// currently connected participants and, when both a student and a
// counselor are present, takes the transition with a compare-and-set
// so exactly one of two near-simultaneous joins wins and broadcasts
// session_started once.
func (s *sessionService) tryActivate(ctx context.Context, session *model.LiveSession) error {
	participants, err := s.sessions.FindConnectedParticipants(ctx, session.ID)
	if err != nil {
		return apperr.Internal("failed to read participants", err)
	}

	var hasStudent, hasCounselor bool
	for _, p := range participants {
		switch p.Role {
		case model.RoleStudent:
			hasStudent = true
		case model.RoleCounselor:
			hasCounselor = true
		}
	}
	if !hasStudent || !hasCounselor {
		return nil
	}

	startedAt := time.Now()
	won, err := s.sessions.CompareAndSetStatus(ctx, session.ID, model.SessionWaiting, model.SessionActive, map[string]interface{}{
		"actual_start": startedAt,
	})
	if err != nil {
		return apperr.Internal("failed to activate session", err)
	}
	if !won {
		// Already active (the other join won) or already terminal.
		return nil
	}

	session.Status = model.SessionActive
	session.ActualStart = &startedAt

	// Participants may sit on either the live-session or the chat
	// socket of the same room; both groups get the frame.
	frame := dto.SessionStartedFrame{
		Type:      dto.FrameSessionStarted,
		Status:    model.SessionActive,
		StartedAt: startedAt.UTC().Format(time.RFC3339),
	}
	s.delivery.Broadcast(websocket.RoomTopic(session.RoomID), frame)
	s.delivery.Broadcast(websocket.ChatTopic(session.RoomID), frame)
	s.logger.Info("SessionService", "Session activated", map[string]interface{}{"room_id": session.RoomID})
	return nil
}

func (s *sessionService) RegisterLeave(ctx context.Context, session *model.LiveSession, userID uuid.UUID) {
	// Fire-and-forget: the persisted row is the canonical participant
	// state and is reconciled from there, so a failure here is logged
	// and never retried.
	if err := s.sessions.MarkParticipantLeft(ctx, session.ID, userID, time.Now()); err != nil {
		s.logger.Error("SessionService", "Failed to mark participant left", map[string]interface{}{
			"room_id": session.RoomID,
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func (s *sessionService) End(ctx context.Context, roomID string, userID uuid.UUID) (*dto.EndSessionResponse, error) {
	session, role, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleStudent && role != model.RoleCounselor {
		return nil, apperr.AccessDenied("only a session party can end it")
	}

	if session.IsTerminal() {
		// Ending twice is a no-op, not an error.
		return &dto.EndSessionResponse{RoomID: roomID, Status: session.Status, EndedAt: session.ActualEnd}, nil
	}
	if session.Status != model.SessionActive {
		return nil, apperr.Validation("session is not active")
	}

	endedAt := time.Now()
	won, err := s.sessions.CompareAndSetStatus(ctx, session.ID, model.SessionActive, model.SessionCompleted, map[string]interface{}{
		"actual_end": endedAt,
	})
	if err != nil {
		return nil, apperr.Internal("failed to complete session", err)
	}
	if !won {
		// Raced with the other party's end. Report the stored state.
		fresh, err := s.sessions.FindSessionByRoomID(ctx, roomID)
		if err != nil || fresh == nil {
			return &dto.EndSessionResponse{RoomID: roomID, Status: model.SessionCompleted}, nil
		}
		return &dto.EndSessionResponse{RoomID: roomID, Status: fresh.Status, EndedAt: fresh.ActualEnd}, nil
	}

	if err := s.appointments.MarkAppointmentCompleted(ctx, session.AppointmentID); err != nil {
		s.logger.Error("SessionService", "Failed to mark appointment completed", map[string]interface{}{
			"appointment_id": session.AppointmentID,
			"error":          err.Error(),
		})
	}

	s.publishLifecycle(ctx, events.SessionCompletedEvent, session)
	s.logger.Info("SessionService", "Session completed", map[string]interface{}{"room_id": roomID})

	return &dto.EndSessionResponse{RoomID: roomID, Status: model.SessionCompleted, EndedAt: &endedAt}, nil
}

// CancelForAppointment propagates an appointment cancellation to its
// live session. Terminal or missing sessions are a no-op, never an
// error.
func (s *sessionService) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	session, err := s.sessions.FindSessionByAppointmentID(ctx, appointmentID)
	if err != nil {
		return apperr.Internal("failed to look up session", err)
	}
	if session == nil || session.IsTerminal() {
		return nil
	}

	for _, from := range []string{model.SessionScheduled, model.SessionWaiting} {
		won, err := s.sessions.CompareAndSetStatus(ctx, session.ID, from, model.SessionCancelled, nil)
		if err != nil {
			return apperr.Internal("failed to cancel session", err)
		}
		if won {
			s.publishLifecycle(ctx, events.SessionCancelledEvent, session)
			s.logger.Info("SessionService", "Session cancelled", map[string]interface{}{"room_id": session.RoomID})
			return nil
		}
	}

	// Active sessions cannot be cancelled out from under the
	// participants; the appointment side already recorded the intent.
	s.logger.Warn("SessionService", "Cancel skipped, session already active or terminal", map[string]interface{}{"room_id": session.RoomID})
	return nil
}

func (s *sessionService) MarkNoShow(ctx context.Context, roomID string) error {
	session, err := s.sessions.FindSessionByRoomID(ctx, roomID)
	if err != nil {
		return apperr.Internal("failed to load session", err)
	}
	if session == nil || session.IsTerminal() {
		return nil
	}

	for _, from := range []string{model.SessionScheduled, model.SessionWaiting, model.SessionActive} {
		won, err := s.sessions.CompareAndSetStatus(ctx, session.ID, from, model.SessionNoShow, nil)
		if err != nil {
			return apperr.Internal("failed to mark no-show", err)
		}
		if won {
			s.publishLifecycle(ctx, events.SessionNoShowEvent, session)
			return nil
		}
	}
	return nil
}

// PostChatMessage persists the message append-only and broadcasts it
// to the room. Whitespace-only text is rejected before either happens.
func (s *sessionService) PostChatMessage(ctx context.Context, session *model.LiveSession, topic string, senderID uuid.UUID, senderName, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return apperr.Validation("message text is required")
	}

	now := time.Now()
	message := &model.SessionMessage{
		ID:          uuid.New(),
		SessionID:   session.ID,
		SenderID:    senderID,
		SenderName:  senderName,
		Message:     trimmed,
		MessageType: model.MessageTypeText,
		Timestamp:   now,
	}
	if err := s.sessions.CreateMessage(ctx, message); err != nil {
		return apperr.Internal("failed to persist chat message", err)
	}

	s.delivery.Broadcast(topic, dto.ChatMessageFrame{
		Type:      dto.FrameChatMessage,
		Message:   trimmed,
		Sender:    senderName,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *sessionService) Messages(ctx context.Context, roomID string, userID uuid.UUID) ([]*dto.SessionMessageResponse, error) {
	session, _, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.sessions.FindMessagesBySession(ctx, session.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}

	result := make([]*dto.SessionMessageResponse, 0, len(messages))
	for _, m := range messages {
		result = append(result, &dto.SessionMessageResponse{
			ID:        m.ID,
			Sender:    m.SenderName,
			Message:   m.Message,
			Type:      m.MessageType,
			Timestamp: m.Timestamp,
		})
	}
	return result, nil
}

func (s *sessionService) UpdateNotes(ctx context.Context, roomID string, userID uuid.UUID, notes string) error {
	session, role, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if role != model.RoleCounselor {
		return apperr.AccessDenied("only the counselor can edit session notes")
	}
	if err := s.sessions.UpdateSessionNotes(ctx, session.ID, notes); err != nil {
		return apperr.Internal("failed to update notes", err)
	}
	return nil
}

func (s *sessionService) publishLifecycle(ctx context.Context, name string, session *model.LiveSession) {
	if s.lifecycle == nil {
		return
	}

	studentID, counselorID := "", ""
	if appointment, err := s.appointments.FindAppointmentByID(ctx, session.AppointmentID); err == nil && appointment != nil {
		studentID = appointment.UserID.String()
		counselorID = appointment.CounselorUserID.String()
	}

	event := events.NewSessionLifecycleEvent(name, session.RoomID, session.AppointmentID.String(), studentID, counselorID)
	if err := s.lifecycle.PublishLifecycle(ctx, event); err != nil {
		s.logger.Warn("SessionService", fmt.Sprintf("Failed to publish %s", name), map[string]interface{}{"error": err.Error()})
	}
}
