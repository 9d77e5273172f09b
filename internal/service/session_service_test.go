package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/model"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/logger"
	"calmconnect-be/internal/websocket"
	"calmconnect-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionRepo struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*model.LiveSession
	participants map[uuid.UUID]map[uuid.UUID]*model.SessionParticipant
	messages     []model.SessionMessage
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:     make(map[uuid.UUID]*model.LiveSession),
		participants: make(map[uuid.UUID]map[uuid.UUID]*model.SessionParticipant),
	}
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, session *model.LiveSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.AppointmentID == session.AppointmentID {
			return assert.AnError
		}
	}
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionRepo) FindSessionByRoomID(ctx context.Context, roomID string) (*model.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.RoomID == roomID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindSessionByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*model.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.AppointmentID == appointmentID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) UpdateSessionNotes(ctx context.Context, sessionID uuid.UUID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.Notes = notes
	}
	return nil
}

func (f *fakeSessionRepo) CompareAndSetStatus(ctx context.Context, sessionID uuid.UUID, from, to string, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	if v, ok := updates["actual_start"].(time.Time); ok {
		s.ActualStart = &v
	}
	if v, ok := updates["actual_end"].(time.Time); ok {
		s.ActualEnd = &v
	}
	return true, nil
}

func (f *fakeSessionRepo) UpsertParticipant(ctx context.Context, participant *model.SessionParticipant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byUser, ok := f.participants[participant.SessionID]
	if !ok {
		byUser = make(map[uuid.UUID]*model.SessionParticipant)
		f.participants[participant.SessionID] = byUser
	}
	if existing, ok := byUser[participant.UserID]; ok {
		existing.JoinedAt = participant.JoinedAt
		existing.LeftAt = nil
		return nil
	}
	copied := *participant
	byUser[participant.UserID] = &copied
	return nil
}

func (f *fakeSessionRepo) MarkParticipantLeft(ctx context.Context, sessionID, userID uuid.UUID, leftAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.participants[sessionID][userID]; ok {
		p.LeftAt = &leftAt
	}
	return nil
}

func (f *fakeSessionRepo) FindConnectedParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.SessionParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var connected []model.SessionParticipant
	for _, p := range f.participants[sessionID] {
		if p.LeftAt == nil {
			connected = append(connected, *p)
		}
	}
	return connected, nil
}

func (f *fakeSessionRepo) CreateMessage(ctx context.Context, message *model.SessionMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeSessionRepo) FindMessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SessionMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	completed    []uuid.UUID
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) FindAppointmentByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.appointments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) MarkAppointmentCompleted(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, nil
}

type recordedBroadcast struct {
	Topic   string
	Payload interface{}
}

type recordingDelivery struct {
	mu     sync.Mutex
	frames []recordedBroadcast
}

func (r *recordingDelivery) Broadcast(topic string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, recordedBroadcast{Topic: topic, Payload: payload})
}

type recordingLifecycle struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingLifecycle) PublishLifecycle(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingLifecycle) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type sessionFixture struct {
	service       ISessionService
	sessions      *fakeSessionRepo
	appointments  *fakeAppointmentRepo
	users         *fakeUserRepo
	delivery      *recordingDelivery
	lifecycle     *recordingLifecycle
	studentID     uuid.UUID
	counselorID   uuid.UUID
	appointmentID uuid.UUID
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		sessions:      newFakeSessionRepo(),
		appointments:  newFakeAppointmentRepo(),
		users:         &fakeUserRepo{users: make(map[uuid.UUID]*model.User)},
		delivery:      &recordingDelivery{},
		lifecycle:     &recordingLifecycle{},
		studentID:     uuid.New(),
		counselorID:   uuid.New(),
		appointmentID: uuid.New(),
	}

	f.appointments.appointments[f.appointmentID] = &model.Appointment{
		ID:              f.appointmentID,
		UserID:          f.studentID,
		CounselorUserID: f.counselorID,
		SessionType:     model.SessionTypeVideo,
		Date:            time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Time:            "14:00:00",
		Status:          model.AppointmentConfirmed,
	}
	f.users.users[f.studentID] = &model.User{ID: f.studentID, Username: "student1", Role: "user"}
	f.users.users[f.counselorID] = &model.User{ID: f.counselorID, Username: "counselor1", Role: "counselor"}

	f.service = NewSessionService(f.sessions, f.appointments, f.users, f.delivery, f.lifecycle, logger.NewNopLogger())
	return f
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{model.SessionScheduled, model.SessionWaiting},
		{model.SessionScheduled, model.SessionCancelled},
		{model.SessionWaiting, model.SessionActive},
		{model.SessionWaiting, model.SessionCancelled},
		{model.SessionActive, model.SessionCompleted},
		{model.SessionActive, model.SessionNoShow},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	denied := [][2]string{
		{model.SessionScheduled, model.SessionActive},
		{model.SessionScheduled, model.SessionCompleted},
		{model.SessionWaiting, model.SessionCompleted},
		{model.SessionActive, model.SessionCancelled},
		{model.SessionCompleted, model.SessionActive},
		{model.SessionCancelled, model.SessionWaiting},
		{model.SessionNoShow, model.SessionActive},
		{model.SessionCompleted, model.SessionCancelled},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be denied", pair[0], pair[1])
	}
}

func TestResolveRole(t *testing.T) {
	student := uuid.New()
	counselor := uuid.New()
	appointment := &model.Appointment{UserID: student, CounselorUserID: counselor}

	assert.Equal(t, model.RoleStudent, ResolveRole(appointment, student))
	assert.Equal(t, model.RoleCounselor, ResolveRole(appointment, counselor))
	assert.Equal(t, "", ResolveRole(appointment, uuid.New()))
	assert.Equal(t, "", ResolveRole(nil, student))
}

func TestNewRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRoomID()
		assert.Len(t, id, len("session_")+12)
		assert.Equal(t, "session_", id[:8])
		assert.False(t, seen[id], "room ids must not collide")
		seen[id] = true
	}
}

func TestCreateForAppointment(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	t.Run("creates once and returns existing after", func(t *testing.T) {
		first, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)
		assert.True(t, first.Created)
		assert.Equal(t, model.SessionScheduled, first.Status)

		second, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.counselorID)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.RoomID, second.RoomID)
		assert.Equal(t, first.SessionID, second.SessionID)
	})

	t.Run("rejects strangers", func(t *testing.T) {
		_, err := f.service.CreateForAppointment(ctx, f.appointmentID, uuid.New())
		assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := f.service.CreateForAppointment(ctx, uuid.New(), f.studentID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestAuthorize(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
	require.NoError(t, err)

	t.Run("parties get their roles", func(t *testing.T) {
		_, role, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleStudent, role)

		_, role, err = f.service.Authorize(ctx, created.RoomID, f.counselorID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleCounselor, role)
	})

	t.Run("strangers are denied", func(t *testing.T) {
		strangerID := uuid.New()
		f.users.users[strangerID] = &model.User{ID: strangerID, Username: "other", Role: "user"}
		_, _, err := f.service.Authorize(ctx, created.RoomID, strangerID)
		assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	})

	t.Run("unknown room", func(t *testing.T) {
		_, _, err := f.service.Authorize(ctx, "session_000000000000", f.studentID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("admin observes supervised sessions only", func(t *testing.T) {
		adminID := uuid.New()
		f.users.users[adminID] = &model.User{ID: adminID, Username: "supervisor", Role: "admin"}

		_, _, err := f.service.Authorize(ctx, created.RoomID, adminID)
		assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

		f.sessions.mu.Lock()
		f.sessions.sessions[created.SessionID].PrivacyLevel = model.PrivacySupervised
		f.sessions.mu.Unlock()

		_, role, err := f.service.Authorize(ctx, created.RoomID, adminID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleObserver, role)
	})
}

func startedFrames(d *recordingDelivery, topic string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, f := range d.frames {
		if _, ok := f.Payload.(dto.SessionStartedFrame); ok && f.Topic == topic {
			n++
		}
	}
	return n
}

func TestRegisterJoinLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("first join moves scheduled to waiting", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)

		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionWaiting, stored.Status)
		assert.Nil(t, stored.ActualStart)
	})

	t.Run("both parties connected activates exactly once", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)

		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))

		session2, _, err := f.service.Authorize(ctx, created.RoomID, f.counselorID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session2, f.counselorID, model.RoleCounselor))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionActive, stored.Status)
		require.NotNil(t, stored.ActualStart)

		// Live-session and chat connections of the room both hear it.
		assert.Equal(t, 1, startedFrames(f.delivery, websocket.RoomTopic(created.RoomID)))
		assert.Equal(t, 1, startedFrames(f.delivery, websocket.ChatTopic(created.RoomID)))

		// Re-join while active must not re-broadcast session_started.
		require.NoError(t, f.service.RegisterJoin(ctx, session2, f.counselorID, model.RoleCounselor))
		assert.Equal(t, 1, startedFrames(f.delivery, websocket.RoomTopic(created.RoomID)))
	})

	t.Run("concurrent double join broadcasts once", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)

		session1, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		session2, _, err := f.service.Authorize(ctx, created.RoomID, f.counselorID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.service.RegisterJoin(ctx, session1, f.studentID, model.RoleStudent)
		}()
		go func() {
			defer wg.Done()
			_ = f.service.RegisterJoin(ctx, session2, f.counselorID, model.RoleCounselor)
		}()
		wg.Wait()

		assert.Equal(t, 1, startedFrames(f.delivery, websocket.RoomTopic(created.RoomID)))
		assert.Equal(t, 1, startedFrames(f.delivery, websocket.ChatTopic(created.RoomID)))
		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionActive, stored.Status)
	})

	t.Run("two students alone never activate", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)

		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionWaiting, stored.Status)
		assert.Equal(t, 0, startedFrames(f.delivery, websocket.RoomTopic(created.RoomID)))
	})
}

func TestRegisterLeave(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
	require.NoError(t, err)
	session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
	require.NoError(t, err)
	require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))

	f.service.RegisterLeave(ctx, session, f.studentID)

	connected, err := f.sessions.FindConnectedParticipants(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, connected)

	// Leave is recorded even after the session ends.
	require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))
	f.sessions.mu.Lock()
	f.sessions.sessions[session.ID].Status = model.SessionCompleted
	f.sessions.mu.Unlock()
	f.service.RegisterLeave(ctx, session, f.studentID)

	connected, err = f.sessions.FindConnectedParticipants(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, connected)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()

	activate := func(t *testing.T, f *sessionFixture) string {
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)
		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.counselorID, model.RoleCounselor))
		return created.RoomID
	}

	t.Run("active session completes", func(t *testing.T) {
		f := newSessionFixture(t)
		roomID := activate(t, f)

		res, err := f.service.End(ctx, roomID, f.counselorID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCompleted, res.Status)
		require.NotNil(t, res.EndedAt)

		assert.Equal(t, []uuid.UUID{f.appointmentID}, f.appointments.completed)
		assert.Equal(t, []string{events.SessionCompletedEvent}, f.lifecycle.names())
	})

	t.Run("ending twice is a no-op", func(t *testing.T) {
		f := newSessionFixture(t)
		roomID := activate(t, f)

		_, err := f.service.End(ctx, roomID, f.studentID)
		require.NoError(t, err)

		res, err := f.service.End(ctx, roomID, f.studentID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCompleted, res.Status)

		// Appointment marked and event published once only.
		assert.Len(t, f.appointments.completed, 1)
		assert.Len(t, f.lifecycle.names(), 1)
	})

	t.Run("waiting session cannot be ended", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)
		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))

		_, err = f.service.End(ctx, created.RoomID, f.studentID)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("strangers cannot end", func(t *testing.T) {
		f := newSessionFixture(t)
		roomID := activate(t, f)

		_, err := f.service.End(ctx, roomID, uuid.New())
		assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	})
}

func TestCancelForAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("scheduled session cancels", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)

		require.NoError(t, f.service.CancelForAppointment(ctx, f.appointmentID))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCancelled, stored.Status)
		assert.Equal(t, []string{events.SessionCancelledEvent}, f.lifecycle.names())
	})

	t.Run("missing or terminal session is a no-op", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.service.CancelForAppointment(ctx, uuid.New()))

		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.CancelForAppointment(ctx, f.appointmentID))
		require.NoError(t, f.service.CancelForAppointment(ctx, f.appointmentID))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCancelled, stored.Status)
		assert.Len(t, f.lifecycle.names(), 1)
	})

	t.Run("active session is left alone", func(t *testing.T) {
		f := newSessionFixture(t)
		created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
		require.NoError(t, err)
		session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
		require.NoError(t, err)
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.studentID, model.RoleStudent))
		require.NoError(t, f.service.RegisterJoin(ctx, session, f.counselorID, model.RoleCounselor))

		require.NoError(t, f.service.CancelForAppointment(ctx, f.appointmentID))

		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionActive, stored.Status)
	})
}

func TestPostChatMessage(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
	require.NoError(t, err)
	session, _, err := f.service.Authorize(ctx, created.RoomID, f.studentID)
	require.NoError(t, err)

	t.Run("whitespace only is rejected before persistence", func(t *testing.T) {
		err := f.service.PostChatMessage(ctx, session, "topic", f.studentID, "student1", "   \n\t ")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Empty(t, f.sessions.messages)
	})

	t.Run("valid message is trimmed, stored and broadcast", func(t *testing.T) {
		require.NoError(t, f.service.PostChatMessage(ctx, session, "topic", f.studentID, "student1", "  hello  "))

		require.Len(t, f.sessions.messages, 1)
		assert.Equal(t, "hello", f.sessions.messages[0].Message)
		assert.Equal(t, model.MessageTypeText, f.sessions.messages[0].MessageType)

		messages, err := f.service.Messages(ctx, created.RoomID, f.counselorID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "student1", messages[0].Sender)
	})
}

func TestUpdateNotes(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
	require.NoError(t, err)

	t.Run("counselor can write", func(t *testing.T) {
		require.NoError(t, f.service.UpdateNotes(ctx, created.RoomID, f.counselorID, "made good progress"))
		stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, "made good progress", stored.Notes)
	})

	t.Run("student cannot", func(t *testing.T) {
		err := f.service.UpdateNotes(ctx, created.RoomID, f.studentID, "x")
		assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	})
}

func TestMarkNoShow(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateForAppointment(ctx, f.appointmentID, f.studentID)
	require.NoError(t, err)

	require.NoError(t, f.service.MarkNoShow(ctx, created.RoomID))

	stored, err := f.sessions.FindSessionByRoomID(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionNoShow, stored.Status)
	assert.Equal(t, []string{events.SessionNoShowEvent}, f.lifecycle.names())

	// Terminal no-op.
	require.NoError(t, f.service.MarkNoShow(ctx, created.RoomID))
	assert.Len(t, f.lifecycle.names(), 1)
}
