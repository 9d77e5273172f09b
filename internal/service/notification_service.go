package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/model"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/logger"
	"calmconnect-be/internal/repository"
	"calmconnect-be/internal/websocket"
	"calmconnect-be/pkg/events"
	pktNats "calmconnect-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	lifecycleConsumerDurable = "notif-service-worker"
	expirySweepInterval      = time.Hour
)

// SessionCanceller lets the event worker propagate appointment
// cancellations into the live session lifecycle.
type SessionCanceller interface {
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error
}

type INotificationService interface {
	// Create persists a notification and pushes new_notification plus a
	// refreshed unread count to the recipient's stream. The push is
	// best-effort; persistence alone decides success.
	Create(ctx context.Context, req *dto.CreateNotificationRequest) (*dto.CreateNotificationResponse, error)

	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Dismiss(ctx context.Context, notificationID, userID uuid.UUID) error

	// PushInbox sends the recent list down the user's stream, as the
	// get_notifications frame requests.
	PushInbox(ctx context.Context, userID uuid.UUID)
	PushCount(ctx context.Context, userID uuid.UUID)

	// Start launches the platform event worker, the internal lifecycle
	// consumer and the expiry sweeper. It returns after wiring them up.
	Start(ctx context.Context) error
}

type notificationService struct {
	repo       repository.NotificationRepository
	delivery   Delivery
	subscriber *pktNats.Subscriber
	pubSub     *gochannel.GoChannel
	sessions   SessionCanceller
	logger     logger.ILogger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	delivery Delivery,
	subscriber *pktNats.Subscriber,
	pubSub *gochannel.GoChannel,
	sessions SessionCanceller,
	log logger.ILogger,
) INotificationService {
	return &notificationService{
		repo:       repo,
		delivery:   delivery,
		subscriber: subscriber,
		pubSub:     pubSub,
		sessions:   sessions,
		logger:     log,
	}
}

func (s *notificationService) Create(ctx context.Context, req *dto.CreateNotificationRequest) (*dto.CreateNotificationResponse, error) {
	notification := &model.Notification{
		ID:         uuid.New(),
		UserID:     req.UserID,
		Message:    req.Message,
		Type:       req.Type,
		Priority:   req.Priority,
		ActionURL:  req.ActionURL,
		ActionText: req.ActionText,
		CreatedAt:  time.Now(),
	}
	if notification.Type == "" {
		notification.Type = model.NotificationGeneral
	}
	if notification.Priority == "" {
		notification.Priority = model.PriorityNormal
	}
	if req.ExpiresInHours > 0 {
		expires := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		notification.ExpiresAt = &expires
	}
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, apperr.Validation("metadata is not serializable")
		}
		notification.Metadata = datatypes.JSON(raw)
	}

	if err := s.repo.CreateNotification(ctx, notification); err != nil {
		return nil, apperr.Internal("failed to persist notification", err)
	}

	s.delivery.Broadcast(websocket.NotificationTopic(req.UserID), dto.NewNotificationFrame{
		Type:         dto.FrameNewNotification,
		Notification: notification,
	})
	s.PushCount(ctx, req.UserID)

	return &dto.CreateNotificationResponse{ID: notification.ID}, nil
}

func (s *notificationService) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	notifications, err := s.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list notifications", err)
	}
	return notifications, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count notifications", err)
	}
	return count, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	found, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return apperr.Internal("failed to mark notification read", err)
	}
	if !found {
		return apperr.NotFound("notification not found")
	}
	s.PushCount(ctx, userID)
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return apperr.Internal("failed to mark notifications read", err)
	}
	s.PushCount(ctx, userID)
	return nil
}

func (s *notificationService) Dismiss(ctx context.Context, notificationID, userID uuid.UUID) error {
	found, err := s.repo.Dismiss(ctx, notificationID, userID)
	if err != nil {
		return apperr.Internal("failed to dismiss notification", err)
	}
	if !found {
		return apperr.NotFound("notification not found")
	}
	s.PushCount(ctx, userID)
	return nil
}

func (s *notificationService) PushInbox(ctx context.Context, userID uuid.UUID) {
	notifications, err := s.repo.ListRecent(ctx, userID, 50)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to load inbox for push", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	s.delivery.Broadcast(websocket.NotificationTopic(userID), dto.NotificationListFrame{
		Type:          dto.FrameNotifications,
		Notifications: notifications,
	})
}

func (s *notificationService) PushCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to refresh unread count", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	s.delivery.Broadcast(websocket.NotificationTopic(userID), dto.NotificationCountFrame{
		Type:  dto.FrameNotifCount,
		Count: count,
	})
}

func (s *notificationService) Start(ctx context.Context) error {
	if s.subscriber != nil {
		if err := s.subscriber.Subscribe("events.>", lifecycleConsumerDurable, s.handlePlatformEvent); err != nil {
			return fmt.Errorf("failed to start platform event worker: %w", err)
		}
		s.logger.Info("NotificationService", "Platform event worker started, listening to events.>", nil)
	}

	if s.pubSub != nil {
		messages, err := s.pubSub.Subscribe(ctx, events.TopicSessionLifecycle)
		if err != nil {
			return fmt.Errorf("failed to subscribe to lifecycle topic: %w", err)
		}
		go func() {
			for msg := range messages {
				s.processLifecycleMessage(ctx, msg.Payload)
				msg.Ack()
			}
		}()
	}

	go s.sweepExpired(ctx)
	return nil
}

// handlePlatformEvent turns a platform event into a durable
// notification for its recipient. Returning an error makes NATS
// redeliver; malformed payloads are dropped instead.
func (s *notificationService) handlePlatformEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	rawUserID, _ := payload["user_id"].(string)
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		s.logger.Warn("NotificationService", "Event without a valid user_id, dropping", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}

	if event.EventType() == events.AppointmentCancelled {
		if rawAppointmentID, ok := payload["appointment_id"].(string); ok {
			if appointmentID, err := uuid.Parse(rawAppointmentID); err == nil {
				if err := s.sessions.CancelForAppointment(ctx, appointmentID); err != nil {
					return err
				}
			}
		}
	}

	req := s.requestForEvent(event.EventType(), userID, payload)
	if req == nil {
		return nil
	}
	if _, err := s.Create(ctx, req); err != nil {
		return err
	}
	return nil
}

// requestForEvent maps a platform event code to notification content.
// Unknown codes use the payload message verbatim when one is present.
func (s *notificationService) requestForEvent(code string, userID uuid.UUID, payload map[string]interface{}) *dto.CreateNotificationRequest {
	message, _ := payload["message"].(string)
	counselorName, _ := payload["counselor_name"].(string)

	switch code {
	case events.AppointmentBooked:
		if message == "" {
			message = fmt.Sprintf("Your counseling appointment with %s has been booked.", counselorName)
		}
		return &dto.CreateNotificationRequest{
			UserID:   userID,
			Message:  message,
			Type:     model.NotificationAppointment,
			Priority: model.PriorityNormal,
		}
	case events.AppointmentReminder:
		if message == "" {
			message = "Your counseling session starts soon."
		}
		return &dto.CreateNotificationRequest{
			UserID:         userID,
			Message:        message,
			Type:           model.NotificationReminder,
			Priority:       model.PriorityHigh,
			ExpiresInHours: 24,
		}
	case events.AppointmentCancelled:
		if message == "" {
			message = "Your counseling appointment has been cancelled."
		}
		return &dto.CreateNotificationRequest{
			UserID:   userID,
			Message:  message,
			Type:     model.NotificationAppointment,
			Priority: model.PriorityHigh,
		}
	case events.ReportCompleted:
		if message == "" {
			message = "Your counseling report is ready to view."
		}
		return &dto.CreateNotificationRequest{
			UserID:   userID,
			Message:  message,
			Type:     model.NotificationReport,
			Priority: model.PriorityNormal,
		}
	case events.FollowupApproved:
		if message == "" {
			message = "Your follow-up session request has been approved."
		}
		return &dto.CreateNotificationRequest{
			UserID:   userID,
			Message:  message,
			Type:     model.NotificationAppointment,
			Priority: model.PriorityNormal,
		}
	case events.NotifyUser:
		if message == "" {
			return nil
		}
		notifType, _ := payload["notification_type"].(string)
		priority, _ := payload["priority"].(string)
		return &dto.CreateNotificationRequest{
			UserID:   userID,
			Message:  message,
			Type:     notifType,
			Priority: priority,
		}
	default:
		if message == "" {
			s.logger.Warn("NotificationService", fmt.Sprintf("No content for event code '%s', dropping", code), nil)
			return nil
		}
		return &dto.CreateNotificationRequest{
			UserID:  userID,
			Message: message,
		}
	}
}

// processLifecycleMessage notifies both parties when a session reaches
// a terminal state. The student also gets a feedback prompt after a
// completed session.
func (s *notificationService) processLifecycleMessage(ctx context.Context, payload []byte) {
	var envelope lifecycleEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Error("NotificationService", "Malformed lifecycle event, dropping", map[string]interface{}{"error": err.Error()})
		return
	}

	studentID := parsedID(envelope.Data, "student_id")
	counselorID := parsedID(envelope.Data, "counselor_id")

	switch envelope.Type {
	case events.SessionCompletedEvent:
		if studentID != uuid.Nil {
			s.createQuiet(ctx, &dto.CreateNotificationRequest{
				UserID:     studentID,
				Message:    "Your counseling session has ended. Please share your feedback.",
				Type:       model.NotificationFeedback,
				Priority:   model.PriorityNormal,
				ActionText: "Give feedback",
			})
		}
		if counselorID != uuid.Nil {
			s.createQuiet(ctx, &dto.CreateNotificationRequest{
				UserID:   counselorID,
				Message:  "Session completed. Remember to finalize your session notes.",
				Type:     model.NotificationSystem,
				Priority: model.PriorityNormal,
			})
		}
	case events.SessionCancelledEvent:
		for _, userID := range []uuid.UUID{studentID, counselorID} {
			if userID == uuid.Nil {
				continue
			}
			s.createQuiet(ctx, &dto.CreateNotificationRequest{
				UserID:   userID,
				Message:  "Your scheduled counseling session has been cancelled.",
				Type:     model.NotificationAppointment,
				Priority: model.PriorityHigh,
			})
		}
	case events.SessionNoShowEvent:
		if counselorID != uuid.Nil {
			s.createQuiet(ctx, &dto.CreateNotificationRequest{
				UserID:   counselorID,
				Message:  "A scheduled session was marked as a no-show.",
				Type:     model.NotificationSystem,
				Priority: model.PriorityNormal,
			})
		}
	}
}

func (s *notificationService) createQuiet(ctx context.Context, req *dto.CreateNotificationRequest) {
	if _, err := s.Create(ctx, req); err != nil {
		s.logger.Error("NotificationService", "Failed to create lifecycle notification", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
	}
}

// sweepExpired removes expired notifications on a fixed interval until
// the context is cancelled.
func (s *notificationService) sweepExpired(ctx context.Context) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				s.logger.Error("NotificationService", "Expiry sweep failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if deleted > 0 {
				s.logger.Info("NotificationService", "Expired notifications removed", map[string]interface{}{"count": deleted})
			}
		}
	}
}

func parsedID(data map[string]interface{}, key string) uuid.UUID {
	raw, _ := data[key].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
