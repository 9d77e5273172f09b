package repository

import (
	"context"
	"time"

	"calmconnect-be/internal/model"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *model.Notification) error
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)

	// UnreadCount counts rows with read=false and dismissed=false.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)

	// MarkRead and Dismiss are scoped by owner and are no-ops when the
	// flag is already set. They report whether the row exists.
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Dismiss(ctx context.Context, notificationID, userID uuid.UUID) (bool, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
