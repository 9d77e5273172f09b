package bootstrap

import (
	"context"
	"log"

	"calmconnect-be/internal/config"
	"calmconnect-be/internal/controller"
	"calmconnect-be/internal/handler"
	"calmconnect-be/internal/pkg/logger"
	"calmconnect-be/internal/repository/implementation"
	"calmconnect-be/internal/service"
	"calmconnect-be/internal/websocket"
	"calmconnect-be/pkg/events"

	pktNats "calmconnect-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController      controller.ISessionController
	NotificationController controller.INotificationController

	// WebSocket gateway
	RealtimeHandler *handler.RealtimeHandler
	WebSocketHub    *websocket.Hub

	// Background workers (started from main)
	NotificationService service.INotificationService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Internal event bus for session lifecycle events.
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS carries platform events from sibling services.
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis mirrors hub broadcasts across instances.
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Hub runs single-instance", err)
		rdb = nil
	}

	wsLogger := logger.NewIsolatedLogger("logs/realtime.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	wsHub.Run()

	// Repositories
	sessionRepo := implementation.NewSessionRepository(db)
	appointmentRepo := implementation.NewAppointmentRepository(db)
	userRepo := implementation.NewUserRepository(db)
	notificationRepo := implementation.NewNotificationRepository(db)

	// Services
	lifecyclePublisher := service.NewPublisherService(pubSub, events.TopicSessionLifecycle)
	sessionService := service.NewSessionService(
		sessionRepo,
		appointmentRepo,
		userRepo,
		wsHub,
		lifecyclePublisher,
		sysLogger,
	)
	notificationService := service.NewNotificationService(
		notificationRepo,
		wsHub,
		natsSub,
		pubSub,
		sessionService,
		sysLogger,
	)

	realtimeHandler := handler.NewRealtimeHandler(sessionService, notificationService, wsHub, wsLogger)

	return &Container{
		SessionController:      controller.NewSessionController(sessionService),
		NotificationController: controller.NewNotificationController(notificationService),
		RealtimeHandler:        realtimeHandler,
		WebSocketHub:           wsHub,
		NotificationService:    notificationService,
	}
}
