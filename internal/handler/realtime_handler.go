package handler

import (
	"bytes"
	"context"
	"encoding/json"

	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/model"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/logger"
	"calmconnect-be/internal/pkg/serverutils"
	"calmconnect-be/internal/service"
	internalWS "calmconnect-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RealtimeHandler is the websocket gateway: it authenticates the
// upgrade, checks session access, joins the hub topic and runs the
// per-connection frame loop.
type RealtimeHandler struct {
	sessions      service.ISessionService
	notifications service.INotificationService
	hub           *internalWS.Hub
	logger        logger.ILogger
}

func NewRealtimeHandler(
	sessions service.ISessionService,
	notifications service.INotificationService,
	hub *internalWS.Hub,
	log logger.ILogger,
) *RealtimeHandler {
	return &RealtimeHandler{
		sessions:      sessions,
		notifications: notifications,
		hub:           hub,
		logger:        log,
	}
}

func (h *RealtimeHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/live-session/:room_id", h.ServeLiveSession)
	router.Get("/ws/chat/:room_id", h.ServeChat)
	router.Get("/ws/notifications", h.ServeNotifications)
}

// ServeLiveSession upgrades a connection into a live session room.
func (h *RealtimeHandler) ServeLiveSession(c *fiber.Ctx) error {
	return h.serveRoom(c, internalWS.RoomTopic)
}

// ServeChat upgrades a connection into a text chat room. Same access
// rules and lifecycle hooks as the live session room, different topic.
func (h *RealtimeHandler) ServeChat(c *fiber.Ctx) error {
	return h.serveRoom(c, internalWS.ChatTopic)
}

// serveRoom does all rejection before the upgrade, so unauthenticated
// or unauthorized callers get an HTTP status instead of a dead socket.
func (h *RealtimeHandler) serveRoom(c *fiber.Ctx, topicFor func(string) string) error {
	identity, err := h.identify(c)
	if err != nil {
		return err
	}

	roomID := c.Params("room_id")
	session, role, err := h.sessions.Authorize(c.Context(), roomID, identity.UserID)
	if err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	topic := topicFor(roomID)
	return websocket.New(func(conn *websocket.Conn) {
		client, ok := h.joinRoom(conn, session, topic, role, identity)
		if !ok {
			return
		}
		client.Serve(context.Background())
	})(c)
}

// joinRoom wires the connection into the hub and runs the lifecycle
// join hook. A failed hook detaches the connection again, so the
// socket closes instead of serving in a half-joined state with no
// participant row behind it.
func (h *RealtimeHandler) joinRoom(conn *websocket.Conn, session *model.LiveSession, topic, role string, identity *serverutils.Identity) (*internalWS.Client, bool) {
	handler := &roomFrameHandler{
		gateway: h,
		session: session,
		topic:   topic,
		role:    role,
	}
	client := internalWS.NewClient(h.hub, conn, identity.UserID, identity.Username, handler)
	h.hub.Join(topic, client)

	h.hub.Broadcast(topic, dto.UserJoinedFrame{
		Type:     dto.FrameUserJoined,
		UserID:   identity.UserID,
		Username: identity.Username,
	})

	if err := h.sessions.RegisterJoin(context.Background(), session, identity.UserID, role); err != nil {
		h.logger.Error("RealtimeHandler", "Join hook failed, closing connection", map[string]interface{}{
			"room_id": session.RoomID,
			"user_id": identity.UserID,
			"error":   err.Error(),
		})
		h.hub.Unregister(client)
		h.hub.Broadcast(topic, dto.UserLeftFrame{
			Type:     dto.FrameUserLeft,
			UserID:   identity.UserID,
			Username: identity.Username,
		})
		return nil, false
	}
	return client, true
}

// ServeNotifications upgrades a connection onto the caller's private
// notification stream and pushes the current unread count.
func (h *RealtimeHandler) ServeNotifications(c *fiber.Ctx) error {
	identity, err := h.identify(c)
	if err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		handler := &notificationFrameHandler{gateway: h}
		client := internalWS.NewClient(h.hub, conn, identity.UserID, identity.Username, handler)
		h.hub.Join(internalWS.NotificationTopic(identity.UserID), client)

		ctx := context.Background()
		h.notifications.PushCount(ctx, identity.UserID)

		client.Serve(ctx)
	})(c)
}

func (h *RealtimeHandler) identify(c *fiber.Ctx) (*serverutils.Identity, error) {
	tokenStr := serverutils.TokenFromRequest(c)
	if tokenStr == "" {
		return nil, apperr.AuthenticationRequired("missing token")
	}
	identity, err := serverutils.ParseToken(tokenStr)
	if err != nil {
		return nil, apperr.AuthenticationRequired("invalid token")
	}
	return identity, nil
}

// roomFrameHandler dispatches the frames of one room connection. A bad
// frame answers the sender with an error frame and never tears the
// connection down.
type roomFrameHandler struct {
	gateway *RealtimeHandler
	session *model.LiveSession
	topic   string
	role    string
}

var jsonNull = []byte("null")

func (r *roomFrameHandler) HandleFrame(ctx context.Context, client *internalWS.Client, raw []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.SendJSON(dto.NewErrorFrame("invalid frame"))
		return
	}

	switch frame.Type {
	case dto.FrameWebRTCSignal:
		if r.role == model.RoleObserver {
			client.SendJSON(dto.NewErrorFrame("observers cannot send signals"))
			return
		}
		if len(frame.Signal) == 0 || bytes.Equal(frame.Signal, jsonNull) {
			client.SendJSON(dto.NewErrorFrame("signal is required"))
			return
		}
		r.gateway.hub.Broadcast(r.topic, dto.WebRTCSignalFrame{
			Type:   dto.FrameWebRTCSignal,
			Signal: frame.Signal,
			Sender: client.UserID,
		})

	case dto.FrameChatMessage:
		err := r.gateway.sessions.PostChatMessage(ctx, r.session, r.topic, client.UserID, client.Username, frame.Message)
		if err != nil {
			if apperr.Is(err, apperr.KindValidation) {
				client.SendJSON(dto.NewErrorFrame(err.Error()))
				return
			}
			r.gateway.logger.Error("RealtimeHandler", "Chat message failed", map[string]interface{}{
				"room_id": r.session.RoomID,
				"error":   err.Error(),
			})
			client.SendJSON(dto.NewErrorFrame("message could not be delivered"))
		}

	default:
		client.SendJSON(dto.NewErrorFrame("unsupported message type"))
	}
}

func (r *roomFrameHandler) HandleDisconnect(client *internalWS.Client) {
	r.gateway.hub.Broadcast(r.topic, dto.UserLeftFrame{
		Type:     dto.FrameUserLeft,
		UserID:   client.UserID,
		Username: client.Username,
	})
	r.gateway.sessions.RegisterLeave(context.Background(), r.session, client.UserID)
}

// notificationFrameHandler serves the read-state commands of one
// notification stream connection.
type notificationFrameHandler struct {
	gateway *RealtimeHandler
}

func (n *notificationFrameHandler) HandleFrame(ctx context.Context, client *internalWS.Client, raw []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.SendJSON(dto.NewErrorFrame("invalid frame"))
		return
	}

	switch frame.Type {
	case dto.FrameMarkRead:
		if err := n.gateway.notifications.MarkRead(ctx, frame.NotificationID, client.UserID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				client.SendJSON(dto.NewErrorFrame("notification not found"))
				return
			}
			client.SendJSON(dto.NewErrorFrame("could not mark notification read"))
		}

	case dto.FrameMarkAllRead:
		if err := n.gateway.notifications.MarkAllRead(ctx, client.UserID); err != nil {
			client.SendJSON(dto.NewErrorFrame("could not mark notifications read"))
		}

	case dto.FrameGetNotifications:
		n.gateway.notifications.PushInbox(ctx, client.UserID)

	default:
		client.SendJSON(dto.NewErrorFrame("unsupported message type"))
	}
}

func (n *notificationFrameHandler) HandleDisconnect(client *internalWS.Client) {}
