package controller

import (
	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/serverutils"
	"calmconnect-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type INotificationController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	UnreadCount(ctx *fiber.Ctx) error
	MarkRead(ctx *fiber.Ctx) error
	MarkAllRead(ctx *fiber.Ctx) error
	Dismiss(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
}

type notificationController struct {
	notificationService service.INotificationService
}

func NewNotificationController(notificationService service.INotificationService) INotificationController {
	return &notificationController{
		notificationService: notificationService,
	}
}

func (c *notificationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/notification/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Get("unread-count", c.UnreadCount)
	h.Post("", c.Create)
	h.Post("read-all", c.MarkAllRead)
	h.Patch(":id/read", c.MarkRead)
	h.Patch(":id/dismiss", c.Dismiss)
}

func (c *notificationController) List(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	limit := ctx.QueryInt("limit", 50)
	res, err := c.notificationService.ListRecent(ctx.Context(), userID, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Notifications", res))
}

func (c *notificationController) UnreadCount(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	count, err := c.notificationService.UnreadCount(ctx.Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Unread count", dto.UnreadCountResponse{Count: count}))
}

func (c *notificationController) MarkRead(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	notificationID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperr.Validation("invalid notification id")
	}

	if err := c.notificationService.MarkRead(ctx.Context(), notificationID, userID); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Notification marked read", nil))
}

func (c *notificationController) MarkAllRead(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	if err := c.notificationService.MarkAllRead(ctx.Context(), userID); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("All notifications marked read", nil))
}

func (c *notificationController) Dismiss(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	notificationID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperr.Validation("invalid notification id")
	}

	if err := c.notificationService.Dismiss(ctx.Context(), notificationID, userID); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Notification dismissed", nil))
}

// Create is the collaborator-facing notification API: other platform
// services call it to deliver a durable notification to a user.
func (c *notificationController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateNotificationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.notificationService.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Notification created", res))
}
