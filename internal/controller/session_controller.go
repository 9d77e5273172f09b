package controller

import (
	"calmconnect-be/internal/dto"
	"calmconnect-be/internal/pkg/apperr"
	"calmconnect-be/internal/pkg/serverutils"
	"calmconnect-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	UpdateNotes(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("appointments/:appointment_id", c.Create)
	h.Get(":room_id/join", c.Join)
	h.Post(":room_id/end", c.End)
	h.Get(":room_id/messages", c.Messages)
	h.Put(":room_id/notes", c.UpdateNotes)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	appointmentID, err := uuid.Parse(ctx.Params("appointment_id"))
	if err != nil {
		return apperr.Validation("invalid appointment id")
	}

	res, err := c.sessionService.CreateForAppointment(ctx.Context(), appointmentID, userID)
	if err != nil {
		return err
	}

	message := "Session already exists"
	if res.Created {
		message = "Session created"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

// Join is the REST pre-flight: it resolves the caller's role and the
// room to connect to, without touching the lifecycle.
func (c *sessionController) Join(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	session, role, err := c.sessionService.Authorize(ctx.Context(), ctx.Params("room_id"), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session access granted", dto.JoinSessionResponse{
		RoomID:      session.RoomID,
		SessionType: session.SessionType,
		Status:      session.Status,
		Role:        role,
	}))
}

func (c *sessionController) End(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	res, err := c.sessionService.End(ctx.Context(), ctx.Params("room_id"), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session ended", res))
}

func (c *sessionController) Messages(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	res, err := c.sessionService.Messages(ctx.Context(), ctx.Params("room_id"), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session messages", res))
}

func (c *sessionController) UpdateNotes(ctx *fiber.Ctx) error {
	userID := ctx.Locals("user_id").(uuid.UUID)

	var req dto.UpdateSessionNotesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.UpdateNotes(ctx.Context(), ctx.Params("room_id"), userID, req.Notes); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Notes updated", nil))
}
