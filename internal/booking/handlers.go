package booking

import (
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		b, err := svc.Create(c.Context(), callerID(c), req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		bookings, err := svc.ByUser(c.Context(), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(bookings)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		b, err := svc.Get(c.Context(), c.Params("id"), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(b)
	})

	r.Patch("/:id/status", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Status Status `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return fiber.NewError(fiber.StatusBadRequest, "status required")
		}
		b, err := svc.UpdateStatus(c.Context(), c.Params("id"), callerID(c), body.Status)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(b)
	})

	r.Post("/:id/confirm-handover", authMiddleware, func(c *fiber.Ctx) error {
		b, err := svc.ConfirmHandover(c.Context(), c.Params("id"), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(b)
	})

	r.Post("/:id/confirm-return", authMiddleware, func(c *fiber.Ctx) error {
		b, err := svc.ConfirmReturn(c.Context(), c.Params("id"), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(b)
	})
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
