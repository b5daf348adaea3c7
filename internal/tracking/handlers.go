package tracking

import (
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/sessions/:sessionId/walk-segments", authMiddleware, func(c *fiber.Ctx) error {
		segment, err := svc.StartWalkSegment(c.Context(), c.Params("sessionId"), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(segment)
	})

	r.Patch("/walk-segments/:segmentId/complete", authMiddleware, func(c *fiber.Ctx) error {
		segment, err := svc.CompleteWalkSegment(c.Context(), c.Params("segmentId"), callerID(c))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(segment)
	})

	r.Get("/sessions/booking/:bookingId", authMiddleware, func(c *fiber.Ctx) error {
		session, segments, err := svc.SessionByBooking(c.Context(), c.Params("bookingId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(fiber.Map{"session": session, "segments": segments})
	})

	r.Get("/sessions/:sessionId/points", authMiddleware, func(c *fiber.Ctx) error {
		points, err := svc.Points(c.Context(), c.Params("sessionId"), c.Query("segment_id"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(points)
	})
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
