package geo

import (
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/geofences", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateGeofenceRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		fence, err := svc.CreateGeofence(c.Context(), callerID(c), req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fence)
	})

	r.Get("/geofences/session/:sessionId", authMiddleware, func(c *fiber.Ctx) error {
		fence, err := svc.GeofenceBySession(c.Context(), c.Params("sessionId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(fence)
	})

	r.Delete("/geofences/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteGeofence(c.Context(), c.Params("id"), callerID(c)); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/stats/walk/:segmentId", authMiddleware, func(c *fiber.Ctx) error {
		stats, err := svc.WalkStats(c.Context(), c.Params("segmentId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(stats)
	})

	r.Get("/stats/session/:sessionId", authMiddleware, func(c *fiber.Ctx) error {
		stats, err := svc.SessionStats(c.Context(), c.Params("sessionId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(stats)
	})

	r.Get("/route/:segmentId", authMiddleware, func(c *fiber.Ctx) error {
		route, err := svc.RouteGeoJSON(c.Context(), c.Params("segmentId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(route)
	})

	r.Get("/stats/deviation/:segmentId", authMiddleware, func(c *fiber.Ctx) error {
		geofenceID := c.Query("geofence_id")
		if geofenceID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "geofence_id query parameter required")
		}
		deviation, err := svc.MaxDeviation(c.Context(), c.Params("segmentId"), geofenceID)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(fiber.Map{"max_deviation_meters": deviation})
	})
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
