package storage

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

const maxListed = 100

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/runs", authMiddleware, func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit < 1 || limit > maxListed {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 100")
		}
		runs, err := svc.ListRuns(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
	})

	r.Get("/runs/:runID", authMiddleware, func(c *fiber.Ctx) error {
		run, err := svc.GetRun(c.Context(), c.Params("runID"))
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(run)
	})
}
