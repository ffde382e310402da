package benchmark

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type StartResponse struct {
	RunID string `json:"run_id"`
}

// RegisterRoutes serves POST / to start a plan and GET /:runID for its status.
// Fields missing from the posted plan keep the defaults.
func RegisterRoutes(r fiber.Router, l *Launcher, defaults Plan, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		plan := defaults.clone()
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&plan); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid plan")
			}
		}
		runID, err := l.Start(plan)
		switch {
		case errors.Is(err, ErrBusy):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(StartResponse{RunID: runID})
	})

	r.Get("/:runID", authMiddleware, func(c *fiber.Ctx) error {
		s, err := l.Status(c.Params("runID"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(s)
	})
}
