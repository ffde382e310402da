package tracking

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes serves the results of every variant. A nil svc leaves the
// user updates unavailable.
func RegisterRoutes(r fiber.Router, svc *Service, variants Variants, authMiddleware fiber.Handler) {
	r.Get("/results", func(c *fiber.Ctx) error {
		q := ResultsQuery{Variant: VariantSQL, Mode: "none", OrderBy: "start", Limit: 100}
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		agg, err := variants.Lookup(q.Variant)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		f, p, err := q.Parse()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := agg.Aggregate(c.Context(), f, p)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(ResultsResponse{Variant: q.Variant, Mode: res.Mode, Count: res.Len(), Records: res.Records()})
	})

	if svc == nil {
		r.Patch("/users/:id/*", authMiddleware, func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, "postgres is not configured")
		})
		return
	}

	r.Patch("/users/:id/username", authMiddleware, func(c *fiber.Ctx) error {
		var req UsernameUpdate
		if err := c.BodyParser(&req); err != nil || req.Username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username required")
		}
		took, err := svc.UpdateUsername(c.Context(), c.Params("id"), req.Username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(Update{UserID: c.Params("id"), Duration: took})
	})

	r.Patch("/users/:id/gender", authMiddleware, func(c *fiber.Ctx) error {
		var req GenderUpdate
		if err := c.BodyParser(&req); err != nil || req.Gender == "" {
			return fiber.NewError(fiber.StatusBadRequest, "gender required")
		}
		took, err := svc.UpdateGender(c.Context(), c.Params("id"), req.Gender)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(Update{UserID: c.Params("id"), Duration: took})
	})
}
