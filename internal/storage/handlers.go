package storage

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkaykisiz/Geku/internal/apperr"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/orphans", authMiddleware, func(c *fiber.Ctx) error {
		objects, err := svc.Orphans(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		if objects == nil {
			objects = []Object{}
		}
		return c.JSON(objects)
	})
}
