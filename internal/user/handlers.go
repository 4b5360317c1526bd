package user

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/shared/actor"
)

type edgeFunc func(ctx context.Context, actorID, targetID string) (User, error)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		users, err := svc.List(c.Context(), c.Queries())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(users)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		profile, err := svc.View(c.Context(), c.Params("id"), actor.ID(c))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(profile)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		var req UpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		u, err := svc.Update(c.Context(), c.Params("id"), actorID, req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(u)
	})

	edge := func(op edgeFunc) fiber.Handler {
		return func(c *fiber.Ctx) error {
			actorID, err := actor.Require(c)
			if err != nil {
				return err
			}
			u, err := op(c.Context(), actorID, c.Params("id"))
			if err != nil {
				return apperr.Fiber(err)
			}
			return c.JSON(u)
		}
	}

	r.Post("/:id/follow", authMiddleware, edge(svc.Follow))
	r.Delete("/:id/follow", authMiddleware, edge(svc.Unfollow))
	r.Post("/:id/block", authMiddleware, edge(svc.Block))
	r.Delete("/:id/block", authMiddleware, edge(svc.Unblock))
}
