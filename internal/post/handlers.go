package post

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/shared/actor"
)

type contentRequest struct {
	Content string `json:"content"`
}

func (r contentRequest) validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return apperr.Validation("content is required")
	}
	return nil
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		var req contentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := req.validate(); err != nil {
			return apperr.Fiber(err)
		}
		p, err := svc.Create(c.Context(), actorID, req.Content)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		posts, err := svc.List(c.Context(), c.Queries())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(posts)
	})

	r.Get("/feed", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		posts, err := svc.Feed(c.Context(), actorID, c.Queries())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(posts)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		var req contentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := req.validate(); err != nil {
			return apperr.Fiber(err)
		}
		p, err := svc.Update(c.Context(), c.Params("id"), actorID, req.Content)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("id"), actorID); err != nil {
			return apperr.Fiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	like := func(op func(ctx context.Context, postID, userID string) (Post, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			actorID, err := actor.Require(c)
			if err != nil {
				return err
			}
			p, err := op(c.Context(), c.Params("id"), actorID)
			if err != nil {
				return apperr.Fiber(err)
			}
			return c.JSON(p)
		}
	}

	r.Post("/:id/like", authMiddleware, like(svc.Like))
	r.Delete("/:id/like", authMiddleware, like(svc.Unlike))
}
