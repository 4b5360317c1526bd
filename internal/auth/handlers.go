package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/shared/actor"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		u, err := svc.Register(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		u, tokens, err := svc.Login(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(LoginResponse{User: u, TokenResponse: tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return apperr.Fiber(err)
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := parseBearer(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})

	r.Get("/verify/:id/:key", func(c *fiber.Ctx) error {
		u, err := svc.VerifyEmail(c.Context(), c.Params("id"), c.Params("key"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(u)
	})

	r.Post("/forgot_password", func(c *fiber.Ctx) error {
		var req ForgotPasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := svc.ForgotPassword(c.Context(), req.Email); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"msg": "Forgot password token sent via email."})
	})

	r.Get("/forgot_password/:id/:token", func(c *fiber.Ctx) error {
		if err := svc.ResetPassword(c.Context(), c.Params("id"), c.Params("token")); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"msg": "Your password sent via email."})
	})

	r.Put("/change_password", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		var req ChangePasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		u, err := svc.ChangePassword(c.Context(), actorID, req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(u)
	})
}
