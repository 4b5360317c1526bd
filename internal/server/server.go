package server

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/auth"
	"github.com/mkaykisiz/Geku/internal/config"
	"github.com/mkaykisiz/Geku/internal/db"
	"github.com/mkaykisiz/Geku/internal/media"
	"github.com/mkaykisiz/Geku/internal/notify"
	"github.com/mkaykisiz/Geku/internal/post"
	"github.com/mkaykisiz/Geku/internal/storage"
	"github.com/mkaykisiz/Geku/internal/stream"
	"github.com/mkaykisiz/Geku/internal/user"
)

// Deps are the backends the server talks to. A nil Objects store rejects
// uploads and deletes; a nil Mailer logs mails.
type Deps struct {
	DB      db.Querier
	Redis   *redis.Client
	Objects storage.ObjectStore
	Mailer  notify.Mailer
}

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Deps   Deps
	Stream *stream.Hub
}

func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Objects == nil {
		deps.Objects = unconfiguredStore{}
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.LogMailer{}
	}

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Deps:   deps,
		Stream: stream.NewHub(deps.Redis),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	files := storage.NewService(s.Deps.DB, s.Deps.Objects)
	attachments := media.NewService(s.Deps.DB, files)

	users := s.App.Group("/users")
	user.RegisterRoutes(users, user.NewService(s.Deps.DB, s.Stream), jwtMiddleware)
	media.RegisterUserRoutes(users, attachments, files, jwtMiddleware)

	posts := s.App.Group("/posts")
	post.RegisterRoutes(posts, post.NewService(s.Deps.DB, s.Stream), jwtMiddleware)
	media.RegisterPostRoutes(posts, attachments, files, jwtMiddleware)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Deps.DB, s.Deps.Mailer, s.Cfg.AppFullPath), jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), files, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// errorHandler renders every error as {"msg": ...}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := apperr.Status(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"msg": err.Error()})
}

type unconfiguredStore struct{}

var errNoObjectStore = errors.New("object storage is not configured")

func (unconfiguredStore) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", errNoObjectStore
}

func (unconfiguredStore) Delete(context.Context, string) error {
	return errNoObjectStore
}
