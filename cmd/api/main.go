package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mkaykisiz/Geku/internal/config"
	"github.com/mkaykisiz/Geku/internal/db"
	"github.com/mkaykisiz/Geku/internal/notify"
	"github.com/mkaykisiz/Geku/internal/server"
	"github.com/mkaykisiz/Geku/internal/storage"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.Querier) error
	openBucket      func(config.Config) (storage.ObjectStore, error)
	newMailer       func(config.Config) notify.Mailer
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, server.Deps, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		openBucket:      openBucket,
		newMailer:       newMailer,
		notify:          signal.Notify,
		run:             Run,
	}
}

func openBucket(cfg config.Config) (storage.ObjectStore, error) {
	if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
		return nil, nil
	}
	return storage.NewBucket(cfg)
}

func newMailer(cfg config.Config) notify.Mailer {
	if cfg.AMQPURL == "" {
		return notify.LogMailer{}
	}
	return notify.NewAMQPMailer(cfg.AMQPURL, cfg.MailQueue)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	var backends server.Deps

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
	} else {
		backends.DB = pg
		if cfg.MigrateOnStart {
			if err := deps.migrate(context.Background(), pg); err != nil {
				log.Printf("migration failed: %v", err)
			}
		}
	}

	backends.Redis = deps.connectRedis(cfg)

	objects, err := deps.openBucket(cfg)
	if err != nil {
		log.Printf("object storage unavailable: %v", err)
	} else if objects != nil {
		backends.Objects = objects
	}
	backends.Mailer = deps.newMailer(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, backends, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. On the way
// out it closes whatever backends in deps can be closed.
func Run(ctx context.Context, cfg config.Config, deps server.Deps, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, deps)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if pool, ok := deps.DB.(*pgxpool.Pool); ok && pool != nil {
		pool.Close()
	}
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if c, ok := deps.Mailer.(io.Closer); ok {
		_ = c.Close()
	}
	return nil
}
