package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-pathgreen/internal/config"
	"backend-pathgreen/internal/db"
	"backend-pathgreen/internal/logging"
	"backend-pathgreen/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
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
	connectMongo    func(config.Config) (*mongo.Database, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Backends, <-chan os.Signal, ListenFunc) error
}

// Backends are the optional external stores; nil means not configured.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Archive  *mongo.Database
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectMongo:    db.ConnectMongo,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	var backends Backends
	if cfg.PostgresURL != "" {
		pg, err := deps.connectPostgres(cfg)
		if err != nil {
			log.Error().Err(err).Msg("postgres connection failed")
		}
		backends.Postgres = pg
	}

	backends.Redis = deps.connectRedis(cfg)

	archive, err := deps.connectMongo(cfg)
	switch {
	case errors.Is(err, db.ErrMongoNotConfigured):
		log.Info().Msg("mongo archive disabled")
	case err != nil:
		log.Error().Err(err).Msg("mongo connection failed")
	default:
		backends.Archive = archive
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, backends, signals, nil); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the producer, the sink writers and the HTTP server, then waits
// for a termination signal. Viewers are disconnected before the HTTP server
// stops so their handlers return promptly; buffered sink items are flushed
// last.
func Run(ctx context.Context, cfg config.Config, b Backends, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, b.Postgres, b.Redis, b.Archive)

	if listen == nil {
		listen = defaultListen
	}

	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()
	g, gctx := errgroup.WithContext(workCtx)
	g.Go(func() error { return srv.Pipeline.Run(gctx) })
	g.Go(func() error { return srv.Sinks.Run(gctx) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	var runErr error
	select {
	case sig := <-signals:
		log.Info().Stringer("signal", sig).Msg("shutting down")
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Stream.Close()
	shutdownErr := shutdownFn(srv.App, shutdownCtx)

	stopWork()
	_ = g.Wait()

	if b.Postgres != nil {
		b.Postgres.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Archive != nil {
		_ = b.Archive.Client().Disconnect(shutdownCtx)
	}

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}
