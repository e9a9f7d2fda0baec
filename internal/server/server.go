package server

import (
	"backend-pathgreen/internal/analytics"
	"backend-pathgreen/internal/auth"
	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/config"
	"backend-pathgreen/internal/db"
	"backend-pathgreen/internal/emission"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"
	"backend-pathgreen/internal/sink"
	"backend-pathgreen/internal/stream"
	"backend-pathgreen/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

const Version = "3.0.0"

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Archive  *mongo.Database
	Store    *fleet.Store
	Stream   *stream.Hub
	Queue    *telemetry.IngestQueue
	Chat     *chat.Service
	Sinks    *sink.Dispatcher
	Pipeline *telemetry.Pipeline

	retriever *chat.Retriever
}

// NewServer wires the fleet pipeline and its HTTP surface. Any of the
// backing stores may be nil; the matching sink and endpoints go offline.
func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, archive *mongo.Database) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, X-API-Key",
	}))

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      pg,
		Redis:   redisClient,
		Archive: archive,
		Store:   fleet.NewStore(cfg.AlertCapacity),
		Stream:  stream.NewHub(cfg.ClientQueueSize),
		Queue:   telemetry.NewIngestQueue(cfg.IngestQueue),
	}

	s.Sinks = sink.NewDispatcher(sinkConfig(cfg), s.writers()...)

	retriever, err := chat.NewRetriever()
	if err != nil {
		log.Warn().Err(err).Msg("regulation knowledge base unavailable")
	}
	s.retriever = retriever
	s.Chat = chat.NewService(retriever, nil, s.Sinks)

	sources := []telemetry.Source{s.Queue}
	if cfg.ReplayEnabled {
		sources = append(sources, telemetry.NewRouteReplay(telemetry.DefaultReplayConfig(cfg.ReplaySeed)))
	}
	s.Pipeline = telemetry.NewPipeline(s.Store, emission.NewTransformer(cfg.Emission()), s.Stream, s.Sinks, cfg.TickInterval, sources...)

	registerRoutes(s)
	return s
}

func (s *Server) querier() db.Querier {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Server) writers() []sink.Writer {
	var writers []sink.Writer
	if s.DB != nil {
		writers = append(writers, sink.NewPostgres(s.DB))
	}
	if s.Redis != nil {
		writers = append(writers, sink.NewRedis(s.Redis, 0, s.Cfg.AlertCapacity))
	}
	if s.Archive != nil {
		writers = append(writers, sink.NewMongo(s.Archive))
	}
	return writers
}

func sinkConfig(cfg config.Config) sink.Config {
	sc := sink.DefaultConfig()
	if cfg.SinkQueueSize > 0 {
		sc.QueueSize = cfg.SinkQueueSize
	}
	if cfg.SinkBatchSize > 0 {
		sc.BatchSize = cfg.SinkBatchSize
	}
	if cfg.SinkFlushInterval > 0 {
		sc.FlushInterval = cfg.SinkFlushInterval
	}
	return sc
}

func sessionConfig(cfg config.Config) stream.SessionConfig {
	sc := stream.DefaultSessionConfig()
	if cfg.HeartbeatInterval > 0 {
		sc.HeartbeatInterval = cfg.HeartbeatInterval
	}
	if cfg.HeartbeatMultiple > 0 {
		sc.TimeoutMultiple = cfg.HeartbeatMultiple
	}
	if cfg.ChatTimeout > 0 {
		sc.ChatTimeout = cfg.ChatTimeout
	}
	return sc
}

func status(up bool, on, off string) string {
	if up {
		return on
	}
	return off
}

func registerRoutes(s *Server) {
	engine := status(s.Cfg.ReplayEnabled, "replay", "ingest")

	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": Version,
			"engine":  engine,
			"services": fiber.Map{
				"database": status(s.DB != nil, "connected", "offline"),
				"redis":    status(s.Redis != nil, "connected", "offline"),
				"archive":  status(s.Archive != nil, "connected", "offline"),
				"ai":       "offline",
				"rag":      status(s.retriever != nil && s.retriever.Len() > 0, "ready", "offline"),
			},
			"sessions": s.Stream.Count(),
		})
	})

	s.App.Get("/fleet", func(c *fiber.Ctx) error {
		snap := s.Store.Snapshot()
		return c.JSON(fiber.Map{
			"data":    snap.Vehicles,
			"alerts":  snap.Alerts,
			"version": snap.Version,
			"source":  engine,
		})
	})

	s.App.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	apiKey := auth.APIKeyMiddleware(auth.NewAuthenticator(s.Cfg.APIKey, s.Redis, 0))

	telemetry.RegisterRoutes(s.App.Group("/telemetry"), s.Queue, apiKey)
	chat.RegisterRoutes(s.App.Group("/chat"), s.Chat, s.Store)
	analytics.RegisterRoutes(s.App.Group("/analytics"), analytics.NewService(s.querier()), apiKey)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Store, s.Chat, sessionConfig(s.Cfg))
}
