package server

import (
	"time"

	"github.com/teresabacho/pet-care-platform/internal/auth"
	"github.com/teresabacho/pet-care-platform/internal/booking"
	"github.com/teresabacho/pet-care-platform/internal/config"
	"github.com/teresabacho/pet-care-platform/internal/geo"
	"github.com/teresabacho/pet-care-platform/internal/ingest"
	"github.com/teresabacho/pet-care-platform/internal/notify"
	"github.com/teresabacho/pet-care-platform/internal/stream"
	"github.com/teresabacho/pet-care-platform/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub

	Flusher *ingest.Flusher
	Sweeper *ingest.Sweeper
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, events *notify.Publisher) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	trackingSvc := tracking.NewService(db, s.Stream)
	geoSvc := geo.NewService(db)
	buffer := ingest.NewBuffer(redisClient)
	ingestSvc := ingest.NewService(trackingSvc, geoSvc, buffer, s.Stream)

	s.Flusher = ingest.NewFlusher(db, buffer, time.Duration(cfg.FlushIntervalSeconds)*time.Second)
	s.Sweeper = ingest.NewSweeper(db,
		time.Duration(cfg.BackgroundPointTTLHours)*time.Hour,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute)

	registerRoutes(s, trackingSvc, geoSvc, ingestSvc, events)
	return s
}

func registerRoutes(s *Server, trackingSvc *tracking.Service, geoSvc *geo.Service, ingestSvc *ingest.Service, events *notify.Publisher) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	booking.RegisterRoutes(s.App.Group("/bookings"), booking.NewService(s.DB, trackingSvc, events), jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), trackingSvc, jwtMiddleware)
	geo.RegisterRoutes(s.App.Group("/geo"), geoSvc, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, ingestSvc)
}
