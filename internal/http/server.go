package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/http/middleware"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/service/catalog"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, pgDB, clickhouseDB *sqlx.DB, rds *redis.Client, log *zap.Logger) *Server {
	// repos (Postgres)
	orgsRepo := repository.NewOrgsRepository(pgDB)
	jobsRepo := repository.NewJobsRepository(pgDB)
	outboxRepo := repository.NewOutboxRepository(pgDB)
	cursorsRepo := repository.NewCursorsRepository(pgDB)
	dlqRepo := repository.NewDLQRepository(pgDB)

	// repos (ClickHouse)
	chEventsRepo := repository.NewCHEventsRepository(clickhouseDB)

	// services
	catalogSvc := catalog.New(pgDB, jobsRepo, outboxRepo, cfg.Outbox)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(orgsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:org:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)

	v1.POST("/jobs", createJobHandler(catalogSvc))
	v1.GET("/jobs", listJobsHandler(catalogSvc))
	v1.GET("/jobs/:id", getJobHandler(catalogSvc))
	v1.PATCH("/jobs/:id", updateJobHandler(catalogSvc))
	v1.DELETE("/jobs/:id", deleteJobHandler(catalogSvc))
	v1.POST("/jobs/:id/status", transitionJobHandler(catalogSvc))
	v1.POST("/jobs/:id/finalize", finalizeJobHandler(catalogSvc))

	v1.GET("/outbox/cursors", listCursorsHandler(cursorsRepo))
	v1.PUT("/outbox/cursors/:consumer", advanceCursorHandler(cursorsRepo))
	v1.GET("/outbox/dlq", listDLQHandler(dlqRepo))
	v1.POST("/outbox/maintenance/prune", pruneHandler(outboxRepo, cfg.Maintenance))
	v1.POST("/outbox/maintenance/migrate-dlq", migrateDLQHandler(outboxRepo, cfg.Maintenance))

	v1.GET("/reports/events", listEventHistoryHandler(chEventsRepo))

	return &Server{e: e, log: log}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
