package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/verve-studios/scheduler-api/api/swagger"
	"github.com/verve-studios/scheduler-api/internal/handler"
	"github.com/verve-studios/scheduler-api/internal/middleware"
	"github.com/verve-studios/scheduler-api/internal/repository"
	"github.com/verve-studios/scheduler-api/internal/service"
	"github.com/verve-studios/scheduler-api/internal/solver"
	"github.com/verve-studios/scheduler-api/pkg/bus"
	"github.com/verve-studios/scheduler-api/pkg/config"
	"github.com/verve-studios/scheduler-api/pkg/database"
	"github.com/verve-studios/scheduler-api/pkg/logger"
	corsmiddleware "github.com/verve-studios/scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/verve-studios/scheduler-api/pkg/middleware/requestid"
	"github.com/verve-studios/scheduler-api/pkg/storage"
)

// @title Verve Scheduler API
// @version 0.1.0
// @description Weekly instructor priority-block scheduling service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := bus.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	resultStore, err := storage.NewResultStore(cfg.Results.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init result storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Results.SignedURLSecret, cfg.Results.SignedURLTTL)

	jobRepo := repository.NewSolveJobRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	metricsSvc := service.NewMetricsService()
	assembler := service.NewAssemblerService(snapshotRepo, cfg.Solver.SlotMinutes, logr)
	publisher := bus.NewPublisher(redisClient, cfg.Solver.Stream)
	solveSvc := service.NewSolveService(jobRepo, assembler, publisher, logr)
	resultsSvc := service.NewResultsService(resultStore, signer, jobRepo, cfg.Results.PublicBaseURL+cfg.APIPrefix, logr)

	timetable := solver.NewTimetable(cfg.Solver.MaxSolveTime, logr)
	worker := service.NewWorkerService(jobRepo, timetable, resultsSvc, logr)
	worker.SetMetrics(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subscriber := bus.NewSubscriber(redisClient, bus.SubscriberConfig{
		Stream:   cfg.Solver.Stream,
		Group:    cfg.Solver.Group,
		Consumer: cfg.Solver.Consumer,
		Workers:  cfg.Solver.Workers,
		Logger:   logr,
	})
	if err := subscriber.Start(ctx, func(ctx context.Context, msg bus.Message) {
		worker.HandleMessage(ctx, msg.Payload)
		metricsSvc.ObserveBusMessage("processed")
	}); err != nil {
		logr.Sugar().Fatalw("failed to start bus subscriber", "error", err)
	}

	resultsSvc.StartCleanup(ctx, time.Hour, cfg.Results.SignedURLTTL)

	solverHandler := handler.NewSolverHandler(solveSvc, resultsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/solver/run", solverHandler.Run)
	api.GET("/solver/status/:jobId", solverHandler.Status)
	api.GET("/solver/results/:jobId", solverHandler.Results)
	api.GET("/solver/results/download/:token", solverHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	subscriber.Stop()
}
