package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/timetable-engine/api/swagger"
	"github.com/noah-isme/timetable-engine/internal/handler"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/pkg/cache"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

// @title Timetable Engine API
// @version 0.1.0
// @description Constraint-based school timetabling service
// @BasePath /api/v1
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

	metricsSvc := service.NewMetricsService()

	solverDefaults := service.SolverDefaults{
		Seed:               cfg.Solver.Seed,
		MaxIterations:      cfg.Solver.MaxIterations,
		InitialTemperature: cfg.Solver.InitialTemperature,
		CoolingRate:        cfg.Solver.CoolingRate,
		ProposalTTL:        cfg.Solver.ProposalTTL,
		AsyncWorkers:       cfg.Solver.AsyncWorkers,
		AsyncQueueSize:     cfg.Solver.AsyncQueueSize,
	}

	var solverSvc *service.SolverService
	if cfg.Database.Enabled {
		db, dbErr := database.NewPostgres(cfg.Database)
		if dbErr != nil {
			logr.Sugar().Fatalw("failed to connect to postgres", "error", dbErr)
		}
		defer db.Close() //nolint:errcheck
		solverSvc = service.NewSolverService(
			repository.NewSolveRunRepository(db),
			repository.NewSolveRunSlotRepository(db),
			db, nil, logr, metricsSvc, solverDefaults,
		)
	} else {
		solverSvc = service.NewSolverService(nil, nil, nil, nil, logr, metricsSvc, solverDefaults)
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	exportConfig := service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
		CacheTTL:  cfg.Exports.CacheTTL,
	}
	var exportSvc *service.ExportService
	if cfg.Redis.Enabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", redisErr)
		}
		renderCache := repository.NewCacheRepository(redisClient, logr)
		defer renderCache.Close() //nolint:errcheck
		exportSvc = service.NewExportService(solverSvc, files, renderCache, signer, exportConfig, logr, nil, nil)
	} else {
		exportSvc = service.NewExportService(solverSvc, files, nil, signer, exportConfig, logr, nil, nil)
	}

	timetableHandler := handler.NewTimetableHandler(solverSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	solverSvc.Start(ctx)
	defer solverSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Auth.Enabled {
		api.Use(middleware.Auth(cfg.Auth.Secret))
	}

	api.POST("/timetables/generate", timetableHandler.Generate)
	api.GET("/timetables/:id", timetableHandler.GetProposal)
	api.GET("/timetables/:id/violations", timetableHandler.Violations)
	api.POST("/timetables/:id/save", timetableHandler.Save)
	api.GET("/timetables/:id/export", timetableHandler.Export)
	api.GET("/export/:token", timetableHandler.Download)
	api.GET("/runs", timetableHandler.ListRuns)
	api.GET("/runs/:id", timetableHandler.GetRun)
	api.POST("/runs/:id/publish", timetableHandler.PublishRun)
	api.DELETE("/runs/:id", timetableHandler.DeleteRun)
	api.GET("/metrics/status", metricsHandler.Status)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if removed, err := exportSvc.Cleanup(0); err != nil {
		logr.Sugar().Warnw("export cleanup failed", "error", err)
	} else if len(removed) > 0 {
		logr.Sugar().Infow("cleaned up stale exports", "count", len(removed))
	}
}
