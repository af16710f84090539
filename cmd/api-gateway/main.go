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

	_ "github.com/printforge/fulfillment-api/api/swagger"
	"github.com/printforge/fulfillment-api/internal/handler"
	"github.com/printforge/fulfillment-api/internal/middleware"
	"github.com/printforge/fulfillment-api/internal/repository"
	"github.com/printforge/fulfillment-api/internal/service"
	"github.com/printforge/fulfillment-api/pkg/cache"
	"github.com/printforge/fulfillment-api/pkg/config"
	"github.com/printforge/fulfillment-api/pkg/database"
	"github.com/printforge/fulfillment-api/pkg/logger"
	corsmiddleware "github.com/printforge/fulfillment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/printforge/fulfillment-api/pkg/middleware/requestid"
)

// @title Fulfillment API
// @version 1.0.0
// @description Printing-order fulfillment lifecycle and reconciliation engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	orderRepo := repository.NewOrderRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	notifierSvc := service.NewNotifierService(redisClient, cacheRepo, cfg.Notifier, metricsSvc, logr)
	scheduleSvc := service.NewScheduleService(cfg.Fulfillment)
	approvalSvc := service.NewApprovalService(orderRepo, notifierSvc, nil, logr)
	fulfillmentSvc := service.NewFulfillmentService(orderRepo, studentRepo, scheduleSvc, notifierSvc, metricsSvc, nil, logr)
	progressSvc := service.NewProgressService(orderRepo, classRepo, studentRepo, scheduleSvc, cacheRepo, cfg.Progress.CacheTTL, metricsSvc, logr)
	auditSvc := service.NewAuditService(auditRepo, orderRepo, classRepo, studentRepo, notifierSvc, nil, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifierSvc.Start(rootCtx)
	defer notifierSvc.Stop()

	orderHandler := handler.NewOrderHandler(approvalSvc, fulfillmentSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	eventsHandler := handler.NewEventsHandler(notifierSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "postgres"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		orders := api.Group("/orders")
		orders.POST("", orderHandler.Create)
		orders.GET("", orderHandler.List)
		orders.GET("/:id", orderHandler.Get)
		orders.POST("/:id/transitions", orderHandler.Transition)
		orders.POST("/:id/schedule", orderHandler.Schedule)
		orders.GET("/:id/schedule/estimate", orderHandler.Estimate)
		orders.GET("/:id/progress", progressHandler.Get)
		orders.PATCH("/:id/students/:studentId/printing", orderHandler.RecordPrinting)
		orders.POST("/:id/audit", auditHandler.Open)
		orders.GET("/:id/events", eventsHandler.Stream)

		reports := api.Group("/audit-reports")
		reports.GET("/:id", auditHandler.Get)
		reports.PATCH("/:id/order", auditHandler.EditOrder)
		reports.PATCH("/:id/classes/:classId", auditHandler.EditClass)
		reports.PATCH("/:id/students/:studentId", auditHandler.SaveStudent)
		reports.POST("/:id/seal", auditHandler.Seal)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
		os.Exit(1)
	}
	logr.Sugar().Infow("server stopped")
}
