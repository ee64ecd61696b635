package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optiinfra/iacengine/internal/adapter"
	"github.com/optiinfra/iacengine/internal/checkpoint"
	"github.com/optiinfra/iacengine/internal/config"
	"github.com/optiinfra/iacengine/internal/drift"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/executor"
	"github.com/optiinfra/iacengine/internal/handlers"
	"github.com/optiinfra/iacengine/internal/logger"
	"github.com/optiinfra/iacengine/internal/metrics"
	"github.com/optiinfra/iacengine/internal/registry"
	"github.com/optiinfra/iacengine/internal/rollback"
	"github.com/optiinfra/iacengine/internal/safety"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting OptiInfra IaC Orchestration Engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	log.Info("Connected to Redis")

	checkpoints := checkpoint.NewStore(redisClient)

	terraformAdapter := adapter.NewTerraformAdapter(cfg.TerraformURL)
	kubernetesAdapter := adapter.NewKubernetesAdapter(cfg.KubernetesURL)
	helmAdapter := adapter.NewHelmAdapter(cfg.HelmURL)
	fsAdapter := adapter.NewFSAdapter(cfg.FSURL)
	generatorAdapter := adapter.NewGeneratorAdapter(cfg.GeneratorURL)
	stateAdapter := adapter.NewStateAdapter(cfg.StateURL)

	appMetrics := metrics.NewMetrics()

	adapterRegistry := registry.NewRegistry(redisClient, log)
	registrations := map[string]registry.Prober{
		"terraform":  terraformAdapter,
		"kubernetes": kubernetesAdapter,
		"helm":       helmAdapter,
		"fs":         fsAdapter,
		"generator":  generatorAdapter,
		"state":      stateAdapter,
	}
	for name, prober := range registrations {
		if err := adapterRegistry.RegisterAdapter(name, prober); err != nil {
			log.Warnw("failed to register adapter for health checks", "adapter", name, "error", err)
		}
	}
	adapterRegistry.Start()
	defer adapterRegistry.Stop()

	safetyEngine := safety.NewEngine(appMetrics)

	exec := executor.New(checkpoints, executor.Adapters{
		Terraform: terraformAdapter,
		Generator: generatorAdapter,
		FS:        fsAdapter,
		State:     stateAdapter,
	}, safetyEngine, log, appMetrics)

	rollbackMgr := rollback.NewManager(cfg.RollbackBackupDir, terraformAdapter, kubernetesAdapter, helmAdapter, log, appMetrics)

	detector := drift.NewDetector(terraformAdapter, kubernetesAdapter, helmAdapter, stateAdapter, appMetrics)
	analyzer := drift.NewAnalyzer(terraformAdapter, appMetrics)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		appMetrics.RecordHTTPRequest(c.Request.Method, path, fmt.Sprintf("%d", status), duration.Seconds())

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		)
	})

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engineHandler := engine.NewHandler(exec, safetyEngine, rollbackMgr, detector, analyzer, checkpoints, log, appMetrics, cfg.MaxTokensPerTask)
	engineHandler.RegisterRoutes(router)

	registryHandler := registry.NewHandler(adapterRegistry)
	registryHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server stopped")
}
