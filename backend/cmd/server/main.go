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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"channelfeed/backend/internal/api"
	"channelfeed/backend/internal/bootstrap"
	"channelfeed/backend/internal/cascade"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/events"
	"channelfeed/backend/internal/metrics"
	"channelfeed/backend/internal/social"
	"channelfeed/backend/pkg/config"
	"channelfeed/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...", zap.String("store", cfg.StoreDriver))

	ctx := context.Background()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close(context.Background())

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure store schema", zap.Error(err))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		publisher = nc
		log.Info("Publishing domain events", zap.String("url", cfg.NatsURL))
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	order, err := domain.ParseOrder(cfg.FeedDefaultOrder, domain.NewestFirst)
	if err != nil {
		log.Fatal("Invalid feed order", zap.Error(err))
	}
	svc := social.NewService(st, social.Options{
		Events:       publisher,
		Metrics:      m,
		Logger:       log,
		FeedFanout:   cfg.FeedFanout,
		DefaultOrder: order,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.SweepInterval > 0 {
		go cascade.NewSweeper(st, m, log).Run(sweepCtx, cfg.SweepInterval)
	}

	router := newRouter(cfg, svc, reg, log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newRouter(cfg *config.Config, svc *social.Service, reg *prometheus.Registry, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.Logger(log))
	router.Use(gin.Recovery())
	router.Use(api.CORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api.NewHandler(svc, cfg.RequestTimeout, log).Register(router)
	return router
}
