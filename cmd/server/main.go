package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jengzang/floq-field/internal/api"
	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/config"
	"github.com/jengzang/floq-field/internal/database"
	"github.com/jengzang/floq-field/internal/middleware"
	"github.com/jengzang/floq-field/internal/repository"
	"github.com/jengzang/floq-field/internal/service"
	"github.com/jengzang/floq-field/internal/stream"
	"github.com/jengzang/floq-field/internal/timelapse"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	var repo *repository.TimelapseRepository
	if cfg.Timelapse.Archive {
		if err := database.Init(database.Config{Path: cfg.Database.Path}); err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer database.Close()
		repo = repository.NewTimelapseRepository(database.GetDB())
	}

	hub := stream.NewHub()
	go hub.Run()
	defer hub.Stop()

	worker := cluster.NewWorker(cluster.New(cfg.Field.Cluster()), cfg.Field.MailboxSize)
	defer worker.Close()
	field := service.NewFieldService(worker, hub)

	ring, err := timelapse.NewRing(cfg.Timelapse.RingCapacity)
	if err != nil {
		log.Fatal("Failed to create frame ring:", err)
	}
	ctrl := timelapse.NewController(ring, field.Snapshot, cfg.ControllerOptions()...)
	tl := service.NewTimelapseService(ctrl, repo, hub, cfg.Timelapse.CaptureTick, cfg.Timelapse.Retention)
	if err := tl.Restore(); err != nil {
		log.Printf("[Server] Archive restore failed: %v", err)
	}
	go tl.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	defer limiter.Close()

	// 初始化路由
	router := api.SetupRouter(cfg, api.Dependencies{
		Field:     field,
		Timelapse: tl,
		Hub:       hub,
		Limiter:   limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
}
