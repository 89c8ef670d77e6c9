package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"ridebook/config"
	"ridebook/pkg/api"
	"ridebook/pkg/bot"
	"ridebook/pkg/lifecycle"
	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/pricing"
	"ridebook/pkg/session"
	"ridebook/pkg/tasks"
	"ridebook/service"
	"ridebook/storage/postgres"
	"ridebook/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	// 3. Initialize Storage (Postgres, migrations run here)
	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pgStore.Close()

	// 4. Redis: submission guards and, optionally, the live relay
	rdb, err := redis.NewClient(ctx, cfg, log)
	if err != nil {
		os.Exit(1)
	}
	defer rdb.Close()

	hub := live.NewHub(0)
	var publisher live.Publisher = hub
	if cfg.LiveRelay == "redis" {
		relay := redis.NewRelay(rdb, hub, log)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("live relay stopped", logger.Error(err))
			}
		}()
	}

	// 5. Task queue client
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queue := tasks.NewClient(redisOpt, log)
	defer queue.Close()

	// 6. Telegram bot (push transport)
	tg, err := bot.New(cfg.TelegramBotToken, log)
	if err != nil {
		log.Error("Failed to initialize telegram bot", logger.Error(err))
		os.Exit(1)
	}
	var pusher service.Pusher
	if cfg.TelegramBotToken != "" {
		pusher = tg
	}

	// 7. Services
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warning("unknown timezone, using UTC", logger.String("timezone", cfg.Timezone), logger.Error(err))
		loc = time.UTC
	}
	calc := pricing.New(cfg.Pricing, loc)
	policy := lifecycle.DefaultPolicy()
	policy.CancellationFee = calc.CancellationFee()

	svc := service.New(pgStore, log, service.Options{
		Pricing:   calc,
		Policy:    policy,
		Locker:    redis.NewLocker(rdb),
		Publisher: publisher,
		Queue:     queue,
		Pusher:    pusher,
	})
	tg.Attach(svc)

	// 8. Task workers
	worker := tasks.NewServer(redisOpt, cfg.NotifyConcurrency, svc.Notification(), log)
	if err := worker.Start(); err != nil {
		os.Exit(1)
	}

	go tg.Start()

	// 9. HTTP API
	server := api.New(svc, session.NewManager(cfg.JWTSecret, cfg.JWTIssuer), hub, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(ctx, fmt.Sprintf(":%d", cfg.AppPort), cfg.ShutdownTimeout)
	}()

	log.Info("🚀 ridebook is running", logger.Int("port", cfg.AppPort), logger.String("live_relay", cfg.LiveRelay))

	// 10. Graceful shutdown
	select {
	case <-ctx.Done():
		if err := <-errCh; err != nil {
			log.Error("HTTP server shutdown", logger.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", logger.Error(err))
		}
		stop()
	}

	log.Info("Shutting down...")
	tg.Stop()
	worker.Shutdown()
	log.Info("Stopped")
}
