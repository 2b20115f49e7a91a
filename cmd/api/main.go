package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "shift-coverage/internal/api"
	"shift-coverage/internal/auth"
	"shift-coverage/internal/config"
	"shift-coverage/internal/coverage"
	"shift-coverage/internal/notify"
	"shift-coverage/internal/ratelimit"
	"shift-coverage/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}
	defer st.Close()

	notifier, err := notify.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}

	svc, err := coverage.Open(ctx, coverage.Options{
		Store:           st,
		Key:             cfg.DocumentKey,
		Notifier:        notifier,
		Location:        cfg.Location,
		TickInterval:    cfg.TickInterval,
		PersistInterval: cfg.PersistInterval,
		Settings:        cfg.Settings,
	})
	if err != nil {
		log.Fatalf("coverage: %v", err)
	}

	var issuer *auth.Issuer
	if cfg.JWTSecret != "" {
		if issuer, err = auth.NewIssuer(cfg.JWTSecret, 24*time.Hour); err != nil {
			log.Fatalf("auth: %v", err)
		}
	} else {
		log.Printf("api: JWT_SECRET unset, trusting X-Actor header")
	}

	var limiter *ratelimit.TokenBucket
	if cfg.RateLimitCapacity > 0 {
		client := store.NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("api: redis unavailable, response rate limiting disabled: %v", err)
			client.Close()
		} else {
			limiter = ratelimit.NewTokenBucket(client, "rl:responses:", cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)
		}
	}

	server := api.New(svc, issuer, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s store=%s tick=%s", cfg.HTTPPort, cfg.StoreBackend, cfg.TickInterval)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	if err := svc.Close(shutdownCtx); err != nil {
		log.Printf("api: final save: %v", err)
	}
}
