package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shift-coverage/internal/config"
	"shift-coverage/internal/coverage"
	"shift-coverage/internal/notify"
	"shift-coverage/internal/store"
	"shift-coverage/internal/telemetry"
)

// The worker runs the offering scheduler without the HTTP API, for sites that
// drive coverage from another front end over the shared document store. Run
// it instead of cmd/api, never beside it: one process owns the document.
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

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	if rn, ok := notifier.(*notify.RedisNotifier); ok {
		go watchNotices(ctx, rn)
	}

	log.Printf("worker started store=%s tick=%s vacancies=%d", cfg.StoreBackend, cfg.TickInterval, len(svc.Vacancies()))
	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := svc.Close(shutdownCtx); err != nil {
		log.Printf("worker: final save: %v", err)
	}
}

// watchNotices reports the award notice backlog. It only reads the list;
// the outbound messaging integration consumes it.
func watchNotices(ctx context.Context, rn *notify.RedisNotifier) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		depth, err := rn.Depth(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("worker: notices: %v", err)
			}
			continue
		}
		telemetry.NoticeBacklog.Set(float64(depth))
		if depth == 0 {
			continue
		}
		oldest, err := rn.Peek(ctx, 1)
		if err == nil && len(oldest) == 1 {
			log.Printf("worker: %d award notices pending, oldest employee=%s awarded_at=%s", depth, oldest[0].EmployeeID, oldest[0].AwardedAt.Format(time.RFC3339))
		}
	}
}
