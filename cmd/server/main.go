package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retex/internal/config"
	"retex/internal/httpapi"
	"retex/internal/notify"
	"retex/internal/service"
	"retex/internal/store"
	"retex/internal/store/memory"
	pgstore "retex/internal/store/postgres"
	"retex/internal/tax"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	notifier := notify.StockNotifier(notify.NoopStockNotifier{})
	if cfg.RedisAddr != "" {
		redisNotifier := notify.NewRedisStockNotifier(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StockSyncQueue)
		if err := redisNotifier.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), stock sync disabled", err)
		} else {
			notifier = redisNotifier
			closers = append(closers, redisNotifier.Close)
			log.Println("stock sync: redis")
		}
	} else {
		log.Println("stock sync: disabled")
	}

	taxes := taxTableFromConfig(cfg)
	svc := service.New(repo, taxes, notifier, cfg.RegisterID)
	api := httpapi.New(svc, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("exchange backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// taxTableFromConfig builds the provincial rate table. An unrecognized
// TAX_REGION falls back to Ontario rather than refusing to start, since every
// sale row carries its own region anyway.
func taxTableFromConfig(cfg config.Config) *tax.Table {
	taxes, err := tax.Canada(cfg.TaxRegion)
	if err != nil {
		log.Printf("tax region %q not recognized, defaulting to ON", cfg.TaxRegion)
		taxes, err = tax.Canada("ON")
		if err != nil {
			log.Fatalf("tax table: %v", err)
		}
	}
	return taxes
}
