// pruner sweeps expired auth rows on a timer. Set DATABASE_URL; PRUNE_INTERVAL
// and PRUNE_GRACE control the cadence and retention. With REDIS_ADDR set, the
// revocation list lives in Redis and expires on its own, so only the Postgres
// stores are swept.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	alertotel "cermont-atg/authcore/internal/alert/otel"
	"cermont-atg/authcore/internal/config"
	"cermont-atg/authcore/internal/db"
	resetrepo "cermont-atg/authcore/internal/passwordreset/repository"
	"cermont-atg/authcore/internal/pruner"
	refreshrepo "cermont-atg/authcore/internal/refreshtoken/repository"
	revocationrepo "cermont-atg/authcore/internal/revocation/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("pruner: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("pruner: db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		providers, err := alertotel.NewProviders(ctx, cfg.OTLPEndpoint, "atg-auth-pruner", cfg.Env != "production")
		if err != nil {
			log.Printf("pruner: otel disabled: %v", err)
		} else {
			providers.SetGlobal()
			defer providers.Shutdown(context.Background())
		}
	}

	stores := map[string]pruner.Store{
		"refresh_tokens":        refreshrepo.NewPostgresRepository(conn),
		"password_reset_tokens": resetrepo.NewPostgresRepository(conn),
	}
	if cfg.RedisAddr == "" {
		stores["revoked_access_tokens"] = revocationrepo.NewPostgresRepository(conn)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("pruner: shutting down...")
		cancel()
	}()

	log.Printf("pruner: sweeping every %s, grace %s", cfg.PruneEvery(), cfg.PruneGraceTTL())
	pruner.New(stores, nil, cfg.PruneEvery(), cfg.PruneGraceTTL()).Run(ctx)
	log.Println("pruner: stopped")
}
