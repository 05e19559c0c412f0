package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/cratecrew/boxops/internal/api"
	"github.com/cratecrew/boxops/internal/auth"
	"github.com/cratecrew/boxops/internal/config"
	"github.com/cratecrew/boxops/internal/discord"
	"github.com/cratecrew/boxops/internal/export"
	"github.com/cratecrew/boxops/internal/repository/postgres"
	"github.com/cratecrew/boxops/internal/service/migration"
	"github.com/cratecrew/boxops/internal/shopify"
	"github.com/cratecrew/boxops/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	cancel()
	log.Printf("[server] connected to Postgres")

	audits := postgres.NewAuditRepo(db)
	runs := postgres.NewRunRepo(db)
	mappings := postgres.NewMappingRepo(db)
	subscribers := postgres.NewSubscriberRepo(db)
	unmapped := postgres.NewUnmappedRepo(db)

	svc := migration.NewService(audits, runs, mappings)

	orderSource := shopify.NewClient(cfg.Shopify)

	var limiter worker.Limiter
	if cfg.Redis.Enabled {
		rl, err := worker.NewRateLimiterFromURL(cfg.Redis.URL, cfg.Audit.OrderSourcePerSecond)
		if err != nil {
			log.Fatalf("Failed to connect rate limiter: %v", err)
		}
		defer rl.Close()
		limiter = rl
	} else {
		log.Printf("[server] Redis disabled; order-source pacing relies on inter-subscriber delay only")
	}

	runner := worker.NewAuditRunner(svc, subscribers, unmapped, orderSource, limiter, cfg.Audit.InterSubscriberDelay())

	notifier := discord.NewNotifier(cfg.Discord.WebhookURL)

	var reporter *export.Reporter
	if cfg.Storage.Enabled && cfg.Storage.S3Bucket != "" {
		reporter, err = export.NewReporter(context.Background(),
			cfg.Storage.S3Bucket, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to init report exporter: %v", err)
		}
		log.Printf("[server] report export enabled: s3://%s", cfg.Storage.S3Bucket)
	}

	var authManager *auth.Manager
	if cfg.Auth.Enabled {
		baseURL := os.Getenv("PUBLIC_BASE_URL")
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		}
		authManager = auth.NewManager(&cfg.Auth, baseURL)
		authManager.CleanupExpiredSessions()
		log.Printf("[server] Google OAuth enabled for domain %s", cfg.Auth.AllowedDomain)
	} else {
		log.Printf("[server] WARNING: auth disabled; API is open")
	}

	handlers := api.NewHandlers(svc, runner, mappings, notifier, reporter)
	server := api.NewServer(cfg.Server, handlers, authManager)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Printf("[server] listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[server] shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] shutdown error: %v", err)
	}
}
