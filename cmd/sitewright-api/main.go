package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"sitewright/internal/branding"
	"sitewright/internal/config"
	"sitewright/internal/hosting"
	server "sitewright/internal/http"
	"sitewright/internal/ingest"
	"sitewright/internal/migrate"
	"sitewright/internal/provision"
	"sitewright/internal/sitegen"
	"sitewright/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	rootCtx := context.Background()

	pool, err := store.NewPool(rootCtx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)

	// Ensure initial admin API key if configured
	if cfg.Auth.Enabled && cfg.Auth.InitialAdminKey != "" {
		if _, err := st.EnsureAdminAPIKey(rootCtx, cfg.Auth.InitialAdminKey, "initial-admin"); err != nil {
			log.Fatalf("ensure admin api key failed: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	cdn, err := hosting.NewCDNClient(cfg.Hosting.CDN)
	if err != nil {
		log.Fatalf("cdn client: %v", err)
	}
	search, err := hosting.NewSearchClient(cfg.Hosting.Search)
	if err != nil {
		log.Fatalf("search client: %v", err)
	}
	domains, err := hosting.NewDomainClient(cfg.Hosting.Domain)
	if err != nil {
		log.Fatalf("domain client: %v", err)
	}

	outputDir := cfg.Sitegen.OutputDir
	if outputDir == "" {
		outputDir = "builds"
	}
	builder := sitegen.NewBuilder(outputDir, nil)

	registry := provision.NewRegistry(provision.Deps{
		Builder:      builder,
		CDN:          cdn,
		Search:       search,
		Domains:      domains,
		Tenants:      st,
		AdminBaseURL: cfg.Hosting.AdminBaseURL,
		Logger:       logger,
	})

	svc := provision.NewService(rootCtx, st, st, registry, nil, nil, logger)

	// Pick up jobs that were queued or running when the last process
	// stopped. They resume from their persisted stepsCompleted.
	resumed, err := svc.ResumeInFlight(rootCtx)
	if err != nil {
		log.Fatalf("resume in-flight jobs failed: %v", err)
	}
	if resumed > 0 {
		logger.Info("resumed in-flight jobs", "count", resumed)
	}

	provision.StartRetentionLoop(rootCtx, cfg.Retention, st, nil, logger)

	s := server.NewServer(server.Deps{
		Config:    cfg,
		Store:     st,
		Provision: svc,
		Ingest:    ingest.NewIngestor(st, nil),
		Branding:  branding.NewImporter(cfg.Branding),
		Logger:    logger,
	})
	if err := s.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
