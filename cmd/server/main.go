package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/councilworks/grantscout/internal/ai"
	"github.com/councilworks/grantscout/internal/api"
	"github.com/councilworks/grantscout/internal/auth"
	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/db"
	"github.com/councilworks/grantscout/internal/ingest"
	"github.com/councilworks/grantscout/internal/store"
)

func main() {
	settings := config.Load()
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	reg, err := config.LoadRegistry(settings.TenantsFile)
	if err != nil {
		log.Fatalf("failed to load tenant registry: %v", err)
	}

	ctx := context.Background()

	var st store.Store
	var authSvc *auth.Service
	if settings.DatabaseURL != "" {
		pool, err := db.Connect(ctx, settings.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		st = db.NewStore(pool)
		authSvc = auth.NewService(pool)
		log.Print("using postgres store")
	} else {
		st, err = store.NewFileStore(settings.DataDir)
		if err != nil {
			log.Fatalf("failed to open data dir: %v", err)
		}
		log.Printf("using file store at %s", settings.DataDir)
	}
	defer st.Close()

	ollama := ai.NewOllamaClient(settings.OllamaHost, settings.OllamaModel)

	var summarizer ingest.Summarizer
	if settings.Summarize {
		summarizer = ai.NewSummarizer(ollama)
	}

	fetcher := ingest.CollyFetcherWithConfig(ingest.FetchConfig{TimeoutSeconds: int(settings.FetchTimeout.Seconds())})
	detailFetcher := ingest.NewHTTPFetcher(settings.FetchTimeout)
	enricher := ingest.NewEnricher(detailFetcher, settings.DetailCap)
	enricher.PDFDeadline = true

	pipeline := ingest.NewPipeline(fetcher, enricher, settings.FollowDetails)
	refresher := ingest.NewRefresher(pipeline, st, summarizer)

	srv := api.NewServer(st, reg, refresher, ai.NewDrafter(ollama), authSvc, settings)

	go func() {
		log.Printf("server starting on port %s", settings.Port)
		if err := srv.Start(settings.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
