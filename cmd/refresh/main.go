// Command refresh runs the scrape-and-merge cycle for every tenant (or
// one, with -tenant) and prints a summary table. Meant for cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/councilworks/grantscout/internal/ai"
	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/db"
	"github.com/councilworks/grantscout/internal/ingest"
	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/store"
)

func main() {
	var (
		tenantFlag = flag.String("tenant", "", "refresh a single tenant slug (default: all)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "overall refresh timeout")
	)
	flag.Parse()

	settings := config.Load()
	reg, err := config.LoadRegistry(settings.TenantsFile)
	if err != nil {
		log.Fatalf("failed to load tenant registry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var st store.Store
	if settings.DatabaseURL != "" {
		pool, err := db.Connect(ctx, settings.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		st = db.NewStore(pool)
	} else {
		st, err = store.NewFileStore(settings.DataDir)
		if err != nil {
			log.Fatalf("failed to open data dir: %v", err)
		}
	}
	defer st.Close()

	var summarizer ingest.Summarizer
	if settings.Summarize {
		summarizer = ai.NewSummarizer(ai.NewOllamaClient(settings.OllamaHost, settings.OllamaModel))
	}

	enricher := ingest.NewEnricher(ingest.NewHTTPFetcher(settings.FetchTimeout), settings.DetailCap)
	enricher.PDFDeadline = true
	pipeline := ingest.NewPipeline(ingest.CollyFetcherWithConfig(ingest.FetchConfig{TimeoutSeconds: int(settings.FetchTimeout.Seconds())}), enricher, settings.FollowDetails)
	refresher := ingest.NewRefresher(pipeline, st, summarizer)

	tenants := reg.Tenants
	if *tenantFlag != "" {
		tenant := reg.Tenant(*tenantFlag)
		if tenant == nil {
			log.Fatalf("unknown tenant: %s", *tenantFlag)
		}
		tenants = []config.TenantConfig{*tenant}
	}

	var runs []models.RefreshRun
	failures := 0
	for _, tenant := range tenants {
		run, err := refresher.RefreshTenant(ctx, tenant)
		if err != nil {
			log.Printf("[%s] refresh failed: %v", tenant.Slug, err)
			failures++
		}
		runs = append(runs, run)
	}

	printSummary(runs)
	if failures > 0 {
		os.Exit(1)
	}
}

func printSummary(runs []models.RefreshRun) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tenant", "Sources OK", "New", "Expired", "Total", "Duration", "Error"})
	for _, run := range runs {
		ok := 0
		for _, src := range run.Sources {
			if src.Status != models.RunUnreachable {
				ok++
			}
		}
		t.AppendRow(table.Row{
			run.TenantID,
			formatCount(ok, len(run.Sources)),
			run.Inserted,
			run.Expired,
			run.Total,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.Error,
		})
	}
	t.Render()
}

func formatCount(ok, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", ok, total)
}
