// Extracts grant candidates from a saved listing page and merges them
// into a tenant's store. Useful for sites behind aggressive bot
// protection: save the page in a browser, then feed it in here.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/db"
	"github.com/councilworks/grantscout/internal/ingest"
	"github.com/councilworks/grantscout/internal/store"
)

func main() {
	var (
		tenant  = flag.String("tenant", "", "tenant slug to ingest into")
		file    = flag.String("file", "", "path to a saved HTML listing page")
		baseURL = flag.String("base-url", "", "original URL of the page, for resolving links")
		source  = flag.String("source", "manual", "source id recorded on the candidates")
	)
	flag.Parse()

	if *tenant == "" || *file == "" || *baseURL == "" {
		log.Fatal("usage: manual_ingest -tenant <slug> -file <page.html> -base-url <url>")
	}

	settings := config.Load()
	reg, err := config.LoadRegistry(settings.TenantsFile)
	if err != nil {
		log.Fatalf("failed to load tenant registry: %v", err)
	}
	if reg.Tenant(*tenant) == nil {
		log.Fatalf("unknown tenant: %s", *tenant)
	}

	ctx := context.Background()

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

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open page: %v", err)
	}
	defer f.Close()

	cands, err := ingest.ExtractListing(f, *baseURL, *source)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	now := time.Now()
	inserted := 0
	for _, c := range cands {
		rec := ingest.Normalize(c, *tenant, now)
		ok, err := st.Upsert(ctx, rec)
		if err != nil {
			log.Fatalf("upsert %s: %v", rec.ID, err)
		}
		if ok {
			inserted++
		}
	}

	log.Printf("ingestion finished for %s: found %d, inserted %d", *tenant, len(cands), inserted)
}
