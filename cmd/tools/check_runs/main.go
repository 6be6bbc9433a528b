// Prints recent refresh runs for a tenant as a table. Works against
// either store backend.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/db"
	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/store"
)

func main() {
	var (
		tenant = flag.String("tenant", models.SharedTenant, "tenant slug")
		limit  = flag.Int("limit", 10, "number of runs to show")
	)
	flag.Parse()

	settings := config.Load()
	ctx := context.Background()

	var st store.Store
	var err error
	if settings.DatabaseURL != "" {
		pool, err := db.Connect(ctx, settings.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		st = db.NewStore(pool)
	} else {
		st, err = store.NewFileStore(settings.DataDir)
		if err != nil {
			log.Fatal(err)
		}
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, *tenant, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Started", "New", "Expired", "Total", "Sources", "Duration", "Error"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Inserted,
			run.Expired,
			run.Total,
			len(run.Sources),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.Error,
		})
	}
	t.Render()
}
