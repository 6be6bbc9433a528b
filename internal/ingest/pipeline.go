package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/store"
)

// Summarizer produces a short plain-language summary for a record.
// Implementations may fail or be absent; the pipeline treats a missing
// summary as cosmetic.
type Summarizer interface {
	Summarize(ctx context.Context, title, description string) (string, error)
}

// Pipeline collects candidates from a tenant's sources. It does not
// touch storage; Refresher owns persistence.
type Pipeline struct {
	Fetcher       Fetcher
	Enricher      *Enricher
	FollowDetails bool
}

func NewPipeline(fetcher Fetcher, enricher *Enricher, followDetails bool) *Pipeline {
	if fetcher == nil {
		fetcher = NewRateLimitedFetcher(FetchConfig{})
	}
	return &Pipeline{Fetcher: fetcher, Enricher: enricher, FollowDetails: followDetails}
}

// CollectSource fetches one listing page and extracts candidates. The
// returned SourceResult says explicitly whether the source answered
// with data, answered empty, or could not be reached at all.
func (p *Pipeline) CollectSource(ctx context.Context, src config.SourceConfig) ([]Candidate, models.SourceResult) {
	res := models.SourceResult{Source: src.ID}

	// A slow source gets its own timeout so it cannot eat the whole
	// refresh budget.
	if src.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(src.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	doc, err := p.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		res.Status = models.RunUnreachable
		res.Reason = err.Error()
		return nil, res
	}
	defer doc.Body.Close()

	cands, err := ExtractListing(doc.Body, doc.URL, src.ID)
	if err != nil {
		res.Status = models.RunUnreachable
		res.Reason = fmt.Sprintf("parse: %v", err)
		return nil, res
	}

	if len(cands) == 0 {
		res.Status = models.RunEmpty
		return nil, res
	}

	follow := p.FollowDetails
	if src.FollowDetails != nil {
		follow = *src.FollowDetails
	}
	if follow && p.Enricher != nil {
		cands = p.Enricher.Enrich(ctx, cands)
	}

	res.Status = models.RunOK
	res.Found = len(cands)
	return cands, res
}

// CollectTenant runs every source for a tenant and merges the results,
// deduplicating by resolved link. The first source to mention a link
// wins; later duplicates are dropped.
func (p *Pipeline) CollectTenant(ctx context.Context, tenant config.TenantConfig) ([]Candidate, []models.SourceResult) {
	var all []Candidate
	var results []models.SourceResult
	seen := make(map[string]bool)

	for _, src := range tenant.Sources {
		cands, res := p.CollectSource(ctx, src)
		results = append(results, res)
		if res.Status == models.RunUnreachable {
			log.Printf("[%s] source %s unreachable: %s", tenant.Slug, src.ID, res.Reason)
			continue
		}
		for _, c := range cands {
			if seen[c.Link] {
				continue
			}
			seen[c.Link] = true
			all = append(all, c)
		}
	}
	return all, results
}

// Refresher runs the full refresh cycle for tenants: collect,
// normalize, merge into the store, expire, and record the run.
type Refresher struct {
	Pipeline   *Pipeline
	Store      store.Store
	Summarizer Summarizer
	Now        func() time.Time
}

func NewRefresher(p *Pipeline, s store.Store, sum Summarizer) *Refresher {
	return &Refresher{Pipeline: p, Store: s, Summarizer: sum, Now: time.Now}
}

// RefreshTenant refreshes one tenant end to end. Existing records are
// never modified; new links are inserted and lapsed deadlines expired.
// The returned RefreshRun is also persisted for the run history.
func (r *Refresher) RefreshTenant(ctx context.Context, tenant config.TenantConfig) (models.RefreshRun, error) {
	now := r.Now()
	run := models.RefreshRun{
		ID:        uuid.NewString(),
		TenantID:  tenant.Slug,
		StartedAt: now.UTC(),
	}

	cands, results := r.Pipeline.CollectTenant(ctx, tenant)
	run.Sources = results

	existing, err := r.Store.List(ctx, tenant.Slug)
	if err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("list existing records: %w", err))
	}
	known := make(map[string]bool, len(existing))
	for _, rec := range existing {
		known[rec.Link] = true
	}

	for _, c := range cands {
		if known[c.Link] {
			continue
		}
		rec := Normalize(c, tenant.Slug, now)
		if r.Summarizer != nil {
			if summary, err := r.Summarizer.Summarize(ctx, rec.Title, rec.Description); err == nil {
				rec.Summary = summary
			} else {
				log.Printf("[%s] summarize %s: %v", tenant.Slug, rec.ID, err)
			}
		}
		inserted, err := r.Store.Upsert(ctx, rec)
		if err != nil {
			return r.finishRun(ctx, run, fmt.Errorf("upsert %s: %w", rec.ID, err))
		}
		if inserted {
			known[rec.Link] = true
			run.Inserted++
		}
	}

	current, err := r.Store.List(ctx, tenant.Slug)
	if err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("list for expiry: %w", err))
	}
	retained, expiredIDs := Expire(current, now)
	if len(expiredIDs) > 0 {
		if err := r.Store.Delete(ctx, tenant.Slug, expiredIDs); err != nil {
			return r.finishRun(ctx, run, fmt.Errorf("delete expired: %w", err))
		}
	}
	run.Expired = len(expiredIDs)
	run.Total = len(retained)

	if err := r.Store.SetLastRefresh(ctx, tenant.Slug, now); err != nil {
		log.Printf("[%s] record last refresh: %v", tenant.Slug, err)
	}
	return r.finishRun(ctx, run, nil)
}

// RefreshAll refreshes every tenant in the registry sequentially. A
// failing tenant does not stop the others.
func (r *Refresher) RefreshAll(ctx context.Context, reg *config.Registry) []models.RefreshRun {
	runs := make([]models.RefreshRun, 0, len(reg.Tenants))
	for _, tenant := range reg.Tenants {
		run, err := r.RefreshTenant(ctx, tenant)
		if err != nil {
			log.Printf("[%s] refresh failed: %v", tenant.Slug, err)
		}
		runs = append(runs, run)
	}
	return runs
}

func (r *Refresher) finishRun(ctx context.Context, run models.RefreshRun, cause error) (models.RefreshRun, error) {
	run.FinishedAt = r.Now().UTC()
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := r.Store.RecordRun(ctx, run); err != nil {
		log.Printf("[%s] record run: %v", run.TenantID, err)
	}
	return run, cause
}
