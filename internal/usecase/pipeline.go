package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/domain"
	"PopWatcher/internal/normalize"
	"PopWatcher/internal/ports"
)

// PipelineDeps wires all driven adapters into one cycle's orchestration.
type PipelineDeps struct {
	Catalog          ports.CatalogSource
	Normalizer       *normalize.Normalizer
	Ledger           ports.Ledger
	Announcer        *Announcer
	Logger           *slog.Logger
	Pages            []string
	Region           string
	FetchConcurrency int
	MaxPosts         int
}

// Pipeline executes the Fetch -> Normalize/Filter -> Select -> Announce
// sequence for one cycle. A cycle owns its working set exclusively; nothing
// in here is shared between cycles.
type Pipeline struct {
	catalog     ports.CatalogSource
	normalizer  *normalize.Normalizer
	ledger      ports.Ledger
	announcer   *Announcer
	logger      *slog.Logger
	pages       []string
	region      string
	concurrency int
	maxPosts    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	concurrency := deps.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{
		catalog:     deps.Catalog,
		normalizer:  deps.Normalizer,
		ledger:      deps.Ledger,
		announcer:   deps.Announcer,
		logger:      deps.Logger,
		pages:       deps.Pages,
		region:      deps.Region,
		concurrency: concurrency,
		maxPosts:    deps.MaxPosts,
	}
}

type pageResult struct {
	page    string
	entries []catalog.RawEntry
	err     error
}

// RunCycle executes exactly one cycle and returns its summary. Per-page and
// per-item errors are accumulated in the result, never propagated as a cycle
// failure.
func (p *Pipeline) RunCycle(ctx context.Context, now time.Time) domain.CycleResult {
	var result domain.CycleResult

	pages := p.fetchAll(ctx)

	var raw []catalog.RawEntry
	failedPages := 0
	for _, pr := range pages {
		if pr.err != nil {
			failedPages++
			result.Failures = append(result.Failures, domain.Failure{
				Kind: domain.FailurePageFetch, Page: pr.page, Err: pr.err,
			})
			p.logger.Warn("page fetch failed", "page", pr.page, "error", pr.err)
			continue
		}
		raw = append(raw, pr.entries...)
	}
	result.FetchedCount = len(raw)

	if len(p.pages) > 0 && failedPages == len(p.pages) {
		// Degraded cycle: no retries here, the next scheduled cycle is the
		// retry mechanism.
		result.Degraded = true
		p.logger.Warn("all catalog pages failed, no items this cycle", "pages", len(p.pages))
		p.logSummary(result)
		return result
	}

	items := p.normalizer.Normalize(raw, now)
	filtered := normalize.Dedupe(p.normalizer.Filter(items))
	result.FilteredCount = len(filtered)

	eligible, selected, err := Select(ctx, filtered, p.ledger, p.maxPosts)
	if err != nil {
		result.Degraded = true
		result.Failures = append(result.Failures, domain.Failure{Kind: domain.FailureLedger, Err: err})
		p.logger.Error("ledger unavailable, aborting cycle before announcing", "error", err)
		p.logSummary(result)
		return result
	}
	result.EligibleItems = eligible

	announced, failures := p.announcer.Run(ctx, selected)
	result.AnnouncedCount = announced
	result.Failures = append(result.Failures, failures...)
	if result.FailureCount(domain.FailureLedger) > 0 {
		result.Degraded = true
	}

	p.logSummary(result)
	return result
}

// fetchAll queries every configured page with bounded parallelism. Results
// are reassembled in configured page order, not completion order, so the
// downstream selection stays deterministic.
func (p *Pipeline) fetchAll(ctx context.Context) []pageResult {
	results := make([]pageResult, len(p.pages))
	sem := make(chan struct{}, p.concurrency)

	var wg sync.WaitGroup
	for i, page := range p.pages {
		wg.Add(1)
		go func(i int, page string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries, err := p.catalog.FetchPage(ctx, catalog.Request{Page: page, Region: p.region})
			results[i] = pageResult{page: page, entries: entries, err: err}
		}(i, page)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) logSummary(result domain.CycleResult) {
	p.logger.Info("cycle complete",
		"fetched", result.FetchedCount,
		"filtered", result.FilteredCount,
		"eligible", len(result.EligibleItems),
		"announced", result.AnnouncedCount,
		"failed", len(result.Failures),
		"degraded", result.Degraded,
	)
}
