package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/domain"
	"PopWatcher/internal/normalize"
)

// memLedger is an in-memory ports.Ledger for pipeline tests.
type memLedger struct {
	mu      sync.Mutex
	entries map[string]domain.LedgerEntry
	records int

	failReads  bool
	failWrites bool
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]domain.LedgerEntry{}}
}

func (l *memLedger) Contains(_ context.Context, itemID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads {
		return false, fmt.Errorf("ledger down")
	}
	_, ok := l.entries[itemID]
	return ok, nil
}

func (l *memLedger) ContainsAll(_ context.Context, itemIDs []string) (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads {
		return nil, fmt.Errorf("ledger down")
	}
	result := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := l.entries[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func (l *memLedger) Record(_ context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrites {
		return fmt.Errorf("ledger down")
	}
	l.records++
	if _, ok := l.entries[entry.ItemID]; ok {
		return nil
	}
	l.entries[entry.ItemID] = entry
	return nil
}

func (l *memLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// fakeCatalog serves fixed raw entries per page.
type fakeCatalog struct {
	pages map[string][]catalog.RawEntry
	fail  map[string]error
}

func (f *fakeCatalog) FetchPage(_ context.Context, req catalog.Request) ([]catalog.RawEntry, error) {
	if err, ok := f.fail[req.Page]; ok {
		return nil, err
	}
	entries := make([]catalog.RawEntry, len(f.pages[req.Page]))
	copy(entries, f.pages[req.Page])
	for i := range entries {
		entries[i].Page = req.Page
	}
	return entries, nil
}

// fakePublisher records announced posts in order.
type fakePublisher struct {
	mu     sync.Mutex
	posts  []domain.Post
	failOn func(domain.Post) error
}

func (p *fakePublisher) Announce(_ context.Context, post domain.Post) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != nil {
		if err := p.failOn(post); err != nil {
			return "", err
		}
	}
	p.posts = append(p.posts, post)
	return fmt.Sprintf("at://post/%d", len(p.posts)), nil
}

func (p *fakePublisher) announcedTitles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	titles := make([]string, 0, len(p.posts))
	for _, post := range p.posts {
		for _, line := range strings.Split(post.Text, "\n") {
			if strings.HasPrefix(line, "✨ ") {
				titles = append(titles, strings.TrimPrefix(line, "✨ "))
			}
		}
	}
	return titles
}

// fakeImages resolves every URL to stub bytes unless listed as failing.
type fakeImages struct {
	fail map[string]error
}

func (f *fakeImages) Resolve(_ context.Context, imageURL string) ([]byte, error) {
	if err, ok := f.fail[imageURL]; ok {
		return nil, err
	}
	return []byte("image:" + imageURL), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pipelineFixture struct {
	pipeline  *Pipeline
	ledger    *memLedger
	publisher *fakePublisher
	images    *fakeImages
}

type fixtureOptions struct {
	pages    []string
	source   *fakeCatalog
	deny     []string
	fandoms  []string
	maxPosts int
	dryRun   bool
	quit     <-chan struct{}
}

func newPipelineFixture(opts fixtureOptions) *pipelineFixture {
	ledger := newMemLedger()
	publisher := &fakePublisher{}
	imgs := &fakeImages{}

	fandoms := opts.fandoms
	if fandoms == nil {
		fandoms = []string{"All"}
	}

	normalizer := normalize.New(normalize.Config{
		Region:   "pl",
		Fandoms:  fandoms,
		DenyList: opts.deny,
	})

	announcer := NewAnnouncer(AnnouncerDeps{
		Images:    imgs,
		Publisher: publisher,
		Ledger:    ledger,
		Logger:    discardLogger(),
		DryRun:    opts.dryRun,
		Quit:      opts.quit,
	})

	pipeline := NewPipeline(PipelineDeps{
		Catalog:          opts.source,
		Normalizer:       normalizer,
		Ledger:           ledger,
		Announcer:        announcer,
		Logger:           discardLogger(),
		Pages:            opts.pages,
		Region:           "pl",
		FetchConcurrency: 2,
		MaxPosts:         opts.maxPosts,
	})

	return &pipelineFixture{pipeline: pipeline, ledger: ledger, publisher: publisher, images: imgs}
}

func rawEntry(title, tag string) catalog.RawEntry {
	return catalog.RawEntry{
		Title:      title,
		ProductURL: "https://funko.test/products/" + strings.ToLower(title),
		ImageURL:   "https://img.funko.test/" + strings.ToLower(title) + ".jpg",
		License:    tag,
		Price:      11.99,
	}
}

func runCycle(f *pipelineFixture) domain.CycleResult {
	return f.pipeline.RunCycle(context.Background(), time.Now())
}
