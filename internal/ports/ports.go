package ports

import (
	"context"
	"time"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/domain"
)

// CatalogSource pulls raw product entries from one remote catalog page.
type CatalogSource interface {
	FetchPage(ctx context.Context, req catalog.Request) ([]catalog.RawEntry, error)
}

// ImageFetcher resolves a product image URL into raw bytes.
type ImageFetcher interface {
	Resolve(ctx context.Context, imageURL string) ([]byte, error)
}

// Publisher submits a composed announcement to the social network and
// returns the created post identifier. Publishing is externally visible and
// irreversible.
type Publisher interface {
	Announce(ctx context.Context, post domain.Post) (string, error)
}

// Ledger is the durable dedup store of announced item ids. It must be
// reachable before the first cycle runs and must survive process restarts.
type Ledger interface {
	Contains(ctx context.Context, itemID string) (bool, error)
	// ContainsAll reports membership for a batch of ids in one round trip.
	ContainsAll(ctx context.Context, itemIDs []string) (map[string]bool, error)
	// Record is idempotent: recording an already-present id is a no-op.
	Record(ctx context.Context, entry domain.LedgerEntry) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
