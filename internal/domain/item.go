package domain

import "time"

// Item is the canonical product record built fresh from raw source data on
// every cycle. It is never mutated after construction; only its ID outlives
// the cycle, via a ledger entry.
type Item struct {
	ID            string
	Title         string
	Fandom        string
	License       string
	Price         float64
	OriginalPrice float64
	PriceDrop     float64
	Currency      string
	Region        string
	ImageURL      string
	AltImageURL   string
	ProductURL    string
	Badge         string
	ComingSoon    bool
	DropDate      string
	SourcePage    string
	DiscoveredAt  time.Time
}

// LedgerEntry marks one announced item. At most one entry exists per item id.
type LedgerEntry struct {
	ItemID      string
	AnnouncedAt time.Time
	SourcePage  string
}

// FailureKind classifies recoverable per-page and per-item errors.
type FailureKind string

const (
	FailurePageFetch FailureKind = "page_fetch"
	FailureImage     FailureKind = "image"
	FailurePublish   FailureKind = "publish"
	FailureLedger    FailureKind = "ledger"
)

// Failure records one recovered error inside a cycle.
type Failure struct {
	Kind   FailureKind
	Page   string
	ItemID string
	Err    error
}

// CycleResult summarizes one Fetch -> Filter -> Select -> Announce pass.
// It is ephemeral; nothing here is persisted.
type CycleResult struct {
	FetchedCount   int
	FilteredCount  int
	EligibleItems  []Item
	AnnouncedCount int
	Failures       []Failure
	Degraded       bool
}

// FailureCount returns how many failures of the given kind occurred.
func (r CycleResult) FailureCount(kind FailureKind) int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
