package usecase

import (
	"context"
	"log/slog"
	"time"

	"PopWatcher/internal/domain"
	"PopWatcher/internal/ports"
)

// Announcer publishes selected items one at a time and records each success
// in the ledger. The ordering is fixed: announce first, record second, so a
// crash in between can only cause a missed record (safe to re-announce),
// never a silently dropped item.
type Announcer struct {
	images    ports.ImageFetcher
	publisher ports.Publisher
	ledger    ports.Ledger
	logger    *slog.Logger
	dryRun    bool
	postDelay time.Duration
	quit      <-chan struct{}
	now       func() time.Time
}

// AnnouncerDeps wires the announcement stage.
type AnnouncerDeps struct {
	Images    ports.ImageFetcher
	Publisher ports.Publisher
	Ledger    ports.Ledger
	Logger    *slog.Logger
	DryRun    bool
	PostDelay time.Duration
	// Quit requests a graceful stop: the in-flight item completes, the
	// remaining items are left unannounced (and still eligible next cycle).
	Quit <-chan struct{}
}

// NewAnnouncer constructs the announcement stage.
func NewAnnouncer(deps AnnouncerDeps) *Announcer {
	return &Announcer{
		images:    deps.Images,
		publisher: deps.Publisher,
		ledger:    deps.Ledger,
		logger:    deps.Logger,
		dryRun:    deps.DryRun,
		postDelay: deps.PostDelay,
		quit:      deps.Quit,
		now:       time.Now,
	}
}

// Run announces the items in order, at most one publish attempt per item.
// Per-item failures are collected and the loop continues; a ledger write
// failure aborts the remaining items since announcing without a working
// dedup store risks unbounded duplicates.
func (a *Announcer) Run(ctx context.Context, items []domain.Item) (int, []domain.Failure) {
	announced := 0
	var failures []domain.Failure

	for _, item := range items {
		if a.stopRequested(ctx) {
			a.info("shutdown requested, leaving remaining items for the next cycle",
				"remaining", len(items)-announced-len(failures))
			break
		}

		if a.dryRun {
			a.info("dry run: would announce", "id", item.ID, "title", item.Title, "page", item.SourcePage)
			continue
		}

		if announced > 0 && a.postDelay > 0 {
			if !a.sleep(ctx, a.postDelay) {
				break
			}
		}

		post := domain.Post{Text: ComposePost(item)}

		imgs, imgErr := a.resolveImages(ctx, item)
		if imgErr != nil {
			// Policy: an item whose image cannot be resolved is skipped, not
			// announced text-only. It stays eligible for future cycles.
			failures = append(failures, domain.Failure{
				Kind: domain.FailureImage, ItemID: item.ID, Page: item.SourcePage, Err: imgErr,
			})
			a.warn("image resolution failed, skipping item", "id", item.ID, "error", imgErr)
			continue
		}
		post.Images = imgs

		postID, err := a.publisher.Announce(ctx, post)
		if err != nil {
			failures = append(failures, domain.Failure{
				Kind: domain.FailurePublish, ItemID: item.ID, Page: item.SourcePage, Err: err,
			})
			a.warn("publish failed, item stays eligible", "id", item.ID, "error", err)
			continue
		}
		announced++

		entry := domain.LedgerEntry{ItemID: item.ID, AnnouncedAt: a.now(), SourcePage: item.SourcePage}
		if err := a.ledger.Record(ctx, entry); err != nil {
			failures = append(failures, domain.Failure{
				Kind: domain.FailureLedger, ItemID: item.ID, Err: err,
			})
			a.warn("ledger write failed, aborting remaining announcements", "id", item.ID, "error", err)
			break
		}

		a.info("announced item", "id", item.ID, "title", item.Title, "post", postID)
	}

	return announced, failures
}

// resolveImages fetches the main image (required) and the alternate in-box
// shot (best effort).
func (a *Announcer) resolveImages(ctx context.Context, item domain.Item) ([]domain.PostImage, error) {
	main, err := a.images.Resolve(ctx, item.ImageURL)
	if err != nil {
		return nil, err
	}

	imgs := []domain.PostImage{{Bytes: main, Alt: mainAltText(item)}}

	if item.AltImageURL != "" {
		if alt, err := a.images.Resolve(ctx, item.AltImageURL); err == nil {
			imgs = append(imgs, domain.PostImage{Bytes: alt, Alt: boxAltText(item)})
		}
	}

	return imgs, nil
}

func (a *Announcer) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-a.quit:
		return true
	default:
		return false
	}
}

func (a *Announcer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-a.quit:
		return false
	}
}

func (a *Announcer) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Announcer) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
