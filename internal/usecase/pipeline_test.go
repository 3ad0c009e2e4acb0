package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/domain"
)

func TestRunCycleAnnouncesUpToCapAndCarriesOverflow(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale": {
			rawEntry("Pop! LeBron", "NBA"),
			rawEntry("Pop! Ellen", "Movies"),
			rawEntry("Pop! Sarah", "Movies"),
		},
	}}
	f := newPipelineFixture(fixtureOptions{
		pages:    []string{"sale"},
		source:   source,
		deny:     []string{"nba"},
		maxPosts: 1,
	})

	first := runCycle(f)
	assert.Equal(t, 3, first.FetchedCount)
	assert.Equal(t, 2, first.FilteredCount)
	require.Len(t, first.EligibleItems, 2)
	assert.Equal(t, "Pop! Ellen", first.EligibleItems[0].Title)
	assert.Equal(t, "Pop! Sarah", first.EligibleItems[1].Title)
	assert.Equal(t, 1, first.AnnouncedCount)
	assert.Equal(t, []string{"Pop! Ellen"}, f.publisher.announcedTitles())
	assert.False(t, first.Degraded)

	// Unchanged catalog: the item beyond the cap is announced next cycle.
	second := runCycle(f)
	require.Len(t, second.EligibleItems, 1)
	assert.Equal(t, "Pop! Sarah", second.EligibleItems[0].Title)
	assert.Equal(t, 1, second.AnnouncedCount)
	assert.Equal(t, []string{"Pop! Ellen", "Pop! Sarah"}, f.publisher.announcedTitles())

	// Third cycle: everything already recorded, nothing to do.
	third := runCycle(f)
	assert.Empty(t, third.EligibleItems)
	assert.Zero(t, third.AnnouncedCount)
	assert.Equal(t, 2, f.ledger.size())
}

func TestRunCyclePreservesConfiguredPageOrder(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale":         {rawEntry("Pop! Vegeta", "Dragon Ball")},
		"new-releases": {rawEntry("Pop! Denji", "Chainsaw Man")},
	}}
	f := newPipelineFixture(fixtureOptions{
		pages:  []string{"new-releases", "sale"},
		source: source,
	})

	result := runCycle(f)
	require.Len(t, result.EligibleItems, 2)
	assert.Equal(t, "Pop! Denji", result.EligibleItems[0].Title)
	assert.Equal(t, "Pop! Vegeta", result.EligibleItems[1].Title)
}

func TestRunCycleDedupesAcrossPages(t *testing.T) {
	t.Parallel()

	shared := rawEntry("Pop! Goku", "Dragon Ball")
	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale":       {shared},
		"exclusives": {shared, rawEntry("Pop! Frieza", "Dragon Ball")},
	}}
	f := newPipelineFixture(fixtureOptions{
		pages:  []string{"sale", "exclusives"},
		source: source,
	})

	result := runCycle(f)
	assert.Equal(t, 3, result.FetchedCount)
	assert.Equal(t, 2, result.FilteredCount)
	assert.Equal(t, 2, result.AnnouncedCount)
}

func TestRunCycleContinuesPastFailedPages(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{
		pages: map[string][]catalog.RawEntry{
			"sale":       {rawEntry("Pop! Luffy", "One Piece")},
			"exclusives": {rawEntry("Pop! Zoro", "One Piece")},
		},
		fail: map[string]error{
			"new-releases":  fmt.Errorf("status 500"),
			"back-in-stock": fmt.Errorf("status 503"),
		},
	}
	f := newPipelineFixture(fixtureOptions{
		pages:  []string{"sale", "new-releases", "exclusives", "back-in-stock"},
		source: source,
	})

	result := runCycle(f)
	assert.Equal(t, 2, result.FailureCount(domain.FailurePageFetch))
	assert.Equal(t, 2, result.AnnouncedCount)
	assert.False(t, result.Degraded)
}

func TestRunCycleAllPagesFailedIsDegradedNotFatal(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{fail: map[string]error{
		"sale":       fmt.Errorf("status 500"),
		"exclusives": fmt.Errorf("timeout"),
	}}
	f := newPipelineFixture(fixtureOptions{
		pages:  []string{"sale", "exclusives"},
		source: source,
	})

	result := runCycle(f)
	assert.True(t, result.Degraded)
	assert.Zero(t, result.FetchedCount)
	assert.Empty(t, result.EligibleItems)
	assert.Zero(t, result.AnnouncedCount)
	assert.Empty(t, f.publisher.posts)
	assert.Equal(t, 2, result.FailureCount(domain.FailurePageFetch))
}

func TestRunCycleLedgerReadFailureSkipsAnnouncing(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale": {rawEntry("Pop! Nami", "One Piece")},
	}}
	f := newPipelineFixture(fixtureOptions{pages: []string{"sale"}, source: source})
	f.ledger.failReads = true

	result := runCycle(f)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, result.FailureCount(domain.FailureLedger))
	assert.Empty(t, f.publisher.posts)
}

func TestRunCycleLedgerWriteFailureAbortsRemaining(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale": {
			rawEntry("Pop! Ichigo", "Bleach"),
			rawEntry("Pop! Rukia", "Bleach"),
		},
	}}
	f := newPipelineFixture(fixtureOptions{pages: []string{"sale"}, source: source})
	f.ledger.failWrites = true

	result := runCycle(f)
	// First item is published, its ledger write fails, the second is never
	// attempted.
	assert.Equal(t, 1, result.AnnouncedCount)
	assert.Len(t, f.publisher.posts, 1)
	assert.Equal(t, 1, result.FailureCount(domain.FailureLedger))
	assert.True(t, result.Degraded)
}

func TestRunCyclePublishFailureKeepsItemEligible(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale": {
			rawEntry("Pop! Tanjiro", "Demon Slayer"),
			rawEntry("Pop! Nezuko", "Demon Slayer"),
		},
	}}
	f := newPipelineFixture(fixtureOptions{pages: []string{"sale"}, source: source})
	f.publisher.failOn = func(post domain.Post) error {
		if containsTitle(post, "Pop! Tanjiro") {
			return fmt.Errorf("status 502")
		}
		return nil
	}

	first := runCycle(f)
	assert.Equal(t, 1, first.AnnouncedCount)
	assert.Equal(t, 1, first.FailureCount(domain.FailurePublish))
	assert.Equal(t, []string{"Pop! Nezuko"}, f.publisher.announcedTitles())
	assert.Equal(t, 1, f.ledger.size())

	// The failed item is retried once the publisher recovers.
	f.publisher.failOn = nil
	second := runCycle(f)
	require.Len(t, second.EligibleItems, 1)
	assert.Equal(t, "Pop! Tanjiro", second.EligibleItems[0].Title)
	assert.Equal(t, 1, second.AnnouncedCount)
}

func TestRunCycleDryRunNeverTouchesPublisherOrLedger(t *testing.T) {
	t.Parallel()

	source := &fakeCatalog{pages: map[string][]catalog.RawEntry{
		"sale": {rawEntry("Pop! Gojo", "Jujutsu Kaisen")},
	}}
	f := newPipelineFixture(fixtureOptions{pages: []string{"sale"}, source: source, dryRun: true})

	result := runCycle(f)
	require.Len(t, result.EligibleItems, 1)
	assert.Zero(t, result.AnnouncedCount)
	assert.Empty(t, f.publisher.posts)
	assert.Zero(t, f.ledger.size())

	// Nothing was recorded, so the item is still eligible next cycle.
	again := runCycle(f)
	assert.Len(t, again.EligibleItems, 1)
}

func containsTitle(post domain.Post, title string) bool {
	for _, line := range strings.Split(post.Text, "\n") {
		if line == "✨ "+title {
			return true
		}
	}
	return false
}
