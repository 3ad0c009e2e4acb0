package usecase

import (
	"context"
	"fmt"

	"PopWatcher/internal/domain"
	"PopWatcher/internal/ports"
)

// Select computes the ordered set of items not yet present in the ledger.
// It returns both the full eligible sequence and the per-cycle selection,
// which is the same sequence truncated to maxPosts (0 = unlimited). Items
// beyond the cap are not discarded; they stay eligible for the next cycle in
// the same relative order.
//
// Input order is preserved, so for identical inputs and ledger state the
// output is identical across runs.
func Select(ctx context.Context, items []domain.Item, ledger ports.Ledger, maxPosts int) (eligible, selected []domain.Item, err error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	announced, err := ledger.ContainsAll(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("select eligible: %w", err)
	}

	eligible = make([]domain.Item, 0, len(items))
	for _, item := range items {
		if announced[item.ID] {
			continue
		}
		eligible = append(eligible, item)
	}

	selected = eligible
	if maxPosts > 0 && len(selected) > maxPosts {
		selected = selected[:maxPosts]
	}

	return eligible, selected, nil
}
