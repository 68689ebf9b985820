package publish

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// StartOrphanSweepLoop runs a background loop that removes stored assets
// which no lead magnet record points to. such prefixes are left behind when a
// publish fails halfway through its writes or its record insert.
//
// a prefix is only deleted when it was already orphaned on the previous tick,
// so a publish that is still writing when the tick fires is never swept.
//
// The loop runs until the provided context is canceled (on graceful shutdown).
// It should be launched as a goroutine from the serve command. interval 0 disables it.
func (publisher *Publisher) StartOrphanSweepLoop(sweepContext context.Context, tickInterval time.Duration) {
	if tickInterval <= 0 {
		publisher.logger.Info("orphan sweep disabled")
		return
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	publisher.logger.Info("orphan sweep loop started", "interval", tickInterval.String())

	for {
		select {
		case <-sweepContext.Done():
			publisher.logger.Info("orphan sweep loop stopped")
			return
		case <-ticker.C:
			removed, err := publisher.SweepOrphans(sweepContext)
			if err != nil {
				publisher.logger.Error("orphan sweep failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				publisher.logger.Info("orphaned assets removed", "slugs", removed)
			}
		}
	}
}

// SweepOrphans runs one sweep tick and returns the slugs whose assets were removed.
// slugs seen without a record for the first time only become candidates.
// it is not safe to call concurrently, the loop is its only caller outside tests.
func (publisher *Publisher) SweepOrphans(ctx context.Context) ([]string, error) {
	storedSlugs, err := publisher.assetStore.ListPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored slugs: %w", err)
	}
	recordSlugs, err := publisher.database.ListSlugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list record slugs: %w", err)
	}

	recorded := make(map[string]struct{}, len(recordSlugs))
	for _, slug := range recordSlugs {
		recorded[slug] = struct{}{}
	}

	nextCandidates := map[string]struct{}{}
	var removed []string
	for _, slug := range storedSlugs {
		if _, ok := recorded[slug]; ok {
			continue
		}
		if _, seenBefore := publisher.orphanCandidates[slug]; !seenBefore {
			nextCandidates[slug] = struct{}{}
			continue
		}

		// errors on individual slugs are logged and the slug stays a candidate for the next tick
		if err := publisher.CleanupFiles(ctx, slug); err != nil {
			publisher.logger.Error("failed to remove orphaned assets", "slug", slug, "error", err)
			nextCandidates[slug] = struct{}{}
			continue
		}
		if err := publisher.CleanupLogFile(slug); err != nil {
			publisher.logger.Warn("failed to remove orphaned publish log", "slug", slug, "error", err)
		}
		removed = append(removed, slug)
	}

	publisher.orphanCandidates = nextCandidates
	sort.Strings(removed)
	return removed, nil
}
