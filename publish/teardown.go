package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/assets"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
)

// Teardown removes everything a lead magnet owns, in this order:
//   - the stored assets under <slug>/
//   - the publish log file (non-fatal)
//   - the submissions and the record, in one transaction
//
// the record goes last: if anything before it fails the lead magnet is still listed
// and the admin can simply delete it again.
// used by DELETE /api/lead-magnets/{id}.
func (publisher *Publisher) Teardown(ctx context.Context, leadMagnet *models.LeadMagnet) error {
	if err := publisher.CleanupFiles(ctx, leadMagnet.Slug); err != nil {
		return err
	}

	if err := publisher.CleanupLogFile(leadMagnet.Slug); err != nil {
		publisher.logger.Warn("failed to remove publish log file",
			"slug", leadMagnet.Slug,
			"error", err,
		)
	}

	if err := publisher.database.DeleteLeadMagnet(ctx, leadMagnet.ID); err != nil {
		return fmt.Errorf("failed to delete lead magnet record: %w", err)
	}

	publisher.logger.Info("lead magnet torn down",
		"id", leadMagnet.ID,
		"slug", leadMagnet.Slug,
	)
	return nil
}

// CleanupFiles removes every stored asset under <slug>/.
// deleting a prefix that holds nothing is not an error, which makes this idempotent.
func (publisher *Publisher) CleanupFiles(ctx context.Context, slug string) error {
	prefix := assets.SlugPrefix(slug)
	if err := publisher.assetStore.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("%w: failed to remove assets under %q: %w", ErrStorage, prefix, err)
	}
	publisher.logger.Info("lead magnet assets removed", "prefix", prefix)
	return nil
}

// CleanupLogFile removes <logRoot>/<slug>.log. a missing file is not a problem.
func (publisher *Publisher) CleanupLogFile(slug string) error {
	if publisher.logRoot == "" {
		return nil
	}
	logPath := filepath.Join(publisher.logRoot, slug+".log")
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove log file %q: %w", logPath, err)
	}
	return nil
}
