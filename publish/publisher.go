package publish

// publisher.go turns an uploaded ZIP into a live lead magnet.
// it is the bridge between the HTTP handler / CLI (which hand over the raw bytes)
// and the storage layer (asset store for the files, database for the record).
// unlike a background build, publishing is synchronous: the caller gets the final
// result (or the reason it failed) in the same request.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/archive"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/assets"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/util"
)

var (
	// ErrInvalidInput is returned when the name is empty or the bytes are not a ZIP at all.
	ErrInvalidInput = errors.New("invalid publish input")

	// ErrInvalidArchive wraps the archive package reason (corrupt, unsafe paths, no index.html, too large).
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrSlugCollision is returned when the derived slug is already in use.
	ErrSlugCollision = errors.New("a lead magnet with this name already exists")

	// ErrStorage covers every failure of the asset store or the record store during a publish.
	ErrStorage = errors.New("storage failure")

	// ErrNameRequired and ErrNotZip are the two ErrInvalidInput cases
	ErrNameRequired = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrNotZip       = fmt.Errorf("%w: file must be a ZIP archive", ErrInvalidInput)
)

const (
	defaultUploadConcurrency = 8
	defaultWriteAttempts     = 3
	defaultWriteRetryDelay   = 200 * time.Millisecond
)

// Publisher holds the dependencies needed to publish and tear down lead magnets.
// constructed once in cmd and shared by the HTTP handlers, the CLI and the orphan sweep.
// each Publish() call runs independently, the only cross-call state is the orphan sweep's
// candidate set.
type Publisher struct {
	database   *db.Database
	assetStore assets.Store
	logger     *slog.Logger

	// logRoot is where the per lead magnet publish logs go: <logRoot>/<slug>.log
	// empty disables the log files, slog still gets every line.
	logRoot string

	uploadConcurrency    int
	writeAttempts        uint
	writeRetryDelay      time.Duration
	maxDecompressedBytes int64

	// orphanCandidates holds the store slugs that had no record on the previous sweep tick.
	orphanCandidates map[string]struct{}
}

// PublisherConfig groups the configuration values Publisher needs.
// mirrors the relevant fields from config.Config so the publish package
// does not import the config package.
type PublisherConfig struct {
	LogRoot              string
	UploadConcurrency    int
	WriteAttempts        uint
	WriteRetryDelay      time.Duration
	MaxDecompressedBytes int64
}

// NewPublisher constructs a Publisher. zero config values fall back to defaults.
func NewPublisher(
	database *db.Database,
	assetStore assets.Store,
	logger *slog.Logger,
	config PublisherConfig,
) *Publisher {
	publisher := &Publisher{
		database:             database,
		assetStore:           assetStore,
		logger:               logger,
		logRoot:              config.LogRoot,
		uploadConcurrency:    config.UploadConcurrency,
		writeAttempts:        config.WriteAttempts,
		writeRetryDelay:      config.WriteRetryDelay,
		maxDecompressedBytes: config.MaxDecompressedBytes,
		orphanCandidates:     map[string]struct{}{},
	}
	if publisher.uploadConcurrency <= 0 {
		publisher.uploadConcurrency = defaultUploadConcurrency
	}
	// retry.Attempts(0) would never call the function at all
	if publisher.writeAttempts == 0 {
		publisher.writeAttempts = defaultWriteAttempts
	}
	if publisher.writeRetryDelay <= 0 {
		publisher.writeRetryDelay = defaultWriteRetryDelay
	}
	if publisher.maxDecompressedBytes <= 0 {
		publisher.maxDecompressedBytes = archive.DefaultDecompressionLimit
	}
	return publisher
}

// Request is one publish call: the raw archive plus the admin supplied metadata.
type Request struct {
	ArchiveBytes []byte
	Name         string
	Description  string
}

// Result is what the caller reports back once the lead magnet is live.
type Result struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Publish runs the full publish pipeline for one archive.
//
// pipeline steps:
//   - validate the name and sniff the ZIP signature
//   - derive the slug (and the record id it may fall back to)
//   - normalize the archive (wrapper folder, junk entries, path safety, index.html)
//   - classify every entry's content type
//   - check the slug against the asset store and the record store
//   - write every entry to the asset store, concurrently, with retries
//   - insert the lead magnet record as active
//
// nothing is written before the collision check, so a rejected archive leaves no trace.
// a failure during the writes leaves the written keys in place, the orphan sweep collects them.
func (publisher *Publisher) Publish(ctx context.Context, request Request) (*Result, error) {
	// ===== validate input
	name := util.PlainText(request.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !archive.LooksLikeZip(request.ArchiveBytes) {
		return nil, ErrNotZip
	}

	// ===== derive slug
	// the record id is generated first so a name without any slug characters
	// (eg, "!!!" or a non latin title) falls back to a prefix of its own id.
	recordID := uuid.New().String()
	slug := util.SlugOrFallback(name, recordID)

	publishLog := publisher.newPublishLogger(slug)
	defer publishLog.close()
	publishLog.logInfo("publish started: name=%q archive_bytes=%d", name, len(request.ArchiveBytes))

	// ===== normalize archive
	entries, err := archive.NormalizeWithLimit(request.ArchiveBytes, publisher.maxDecompressedBytes)
	if err != nil {
		publishLog.logFailure("archive rejected", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	publishLog.logInfo("archive normalized: %d files", len(entries))

	// ===== classify
	files := make([]storedFile, 0, len(entries))
	for _, entry := range entries {
		files = append(files, storedFile{
			key:         assets.Key(slug, entry.Path),
			data:        entry.Data,
			contentType: assets.ContentTypeFor(entry.Path),
		})
	}

	// ===== collision check
	if err := publisher.checkSlugAvailable(ctx, slug); err != nil {
		publishLog.logFailure("slug unavailable", err)
		return nil, err
	}

	// only now that the slug is known to be free does the publish get its own log file,
	// a rejected duplicate must not append to the existing lead magnet's log.
	publishLog.attachFile(publisher.logRoot)

	// ===== write assets
	// the writes must not be abandoned halfway because the uploader closed the tab,
	// so they run on a context that keeps the request's values but not its cancellation.
	writeContext := context.WithoutCancel(ctx)
	if err := publisher.writeFiles(writeContext, files, publishLog); err != nil {
		publishLog.logFailure("asset write failed", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	publishLog.logInfo("assets written: %d files under %s", len(files), assets.SlugPrefix(slug))

	// ===== insert record
	var description *string
	if cleanDescription := util.PlainText(request.Description); cleanDescription != "" {
		description = &cleanDescription
	}
	leadMagnet := &models.LeadMagnet{
		ID:          recordID,
		Slug:        slug,
		Name:        name,
		Description: description,
		Status:      models.StatusActive,
	}
	if err := publisher.database.InsertLeadMagnet(writeContext, leadMagnet); err != nil {
		publishLog.logFailure("record insert failed", err)
		// two uploads of the same name can both pass the collision check,
		// the UNIQUE constraint decides which one wins.
		if errors.Is(err, db.ErrSlugTaken) {
			return nil, fmt.Errorf("%w: %q", ErrSlugCollision, slug)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	publishLog.logInfo("publish complete: id=%s url=%s", leadMagnet.ID, leadMagnet.URL())

	return &Result{
		ID:   leadMagnet.ID,
		Slug: leadMagnet.Slug,
		Name: leadMagnet.Name,
		URL:  leadMagnet.URL(),
	}, nil
}

// storedFile is one classified archive entry, ready to be written.
type storedFile struct {
	key         string
	data        []byte
	contentType string
}

// checkSlugAvailable rejects a slug that already has a root document in the asset store
// or a record in the database. either one means the namespace is taken.
func (publisher *Publisher) checkSlugAvailable(ctx context.Context, slug string) error {
	rootExists, err := publisher.assetStore.Exists(ctx, assets.Key(slug, "index.html"))
	if err != nil {
		return fmt.Errorf("%w: failed to check existing assets: %w", ErrStorage, err)
	}
	if rootExists {
		return fmt.Errorf("%w: %q", ErrSlugCollision, slug)
	}

	_, err = publisher.database.GetLeadMagnetBySlug(ctx, slug)
	if err == nil {
		return fmt.Errorf("%w: %q", ErrSlugCollision, slug)
	}
	if !errors.Is(err, db.ErrRecordNotFound) {
		return fmt.Errorf("%w: failed to check existing record: %w", ErrStorage, err)
	}
	return nil
}

// writeFiles puts every file into the asset store with at most uploadConcurrency
// writes in flight. the first failure cancels the writes that have not started yet.
func (publisher *Publisher) writeFiles(ctx context.Context, files []storedFile, publishLog *publishLogger) error {
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(publisher.uploadConcurrency)

	for _, file := range files {
		group.Go(func() error {
			return publisher.putWithRetry(groupContext, file, publishLog)
		})
	}
	return group.Wait()
}

// putWithRetry retries a single put. object stores (R2/S3) return sporadic 5xx
// and connection resets under load, a short retry absorbs them.
func (publisher *Publisher) putWithRetry(ctx context.Context, file storedFile, publishLog *publishLogger) error {
	err := retry.Do(
		func() error {
			return publisher.assetStore.Put(ctx, file.key, file.data, file.contentType)
		},
		retry.Context(ctx),
		retry.Attempts(publisher.writeAttempts),
		retry.Delay(publisher.writeRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			publishLog.logInfo("retrying put %s (attempt %d): %v", file.key, attempt+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", file.key, err)
	}
	return nil
}
