package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/assets"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/config"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
)

// application is what both commands share: config, logger, the two stores and the publisher.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	database   *db.Database
	assetStore assets.Store
	publisher  *publish.Publisher
}

// bootstrap loads the configuration and opens everything that talks to storage.
// the caller must call close() once done.
func bootstrap(ctx context.Context) (*application, error) {
	appConfig, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := appConfig.NewLogger()

	database, err := openDatabase(ctx, appConfig, logger)
	if err != nil {
		return nil, err
	}

	assetStore, err := openAssetStore(appConfig, logger)
	if err != nil {
		database.CloseDatabase()
		return nil, err
	}

	publisher := publish.NewPublisher(database, assetStore, logger, publish.PublisherConfig{
		LogRoot:              appConfig.LogRoot,
		UploadConcurrency:    appConfig.UploadConcurrency,
		WriteAttempts:        appConfig.StorageWriteAttempts,
		MaxDecompressedBytes: appConfig.MaxDecompressedBytes,
	})

	return &application{
		config:     appConfig,
		logger:     logger,
		database:   database,
		assetStore: assetStore,
		publisher:  publisher,
	}, nil
}

func (app *application) close() {
	if err := app.database.CloseDatabase(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}

// openDatabase picks the record store driver from DB_DRIVER.
func openDatabase(ctx context.Context, appConfig *config.Config, logger *slog.Logger) (*db.Database, error) {
	switch appConfig.DBDriver {
	case config.DBDriverPostgres:
		return db.OpenPostgresDatabase(ctx, appConfig.DatabaseURL, logger)
	case config.DBDriverSQLite:
		return db.OpenDatabase(appConfig.DBPath, logger)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", appConfig.DBDriver)
	}
}

// openAssetStore picks the asset store backend from STORAGE_BACKEND.
func openAssetStore(appConfig *config.Config, logger *slog.Logger) (assets.Store, error) {
	switch appConfig.StorageBackend {
	case config.StorageBackendS3:
		return assets.NewS3Store(assets.S3Config{
			Bucket:          appConfig.S3Bucket,
			Endpoint:        appConfig.S3Endpoint,
			Region:          appConfig.S3Region,
			AccessKeyID:     appConfig.S3AccessKeyID,
			SecretAccessKey: appConfig.S3SecretAccessKey,
		}, logger)
	case config.StorageBackendFilesystem:
		return assets.NewOsFilesystemStore(appConfig.AssetRoot, logger)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", appConfig.StorageBackend)
	}
}
