// Package source builds the configured dataset row source.
package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/config"
	"github.com/andresuchdata/stockwise/internal/drive"
	"github.com/andresuchdata/stockwise/internal/ingest"
	"github.com/andresuchdata/stockwise/internal/repository/postgres"
	"github.com/andresuchdata/stockwise/internal/service"
	"github.com/andresuchdata/stockwise/internal/storage"
)

const (
	KindFile     = "file"
	KindObject   = "object"
	KindDrive    = "drive"
	KindPostgres = "postgres"
)

// PathLocations maps each table to its configured file path or object key.
func PathLocations(cfg config.SourceConfig) ingest.Locations {
	return ingest.Locations{
		analytics.TableItems:     cfg.ItemsPath,
		analytics.TableCatalog:   cfg.CatalogPath,
		analytics.TableMovements: cfg.MovementsPath,
		analytics.TableSales:     cfg.SalesPath,
	}
}

// DriveLocations maps each table to its Drive file ID.
func DriveLocations(cfg config.DriveConfig) ingest.Locations {
	return ingest.Locations{
		analytics.TableItems:     cfg.ItemsFileID,
		analytics.TableCatalog:   cfg.CatalogFileID,
		analytics.TableMovements: cfg.MovementsFileID,
		analytics.TableSales:     cfg.SalesFileID,
	}
}

// New returns the row source selected by cfg.Source.Kind. The returned close
// function releases any connection the source holds.
func New(ctx context.Context, cfg *config.Config) (service.RowSource, func(), error) {
	noop := func() {}

	switch cfg.Source.Kind {
	case KindFile, "":
		return ingest.NewFileSource(cfg.Source.DataDir, PathLocations(cfg.Source)), noop, nil

	case KindObject:
		store, err := storage.New(cfg.Storage, cfg.Source.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("object source: %w", err)
		}
		return ingest.NewObjectSource(store, PathLocations(cfg.Source)), noop, nil

	case KindDrive:
		svc, err := drive.NewServiceFromFile(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("drive source: %w", err)
		}
		return ingest.NewDriveSource(svc, DriveLocations(cfg.Drive)), noop, nil

	case KindPostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres source: %w", err)
		}
		repo := postgres.NewRowsRepository(db, cfg.Database.Schema)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres source: %w", err)
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database")
			}
		}
		return repo, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
