package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/storage"
)

// ErrTableNotConfigured is returned for a required table with no location.
var ErrTableNotConfigured = errors.New("ingest: table not configured")

// Locations maps each table to a file path, object key or file ID.
// An empty location means the table is not provided.
type Locations map[analytics.Table]string

func (l Locations) lookup(table analytics.Table) (string, error) {
	loc := l[table]
	if loc == "" && !table.Optional() {
		return "", fmt.Errorf("%w: %s", ErrTableNotConfigured, table)
	}
	return loc, nil
}

// missingOptional turns a not-found error on an optional table into an
// empty row set.
func missingOptional(table analytics.Table, loc string, err error) ([]analytics.Row, error) {
	if table.Optional() {
		log.Warn().Str("table", string(table)).Str("location", loc).Msg("optional table not found, using empty rows")
		return []analytics.Row{}, nil
	}
	return nil, fmt.Errorf("load %s from %s: %w", table, loc, err)
}

// FileSource reads tables from local files.
type FileSource struct {
	dir       string
	locations Locations
}

// NewFileSource resolves relative locations against dir.
func NewFileSource(dir string, locations Locations) *FileSource {
	return &FileSource{dir: dir, locations: locations}
}

func (s *FileSource) Name() string { return "file:" + s.dir }

func (s *FileSource) LoadTable(ctx context.Context, table analytics.Table) ([]analytics.Row, error) {
	loc, err := s.locations.lookup(table)
	if err != nil || loc == "" {
		return []analytics.Row{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := loc
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return missingOptional(table, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadRows(path, data)
}

// ObjectSource reads tables from object storage.
type ObjectSource struct {
	store     storage.ObjectStorage
	locations Locations
}

func NewObjectSource(store storage.ObjectStorage, locations Locations) *ObjectSource {
	return &ObjectSource{store: store, locations: locations}
}

func (s *ObjectSource) Name() string { return "object" }

func (s *ObjectSource) LoadTable(ctx context.Context, table analytics.Table) ([]analytics.Row, error) {
	key, err := s.locations.lookup(table)
	if err != nil || key == "" {
		return []analytics.Row{}, err
	}

	data, err := s.store.GetObject(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return missingOptional(table, key, err)
	}
	if err != nil {
		return nil, err
	}
	return ReadRows(key, data)
}

// DriveFetcher downloads a Drive file, returning its name and content.
type DriveFetcher interface {
	Fetch(ctx context.Context, fileID string) (name string, data []byte, err error)
}

// DriveSource reads tables from Google Drive files identified by file ID.
type DriveSource struct {
	drive     DriveFetcher
	locations Locations
}

func NewDriveSource(drive DriveFetcher, locations Locations) *DriveSource {
	return &DriveSource{drive: drive, locations: locations}
}

func (s *DriveSource) Name() string { return "drive" }

func (s *DriveSource) LoadTable(ctx context.Context, table analytics.Table) ([]analytics.Row, error) {
	fileID, err := s.locations.lookup(table)
	if err != nil || fileID == "" {
		return []analytics.Row{}, err
	}

	name, data, err := s.drive.Fetch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load %s from drive file %s: %w", table, fileID, err)
	}
	return ReadRows(name, data)
}
