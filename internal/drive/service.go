package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	mimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV         = "text/csv"
)

type Service struct {
	srv *drive.Service
}

// NewService authenticates with a service account key.
func NewService(ctx context.Context, credentialsJSON []byte) (*Service, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

// NewServiceFromFile reads the service account key from path.
func NewServiceFromFile(ctx context.Context, path string) (*Service, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials %s: %w", path, err)
	}
	return NewService(ctx, raw)
}

// Fetch downloads a file. Native Google Sheets are exported as XLSX. The
// returned name always carries an extension the spreadsheet reader knows.
func (s *Service) Fetch(ctx context.Context, fileID string) (string, []byte, error) {
	meta, err := s.srv.Files.Get(fileID).Fields("id", "name", "mimeType").Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to get file %s: %w", fileID, err)
	}

	var body io.ReadCloser
	if meta.MimeType == mimeGoogleSheet {
		resp, err := s.srv.Files.Export(fileID, mimeXLSX).Context(ctx).Download()
		if err != nil {
			return "", nil, fmt.Errorf("unable to export file %s: %w", fileID, err)
		}
		body = resp.Body
	} else {
		resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return "", nil, fmt.Errorf("unable to download file %s: %w", fileID, err)
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", nil, fmt.Errorf("unable to read file %s: %w", fileID, err)
	}
	return fileName(meta.Name, meta.MimeType), data, nil
}

func fileName(name, mimeType string) string {
	if filepath.Ext(name) != "" && mimeType != mimeGoogleSheet {
		return name
	}
	switch {
	case mimeType == mimeCSV || strings.HasPrefix(mimeType, "text/"):
		return name + ".csv"
	default:
		return name + ".xlsx"
	}
}
