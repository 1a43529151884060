package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store writes documents into dir under unique names.
type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

var _ service.DocumentStorage = (*Store)(nil)

// NewStore creates dir if needed and returns a Store publishing files under
// cfg.BaseURL.
func NewStore(cfg config.DocumentsConfig, log *slog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("documents dir is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid documents base url %q", cfg.BaseURL)
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating documents dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  log.With(slog.String("component", "document_store")),
	}, nil
}

// Upload implements service.DocumentStorage.
func (s *Store) Upload(ctx context.Context, doc service.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(doc.Data) == 0 {
		return "", fmt.Errorf("document %q is empty", doc.Name)
	}

	name := uuid.NewString() + "-" + safeName(doc.Name)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, doc.Data, 0o640); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("document stored",
		slog.String("name", name),
		slog.Int("bytes", len(doc.Data)),
		slog.String("content_type", doc.ContentType))
	return s.baseURL + "/" + url.PathEscape(name), nil
}

// safeName keeps the base name of name with anything outside
// [A-Za-z0-9._-] replaced.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "document"
	}
	return base
}
