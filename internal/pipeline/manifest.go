package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
)

// ManifestWriter commits a publication by writing its manifest. It must only
// run after every band has been uploaded.
type ManifestWriter struct {
	store   ObjectStore
	format  domain.ManifestFormat
	dataDir string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManifestWriter creates a ManifestWriter staging the document in dataDir.
// A nil store writes the local file only.
func NewManifestWriter(store ObjectStore, format domain.ManifestFormat, dataDir string, logger *slog.Logger, metrics *observability.Metrics) *ManifestWriter {
	return &ManifestWriter{
		store:   store,
		format:  format,
		dataDir: dataDir,
		logger:  logger,
		metrics: metrics,
	}
}

// ManifestResult locates a written manifest.
type ManifestResult struct {
	Path string // local file
	Key  string // object key, empty when not uploaded
	URL  string // public address, empty when not uploaded
}

// Write encodes bands, writes the local file and uploads it over any prior
// manifest of target.
func (w *ManifestWriter) Write(ctx context.Context, bands []domain.PublishedBand, target domain.PublicationTarget) (ManifestResult, error) {
	data, err := domain.EncodeManifest(bands, w.format)
	if err != nil {
		return ManifestResult{}, err
	}
	path := w.pathFor(target)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ManifestResult{}, fmt.Errorf("write manifest: %w", err)
	}
	res := ManifestResult{Path: path}
	if w.store == nil {
		w.logger.Info("manifest written locally", "path", path, "entries", len(bands))
		return res, nil
	}

	key := target.ManifestKey()
	n, err := w.store.PutFile(ctx, path, key, domain.ContentTypeJSON)
	if err != nil {
		return res, fmt.Errorf("upload manifest: %w", err)
	}
	w.metrics.BytesUploaded.Add(float64(n))
	res.Key = key
	res.URL = w.store.PublicURL(key)
	w.logger.Info("manifest uploaded", "key", key, "entries", len(bands))
	return res, nil
}

func (w *ManifestWriter) pathFor(target domain.PublicationTarget) string {
	if w.store == nil {
		return filepath.Join(localOutputDir(w.dataDir, target), domain.ManifestName)
	}
	return filepath.Join(w.dataDir, domain.ManifestName)
}
