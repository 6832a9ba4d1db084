package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
)

// progressEvery is the band cadence of progress log lines.
const progressEvery = 10

// Publisher turns a geographic dataset into one COG per timestep and uploads
// each of them. A nil store publishes locally only.
type Publisher struct {
	engine  RasterEngine
	store   ObjectStore
	dataDir string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Publisher working in dataDir.
func NewPublisher(engine RasterEngine, store ObjectStore, dataDir string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		engine:  engine,
		store:   store,
		dataDir: dataDir,
		logger:  logger,
		metrics: metrics,
	}
}

// Convert writes the multi-band COG for ds and returns its path. The raster
// must carry exactly one band per timestep.
func (p *Publisher) Convert(ctx context.Context, ds domain.ForecastDataset) (string, error) {
	if !ds.Reference.IsGeographic() {
		return "", fmt.Errorf("convert %s: dataset reference %q is not geographic", ds.Parameter, ds.Reference.Name)
	}
	dst := filepath.Join(p.dataDir, RasterFile)
	if err := p.engine.ToCOG(ctx, ds, dst); err != nil {
		return "", fmt.Errorf("convert %s: %w", ds.Parameter, err)
	}
	n, err := p.engine.BandCount(ctx, dst)
	if err != nil {
		return dst, fmt.Errorf("inspect %s: %w", dst, err)
	}
	if n != len(ds.Times) {
		return dst, fmt.Errorf("raster %s has %d bands, dataset has %d timesteps", dst, n, len(ds.Times))
	}
	return dst, nil
}

// Publish extracts every band of raster in ascending time order and uploads
// it under target. The first error stops the sequence; the bands completed so
// far are returned with it, always a prefix of the forecast timeline.
func (p *Publisher) Publish(ctx context.Context, ds domain.ForecastDataset, raster string, target domain.PublicationTarget) ([]domain.PublishedBand, error) {
	bands := make([]domain.PublishedBand, 0, len(ds.Times))
	for i, t := range ds.Times {
		band, err := p.publishBand(ctx, raster, target, i, t)
		if err != nil {
			return bands, err
		}
		bands = append(bands, band)
		p.metrics.BandsPublished.WithLabelValues(target.Collection, target.Parameter).Inc()

		if n := len(bands); n%progressEvery == 0 || n == len(ds.Times) {
			p.logger.Info("publishing bands",
				"collection", target.Collection, "parameter", target.Parameter,
				"done", n, "total", len(ds.Times))
		}
	}
	return bands, nil
}

func (p *Publisher) publishBand(ctx context.Context, raster string, target domain.PublicationTarget, index int, t time.Time) (domain.PublishedBand, error) {
	key := domain.BandKey(t)
	band := domain.PublishedBand{
		Index:     index,
		Key:       key,
		Time:      t,
		LocalPath: p.bandPath(target, key),
	}
	band.Address = band.LocalPath

	if err := p.engine.ExtractBand(ctx, raster, band.LocalPath, band.Band()); err != nil {
		return band, fmt.Errorf("band %d (%s): %w", band.Band(), key, err)
	}
	if p.store == nil {
		return band, nil
	}

	objectKey := target.BandObjectKey(key)
	n, err := p.store.PutFile(ctx, band.LocalPath, objectKey, domain.ContentTypeGeoTIFF)
	if err != nil {
		return band, fmt.Errorf("band %d (%s): %w", band.Band(), key, err)
	}
	p.metrics.BytesUploaded.Add(float64(n))
	band.Address = p.store.PublicURL(objectKey)
	p.logger.Debug("band uploaded", "band", band.Band(), "key", objectKey)
	return band, nil
}

// bandPath stages uploaded bands in the data directory. Local-only bands are
// outputs and live in the target's own directory.
func (p *Publisher) bandPath(target domain.PublicationTarget, key string) string {
	if p.store == nil {
		return filepath.Join(localOutputDir(p.dataDir, target), key+".tif")
	}
	return filepath.Join(p.dataDir, key+".tif")
}
