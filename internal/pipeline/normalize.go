package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// Normalizer makes sure every dataset reaches conversion in geographic
// coordinates. Collections the policy marks native are tagged with the
// injected native reference and warped; all others pass through unchanged.
type Normalizer struct {
	policy      domain.ProjectionPolicy
	native      domain.SpatialRef
	reprojector Reprojector
	dst         string
	logger      *slog.Logger
}

// NewNormalizer creates a Normalizer writing reprojected files into dataDir.
func NewNormalizer(policy domain.ProjectionPolicy, native domain.SpatialRef, r Reprojector, dataDir string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		policy:      policy,
		native:      native,
		reprojector: r,
		dst:         filepath.Join(dataDir, ReprojectedFile),
		logger:      logger,
	}
}

// Strategy returns how the collection's grid is delivered.
func (n *Normalizer) Strategy(collection string) domain.Strategy {
	return n.policy.StrategyFor(collection)
}

// Normalize returns ds in geographic coordinates. For native collections the
// returned dataset points at the reprojected file.
func (n *Normalizer) Normalize(ctx context.Context, ds domain.ForecastDataset) (domain.ForecastDataset, error) {
	if n.Strategy(ds.Collection) != domain.StrategyNative {
		return ds, nil
	}
	if n.reprojector == nil {
		return domain.ForecastDataset{}, errors.New("native collection requires a reprojector")
	}

	ds.Reference = n.native
	if err := n.reprojector.Reproject(ctx, ds, n.dst, n.native, domain.Geographic); err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("reproject %s: %w", ds.Collection, err)
	}
	n.logger.Info("reprojected dataset",
		"collection", ds.Collection, "parameter", ds.Parameter, "from", n.native.Name, "to", domain.Geographic.Name)

	// The warp output is a plain multi-band raster, so it is opened whole.
	ds.Path = n.dst
	ds.Variable = ""
	ds.Reference = domain.Geographic
	return ds, nil
}
