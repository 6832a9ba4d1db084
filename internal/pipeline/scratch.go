package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
)

// Intermediate files in the data directory. They are shared by every
// parameter and overwritten by each run in turn.
const (
	ArrayFile       = "temp.nc"
	ReprojectedFile = "reprojected.tif"
	RasterFile      = "temp.tif"
)

// localOutputDir holds the bands and manifest of target when uploading is
// disabled, so parameters never overwrite each other's outputs.
func localOutputDir(dataDir string, target domain.PublicationTarget) string {
	return filepath.Join(dataDir, target.Collection, target.Parameter)
}

// resetDir empties dir, creating it when missing.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// scratch tracks the local files one parameter run produced so they can be
// removed on every exit path.
type scratch struct {
	paths   []string
	seen    map[string]bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newScratch(logger *slog.Logger, metrics *observability.Metrics) *scratch {
	return &scratch{seen: make(map[string]bool), logger: logger, metrics: metrics}
}

func (s *scratch) track(paths ...string) {
	for _, p := range paths {
		if p == "" || s.seen[p] {
			continue
		}
		s.seen[p] = true
		s.paths = append(s.paths, p)
	}
}

// remove deletes every tracked file. Missing files are ignored and other
// failures are only logged. Calling it again is a no-op.
func (s *scratch) remove() {
	for _, p := range s.paths {
		err := os.Remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		s.logger.Warn("failed to remove intermediate file", "path", p, "error", err)
		s.metrics.CleanupErrors.Inc()
	}
	s.paths = nil
	clear(s.seen)
}
