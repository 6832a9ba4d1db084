// Package gdal converts forecast arrays to cloud-optimized GeoTIFFs and
// reprojects native model grids, using GDAL through godal.
package gdal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

var registerOnce sync.Once

// Engine runs GDAL translate and warp operations. Every call is synchronous.
type Engine struct {
	logger *slog.Logger
}

// NewEngine registers the GDAL drivers and returns an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	registerOnce.Do(godal.RegisterAll)
	return &Engine{logger: logger}
}

// Reproject warps the dataset's array file from one reference to another and
// writes the result as a multi-band GeoTIFF to dst. The NetCDF driver would
// split the bands into separate variables, so the output is never NetCDF.
func (e *Engine) Reproject(ctx context.Context, ds domain.ForecastDataset, dst string, from, to domain.SpatialRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := godal.Open(netcdfSource(ds.Path, ds.Variable))
	if err != nil {
		return fmt.Errorf("open %s: %w", ds.Path, err)
	}
	defer src.Close()

	e.logger.Debug("warping dataset", "src", ds.Path, "dst", dst, "from", from.Name, "to", to.Name)
	out, err := src.Warp(dst, warpSwitches(from, to))
	if err != nil {
		return fmt.Errorf("warp %s to %s: %w", ds.Path, to.Name, err)
	}
	return closeOutput(out, dst)
}

// ToCOG converts the dataset's array file into one multi-band COG, one band
// per timestep, LZW-compressed and tagged as geographic.
func (e *Engine) ToCOG(ctx context.Context, ds domain.ForecastDataset, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := godal.Open(netcdfSource(ds.Path, ds.Variable))
	if err != nil {
		return fmt.Errorf("open %s: %w", ds.Path, err)
	}
	defer src.Close()

	out, err := src.Translate(dst, cogSwitches())
	if err != nil {
		return fmt.Errorf("translate %s to COG: %w", ds.Path, err)
	}
	return closeOutput(out, dst)
}

// ExtractBand writes the 1-based band of the raster at src into its own COG.
func (e *Engine) ExtractBand(ctx context.Context, src, dst string, band int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := in.Translate(dst, bandSwitches(band))
	if err != nil {
		return fmt.Errorf("extract band %d of %s: %w", band, src, err)
	}
	return closeOutput(out, dst)
}

// BandCount returns the number of bands of the raster at path.
func (e *Engine) BandCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ds, err := godal.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()
	return ds.Structure().NBands, nil
}

func closeOutput(ds *godal.Dataset, path string) error {
	if err := ds.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// netcdfSource addresses one variable of a NetCDF file so GDAL does not have
// to guess between coordinate and data variables.
func netcdfSource(path, variable string) string {
	if variable == "" {
		return path
	}
	return fmt.Sprintf("NETCDF:%q:%s", path, variable)
}

func warpSwitches(from, to domain.SpatialRef) []string {
	return []string{
		"-of", "GTiff",
		"-s_srs", from.Definition,
		"-t_srs", to.Definition,
		"-co", "COMPRESS=LZW",
		"-co", "BIGTIFF=IF_SAFER",
		"-overwrite",
	}
}

func cogSwitches() []string {
	return []string{
		"-of", "COG",
		"-co", "COMPRESS=LZW",
		"-a_srs", domain.Geographic.Definition,
	}
}

func bandSwitches(band int) []string {
	return []string{
		"-of", "COG",
		"-b", strconv.Itoa(band),
		"-co", "COMPRESS=LZW",
		"-co", "BIGTIFF=YES",
	}
}
