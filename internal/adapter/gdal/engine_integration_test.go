//go:build integration

package gdal_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/gdal"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/netcdf"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// TestEngine_FixtureToBands runs a synthetic forecast through the real GDAL
// drivers: NetCDF -> multi-band COG -> one COG per band.
func TestEngine_FixtureToBands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(6 * time.Hour), base.Add(12 * time.Hour)}
	ncPath := filepath.Join(dir, "temp.nc")
	require.NoError(t, netcdf.WriteFixture(ncPath, netcdf.Fixture{
		Variable: "sea-mean-deviation",
		Times:    times,
		BBox:     domain.BBox{MinLon: 11.5, MinLat: 55.5, MaxLon: 12.2, MaxLat: 56.1},
		Width:    16,
		Height:   12,
	}))

	ds, err := netcdf.ReadDataset(ncPath, "sea-mean-deviation")
	require.NoError(t, err)

	engine := gdal.NewEngine(slog.Default())
	cogPath := filepath.Join(dir, "temp.tif")
	require.NoError(t, engine.ToCOG(ctx, ds, cogPath))

	n, err := engine.BandCount(ctx, cogPath)
	require.NoError(t, err)
	assert.Equal(t, len(times), n)

	bandPath := filepath.Join(dir, domain.BandKey(times[1])+".tif")
	require.NoError(t, engine.ExtractBand(ctx, cogPath, bandPath, 2))

	n, err = engine.BandCount(ctx, bandPath)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	info, err := os.Stat(bandPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

// TestEngine_ReprojectNativeGrid warps a Lambert-grid cube to geographic
// coordinates and checks the bands survive through to the COG.
func TestEngine_ReprojectNativeGrid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	ncPath := filepath.Join(dir, "temp.nc")
	require.NoError(t, netcdf.WriteFixture(ncPath, netcdf.Fixture{
		Variable:  "temperature-0m",
		Times:     times,
		BBox:      domain.BBox{MinLon: -150000, MinLat: -100000, MaxLon: 150000, MaxLat: 100000},
		Width:     24,
		Height:    16,
		Projected: true,
	}))

	engine := gdal.NewEngine(slog.Default())
	ds := domain.ForecastDataset{
		Collection: "harmonie_dini_sf",
		Parameter:  "temperature-0m",
		Variable:   "temperature-0m",
		Path:       ncPath,
		Times:      times,
		Reference:  domain.LambertDMI,
	}
	warped := filepath.Join(dir, "reprojected.tif")
	require.NoError(t, engine.Reproject(ctx, ds, warped, domain.LambertDMI, domain.Geographic))

	n, err := engine.BandCount(ctx, warped)
	require.NoError(t, err)
	assert.Equal(t, len(times), n)

	src, err := godal.Open(warped)
	require.NoError(t, err)
	sr := src.SpatialRef()
	assert.True(t, sr.Geographic(), "warped raster must be geographic")
	sr.Close()
	require.NoError(t, src.Close())

	ds.Path, ds.Variable, ds.Reference = warped, "", domain.Geographic
	cogPath := filepath.Join(dir, "temp.tif")
	require.NoError(t, engine.ToCOG(ctx, ds, cogPath))

	n, err = engine.BandCount(ctx, cogPath)
	require.NoError(t, err)
	assert.Equal(t, len(times), n)
}
