package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/netcdf"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

func defaultOptions(out string) options {
	return options{
		out:       out,
		parameter: "sea-mean-deviation",
		bbox:      "11.5,55.5,12.2,56.1",
		start:     "2024-03-01T00:00:00Z",
		steps:     3,
		interval:  6 * time.Hour,
		width:     8,
		height:    6,
	}
}

func TestBuildFixture(t *testing.T) {
	f, err := buildFixture(defaultOptions("x.nc"))
	require.NoError(t, err)

	require.Len(t, f.Times, 3)
	assert.Equal(t, "20240301000000", domain.BandKey(f.Times[0]))
	assert.Equal(t, "20240301120000", domain.BandKey(f.Times[2]))
	assert.Equal(t, domain.BBox{MinLon: 11.5, MinLat: 55.5, MaxLon: 12.2, MaxLat: 56.1}, f.BBox)
}

func TestBuildFixture_Invalid(t *testing.T) {
	for name, mutate := range map[string]func(*options){
		"bbox":     func(o *options) { o.bbox = "1,2,3" },
		"start":    func(o *options) { o.start = "yesterday" },
		"steps":    func(o *options) { o.steps = 0 },
		"interval": func(o *options) { o.interval = time.Millisecond },
	} {
		t.Run(name, func(t *testing.T) {
			o := defaultOptions("x.nc")
			mutate(&o)
			_, err := buildFixture(o)
			assert.Error(t, err)
		})
	}
}

func TestRun_WritesReadableCube(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "cube.nc")

	require.NoError(t, run(defaultOptions(out)))

	ds, err := netcdf.ReadDataset(out, "sea-mean-deviation")
	require.NoError(t, err)
	require.Len(t, ds.Times, 3)
	assert.Equal(t, "20240301060000", domain.BandKey(ds.Times[1]))
}
