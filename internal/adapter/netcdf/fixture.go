package netcdf

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// Fixture describes a synthetic forecast file.
type Fixture struct {
	Variable string
	Times    []time.Time
	BBox     domain.BBox
	Width    int
	Height   int
	// Projected lays the grid out on x/y axes in metres with no grid mapping,
	// the way native model cubes arrive. BBox then holds the metre extent.
	Projected bool
}

// WriteFixture writes f as a NetCDF-3 file laid out like a DMI crs84 cube:
// time(time) in seconds since the Unix epoch, lat(lat), lon(lon) and
// variable(time, lat, lon). Values are a deterministic smooth field.
func WriteFixture(path string, f Fixture) (err error) {
	if f.Width < 1 || f.Height < 1 {
		return errors.New("fixture grid must be at least 1x1")
	}
	if len(f.Times) == 0 {
		return domain.ErrEmptyTimeAxis
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("open fixture writer: %w", err)
	}
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close fixture: %w", cerr)
		}
	}()

	epoch := time.Unix(0, 0).UTC()
	offsets := make([]float64, len(f.Times))
	for i, t := range f.Times {
		offsets[i] = t.Sub(epoch).Seconds()
	}

	rows := axis(f.BBox.MinLat, f.BBox.MaxLat, f.Height)
	cols := axis(f.BBox.MinLon, f.BBox.MaxLon, f.Width)

	values := make([][][]float32, len(f.Times))
	for ti := range values {
		values[ti] = make([][]float32, f.Height)
		for y := range values[ti] {
			values[ti][y] = make([]float32, f.Width)
			for x := range values[ti][y] {
				values[ti][y][x] = float32(math.Sin(float64(ti)/4+float64(x)/7) * math.Cos(float64(y)/5))
			}
		}
	}

	vars := []struct {
		name  string
		value api.Variable
	}{
		{TimeVar, variable(offsets, []string{TimeVar}, map[string]any{"units": "seconds since 1970-01-01 00:00:00", "standard_name": "time"})},
		{"lat", variable(rows, []string{"lat"}, map[string]any{"units": "degrees_north", "standard_name": "latitude"})},
		{"lon", variable(cols, []string{"lon"}, map[string]any{"units": "degrees_east", "standard_name": "longitude"})},
		{f.Variable, variable(values, []string{TimeVar, "lat", "lon"}, map[string]any{"grid_mapping": "crs"})},
	}
	if f.Projected {
		vars[1].name, vars[1].value = "y", variable(rows, []string{"y"}, map[string]any{"units": "m", "standard_name": "projection_y_coordinate"})
		vars[2].name, vars[2].value = "x", variable(cols, []string{"x"}, map[string]any{"units": "m", "standard_name": "projection_x_coordinate"})
		vars[3].value = variable(values, []string{TimeVar, "y", "x"}, map[string]any{"units": "K"})
	}
	for _, v := range vars {
		if err := w.AddVar(v.name, v.value); err != nil {
			return fmt.Errorf("add variable %s: %w", v.name, err)
		}
	}
	return nil
}

func variable(values any, dims []string, attrs map[string]any) api.Variable {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	om, err := util.NewOrderedMap(keys, attrs)
	if err != nil {
		// keys are taken from attrs, so they always match.
		panic(err)
	}
	return api.Variable{Values: values, Dimensions: dims, Attributes: om}
}

func axis(lower, upper float64, n int) []float32 {
	out := make([]float32, n)
	if n == 1 {
		out[0] = float32((lower + upper) / 2)
		return out
	}
	step := (upper - lower) / float64(n-1)
	for i := range out {
		out[i] = float32(lower + float64(i)*step)
	}
	return out
}
