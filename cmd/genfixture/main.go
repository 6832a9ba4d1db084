// Command genfixture writes a deterministic synthetic forecast cube for local
// dry runs and integration tests. Combined with a stub DMI_API_HOST and
// UPLOAD_TO_BUCKET=false it exercises the whole pipeline offline.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -out data/mock/dkss_if_sea-mean-deviation.nc \
//	  -parameter sea-mean-deviation -start 2024-03-01T00:00:00Z -steps 3 -interval 6h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/netcdf"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

type options struct {
	out       string
	parameter string
	bbox      string
	start     string
	steps     int
	interval  time.Duration
	width     int
	height    int
}

func main() {
	var o options
	flag.StringVar(&o.out, "out", "", "output NetCDF path")
	flag.StringVar(&o.parameter, "parameter", "sea-mean-deviation", "data variable name")
	flag.StringVar(&o.bbox, "bbox", "11.5,55.5,12.2,56.1", "minLon,minLat,maxLon,maxLat")
	flag.StringVar(&o.start, "start", "2024-03-01T00:00:00Z", "first timestep (RFC 3339)")
	flag.IntVar(&o.steps, "steps", 3, "number of timesteps")
	flag.DurationVar(&o.interval, "interval", 6*time.Hour, "spacing between timesteps")
	flag.IntVar(&o.width, "width", 64, "grid columns")
	flag.IntVar(&o.height, "height", 48, "grid rows")
	flag.Parse()

	if o.out == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	f, err := buildFixture(o)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(o.out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := netcdf.WriteFixture(o.out, f); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}
	log.Printf("%s: %d timesteps %s..%s, %dx%d grid",
		o.out, len(f.Times), domain.BandKey(f.Times[0]), domain.BandKey(f.Times[len(f.Times)-1]), f.Width, f.Height)
	return nil
}

func buildFixture(o options) (netcdf.Fixture, error) {
	bbox, err := domain.ParseBBox(o.bbox)
	if err != nil {
		return netcdf.Fixture{}, err
	}
	start, err := time.Parse(time.RFC3339, o.start)
	if err != nil {
		return netcdf.Fixture{}, fmt.Errorf("parse -start: %w", err)
	}
	if o.steps < 1 {
		return netcdf.Fixture{}, fmt.Errorf("-steps must be at least 1, got %d", o.steps)
	}
	if o.interval < time.Second {
		return netcdf.Fixture{}, fmt.Errorf("-interval must be at least 1s, got %s", o.interval)
	}

	times := make([]time.Time, o.steps)
	for i := range times {
		times[i] = start.UTC().Add(time.Duration(i) * o.interval)
	}
	return netcdf.Fixture{
		Variable: o.parameter,
		Times:    times,
		BBox:     bbox,
		Width:    o.width,
		Height:   o.height,
	}, nil
}
