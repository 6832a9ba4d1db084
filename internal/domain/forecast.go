package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// FormatNetCDF is the response format token. The upstream API is case-sensitive.
	FormatNetCDF = "NetCDF"

	// CRSNative asks the API for the model's untransformed grid.
	CRSNative = "native"
	// CRSGeographic asks the API for WGS-84 longitude/latitude.
	CRSGeographic = "crs84"

	bandKeyLayout   = "20060102150405"
	timestampLayout = "2006-01-02T15:04:05"
)

var (
	// ErrEmptyTimeAxis is returned when a dataset carries no timesteps.
	ErrEmptyTimeAxis = errors.New("dataset has an empty time axis")
	// ErrUnorderedTimes is returned when the time axis is not strictly ascending.
	ErrUnorderedTimes = errors.New("dataset time axis is not strictly ascending")
)

// BBox is a geographic bounding box in decimal degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want 4 comma-separated values, got %d", s, len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: value %d: %w", s, i+1, err)
		}
		v[i] = f
	}
	b := BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return BBox{}, fmt.Errorf("bbox %q: min must be less than max", s)
	}
	return b, nil
}

// String renders the box the way the upstream query expects it.
func (b BBox) String() string {
	vals := []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ForecastRequest identifies one upstream dataset: a parameter of a collection
// clipped to a bounding box.
type ForecastRequest struct {
	Collection string
	Parameter  string
	BBox       BBox
	Format     string
	CRS        string // CRSNative or CRSGeographic
}

// ForecastDataset is a decoded (time, y, x) grid. The grid values live in the
// local array file at Path; Times is its time axis in ascending order.
type ForecastDataset struct {
	Collection string
	Parameter  string
	Variable   string
	Path       string
	Times      []time.Time
	Reference  SpatialRef
}

// Validate checks that the time axis is non-empty and strictly ascending at
// whole-second precision, which makes every band key unique.
func (d ForecastDataset) Validate() error {
	if len(d.Times) == 0 {
		return ErrEmptyTimeAxis
	}
	for i := 1; i < len(d.Times); i++ {
		prev := d.Times[i-1].Truncate(time.Second)
		cur := d.Times[i].Truncate(time.Second)
		if !cur.After(prev) {
			return fmt.Errorf("%w: %s follows %s", ErrUnorderedTimes,
				FormatTimestamp(d.Times[i]), FormatTimestamp(d.Times[i-1]))
		}
	}
	return nil
}

// BandKey returns the compact, sortable object key for a timestep.
func BandKey(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(bandKeyLayout)
}

// FormatTimestamp renders a timestep as ISO-8601 without zone or fraction,
// as listed in legacy manifests.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timestampLayout)
}

// PublishedBand is one timestep extracted from a dataset.
type PublishedBand struct {
	Index     int // 0-based; the raster band number is Index+1
	Key       string
	Time      time.Time
	LocalPath string
	Address   string // public URL when uploaded, otherwise LocalPath
}

// Band returns the 1-based raster band number.
func (b PublishedBand) Band() int {
	return b.Index + 1
}
