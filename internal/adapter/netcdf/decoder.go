// Package netcdf decodes DMI forecast payloads into datasets backed by a local
// NetCDF file.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// TimeVar is the name of the time coordinate, which is also its dimension.
const TimeVar = "time"

// Decoder writes a payload to the intermediate array file and reads its time
// axis. The file is overwritten on every call.
type Decoder struct {
	path   string
	logger *slog.Logger
}

// NewDecoder creates a Decoder writing to path.
func NewDecoder(path string, logger *slog.Logger) *Decoder {
	return &Decoder{path: path, logger: logger}
}

// Path is the intermediate array file the decoder writes.
func (d *Decoder) Path() string {
	return d.path
}

// Decode stores payload at the decoder's path and returns the dataset it
// describes. Geographic requests yield a Geographic reference; native requests
// yield an untagged reference that the normalizer must resolve.
func (d *Decoder) Decode(ctx context.Context, payload []byte, req domain.ForecastRequest) (domain.ForecastDataset, error) {
	if err := ctx.Err(); err != nil {
		return domain.ForecastDataset{}, err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(d.path, payload, 0o644); err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("write array file: %w", err)
	}

	ds, err := ReadDataset(d.path, req.Parameter)
	if err != nil {
		return domain.ForecastDataset{}, err
	}
	ds.Collection = req.Collection
	ds.Parameter = req.Parameter
	if req.CRS != domain.CRSNative {
		ds.Reference = domain.Geographic
	}

	d.logger.Debug("decoded forecast dataset",
		"parameter", req.Parameter, "variable", ds.Variable, "timesteps", len(ds.Times), "path", d.path)
	return ds, nil
}

// ReadDataset opens a NetCDF file and reads the time axis of the variable
// holding parameter. The returned dataset is validated.
func ReadDataset(path, parameter string) (domain.ForecastDataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("open array file: %w", err)
	}
	defer nc.Close()

	variable, err := dataVariable(nc, parameter)
	if err != nil {
		return domain.ForecastDataset{}, err
	}

	tv, err := nc.GetVariable(TimeVar)
	if err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("read %s variable: %w", TimeVar, err)
	}
	units, err := stringAttr(tv.Attributes, "units")
	if err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("%s variable: %w", TimeVar, err)
	}
	times, err := decodeTimes(tv.Values, units)
	if err != nil {
		return domain.ForecastDataset{}, fmt.Errorf("decode %s axis: %w", TimeVar, err)
	}

	ds := domain.ForecastDataset{
		Parameter: parameter,
		Variable:  variable,
		Path:      path,
		Times:     times,
	}
	if err := ds.Validate(); err != nil {
		return domain.ForecastDataset{}, err
	}
	return ds, nil
}

// dataVariable picks the gridded variable: the one named after the parameter
// if present, otherwise the only non-coordinate variable along time.
func dataVariable(nc api.Group, parameter string) (string, error) {
	names := nc.ListVariables()
	if slices.Contains(names, parameter) {
		return parameter, nil
	}

	var candidates []string
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			return "", fmt.Errorf("inspect variable %s: %w", name, err)
		}
		dims := v.Dimensions
		if len(dims) >= 3 && dims[0] == TimeVar {
			candidates = append(candidates, name)
		}
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no (time, y, x) variable found for parameter %q", parameter)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("parameter %q is ambiguous: variables %v", parameter, candidates)
	}
}

func stringAttr(attrs api.AttributeMap, key string) (string, error) {
	if attrs == nil {
		return "", fmt.Errorf("missing %q attribute", key)
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", fmt.Errorf("missing %q attribute", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %q is %T, want string", key, v)
	}
	return s, nil
}
