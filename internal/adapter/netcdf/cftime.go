package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// maxOffsetSeconds bounds decoded offsets, roughly 34,000 years either way.
const maxOffsetSeconds = 1 << 40

var epochLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimeUnits parses CF units such as "hours since 2024-03-01 00:00:00".
func parseTimeUnits(units string) (step time.Duration, epoch time.Time, err error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	since = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(since), "UTC"))
	for _, layout := range epochLayouts {
		if t, perr := time.Parse(layout, since); perr == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparseable epoch %q", units, since)
}

// decodeTimes converts raw offsets to absolute times.
func decodeTimes(values any, units string) ([]time.Time, error) {
	step, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	offsets, err := toFloat64s(values)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, len(offsets))
	for i, v := range offsets {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("time value %d is not finite", i)
		}
		secs := v * step.Seconds()
		if math.Abs(secs) > maxOffsetSeconds {
			return nil, fmt.Errorf("time value %d (%g %s) is out of range", i, v, units)
		}
		// Whole seconds and a microsecond remainder are added separately, so
		// offsets past the range of time.Duration still decode exactly.
		whole := math.Floor(secs)
		micros := math.Round((secs - whole) * 1e6)
		if micros == 1e6 {
			whole++
			micros = 0
		}
		times[i] = time.Unix(epoch.Unix()+int64(whole), int64(epoch.Nanosecond())+int64(micros)*int64(time.Microsecond)).UTC()
	}
	return times, nil
}

func toFloat64s(values any) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convert(v), nil
	case []int64:
		return convert(v), nil
	case []int32:
		return convert(v), nil
	case []int16:
		return convert(v), nil
	case []uint64:
		return convert(v), nil
	case []uint32:
		return convert(v), nil
	default:
		return nil, fmt.Errorf("unsupported time variable type %T", values)
	}
}

func convert[T float32 | int64 | int32 | int16 | uint64 | uint32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
