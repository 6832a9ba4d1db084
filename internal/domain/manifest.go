package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ManifestFormat selects the manifest document layout.
type ManifestFormat string

const (
	// ManifestURLs maps band keys to addresses.
	ManifestURLs ManifestFormat = "urls"
	// ManifestLegacy lists the published timestamps only.
	ManifestLegacy ManifestFormat = "legacy"
)

// ParseManifestFormat accepts "urls" or "legacy", case-insensitively.
func ParseManifestFormat(s string) (ManifestFormat, error) {
	switch f := ManifestFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case ManifestURLs, ManifestLegacy:
		return f, nil
	default:
		return "", fmt.Errorf("unknown manifest format %q", s)
	}
}

type legacyManifest struct {
	AvailableForecasts []string `json:"available_forecasts"`
}

// EncodeManifest renders the manifest for bands. Output is deterministic:
// keys are sorted, indentation is four spaces and there is no trailing newline.
func EncodeManifest(bands []PublishedBand, format ManifestFormat) ([]byte, error) {
	var doc any
	switch format {
	case ManifestLegacy:
		times := make([]string, len(bands))
		for i, b := range bands {
			times[i] = FormatTimestamp(b.Time)
		}
		sort.Strings(times)
		doc = legacyManifest{AvailableForecasts: times}
	case ManifestURLs, "":
		m := make(map[string]string, len(bands))
		for _, b := range bands {
			m[b.Key] = b.Address
		}
		doc = m
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ManifestKeys returns the band keys a manifest document references, sorted.
// Legacy manifests list timestamps, which are converted to band keys.
func ManifestKeys(data []byte) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	var keys []string
	if list, ok := raw["available_forecasts"]; ok && len(raw) == 1 {
		var times []string
		if err := json.Unmarshal(list, &times); err != nil {
			return nil, fmt.Errorf("decode legacy manifest: %w", err)
		}
		for _, ts := range times {
			keys = append(keys, strings.NewReplacer("-", "", ":", "", "T", "").Replace(ts))
		}
	} else {
		for k := range raw {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
