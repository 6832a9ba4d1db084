// Command verify checks that published forecasts in storage match their
// manifests. A crashed run leaves band objects without manifest entries; a
// manual deletion leaves manifest entries without objects. Both are reported.
//
// Bucket settings come from the same environment as the ingester.
//
// Usage:
//
//	go run ./cmd/verify -parameters sea-mean-deviation,salinity
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/s3"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/config"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
)

// store is the read side of the storage gateway.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
}

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	parameters := flag.String("parameters", "", "comma-separated parameters to verify (default: PARAMETERS)")
	timeout := flag.Duration("timeout", time.Minute, "overall storage timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Upload {
		fmt.Fprintln(os.Stderr, "FATAL: UPLOAD_TO_BUCKET is false, nothing to verify")
		os.Exit(1)
	}
	if *parameters != "" {
		cfg.Parameters = strings.Split(*parameters, ",")
	}

	logger := observability.NewLogger(cfg)
	gw, err := s3.NewGateway(s3.Options{
		Endpoint: cfg.BucketEndpoint,
		Bucket:   cfg.BucketName,
		Key:      cfg.BucketKey,
		Secret:   cfg.BucketSecret,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if code := run(ctx, gw, cfg); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, st store, cfg *config.Config) int {
	fmt.Println("=== Forecast Publication Verification ===")

	allPassed := true
	for _, parameter := range cfg.Parameters {
		parameter = strings.TrimSpace(parameter)
		if parameter == "" {
			continue
		}
		target := domain.PublicationTarget{
			Bucket:     cfg.BucketName,
			BasePath:   cfg.BucketBasePath,
			Collection: cfg.Collection,
			Parameter:  parameter,
		}
		phases := verify(ctx, st, target, cfg.ManifestFormat)

		fmt.Printf("\n%s\n", target)
		for _, p := range phases {
			status := "\033[32mPASS\033[0m"
			if !p.passed() {
				status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
				allPassed = false
			}
			fmt.Printf("  %-42s %s\n", p.name, status)
		}
		for _, p := range phases {
			for i, e := range p.errors {
				fmt.Printf("    [%s %d] %s\n", p.name, i+1, e)
			}
		}
	}

	if allPassed {
		fmt.Println("\nAll publications consistent.")
		return 0
	}
	fmt.Println("\nVerification FAILED.")
	return 1
}

// verify runs every phase for one target. Later phases are skipped when the
// manifest cannot be read.
func verify(ctx context.Context, st store, target domain.PublicationTarget, format domain.ManifestFormat) []*phase {
	manifestPhase := &phase{name: "Phase 1: Manifest readable"}
	phases := []*phase{manifestPhase}

	data, err := st.Get(ctx, target.ManifestKey())
	if err != nil {
		if s3.IsNotFound(err) {
			manifestPhase.errorf("no manifest at %s", target.ManifestKey())
		} else {
			manifestPhase.errorf("read manifest: %v", err)
		}
		return phases
	}
	keys, err := domain.ManifestKeys(data)
	if err != nil {
		manifestPhase.errorf("%v", err)
		return phases
	}

	objects, err := st.List(ctx, target.Prefix())
	if err != nil {
		manifestPhase.errorf("list %s: %v", target.Prefix(), err)
		return phases
	}
	bandObjects := bandKeys(objects)

	phases = append(phases,
		checkEntriesHaveObjects(keys, bandObjects),
		checkObjectsHaveEntries(keys, bandObjects),
	)
	if format != domain.ManifestLegacy {
		phases = append(phases, checkAddresses(data, st, target))
	}
	return phases
}

// bandKeys maps listed object keys to band keys, ignoring the manifest and
// anything that is not a band raster.
func bandKeys(objects []string) map[string]bool {
	out := make(map[string]bool, len(objects))
	for _, obj := range objects {
		name := path.Base(obj)
		if !strings.HasSuffix(name, ".tif") {
			continue
		}
		out[strings.TrimSuffix(name, ".tif")] = true
	}
	return out
}

func checkEntriesHaveObjects(keys []string, objects map[string]bool) *phase {
	p := &phase{name: "Phase 2: Manifest entries have objects"}
	for _, k := range keys {
		if !objects[k] {
			p.errorf("manifest lists %s but no %s.tif exists", k, k)
		}
	}
	return p
}

func checkObjectsHaveEntries(keys []string, objects map[string]bool) *phase {
	p := &phase{name: "Phase 3: Objects are in manifest"}
	listed := make(map[string]bool, len(keys))
	for _, k := range keys {
		listed[k] = true
	}
	orphans := make([]string, 0)
	for k := range objects {
		if !listed[k] {
			orphans = append(orphans, k)
		}
	}
	sort.Strings(orphans)
	for _, k := range orphans {
		p.errorf("%s.tif is not in the manifest (leftover of an incomplete run?)", k)
	}
	return p
}

func checkAddresses(data []byte, st store, target domain.PublicationTarget) *phase {
	p := &phase{name: "Phase 4: Manifest addresses"}
	entries, err := decodeURLManifest(data)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if want := st.PublicURL(target.BandObjectKey(k)); entries[k] != want {
			p.errorf("%s: address %q, want %q", k, entries[k], want)
		}
	}
	return p
}

var errNotURLManifest = errors.New("manifest is not a key to address mapping")

func decodeURLManifest(data []byte) (map[string]string, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotURLManifest, err)
	}
	return entries, nil
}
