package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/pipeline"
)

const (
	testBucket   = "forecasts"
	testHost     = "obs.eu-de.otc.t-systems.com"
	testBasePath = "data/dmi/forecasts"
)

var errUpstream = errors.New("upstream returned 503")

// --- mocks ---

type mockFetcher struct {
	errs     map[string]error
	requests []domain.ForecastRequest
}

func (m *mockFetcher) Fetch(_ context.Context, req domain.ForecastRequest) ([]byte, error) {
	m.requests = append(m.requests, req)
	if err := m.errs[req.Parameter]; err != nil {
		return nil, err
	}
	return []byte("CDF:" + req.Parameter), nil
}

// mockDecoder writes the payload to the array file and returns the time axis
// registered for the parameter.
type mockDecoder struct {
	dir   string
	times map[string][]time.Time
	calls int
}

func (m *mockDecoder) Decode(_ context.Context, payload []byte, req domain.ForecastRequest) (domain.ForecastDataset, error) {
	m.calls++
	path := filepath.Join(m.dir, pipeline.ArrayFile)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return domain.ForecastDataset{}, err
	}
	ds := domain.ForecastDataset{
		Collection: req.Collection,
		Parameter:  req.Parameter,
		Variable:   req.Parameter,
		Path:       path,
		Times:      m.times[req.Parameter],
	}
	if req.CRS != domain.CRSNative {
		ds.Reference = domain.Geographic
	}
	return ds, nil
}

type reprojectCall struct {
	src, dst string
	from, to domain.SpatialRef
}

// mockEngine writes small marker files in place of real rasters.
type mockEngine struct {
	bands      int // bands of the last ToCOG output
	bandsDelta int // added to the reported band count
	failBand   int // ExtractBand fails for this 1-based band
	reprojects []reprojectCall
	converted  []domain.ForecastDataset
}

func (m *mockEngine) Reproject(_ context.Context, ds domain.ForecastDataset, dst string, from, to domain.SpatialRef) error {
	m.reprojects = append(m.reprojects, reprojectCall{src: ds.Path, dst: dst, from: from, to: to})
	return os.WriteFile(dst, []byte("warped"), 0o644)
}

func (m *mockEngine) ToCOG(_ context.Context, ds domain.ForecastDataset, dst string) error {
	m.converted = append(m.converted, ds)
	m.bands = len(ds.Times)
	return os.WriteFile(dst, []byte("cog"), 0o644)
}

func (m *mockEngine) ExtractBand(_ context.Context, _, dst string, band int) error {
	if band == m.failBand {
		return fmt.Errorf("band %d: disk full", band)
	}
	return os.WriteFile(dst, []byte(fmt.Sprintf("band-%d", band)), 0o644)
}

func (m *mockEngine) BandCount(_ context.Context, _ string) (int, error) {
	return m.bands + m.bandsDelta, nil
}

// mockStore is an in-memory bucket. Every mutating call is appended to ops.
type mockStore struct {
	objects map[string][]byte
	ops     []string
	failPut string // PutFile fails for this key
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string][]byte)}
}

func (m *mockStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.ops = append(m.ops, "delete "+prefix)
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix+"/") {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) PutFile(_ context.Context, localPath, key, _ string) (int64, error) {
	m.ops = append(m.ops, "put "+key)
	if key == m.failPut {
		return 0, errors.New("connection reset by peer")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *mockStore) PublicURL(key string) string {
	return "https://" + testBucket + "." + testHost + "/" + key
}

func (m *mockStore) keys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type mockNotifier struct {
	events []domain.PublicationEvent
	err    error
}

func (m *mockNotifier) Notify(_ context.Context, ev domain.PublicationEvent) error {
	m.events = append(m.events, ev)
	return m.err
}

// --- fixtures ---

type harness struct {
	dir      string
	fetcher  *mockFetcher
	decoder  *mockDecoder
	engine   *mockEngine
	store    *mockStore
	notifier *mockNotifier
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dir:     dir,
		fetcher: &mockFetcher{errs: map[string]error{}},
		decoder: &mockDecoder{dir: dir, times: map[string][]time.Time{}},
		engine:  &mockEngine{},
		store:   newMockStore(),
		metrics: observability.NewMetricsForTesting(),
	}
}

func (h *harness) options(collection string, parameters ...string) pipeline.Options {
	return pipeline.Options{
		Collection: collection,
		Parameters: parameters,
		BBox:       domain.BBox{MinLon: 11.5, MinLat: 55.5, MaxLon: 12.2, MaxLat: 56.1},
		Bucket:     testBucket,
		BasePath:   testBasePath,
		DataDir:    h.dir,
		Format:     domain.ManifestURLs,
		Policy:     domain.DefaultProjectionPolicy,
		NativeRef:  domain.LambertDMI,
	}
}

func (h *harness) deps() pipeline.Deps {
	d := pipeline.Deps{
		Fetcher:     h.fetcher,
		Decoder:     h.decoder,
		Reprojector: h.engine,
		Engine:      h.engine,
	}
	// Assigned only when set so a nil pointer never becomes a non-nil interface.
	if h.store != nil {
		d.Store = h.store
	}
	if h.notifier != nil {
		d.Notifier = h.notifier
	}
	return d
}

func (h *harness) pipeline(opts pipeline.Options) *pipeline.Pipeline {
	return pipeline.New(opts, h.deps(), discardLogger(), h.metrics)
}

// localFiles lists the names left in the data directory.
func (h *harness) localFiles(t *testing.T) []string {
	t.Helper()
	return dirFiles(t, h.dir)
}

func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func march(hours ...int) []time.Time {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, len(hours))
	for i, h := range hours {
		out[i] = base.Add(time.Duration(h) * time.Hour)
	}
	return out
}

func objectKey(parameter, name string) string {
	return testBasePath + "/dkss_if/" + parameter + "/" + name
}
