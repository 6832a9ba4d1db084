package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/config"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
)

// Fetcher retrieves the raw payload of one upstream dataset.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.ForecastRequest) ([]byte, error)
}

// Decoder turns a payload into a dataset backed by a local array file.
type Decoder interface {
	Decode(ctx context.Context, payload []byte, req domain.ForecastRequest) (domain.ForecastDataset, error)
}

// Reprojector warps a dataset's array file between spatial references.
type Reprojector interface {
	Reproject(ctx context.Context, ds domain.ForecastDataset, dst string, from, to domain.SpatialRef) error
}

// RasterEngine converts array files to COGs and splits them into bands.
type RasterEngine interface {
	ToCOG(ctx context.Context, ds domain.ForecastDataset, dst string) error
	ExtractBand(ctx context.Context, src, dst string, band int) error
	BandCount(ctx context.Context, path string) (int, error)
}

// ObjectStore is the publication storage.
type ObjectStore interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	PutFile(ctx context.Context, localPath, key, contentType string) (int64, error)
	PublicURL(key string) string
}

// Notifier announces committed publications.
type Notifier interface {
	Notify(ctx context.Context, ev domain.PublicationEvent) error
}

// Options are the run settings of a Pipeline.
type Options struct {
	Collection string
	Parameters []string
	BBox       domain.BBox
	Bucket     string
	BasePath   string
	DataDir    string
	Format     domain.ManifestFormat
	Policy     domain.ProjectionPolicy
	NativeRef  domain.SpatialRef
}

// OptionsFromConfig maps the loaded configuration onto pipeline options,
// using the DMI projection defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Collection: cfg.Collection,
		Parameters: cfg.Parameters,
		BBox:       cfg.BBox,
		Bucket:     cfg.BucketName,
		BasePath:   cfg.BucketBasePath,
		DataDir:    cfg.DataDir,
		Format:     cfg.ManifestFormat,
		Policy:     domain.DefaultProjectionPolicy,
		NativeRef:  domain.LambertDMI,
	}
}

// Deps are the collaborators of a Pipeline. Store and Notifier are optional:
// a nil Store disables uploading and a nil Notifier disables events.
type Deps struct {
	Fetcher     Fetcher
	Decoder     Decoder
	Reprojector Reprojector
	Engine      RasterEngine
	Store       ObjectStore
	Notifier    Notifier
}

// Outcome is the result of one parameter run.
type Outcome struct {
	Parameter string
	Target    domain.PublicationTarget
	State     State   // terminal state
	History   []State // every state entered, in order
	FailedIn  State   // state that returned Err
	Bands     []domain.PublishedBand
	Manifest  ManifestResult
	Err       error
	Duration  time.Duration
}

// Report collects the outcomes of one run, in parameter order.
type Report struct {
	Started  time.Time
	Outcomes []Outcome
}

// Succeeded returns the number of parameters that reached Done.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateDone {
			n++
		}
	}
	return n
}

// Failed returns the number of parameters that did not reach Done.
func (r Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Pipeline publishes every configured parameter of one collection, strictly
// one after the other. Failures are isolated per parameter.
type Pipeline struct {
	opts       Options
	fetcher    Fetcher
	decoder    Decoder
	normalizer *Normalizer
	publisher  *Publisher
	manifests  *ManifestWriter
	store      ObjectStore
	notifier   Notifier
	logger     *slog.Logger
	metrics    *observability.Metrics
	last       atomic.Pointer[Report]
}

// New creates a Pipeline.
func New(opts Options, deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:       opts,
		fetcher:    deps.Fetcher,
		decoder:    deps.Decoder,
		normalizer: NewNormalizer(opts.Policy, opts.NativeRef, deps.Reprojector, opts.DataDir, logger),
		publisher:  NewPublisher(deps.Engine, deps.Store, opts.DataDir, logger, metrics),
		manifests:  NewManifestWriter(deps.Store, opts.Format, opts.DataDir, logger, metrics),
		store:      deps.Store,
		notifier:   deps.Notifier,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.last.Load() == nil {
		return errors.New("no ingest run has completed yet")
	}
	return nil
}

// LastReport returns the report of the most recent completed run, or nil.
func (p *Pipeline) LastReport() *Report {
	return p.last.Load()
}

// Run processes every configured parameter and reports each outcome. It does
// not return an error: per-parameter failures are in the report. Parameters
// not yet started when ctx is cancelled are skipped.
func (p *Pipeline) Run(ctx context.Context) Report {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	report := Report{Started: domain.Now()}
	p.logger.Info("ingest run started",
		"collection", p.opts.Collection, "parameters", len(p.opts.Parameters), "upload", p.store != nil)

	for _, parameter := range p.opts.Parameters {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("ingest run cancelled", "error", err, "remaining_from", parameter)
			break
		}
		report.Outcomes = append(report.Outcomes, p.runParameter(ctx, parameter))
	}

	p.logger.Info("ingest run finished",
		"collection", p.opts.Collection, "succeeded", report.Succeeded(), "failed", report.Failed())
	p.last.Store(&report)
	return report
}

func (p *Pipeline) target(parameter string) domain.PublicationTarget {
	return domain.PublicationTarget{
		Bucket:     p.opts.Bucket,
		BasePath:   p.opts.BasePath,
		Collection: p.opts.Collection,
		Parameter:  parameter,
	}
}

func (p *Pipeline) runParameter(ctx context.Context, parameter string) Outcome {
	start := time.Now()
	out := Outcome{Parameter: parameter, Target: p.target(parameter)}
	logger := p.logger.With("collection", p.opts.Collection, "parameter", parameter)
	p.enter(&out, logger, StateIdle)

	files := newScratch(logger, p.metrics)
	defer files.remove()

	err := p.process(ctx, &out, files, logger)
	switch {
	case out.State == StateFetchFailed:
		logger.Error("fetch failed, prior publication left untouched", "error", out.Err)
	case err != nil:
		out.Err = err
		out.FailedIn = out.State
		p.enter(&out, logger, StateFailed)
		logger.Error("parameter failed", "state", out.FailedIn.String(), "bands_published", len(out.Bands), "error", err)
	default:
		p.enter(&out, logger, StateCleanup)
		files.remove()
		p.enter(&out, logger, StateDone)
		p.metrics.LastSuccess.WithLabelValues(p.opts.Collection, parameter).Set(float64(domain.Now().Unix()))
		p.notify(ctx, out, logger)
		logger.Info("parameter published", "bands", len(out.Bands), "target", out.Target.String())
	}

	out.Duration = time.Since(start)
	p.metrics.ParameterRuns.WithLabelValues(p.opts.Collection, parameter, outcomeLabel(out.State)).Inc()
	p.metrics.ParameterDuration.WithLabelValues(p.opts.Collection, parameter).Observe(out.Duration.Seconds())
	return out
}

// process walks one parameter from fetch through manifest commit. Deleting
// the prior publication happens before the first write, so a later failure
// leaves the target empty rather than stale.
func (p *Pipeline) process(ctx context.Context, out *Outcome, files *scratch, logger *slog.Logger) error {
	req := domain.ForecastRequest{
		Collection: p.opts.Collection,
		Parameter:  out.Parameter,
		BBox:       p.opts.BBox,
		Format:     domain.FormatNetCDF,
		CRS:        p.normalizer.Strategy(p.opts.Collection).CRSHint(),
	}

	p.enter(out, logger, StateFetching)
	fetchStart := time.Now()
	payload, err := p.fetcher.Fetch(ctx, req)
	p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		out.Err = err
		out.FailedIn = StateFetching
		p.enter(out, logger, StateFetchFailed)
		return err
	}
	p.enter(out, logger, StateFetched)

	files.track(filepath.Join(p.opts.DataDir, ArrayFile))
	ds, err := p.decoder.Decode(ctx, payload, req)
	files.track(ds.Path)
	if err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return err
	}

	p.enter(out, logger, StateNormalizing)
	if p.normalizer.Strategy(ds.Collection) == domain.StrategyNative {
		files.track(p.normalizer.dst)
	}
	ds, err = p.normalizer.Normalize(ctx, ds)
	if err != nil {
		return err
	}

	p.enter(out, logger, StateConverting)
	files.track(filepath.Join(p.opts.DataDir, RasterFile))
	raster, err := p.publisher.Convert(ctx, ds)
	if err != nil {
		return err
	}

	p.enter(out, logger, StateDeletingPrior)
	if err := p.deletePrior(ctx, out.Target, logger); err != nil {
		return err
	}

	p.enter(out, logger, StatePublishingBands)
	if p.store != nil {
		for _, t := range ds.Times {
			files.track(p.publisher.bandPath(out.Target, domain.BandKey(t)))
		}
	}
	out.Bands, err = p.publisher.Publish(ctx, ds, raster, out.Target)
	if err != nil {
		return err
	}

	p.enter(out, logger, StateWritingManifest)
	if p.store != nil {
		files.track(p.manifests.pathFor(out.Target))
	}
	out.Manifest, err = p.manifests.Write(ctx, out.Bands, out.Target)
	return err
}

// deletePrior removes the previous publication of target. Without a store the
// local output directory of target is emptied instead.
func (p *Pipeline) deletePrior(ctx context.Context, target domain.PublicationTarget, logger *slog.Logger) error {
	if p.store == nil {
		return resetDir(localOutputDir(p.opts.DataDir, target))
	}
	n, err := p.store.DeletePrefix(ctx, target.Prefix())
	if err != nil {
		return err
	}
	p.metrics.PriorDeletions.Add(float64(n))
	if n == 0 {
		logger.Debug("no prior publication to delete", "prefix", target.Prefix())
	} else {
		logger.Info("deleted prior publication", "prefix", target.Prefix(), "objects", n)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, out Outcome, logger *slog.Logger) {
	if p.notifier == nil {
		return
	}
	ev := domain.NewPublicationEvent(out.Target, out.Bands, out.Manifest.URL)
	if err := p.notifier.Notify(ctx, ev); err != nil {
		p.metrics.NotificationErrors.Inc()
		logger.Warn("publication event not delivered", "error", err)
	}
}

func (p *Pipeline) enter(out *Outcome, logger *slog.Logger, s State) {
	out.State = s
	out.History = append(out.History, s)
	logger.Debug("state", "state", s.String())
}

func outcomeLabel(s State) string {
	switch s {
	case StateDone:
		return "success"
	case StateFetchFailed:
		return "fetch_failed"
	default:
		return "failed"
	}
}
