package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
	"github.com/couchcryptid/storm-damage-aggregator/internal/observability"
)

// FeedExtractor produces the two raw event feeds.
type FeedExtractor interface {
	ExtractLocations(ctx context.Context) ([]domain.EventLocation, error)
	ExtractDetails(ctx context.Context) ([]domain.EventDetail, error)
}

// RegionLoader loads the reference polygon grid, already reprojected into
// the event CRS.
type RegionLoader interface {
	LoadRegions(ctx context.Context) ([]domain.RegionPolygon, error)
}

// ResultLoader writes the final dominant-category rows to a destination.
type ResultLoader interface {
	Name() string
	LoadResults(ctx context.Context, results []domain.DominantCategory) error
}

// Summary reports what one run did, for logs and the /summary endpoint.
type Summary struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	LocationRows int       `json:"location_rows"`
	DetailRows   int       `json:"detail_rows"`
	Joined       int       `json:"joined"`
	Regions      int       `json:"regions"`
	Located      int       `json:"located"`
	Unmatched    int       `json:"unmatched"`
	Totals       int       `json:"totals"`
	Dominant     int       `json:"dominant"`
}

// Pipeline runs the merge-spatialize-aggregate-select batch once per Run.
// All stages are synchronous; only the locate stage fans out across workers
// because per-event containment tests are independent.
type Pipeline struct {
	extractor    FeedExtractor
	regions      RegionLoader
	loaders      []ResultLoader
	normalizer   *domain.Normalizer
	logger       *slog.Logger
	metrics      *observability.Metrics
	workers      int
	cacheEntries int

	ready atomic.Bool

	mu      sync.Mutex
	summary *Summary
}

// New creates a Pipeline with the given ports and observability.
func New(e FeedExtractor, r RegionLoader, loaders []ResultLoader, n *domain.Normalizer,
	logger *slog.Logger, metrics *observability.Metrics, workers, cacheEntries int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		extractor:    e,
		regions:      r,
		loaders:      loaders,
		normalizer:   n,
		logger:       logger,
		metrics:      metrics,
		workers:      workers,
		cacheEntries: cacheEntries,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Summary returns the report of the last completed run, if any.
func (p *Pipeline) Summary() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summary == nil {
		return Summary{}, false
	}
	return *p.summary, true
}

// Run executes one full pass. Any fatal condition (extract failure,
// malformed magnitude, region layer CRS problem, load failure) aborts with
// no partial output; soft drops (join misses, off-grid events) are counted
// and the run continues.
func (p *Pipeline) Run(ctx context.Context) error {
	summary := Summary{StartedAt: domain.Now()}
	p.logger.Info("pipeline run starting", "workers", p.workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	locations, err := p.timedLocations(ctx)
	if err != nil {
		return fmt.Errorf("extract locations: %w", err)
	}
	summary.LocationRows = len(locations)
	p.metrics.RowsExtracted.WithLabelValues("locations").Add(float64(len(locations)))

	details, err := p.timedDetails(ctx)
	if err != nil {
		return fmt.Errorf("extract details: %w", err)
	}
	summary.DetailRows = len(details)
	p.metrics.RowsExtracted.WithLabelValues("details").Add(float64(len(details)))

	joined := timed(p.metrics, "join", func() []domain.JoinedEvent {
		return domain.Join(locations, details)
	})
	summary.Joined = len(joined)
	p.metrics.EventsJoined.Add(float64(len(joined)))
	p.logger.Info("feeds joined",
		"locations", len(locations), "details", len(details), "joined", len(joined))

	start := time.Now()
	normalized, err := p.normalizer.NormalizeEvents(joined)
	p.metrics.StageDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("normalization failed, aborting run", "error", err)
		return fmt.Errorf("normalize: %w", err)
	}

	start = time.Now()
	regions, err := p.regions.LoadRegions(ctx)
	p.metrics.StageDuration.WithLabelValues("load_regions").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("load regions: %w", err)
	}
	summary.Regions = len(regions)
	p.metrics.RegionsLoaded.Set(float64(len(regions)))
	p.logger.Info("region grid loaded", "regions", len(regions))

	start = time.Now()
	idx := domain.NewRegionIndex(regions, p.cacheEntries)
	located, unmatched, err := p.locate(ctx, normalized, idx)
	p.metrics.StageDuration.WithLabelValues("locate").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("locate: %w", err)
	}
	summary.Located = len(located)
	summary.Unmatched = unmatched
	p.metrics.EventsLocated.Add(float64(len(located)))
	p.metrics.EventsUnmatched.Add(float64(unmatched))
	p.logger.Info("events located", "located", len(located), "unmatched", unmatched)

	totals := timed(p.metrics, "aggregate", func() []domain.RegionCategoryTotal {
		return domain.Aggregate(located)
	})
	summary.Totals = len(totals)

	dominant := timed(p.metrics, "select_dominant", func() []domain.DominantCategory {
		return domain.SelectDominant(totals)
	})
	summary.Dominant = len(dominant)

	for _, loader := range p.loaders {
		start = time.Now()
		err := loader.LoadResults(ctx, dominant)
		p.metrics.StageDuration.WithLabelValues("load_"+loader.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("load results via %s: %w", loader.Name(), err)
		}
		p.metrics.ResultsLoaded.WithLabelValues(loader.Name()).Add(float64(len(dominant)))
	}

	summary.FinishedAt = domain.Now()
	p.mu.Lock()
	p.summary = &summary
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("pipeline run complete",
		"joined", summary.Joined,
		"located", summary.Located,
		"unmatched", summary.Unmatched,
		"regions_with_output", summary.Dominant,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return nil
}

// locate shards the containment tests across p.workers goroutines and
// concatenates the per-shard results in shard order. Returns the located
// rows and the count of events that matched no region.
func (p *Pipeline) locate(ctx context.Context, events []domain.NormalizedEvent, idx *domain.RegionIndex) ([]domain.LocatedEvent, int, error) {
	if len(events) == 0 {
		return nil, 0, nil
	}

	workers := p.workers
	if workers > len(events) {
		workers = len(events)
	}
	chunk := (len(events) + workers - 1) / workers

	results := make([][]domain.LocatedEvent, workers)
	unmatched := make([]int, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(events))
		g.Go(func() error {
			shard := make([]domain.LocatedEvent, 0, hi-lo)
			for i := lo; i < hi; i++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e := events[i]
				ids := idx.Query(e.Lat, e.Lon)
				if len(ids) == 0 {
					unmatched[w]++
					continue
				}
				for _, id := range ids {
					shard = append(shard, domain.LocatedEvent{NormalizedEvent: e, RegionID: id})
				}
			}
			results[w] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var located []domain.LocatedEvent
	var dropped int
	for w := 0; w < workers; w++ {
		located = append(located, results[w]...)
		dropped += unmatched[w]
	}
	return located, dropped, nil
}

func (p *Pipeline) timedLocations(ctx context.Context) ([]domain.EventLocation, error) {
	start := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("extract_locations").Observe(time.Since(start).Seconds())
	}()
	return p.extractor.ExtractLocations(ctx)
}

func (p *Pipeline) timedDetails(ctx context.Context) ([]domain.EventDetail, error) {
	start := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("extract_details").Observe(time.Since(start).Seconds())
	}()
	return p.extractor.ExtractDetails(ctx)
}

// timed records the wall time of a pure stage under its label.
func timed[T any](m *observability.Metrics, stage string, fn func() T) T {
	start := time.Now()
	defer func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}()
	return fn()
}
