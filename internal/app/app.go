package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hydroglacier/glacierfrac/internal/align"
	"github.com/hydroglacier/glacierfrac/internal/cache"
	"github.com/hydroglacier/glacierfrac/internal/fraction"
	"github.com/hydroglacier/glacierfrac/internal/grid"
	"github.com/hydroglacier/glacierfrac/internal/output"
	"github.com/hydroglacier/glacierfrac/internal/partition"
	"github.com/hydroglacier/glacierfrac/internal/raster"
	"github.com/hydroglacier/glacierfrac/internal/series"
	"github.com/hydroglacier/glacierfrac/internal/snapshot"
	"github.com/hydroglacier/glacierfrac/internal/store"
	"github.com/hydroglacier/glacierfrac/internal/types"
	"github.com/hydroglacier/glacierfrac/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App represents the batch pipeline
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// Result describes a completed run.
type Result struct {
	RunID        uuid.UUID
	DailyPath    string
	AnnualPath   string
	SeasonalPath string
	Years        []int
	Skipped      []types.SkippedYear
	CacheHits    int
	Table        *series.Table
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// yearResult is one worker's outcome; exactly one of record or skipped is
// set.
type yearResult struct {
	record   *types.AnnualRecord
	skipped  *types.SkippedYear
	cacheHit bool
}

// pipeline holds the collaborators resolved once at startup.
type pipeline struct {
	aligner   *align.Aligner
	partition *partition.Partition
	cache     *cache.Cache
	logger    *zap.SugaredLogger
}

// Run executes the whole batch: partition, per-year alignment and fractions,
// interpolation, output and the ledger entry. Any fatal error, including a
// ledger failure, returns before output tables are published.
func (a *App) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	cfg := a.cfg

	delim, err := cfg.DelimiterRune()
	if err != nil {
		return nil, err
	}

	backend, err := raster.NewBackend(raster.BackendType(cfg.RasterBackend), cfg.GDALBinDir)
	if err != nil {
		return nil, err
	}
	resampler, err := align.NewResampler(align.ResamplerType(cfg.Resampler), backend, cfg.GDALBinDir)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.AlignedDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	part, err := a.loadPartition(ctx, backend)
	if err != nil {
		return nil, err
	}
	if len(part.Units) == 0 {
		return nil, fmt.Errorf("no unit in %s touches land-cover class %d", cfg.PartitionRaster, cfg.TrackedClass)
	}
	a.logger.Infof("partition has %d tracked units on a %dx%d grid", len(part.Units), part.Ref.Cols, part.Ref.Rows)

	years, err := snapshot.Discover(cfg.SnapshotDir, cfg.SnapshotPattern, snapshot.Filter{FirstYear: cfg.FirstYear, LastYear: cfg.LastYear})
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no snapshots matching %q in %s", cfg.SnapshotPattern, cfg.SnapshotDir)
	}

	p := &pipeline{
		aligner:   align.NewAligner(part.Ref, resampler, backend, cfg.AlignedDir, a.logger),
		partition: part,
		logger:    a.logger,
	}
	if cfg.CacheDir != "" {
		if p.cache, err = cache.New(cfg.CacheDir); err != nil {
			return nil, err
		}
	}

	results := make([]yearResult, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, y := range years {
		g.Go(func() error {
			res, err := p.processYear(gctx, y, resampler.Name())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Interrupted alignments look like skipped years; don't publish them.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	var records []types.AnnualRecord
	for _, r := range results {
		if r.skipped != nil {
			result.Skipped = append(result.Skipped, *r.skipped)
			continue
		}
		if r.cacheHit {
			result.CacheHits++
		}
		records = append(records, *r.record)
		result.Years = append(result.Years, r.record.Year)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("all %d snapshot years were skipped", len(years))
	}

	table, err := series.Build(part.IDs(), records)
	if err != nil {
		return nil, err
	}
	result.Table = table

	if err := a.publish(ctx, table, delim, started, resampler.Name(), result); err != nil {
		return nil, err
	}

	a.logger.Infow("run complete",
		"years", len(result.Years),
		"skipped", len(result.Skipped),
		"days", table.Len(),
		"cache_hits", result.CacheHits,
		"elapsed", time.Since(started).String(),
	)
	return result, nil
}

func (a *App) loadPartition(ctx context.Context, backend raster.Backend) (*partition.Partition, error) {
	units, err := backend.Read(ctx, a.cfg.PartitionRaster)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition raster: %w", err)
	}
	landCover, err := backend.Read(ctx, a.cfg.LandCoverRaster)
	if err != nil {
		return nil, fmt.Errorf("failed to read land-cover raster: %w", err)
	}
	if units.Ref.Transform == nil {
		a.logger.Warnw("partition raster has no geotransform; every year will fail alignment", "path", a.cfg.PartitionRaster)
	}
	return partition.Build(units, landCover, a.cfg.TrackedClass)
}

// processYear returns the year's annual record, from the cache when its
// inputs are unchanged. Alignment failures become a skipped year; anything
// else is fatal.
func (p *pipeline) processYear(ctx context.Context, y snapshot.Year, resamplerName string) (yearResult, error) {
	if err := ctx.Err(); err != nil {
		return yearResult{}, err
	}

	var key string
	if p.cache != nil {
		key = cache.Key(y, p.partition.Ref.Signature(), p.partition.Units, resamplerName)
		rec, err := p.cache.Get(y.Year, key)
		switch {
		case err == nil:
			p.logger.Debugf("cache hit for %d", y.Year)
			return yearResult{record: &rec, cacheHit: true}, nil
		case !errors.Is(err, cache.ErrMiss):
			p.logger.Warnw("ignoring unreadable cache entry", "year", y.Year, "error", err)
		}
	}

	snap, err := p.aligner.Align(ctx, y.Year, y.Paths())
	if err != nil {
		var ae *types.AlignmentError
		if errors.As(err, &ae) {
			p.logger.Warnw("skipping year", "year", y.Year, "reason", ae.Error())
			return yearResult{skipped: &types.SkippedYear{Year: y.Year, Reason: ae.Error()}}, nil
		}
		return yearResult{}, err
	}

	rec, err := fraction.Annual(y.Year, snap, p.partition.Units)
	if err != nil {
		return yearResult{}, err
	}
	p.logUnits(rec, snap)

	if p.cache != nil {
		if err := p.cache.Put(key, rec); err != nil {
			p.logger.Warnw("failed to cache annual record", "year", y.Year, "error", err)
		}
	}

	p.logger.Infof("computed %d fractions for %d from %d snapshot file(s)", len(rec.Fractions), y.Year, len(y.Files))
	return yearResult{record: &rec}, nil
}

func (p *pipeline) logUnits(rec types.AnnualRecord, snap *grid.Raster) {
	if !p.logger.Desugar().Core().Enabled(zap.DebugLevel) {
		return
	}
	for i, u := range p.partition.Units {
		p.logger.Debugf("%d unit %d: fraction %g over %d cells of %d", rec.Year, u.ID, rec.Fractions[i], u.PixelCount(), snap.Ref.Cells())
	}
}

// publish stages every table, records the run when a ledger is configured
// and only then renames the tables into place.
func (a *App) publish(ctx context.Context, table *series.Table, delim rune, started time.Time, resamplerName string, result *Result) error {
	var ledger *store.Store
	if a.cfg.StorePath != "" {
		s, err := store.Open(ctx, a.cfg.StorePath, a.logger)
		if err != nil {
			return err
		}
		defer s.Close()
		ledger = s
	}

	batch := output.NewBatch(a.cfg.OutputDir, delim)
	defer batch.Abort()

	if err := a.stageOutputs(batch, table, result); err != nil {
		return err
	}

	if ledger != nil {
		if err := a.recordRun(ctx, ledger, started, resamplerName, result); err != nil {
			return err
		}
	}

	if err := batch.Commit(); err != nil {
		if ledger != nil {
			if derr := ledger.DeleteRun(context.WithoutCancel(ctx), result.RunID); derr != nil {
				a.logger.Errorf("run %s is in the ledger but its tables were not published: %v", result.RunID, derr)
			}
		}
		return err
	}

	if result.DailyPath != "" {
		a.logger.Infof("wrote %d daily rows to %s", table.Len(), result.DailyPath)
	}
	a.logger.Infof("wrote %d annual rows to %s", len(table.Annual), result.AnnualPath)
	if result.SeasonalPath != "" {
		a.logger.Infof("wrote seasonal summary to %s", result.SeasonalPath)
	}
	return nil
}

func (a *App) stageOutputs(batch *output.Batch, table *series.Table, result *Result) error {
	var err error
	if table.Empty() {
		a.logger.Warnw("only one valid year; the daily table needs two and was not written", "year", table.Annual[0].Year)
	} else if result.DailyPath, err = batch.Daily(table); err != nil {
		return err
	}

	if result.AnnualPath, err = batch.Annual(table); err != nil {
		return err
	}

	if a.cfg.SeasonalSummary && !table.Empty() {
		if result.SeasonalPath, err = batch.Seasonal(series.Seasonal(table)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) recordRun(ctx context.Context, s *store.Store, started time.Time, resamplerName string, result *Result) error {
	run := store.Run{
		StartedAt:  started,
		FinishedAt: time.Now(),
		FirstYear:  result.Years[0],
		LastYear:   result.Years[len(result.Years)-1],
		UnitCount:  len(result.Table.UnitIDs),
		DayCount:   result.Table.Len(),
		Resampler:  resamplerName,
		DailyPath:  result.DailyPath,
		AnnualPath: result.AnnualPath,
		Annual:     result.Table.Annual,
		Skipped:    result.Skipped,
	}
	var err error
	if result.RunID, err = s.SaveRun(ctx, run); err != nil {
		return err
	}
	a.logger.Infof("recorded run %s in %s", result.RunID, a.cfg.StorePath)
	return nil
}
