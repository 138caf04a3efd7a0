package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mouzamap.org/internal/appconf"
	"mouzamap.org/internal/boundary"
	"mouzamap.org/internal/catalog"
	"mouzamap.org/internal/clock"
	"mouzamap.org/internal/geometry"
	"mouzamap.org/internal/logging"
	"mouzamap.org/internal/metrics"
	"mouzamap.org/internal/region"
	"mouzamap.org/internal/selection"
)

// Application holds the dependencies shared by HTTP handlers, middleware and
// CLI commands.
type Application struct {
	Config    appconf.Config
	Logger    *slog.Logger
	Source    boundary.Source
	Engine    *geometry.Engine
	Regions   *region.Store
	Selection *selection.Bus
	// Updates serializes selection changes from request goroutines.
	Updates *selection.Applier
	Catalog   *catalog.Client
	Clock     clock.Clock
	Metrics   *metrics.Metrics

	// reloadMu serializes Reload so two rebuilds never race on the catalog.
	reloadMu sync.Mutex
}

// SourceFromConfig maps configuration onto a boundary source.
func SourceFromConfig(cfg appconf.Config, logger *slog.Logger) boundary.Source {
	return boundary.Source{
		DataDir:       cfg.DataDir,
		DistrictsFile: cfg.DistrictsFile,
		MouzasFile:    cfg.MouzasFile,
		DistrictKeys:  cfg.DistrictKeys,
		MouzaKeys:     cfg.MouzaKeys,
		UseSample:     cfg.UseSample,
		Logger:        logger,
	}
}

// New wires an Application from cfg and performs the first load. The
// returned Application owns the catalog; call Close when done.
func New(ctx context.Context, cfg appconf.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.NewWithLogger(logger)
	engine := geometry.NewEngine(logger.With(slog.String("component", "containment")))
	engine.OnFallback = m.CountFallback

	cat, err := catalog.NewClient(catalog.Config{DBPath: cfg.CatalogPath, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	clk := clock.Clock(clock.RealClock{})
	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Source:    SourceFromConfig(cfg, logger),
		Engine:    engine,
		Regions:   region.NewStore(nil),
		Selection: selection.NewBus(clk),
		Catalog:   cat,
		Clock:     clk,
		Metrics:   m,
	}
	a.Selection.Subscribe(m.ObserveSelection)
	a.Selection.Subscribe(a.logSelection)
	a.Updates = selection.NewApplier(a.Selection)

	if _, err := a.Reload(ctx); err != nil {
		a.Updates.Stop()
		_ = cat.Close()
		return nil, fmt.Errorf("failed to load boundaries: %w", err)
	}

	m.StartDBStatsCollector(cat.DB, 15*time.Second)
	return a, nil
}

// Reload reads the boundary files again, rebuilds the region index, swaps it
// in and refreshes the catalog. Readers keep the previous index until the
// swap.
func (a *Application) Reload(ctx context.Context) (region.Stats, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	cols, err := a.Source.Load()
	if err != nil {
		logging.LogError(a.Logger, "Error loading boundaries", err)
		return region.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return region.Stats{}, err
	}

	start := time.Now()
	idx := region.Build(cols.Districts, cols.Mouzas,
		region.WithEngine(a.Engine),
		region.WithLogger(a.Logger))
	took := time.Since(start)

	stats := idx.Stats()
	a.Regions.Swap(idx)
	a.Metrics.ObserveIndex(stats, took)

	if a.Catalog != nil {
		if err := a.Catalog.Replace(ctx, catalog.PlacesFromIndex(idx)); err != nil {
			logging.LogError(a.Logger, "Error refreshing place catalog", err)
			return stats, fmt.Errorf("refreshing catalog: %w", err)
		}
	}

	logging.LogOperation(a.Logger, "region_index_rebuilt",
		slog.Int("districts", stats.Parents),
		slog.Int("mouzas", stats.Children),
		slog.Int("assignments", stats.Assignments),
		slog.Int("bounds_fallbacks", stats.BoundsFallbacks),
		slog.Bool("sample", cols.Sample),
		slog.Duration("duration", took))

	return stats, nil
}

// Close releases the catalog and stops background work.
func (a *Application) Close() error {
	if a.Updates != nil {
		a.Updates.Stop()
	}
	a.Metrics.Shutdown()
	if a.Catalog == nil {
		return nil
	}
	return a.Catalog.Close()
}

func (a *Application) logSelection(ev selection.Event) {
	changed := make([]string, 0, len(ev.Changed))
	for _, s := range ev.Changed {
		changed = append(changed, s.String())
	}
	a.Logger.Debug("selection changed",
		slog.Uint64("seq", ev.Seq),
		slog.Any("changed", changed),
		slog.String("district", ev.State.District.Name),
		slog.String("mouza", ev.State.Mouza.Name),
		slog.String("layer", ev.State.Layer.Name))
}

// Index returns the current region index.
func (a *Application) Index() *region.Index {
	return a.Regions.Load()
}

// Ready reports whether a region index has been loaded.
func (a *Application) Ready() bool {
	return a.Regions.Ready()
}

// LoggerFor returns the application logger tagged with component.
func (a *Application) LoggerFor(component string) *slog.Logger {
	return a.Logger.With(slog.String("component", component))
}
