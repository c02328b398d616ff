package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ctessum/geom"
	"github.com/google/uuid"

	"github.com/banshee-data/forest.report/internal/config"
	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/carbon"
	"github.com/banshee-data/forest.report/internal/forest/change"
	"github.com/banshee-data/forest.report/internal/forest/hotspot"
	"github.com/banshee-data/forest.report/internal/forest/impact"
	"github.com/banshee-data/forest.report/internal/monitoring"
	"github.com/banshee-data/forest.report/internal/report"
	"github.com/banshee-data/forest.report/internal/storage/raster"
	"github.com/banshee-data/forest.report/internal/storage/sqlite"
	"github.com/banshee-data/forest.report/internal/storage/vector"
	"github.com/banshee-data/forest.report/internal/version"
)

// Step names, in execution order.
const (
	StepLoad           = "load"
	StepDeforestation  = "deforestation"
	StepCarbon         = "carbon"
	StepInfrastructure = "infrastructure"
	StepSeries         = "series"
	StepPersist        = "persist"
)

// Output says where a run writes. Empty fields disable that output.
type Output struct {
	Dir    string // NetCDF, GeoJSON, shapefile, PNG, HTML and CSV products
	DBPath string // SQLite run store
}

// Runner executes analysis runs with one configuration.
type Runner struct {
	Config   *config.AnalysisConfig
	Observer *monitoring.Observer
	Output   Output
}

// Result is everything one run produced. Fields of steps that failed are
// left zero.
type Result struct {
	Row   report.ResultsRow
	Steps []monitoring.StepTiming
	Files []string

	Deforestation *forest.Mask
	Gain          *forest.Mask
	Hotspots      *forest.Mask
	Regions       []hotspot.Region

	Stocks        *forest.StockGrid
	CarbonSummary carbon.Summary
	// ForestCarbon summarizes only the start grid's forest cells.
	ForestCarbon  carbon.Summary

	Zones         *impact.ZoneSet
	Fragments     []geom.Polygon
	Fragmentation impact.FragmentationMetrics

	Losses        []change.IntervalLoss
	Trend         []change.CoverPoint
	MovingAverage []float64
}

// Failed returns the steps that ended with an error.
func (r *Result) Failed() []monitoring.StepTiming {
	var out []monitoring.StepTiming
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// run carries the state shared by the steps of one Run call.
type run struct {
	ctx     context.Context
	cfg     *config.AnalysisConfig
	unit    forest.AreaUnit
	in      Inputs
	out     Output
	plotter *report.Plotter
	obs     *monitoring.Observer
	first   int

	data *loaded
	res  *Result
}

// Run executes every step in order. Step failures are recorded in the
// Result, not returned; the error is non-nil only for an invalid
// configuration or a cancelled ctx, checked between steps.
func (r *Runner) Run(ctx context.Context, in Inputs) (*Result, error) {
	cfg := r.Config
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	unit, err := forest.ParseAreaUnit(cfg.GetPixelAreaUnit())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	obs := r.Observer
	if obs == nil {
		obs = monitoring.NewObserver()
	}

	st := &run{
		ctx:   ctx,
		cfg:   cfg,
		unit:  unit,
		in:    in,
		out:   r.Output,
		obs:   obs,
		first: len(obs.Steps()),
		data:  &loaded{},
		res: &Result{Row: report.ResultsRow{
			RunID:     uuid.New().String(),
			AOI:       in.AOI,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
		}},
	}
	if r.Output.Dir != "" {
		st.plotter = report.NewPlotter(r.Output.Dir)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepLoad, st.load},
		{StepDeforestation, st.deforestation},
		{StepCarbon, st.carbon},
		{StepInfrastructure, st.infrastructure},
		{StepSeries, st.series},
		{StepPersist, st.persist},
	}
	obs.Log("run %s started for AOI %q", st.res.Row.RunID, in.AOI)
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			st.res.Steps = st.steps()
			return st.res, err
		}
		done := obs.Step(s.name)
		done(s.fn())
	}
	st.res.Steps = st.steps()
	obs.Log("run %s finished, %d of %d steps failed", st.res.Row.RunID, len(st.res.Failed()), len(steps))
	return st.res, nil
}

func (st *run) steps() []monitoring.StepTiming {
	return st.obs.Steps()[st.first:]
}

func (st *run) path(name string) string {
	return filepath.Join(st.out.Dir, name)
}

func (st *run) wrote(path string) {
	st.res.Files = append(st.res.Files, path)
}

func missing(op, format string, args ...interface{}) error {
	return forest.Errorf(op, forest.ErrMissingData, format, args...)
}

func (st *run) load() error {
	data, err := st.in.load(st.cfg.GetCanopyThresholdPercent())
	st.data = data
	return err
}

func (st *run) deforestation() error {
	const op = "pipeline.deforestation"
	start, end := st.data.start, st.data.end
	if start == nil || end == nil {
		return missing(op, "start and end cover grids are required")
	}
	if st.in.StartDate.IsZero() || st.in.EndDate.IsZero() {
		return missing(op, "start and end dates are required")
	}
	years := forest.YearsBetween(st.in.StartDate, st.in.EndDate)

	loss, err := change.Detect(start, end)
	if err != nil {
		return err
	}
	rate, total, err := change.RateScaled(loss, years, st.unit)
	if err != nil {
		return err
	}
	gain, err := change.Gain(start, end)
	if err != nil {
		return err
	}
	gainArea, err := forest.MaskArea(gain, st.unit)
	if err != nil {
		return err
	}
	hc := hotspot.ConfigFromAnalysis(st.cfg)
	hot, err := hc.Detect(loss)
	if err != nil {
		return err
	}
	regions, err := hotspot.Regions(hot)
	if err != nil {
		return err
	}

	st.res.Deforestation, st.res.Gain, st.res.Hotspots, st.res.Regions = loss, gain, hot, regions
	row := &st.res.Row
	row.YearsBetween = years
	row.AnnualRate = rate
	row.TotalDeforested = total
	row.TotalGain = gainArea
	row.HotspotPixels = hot.Count()
	row.HotspotRegions = len(regions)

	if st.out.Dir == "" {
		return nil
	}
	for _, m := range []struct {
		name string
		mask *forest.Mask
	}{
		{"deforestation.nc", loss},
		{"gain.nc", gain},
		{"hotspots.nc", hot},
	} {
		p := st.path(m.name)
		if err := raster.WriteMask(p, m.mask); err != nil {
			return err
		}
		st.wrote(p)
	}
	density, err := hotspot.Smooth(loss, hc.Sigma, hc.Truncate)
	if err != nil {
		return err
	}
	p, err := st.plotter.Heatmap("hotspot_density.png", "Deforestation density", loss.Geometry, density)
	if err != nil {
		return err
	}
	st.wrote(p)
	if p, err = st.plotter.MaskHeatmap("hotspots.png", "Deforestation hotspots", hot); err != nil {
		return err
	}
	st.wrote(p)
	return nil
}

func (st *run) carbon() error {
	const op = "pipeline.carbon"
	if st.data.start == nil {
		return missing(op, "start cover grid is required")
	}
	stocks, err := carbon.Estimate(st.data.start, st.cfg.GetCarbonDensity())
	if err != nil {
		return err
	}
	summary, err := carbon.Summarize(stocks)
	if err != nil {
		return err
	}
	forestOnly, err := carbon.SummarizeMasked(stocks, forest.MaskFromFunc(st.data.start.Geometry, st.data.start.IsForest))
	if err != nil {
		return err
	}
	st.res.Stocks, st.res.CarbonSummary, st.res.ForestCarbon = stocks, summary, forestOnly
	st.obs.Log("carbon: %d forest cells, mean %.4g per forest cell", forestOnly.Count, forestOnly.Mean)
	row := &st.res.Row
	row.TotalCarbon = summary.Total
	row.MeanCarbon = summary.Mean
	row.StdCarbon = summary.Std
	row.MinCarbon = summary.Min
	row.MaxCarbon = summary.Max

	// Emissions need the deforestation mask; without it they stay zero.
	if st.res.Deforestation != nil {
		if row.CarbonEmissions, err = carbon.Emissions(stocks, st.res.Deforestation); err != nil {
			return err
		}
	}

	if st.out.Dir == "" {
		return nil
	}
	p := st.path("carbon_stock.nc")
	if err := raster.WriteStock(p, stocks, "carbon per cell"); err != nil {
		return err
	}
	st.wrote(p)
	if p, err = st.plotter.CarbonHistogram("carbon_histogram.png", stocks.Values(), 20); err != nil {
		return err
	}
	st.wrote(p)
	return nil
}

func (st *run) infrastructure() error {
	const op = "pipeline.infrastructure"
	if st.data.features == nil {
		return missing(op, "infrastructure features are required")
	}
	if st.data.polygons == nil {
		return missing(op, "forest polygons are required")
	}
	zones, err := impact.ConfigFromAnalysis(st.cfg).Buffer(*st.data.features)
	if err != nil {
		return err
	}
	fragments, metrics, err := impact.Fragment(*st.data.polygons, zones)
	if err != nil {
		return err
	}
	st.res.Zones, st.res.Fragments, st.res.Fragmentation = zones, fragments, metrics
	row := &st.res.Row
	row.OriginalForestArea = metrics.OriginalForestArea
	row.FragmentedForestArea = metrics.FragmentedForestArea
	row.ImpactZoneArea = metrics.ImpactZoneArea
	row.FragmentCount = metrics.FragmentCount

	if st.out.Dir == "" {
		return nil
	}
	zc, err := vector.ZonesCollection(zones)
	if err != nil {
		return err
	}
	p := st.path("impact_zones.geojson")
	if err := vector.WriteFile(p, zc); err != nil {
		return err
	}
	st.wrote(p)
	fc, err := vector.FragmentsCollection(zones.CRS, fragments)
	if err != nil {
		return err
	}
	p = st.path("forest_fragments.geojson")
	if err := vector.WriteFile(p, fc); err != nil {
		return err
	}
	st.wrote(p)
	p = st.path("impact_zones.shp")
	if _, err := vector.WriteZones(p, zones); err != nil {
		return err
	}
	st.wrote(p)
	return nil
}

func (st *run) series() error {
	const op = "pipeline.series"
	if st.data.series == nil {
		return missing(op, "a cover series or dated start and end grids are required")
	}
	losses, err := change.SeriesLoss(st.data.series, st.unit)
	if err != nil {
		return err
	}
	trend, err := change.CoverTrend(st.data.series, st.unit)
	if err != nil {
		return err
	}
	lossArea := make([]float64, len(losses))
	for i, l := range losses {
		lossArea[i] = l.LossArea
	}
	avg, err := change.MovingAverage(lossArea, st.cfg.GetMovingAverageWindow())
	if err != nil {
		return err
	}
	st.res.Losses, st.res.Trend, st.res.MovingAverage = losses, trend, avg

	if st.out.Dir == "" {
		return nil
	}
	p, err := st.plotter.CoverSeries("forest_cover.png", trend, st.unit)
	if err != nil {
		return err
	}
	st.wrote(p)
	if len(losses) == 0 {
		return nil
	}
	if p, err = st.plotter.LossBars("annual_loss.png", losses, avg, st.unit); err != nil {
		return err
	}
	st.wrote(p)
	p = st.path("loss_trend.html")
	if err := report.WriteLossTrendFile(p, "Forest loss "+st.in.AOI, losses, avg, st.unit); err != nil {
		return err
	}
	st.wrote(p)
	return nil
}

func (st *run) persist() error {
	if st.out.Dir != "" {
		p := st.path("results.csv")
		if err := report.WriteCSVFile(p, st.res.Row); err != nil {
			return err
		}
		st.wrote(p)
	}
	if st.out.DBPath == "" {
		return nil
	}
	store, err := sqlite.Open(st.out.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	cfgJSON, err := st.cfg.JSON()
	if err != nil {
		return err
	}
	created := time.Now()
	if st.obs.Clock != nil {
		created = st.obs.Clock.Now()
	}
	_, err = store.InsertRun(st.ctx, &sqlite.Run{
		Row:        st.res.Row,
		ConfigJSON: cfgJSON,
		Version:    version.String(),
		CreatedAt:  created.UnixNano(),
		Steps:      sqlite.StepRecords(st.steps()),
	})
	return err
}
