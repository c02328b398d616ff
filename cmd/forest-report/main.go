// Command forest-report runs a land-cover change analysis for one area of
// interest and manages the run database.
//
//	forest-report [run] -start-cover 2015.nc -end-cover 2020.nc -start 2015-01-01 -end 2020-01-01 ...
//	forest-report runs -db runs.db [-aoi name] [-delete id]
//	forest-report migrate -db runs.db up|down|version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/forest.report/internal/config"
	"github.com/banshee-data/forest.report/internal/monitoring"
	"github.com/banshee-data/forest.report/internal/pipeline"
	"github.com/banshee-data/forest.report/internal/report"
	"github.com/banshee-data/forest.report/internal/storage/sqlite"
	"github.com/banshee-data/forest.report/internal/version"
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "runs":
		err = runsCommand(args)
	case "migrate":
		err = migrateCommand(args)
	case "version":
		fmt.Println(version.String())
	default:
		log.Fatalf("unknown command %q (want run, runs, migrate or version)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Analysis config JSON (default: built-in defaults)")
	aoi := fs.String("aoi", "", "Area of interest name recorded with the run")
	startCover := fs.String("start-cover", "", "NetCDF cover or percent canopy grid at the start date")
	endCover := fs.String("end-cover", "", "NetCDF cover or percent canopy grid at the end date")
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "End date (YYYY-MM-DD)")
	series := fs.String("series", "", "Cover series as comma-separated date=path pairs")
	infra := fs.String("infrastructure", "", "Infrastructure features (.shp or .geojson)")
	forestPolys := fs.String("forest-polygons", "", "Forest polygons (.shp or .geojson)")
	idField := fs.String("id-field", "", "Shapefile attribute used as the feature ID")
	crs := fs.String("crs", "", "Target CRS for shapefile reprojection (default: start cover CRS)")
	outDir := fs.String("out", "output", "Output directory; empty disables file products")
	dbPath := fs.String("db", "", "SQLite run database; empty disables persistence")
	quiet := fs.Bool("quiet", false, "Suppress progress logging")
	fs.Parse(args)

	cfg := config.DefaultAnalysisConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadAnalysisConfig(*configPath); err != nil {
			return err
		}
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	in := pipeline.Inputs{
		AOI:            *aoi,
		StartCover:     *startCover,
		EndCover:       *endCover,
		Infrastructure: *infra,
		ForestPolygons: *forestPolys,
		IDField:        *idField,
		CRS:            *crs,
	}
	var err error
	if in.StartDate, err = parseDate(*start); err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if in.EndDate, err = parseDate(*end); err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	if in.Series, err = parseSeries(*series); err != nil {
		return fmt.Errorf("-series: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &pipeline.Runner{
		Config:   cfg,
		Observer: monitoring.NewObserver(),
		Output:   pipeline.Output{Dir: *outDir, DBPath: *dbPath},
	}
	res, err := runner.Run(ctx, in)
	if err != nil {
		return err
	}
	for _, f := range res.Files {
		log.Printf("wrote %s", f)
	}
	log.Printf("run %s: deforested %g %s (%g/yr), %d hotspot regions, %g carbon emitted, %d fragments",
		res.Row.RunID, res.Row.TotalDeforested, cfg.GetPixelAreaUnit(), res.Row.AnnualRate,
		res.Row.HotspotRegions, res.Row.CarbonEmissions, res.Row.FragmentCount)
	if failed := res.Failed(); len(failed) > 0 {
		for _, s := range failed {
			log.Printf("step %s failed: %v", s.Name, s.Err)
		}
		return fmt.Errorf("%d step(s) failed", len(failed))
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(report.DateLayout, s)
}

// parseSeries reads "2019-01-01=a.nc,2020-01-01=b.nc". A bare year is
// taken as 1 January of that year.
func parseSeries(s string) ([]pipeline.SeriesInput, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []pipeline.SeriesInput
	for _, part := range strings.Split(s, ",") {
		date, path, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("entry %q is not date=path", part)
		}
		t, err := time.Parse(report.DateLayout, date)
		if err != nil {
			if t, err = time.Parse("2006", date); err != nil {
				return nil, fmt.Errorf("entry %q: bad date %q", part, date)
			}
		}
		out = append(out, pipeline.SeriesInput{Date: t, Path: path})
	}
	return out, nil
}

func runsCommand(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "forest_runs.db", "SQLite run database")
	aoi := fs.String("aoi", "", "Only list runs for this area of interest")
	del := fs.String("delete", "", "Delete the run with this ID")
	fs.Parse(args)

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if *del != "" {
		if err := store.DeleteRun(ctx, *del); err != nil {
			return err
		}
		log.Printf("deleted run %s", *del)
		return nil
	}
	runs, err := store.ListRuns(ctx, *aoi)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tAOI\tSTART\tEND\tANNUAL RATE\tEMISSIONS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%s\n",
			r.Row.RunID, r.Row.AOI,
			r.Row.StartDate.Format(report.DateLayout), r.Row.EndDate.Format(report.DateLayout),
			r.Row.AnnualRate, r.Row.CarbonEmissions,
			time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func migrateCommand(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "forest_runs.db", "SQLite run database")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: forest-report migrate -db PATH up|down|version")
	}

	// Migrations manage the schema, so open without applying them.
	store, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch fs.Arg(0) {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q", fs.Arg(0))
	}
	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	log.Printf("schema version %d (dirty=%v)", v, dirty)
	return nil
}
