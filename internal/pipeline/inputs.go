package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/impact"
	"github.com/banshee-data/forest.report/internal/storage/raster"
	"github.com/banshee-data/forest.report/internal/storage/vector"
)

// SeriesInput is one dated cover grid of a time series.
type SeriesInput struct {
	Date time.Time
	Path string // NetCDF cover or canopy file
}

// Inputs names the files of one run. Any field may be empty; steps whose
// inputs are missing fail and the rest carry on.
type Inputs struct {
	AOI       string
	StartDate time.Time
	EndDate   time.Time

	// Cover files hold either a binary "cover" variable or a percent
	// "canopy" variable, which is classified with the configured canopy
	// threshold.
	StartCover string // NetCDF grid at StartDate
	EndCover   string // NetCDF grid at EndDate
	Series     []SeriesInput

	Infrastructure string // .shp or .geojson
	ForestPolygons string // .shp or .geojson
	IDField        string // shapefile attribute used as feature ID

	// CRS is the target reference for shapefile reprojection. Empty means
	// the start cover's CRS.
	CRS string
}

// loaded holds what the load step read.
type loaded struct {
	start, end *forest.CoverGrid
	series     *forest.CoverSeries
	features   *impact.FeatureSet
	polygons   *impact.PolygonSet
}

func (in Inputs) load(canopyThreshold float64) (*loaded, error) {
	var l loaded
	var errs []error
	if in.StartCover != "" {
		g, err := readCover(in.StartCover, canopyThreshold)
		if err != nil {
			errs = append(errs, fmt.Errorf("start cover: %w", err))
		}
		l.start = g
	}
	if in.EndCover != "" {
		g, err := readCover(in.EndCover, canopyThreshold)
		if err != nil {
			errs = append(errs, fmt.Errorf("end cover: %w", err))
		}
		l.end = g
	}

	if len(in.Series) > 0 {
		points := make([]forest.Timepoint, 0, len(in.Series))
		for _, s := range in.Series {
			g, err := readCover(s.Path, canopyThreshold)
			if err != nil {
				errs = append(errs, fmt.Errorf("series %s: %w", s.Date.Format("2006-01-02"), err))
				points = nil
				break
			}
			points = append(points, forest.Timepoint{Date: s.Date, Grid: g})
		}
		if points != nil {
			series, err := forest.NewCoverSeries(points...)
			if err != nil {
				errs = append(errs, fmt.Errorf("series: %w", err))
			}
			l.series = series
		}
	} else if l.start != nil && l.end != nil && !in.StartDate.IsZero() && !in.EndDate.IsZero() {
		// The start/end pair is the shortest possible series.
		series, err := forest.NewCoverSeries(
			forest.Timepoint{Date: in.StartDate, Grid: l.start},
			forest.Timepoint{Date: in.EndDate, Grid: l.end},
		)
		if err == nil {
			l.series = series
		}
	}

	crs := in.CRS
	if crs == "" && l.start != nil {
		crs = l.start.CRS
	}
	opts := vector.ReadOptions{IDField: in.IDField, CRS: crs}
	if in.Infrastructure != "" {
		fs, err := readFeatures(in.Infrastructure, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("infrastructure: %w", err))
		} else {
			l.features = &fs
		}
	}
	if in.ForestPolygons != "" {
		ps, err := readPolygons(in.ForestPolygons, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("forest polygons: %w", err))
		} else {
			l.polygons = &ps
		}
	}
	return &l, errors.Join(errs...)
}

// readCover reads a binary cover grid, falling back to a percent canopy
// grid classified at threshold when the file has no cover variable.
func readCover(path string, threshold float64) (*forest.CoverGrid, error) {
	g, err := raster.ReadCover(path)
	if !errors.Is(err, forest.ErrMissingData) {
		return g, err
	}
	geo, canopy, cerr := raster.ReadCanopy(path)
	if errors.Is(cerr, forest.ErrMissingData) {
		return nil, err
	}
	if cerr != nil {
		return nil, cerr
	}
	return forest.ClassifyCanopy(geo, canopy, threshold)
}

func isShapefile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".shp")
}

func readFeatures(path string, opts vector.ReadOptions) (impact.FeatureSet, error) {
	if isShapefile(path) {
		return vector.ReadFeatures(path, opts)
	}
	return vector.ReadFile(path)
}

func readPolygons(path string, opts vector.ReadOptions) (impact.PolygonSet, error) {
	if isShapefile(path) {
		return vector.ReadPolygons(path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return impact.PolygonSet{}, forest.Errorf("pipeline.readPolygons", forest.ErrMissingData, "%v", err)
	}
	defer f.Close()
	return vector.DecodePolygons(f)
}
