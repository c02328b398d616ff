package change

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/forest.report/internal/forest"
)

// IntervalLoss summarizes cover change between two consecutive timepoints.
// Areas are in the unit passed to SeriesLoss.
type IntervalLoss struct {
	From           time.Time
	To             time.Time
	Years          float64
	LossArea       float64
	GainArea       float64
	AnnualRate     float64
	CumulativeLoss float64 // loss since the first timepoint
	ForestArea     float64 // forest cover at To
}

// CoverPoint is the forest area observed at one timepoint.
type CoverPoint struct {
	Date       time.Time
	ForestArea float64
}

// SeriesLoss computes one IntervalLoss per consecutive pair in the series.
// A single-entry series yields no intervals.
func SeriesLoss(series *forest.CoverSeries, unit forest.AreaUnit) ([]IntervalLoss, error) {
	const op = "change.SeriesLoss"
	if series == nil {
		return nil, forest.Errorf(op, forest.ErrMissingData, "nil series")
	}
	out := make([]IntervalLoss, 0, max(series.Len()-1, 0))
	var cumulative float64
	for i := 1; i < series.Len(); i++ {
		from, to := series.At(i-1), series.At(i)
		loss, err := Detect(from.Grid, to.Grid)
		if err != nil {
			return nil, err
		}
		gain, err := Gain(from.Grid, to.Grid)
		if err != nil {
			return nil, err
		}
		years := forest.YearsBetween(from.Date, to.Date)
		rate, lossArea, err := RateScaled(loss, years, unit)
		if err != nil {
			return nil, err
		}
		gainArea, err := forest.MaskArea(gain, unit)
		if err != nil {
			return nil, err
		}
		cover, err := forest.ForestArea(to.Grid, unit)
		if err != nil {
			return nil, err
		}
		cumulative += lossArea
		out = append(out, IntervalLoss{
			From:           from.Date,
			To:             to.Date,
			Years:          years,
			LossArea:       lossArea,
			GainArea:       gainArea,
			AnnualRate:     rate,
			CumulativeLoss: cumulative,
			ForestArea:     cover,
		})
	}
	return out, nil
}

// CoverTrend returns the forest area at every timepoint of the series.
func CoverTrend(series *forest.CoverSeries, unit forest.AreaUnit) ([]CoverPoint, error) {
	if series == nil {
		return nil, forest.Errorf("change.CoverTrend", forest.ErrMissingData, "nil series")
	}
	out := make([]CoverPoint, series.Len())
	for i := range out {
		tp := series.At(i)
		a, err := forest.ForestArea(tp.Grid, unit)
		if err != nil {
			return nil, err
		}
		out[i] = CoverPoint{Date: tp.Date, ForestArea: a}
	}
	return out, nil
}

// MovingAverage returns the trailing mean of values over window entries.
// The first window-1 outputs are NaN, matching rolling-window semantics.
func MovingAverage(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, forest.Errorf("change.MovingAverage", forest.ErrInvalidInput, "window must be positive, got %d", window)
	}
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Sum(values[i+1-window:i+1]) / float64(window)
	}
	return out, nil
}
