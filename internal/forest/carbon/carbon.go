package carbon

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/forest.report/internal/forest"
)

// Summary describes the distribution of carbon stock over a set of cells.
// Std is the population standard deviation.
type Summary struct {
	Count int
	Total float64
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Estimate multiplies every cover cell by density, giving the stock of a
// forest cell as density and of a non-forest cell as zero.
func Estimate(grid *forest.CoverGrid, density float64) (*forest.StockGrid, error) {
	const op = "carbon.Estimate"
	if grid == nil {
		return nil, forest.Errorf(op, forest.ErrMissingData, "nil cover grid")
	}
	if math.IsNaN(density) || math.IsInf(density, 0) || density < 0 {
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "density must be a non-negative number, got %v", density)
	}
	cover := grid.Int32s()
	values := make([]float64, len(cover))
	for i, v := range cover {
		values[i] = float64(v) * density
	}
	return forest.NewStockGrid(grid.Geometry, values)
}

// Summarize aggregates over every cell, including zero-stock non-forest
// cells.
func Summarize(stocks *forest.StockGrid) (Summary, error) {
	if stocks == nil {
		return Summary{}, forest.Errorf("carbon.Summarize", forest.ErrMissingData, "nil stock grid")
	}
	return summarize(stocks.Values()), nil
}

// SummarizeMasked aggregates over the cells where mask is true. An empty
// mask yields a zero Summary.
func SummarizeMasked(stocks *forest.StockGrid, mask *forest.Mask) (Summary, error) {
	const op = "carbon.SummarizeMasked"
	selected, err := selectCells(op, stocks, mask)
	if err != nil {
		return Summary{}, err
	}
	return summarize(selected), nil
}

// Emissions is the total stock held by the cells of a transition mask, the
// carbon committed by the change it records.
func Emissions(stocks *forest.StockGrid, transition *forest.Mask) (float64, error) {
	selected, err := selectCells("carbon.Emissions", stocks, transition)
	if err != nil {
		return 0, err
	}
	return floats.Sum(selected), nil
}

func selectCells(op string, stocks *forest.StockGrid, mask *forest.Mask) ([]float64, error) {
	if stocks == nil {
		return nil, forest.Errorf(op, forest.ErrMissingData, "nil stock grid")
	}
	if err := mask.Validate(); err != nil {
		return nil, err
	}
	if err := stocks.CheckMatch(op, mask.Geometry); err != nil {
		return nil, err
	}
	values := stocks.Values()
	selected := make([]float64, 0, mask.Count())
	for i, v := range values {
		if mask.Set(i) {
			selected = append(selected, v)
		}
	}
	return selected, nil
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count: len(values),
		Total: floats.Sum(values),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
}
