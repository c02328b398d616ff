package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/change"
)

// Plotter writes PNG figures into OutputDir.
type Plotter struct {
	OutputDir string
	Width     vg.Length
	Height    vg.Length
}

// NewPlotter creates a Plotter with the default 10x6 inch page.
func NewPlotter(outputDir string) *Plotter {
	return &Plotter{OutputDir: outputDir, Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

func (pl *Plotter) save(p *plot.Plot, name string) (string, error) {
	if err := os.MkdirAll(pl.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}
	path := filepath.Join(pl.OutputDir, name)
	if err := p.Save(pl.Width, pl.Height, path); err != nil {
		return "", fmt.Errorf("report: save %s: %w", name, err)
	}
	return path, nil
}

// gridXYZ adapts a row-major raster to plotter.GridXYZ with row 0 at the
// top of the image.
type gridXYZ struct {
	rows, cols int
	values     []float64
}

func (g gridXYZ) Dims() (c, r int)   { return g.cols, g.rows }
func (g gridXYZ) Z(c, r int) float64 { return g.values[(g.rows-1-r)*g.cols+c] }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

// Heatmap draws a per-cell intensity raster such as a smoothed loss
// density. values is row-major over geo.
func (pl *Plotter) Heatmap(name, title string, geo forest.Geometry, values []float64) (string, error) {
	if len(values) != geo.Len() || geo.Len() == 0 {
		return "", forest.Errorf("report.Heatmap", forest.ErrShapeMismatch, "%d values for %dx%d grid", len(values), geo.Rows, geo.Cols)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if hi <= lo {
		hi = lo + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row (from bottom)"

	h := plotter.NewHeatMap(gridXYZ{rows: geo.Rows, cols: geo.Cols, values: values}, palette.Heat(16, 1))
	h.Min, h.Max = lo, hi
	h.NaN = color.Transparent
	p.Add(h)
	return pl.save(p, name)
}

// MaskHeatmap draws a boolean mask as a two-colour raster.
func (pl *Plotter) MaskHeatmap(name, title string, m *forest.Mask) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	return pl.Heatmap(name, title, m.Geometry, m.Float64s())
}

// CoverSeries draws forest area against date.
func (pl *Plotter) CoverSeries(name string, points []change.CoverPoint, unit forest.AreaUnit) (string, error) {
	if len(points) == 0 {
		return "", forest.Errorf("report.CoverSeries", forest.ErrMissingData, "no cover points")
	}
	xys := make(plotter.XYs, len(points))
	for i, cp := range points {
		xys[i] = plotter.XY{X: float64(cp.Date.Unix()), Y: cp.ForestArea}
	}

	p := plot.New()
	p.Title.Text = "Forest cover"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = fmt.Sprintf("Forest area (%s)", unit)
	p.X.Tick.Marker = plot.TimeTicks{Format: time.DateOnly}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return "", fmt.Errorf("report: cover line: %w", err)
	}
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 34, G: 139, B: 34, A: 255}
	p.Add(line, plotter.NewGrid())
	return pl.save(p, name)
}

// LossBars draws per-interval loss as bars with the moving average of the
// same values overlaid. NaN entries of movingAvg are left out of the line.
func (pl *Plotter) LossBars(name string, losses []change.IntervalLoss, movingAvg []float64, unit forest.AreaUnit) (string, error) {
	if len(losses) == 0 {
		return "", forest.Errorf("report.LossBars", forest.ErrMissingData, "no intervals")
	}
	vals := make(plotter.Values, len(losses))
	labels := make([]string, len(losses))
	for i, l := range losses {
		vals[i] = l.LossArea
		labels[i] = l.To.Format("2006")
	}

	p := plot.New()
	p.Title.Text = "Forest loss per interval"
	p.Y.Label.Text = fmt.Sprintf("Loss (%s)", unit)

	bars, err := plotter.NewBarChart(vals, vg.Points(18))
	if err != nil {
		return "", fmt.Errorf("report: loss bars: %w", err)
	}
	bars.Color = color.RGBA{R: 178, G: 34, B: 34, A: 255}
	p.Add(bars)
	p.Legend.Add("loss", bars)

	var avg plotter.XYs
	for i, v := range movingAvg {
		if i < len(losses) && !math.IsNaN(v) {
			avg = append(avg, plotter.XY{X: float64(i), Y: v})
		}
	}
	if len(avg) > 0 {
		line, err := plotter.NewLine(avg)
		if err != nil {
			return "", fmt.Errorf("report: moving average: %w", err)
		}
		line.Width = vg.Points(1.5)
		line.Color = color.RGBA{B: 160, A: 255}
		p.Add(line)
		p.Legend.Add("moving average", line)
	}
	p.NominalX(labels...)
	return pl.save(p, name)
}

// CarbonHistogram draws the distribution of per-cell stocks.
func (pl *Plotter) CarbonHistogram(name string, values []float64, bins int) (string, error) {
	if len(values) == 0 {
		return "", forest.Errorf("report.CarbonHistogram", forest.ErrMissingData, "no stock values")
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return "", fmt.Errorf("report: histogram: %w", err)
	}
	h.FillColor = color.RGBA{R: 85, G: 107, B: 47, A: 255}

	p := plot.New()
	p.Title.Text = "Carbon stock per forest cell"
	p.X.Label.Text = "Stock"
	p.Y.Label.Text = "Cells"
	p.Add(h)
	return pl.save(p, name)
}
