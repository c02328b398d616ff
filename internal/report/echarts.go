package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/change"
)

// LossTrendChart builds an interactive bar chart of loss per interval with
// the moving average drawn as a line on top. Undefined moving-average
// entries are rendered as gaps.
func LossTrendChart(title string, losses []change.IntervalLoss, movingAvg []float64, unit forest.AreaUnit) (*charts.Bar, error) {
	if len(losses) == 0 {
		return nil, forest.Errorf("report.LossTrendChart", forest.ErrMissingData, "no intervals")
	}
	labels := make([]string, len(losses))
	bars := make([]opts.BarData, len(losses))
	gain := make([]opts.BarData, len(losses))
	avg := make([]opts.LineData, len(losses))
	for i, l := range losses {
		labels[i] = fmt.Sprintf("%s to %s", l.From.Format(DateLayout), l.To.Format(DateLayout))
		bars[i] = opts.BarData{Value: l.LossArea}
		gain[i] = opts.BarData{Value: l.GainArea}
		avg[i] = opts.LineData{Value: "-"}
		if i < len(movingAvg) && !math.IsNaN(movingAvg[i]) {
			avg[i] = opts.LineData{Value: movingAvg[i]}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("intervals=%d unit=%s", len(losses), unit)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Area (%s)", unit)}),
	)
	bar.SetXAxis(labels).
		AddSeries("loss", bars).
		AddSeries("gain", gain)

	line := charts.NewLine()
	line.SetXAxis(labels).AddSeries("loss moving average", avg)
	bar.Overlap(line)
	return bar, nil
}

// WriteLossTrend renders LossTrendChart as a standalone HTML page.
func WriteLossTrend(w io.Writer, title string, losses []change.IntervalLoss, movingAvg []float64, unit forest.AreaUnit) error {
	bar, err := LossTrendChart(title, losses, movingAvg, unit)
	if err != nil {
		return err
	}
	return bar.Render(w)
}

// WriteLossTrendFile is WriteLossTrend into path.
func WriteLossTrendFile(path, title string, losses []change.IntervalLoss, movingAvg []float64, unit forest.AreaUnit) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return WriteLossTrend(f, title, losses, movingAvg, unit)
}
