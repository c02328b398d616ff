package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used in result files.
const DateLayout = "2006-01-02"

// ResultsRow is the flat summary of one run. Field order matches the
// column order of Columns.
type ResultsRow struct {
	RunID                string    `json:"run_id"`
	AOI                  string    `json:"aoi"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	YearsBetween         float64   `json:"years_between"`
	AnnualRate           float64   `json:"annual_rate"`
	TotalDeforested      float64   `json:"total_deforested"`
	TotalGain            float64   `json:"total_gain"`
	HotspotPixels        int       `json:"hotspot_pixels"`
	HotspotRegions       int       `json:"hotspot_regions"`
	TotalCarbon          float64   `json:"total_carbon"`
	MeanCarbon           float64   `json:"mean_carbon"`
	StdCarbon            float64   `json:"std_carbon"`
	MinCarbon            float64   `json:"min_carbon"`
	MaxCarbon            float64   `json:"max_carbon"`
	CarbonEmissions      float64   `json:"carbon_emissions"`
	OriginalForestArea   float64   `json:"original_forest_area"`
	FragmentedForestArea float64   `json:"fragmented_forest_area"`
	ImpactZoneArea       float64   `json:"impact_zone_area"`
	FragmentCount        int       `json:"fragment_count"`
}

var columns = []string{
	"run_id", "aoi", "start_date", "end_date", "years_between",
	"annual_rate", "total_deforested", "total_gain",
	"hotspot_pixels", "hotspot_regions",
	"total_carbon", "mean_carbon", "std_carbon", "min_carbon", "max_carbon", "carbon_emissions",
	"original_forest_area", "fragmented_forest_area", "impact_zone_area", "fragment_count",
}

// Columns returns the CSV header.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Record renders r as CSV fields in column order.
func (r ResultsRow) Record() []string {
	return []string{
		r.RunID,
		r.AOI,
		formatDate(r.StartDate),
		formatDate(r.EndDate),
		formatFloat(r.YearsBetween),
		formatFloat(r.AnnualRate),
		formatFloat(r.TotalDeforested),
		formatFloat(r.TotalGain),
		strconv.Itoa(r.HotspotPixels),
		strconv.Itoa(r.HotspotRegions),
		formatFloat(r.TotalCarbon),
		formatFloat(r.MeanCarbon),
		formatFloat(r.StdCarbon),
		formatFloat(r.MinCarbon),
		formatFloat(r.MaxCarbon),
		formatFloat(r.CarbonEmissions),
		formatFloat(r.OriginalForestArea),
		formatFloat(r.FragmentedForestArea),
		formatFloat(r.ImpactZoneArea),
		strconv.Itoa(r.FragmentCount),
	}
}

// parseRecord is the inverse of Record.
func parseRecord(rec []string) (ResultsRow, error) {
	var r ResultsRow
	if len(rec) != len(columns) {
		return r, fmt.Errorf("got %d fields, want %d", len(rec), len(columns))
	}
	var err error
	date := func(i int) time.Time {
		if err != nil || rec[i] == "" {
			return time.Time{}
		}
		var t time.Time
		t, err = time.Parse(DateLayout, rec[i])
		return t
	}
	num := func(i int) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(rec[i], 64)
		return v
	}
	count := func(i int) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(rec[i])
		return v
	}

	r.RunID = rec[0]
	r.AOI = rec[1]
	r.StartDate = date(2)
	r.EndDate = date(3)
	r.YearsBetween = num(4)
	r.AnnualRate = num(5)
	r.TotalDeforested = num(6)
	r.TotalGain = num(7)
	r.HotspotPixels = count(8)
	r.HotspotRegions = count(9)
	r.TotalCarbon = num(10)
	r.MeanCarbon = num(11)
	r.StdCarbon = num(12)
	r.MinCarbon = num(13)
	r.MaxCarbon = num(14)
	r.CarbonEmissions = num(15)
	r.OriginalForestArea = num(16)
	r.FragmentedForestArea = num(17)
	r.ImpactZoneArea = num(18)
	r.FragmentCount = count(19)
	return r, err
}

// CSVWriter writes ResultsRows with a leading header.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVWriter creates a CSVWriter over w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write emits the header on first use, then r.
func (c *CSVWriter) Write(r ResultsRow) error {
	if !c.wroteHeader {
		if err := c.w.Write(columns); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	return c.w.Write(r.Record())
}

// Flush flushes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// WriteCSVFile writes the header and rows to path.
func WriteCSVFile(path string, rows ...ResultsRow) (err error) {
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

	w := NewCSVWriter(f)
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("report: write %s: %w", path, err)
		}
	}
	if len(rows) == 0 {
		if err := w.w.Write(columns); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadCSV parses a results file written by CSVWriter.
func ReadCSV(r io.Reader) ([]ResultsRow, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("report: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report: empty results file")
	}
	header := records[0]
	if len(header) != len(columns) {
		return nil, fmt.Errorf("report: header has %d columns, want %d", len(header), len(columns))
	}
	for i, name := range header {
		if name != columns[i] {
			return nil, fmt.Errorf("report: column %d is %q, want %q", i, name, columns[i])
		}
	}
	rows := make([]ResultsRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("report: row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
