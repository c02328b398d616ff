package raster

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/banshee-data/forest.report/internal/forest"
)

// Variable names used in the files this package writes.
const (
	CoverVar  = "cover"
	CanopyVar = "canopy"
	MaskVar   = "mask"
	StockVar  = "stock"
)

// FormatVersion is stored in every file. Files that carry a different
// version are rejected on read; files without one are accepted.
const FormatVersion = "forest.report/1"

var dims = []string{"y", "x"}

// newHeader builds a defined header with one variable named name whose
// element type follows zero.
func newHeader(geo forest.Geometry, name, description, units string, zero interface{}) *cdf.Header {
	h := cdf.NewHeader(dims, []int{geo.Rows, geo.Cols})
	h.AddAttribute("", "comment", "forest.report analysis grid")
	h.AddAttribute("", "format_version", FormatVersion)
	h.AddAttribute("", "geotransform", geo.Transform.Coefficients())
	if geo.CRS != "" {
		h.AddAttribute("", "crs", geo.CRS)
	}
	h.AddVariable(name, dims, zero)
	h.AddAttribute(name, "description", description)
	if units != "" {
		h.AddAttribute(name, "units", units)
	}
	h.Define()
	return h
}

// write creates path and fills variable name with data.
func write(path string, h *cdf.Header, name string, data interface{}) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("raster: create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("raster: close %s: %w", path, cerr)
		}
	}()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("raster: write header to %s: %w", path, err)
	}
	if _, err := nc.Writer(name, nil, nil).Write(data); err != nil {
		return fmt.Errorf("raster: writing variable %s to %s: %w", name, path, err)
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("raster: update record count in %s: %w", path, err)
	}
	return nil
}

// opened is a NetCDF file positioned for reading a single variable.
type opened struct {
	file *os.File
	nc   *cdf.File
	geo  forest.Geometry
}

// open reads the header of path and recovers the grid geometry stored
// alongside variable name.
func open(op, path, name string) (*opened, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, forest.Errorf(op, forest.ErrMissingData, "%v", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "%s: %v", path, err)
	}

	found := false
	for _, v := range nc.Header.Variables() {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		f.Close()
		return nil, forest.Errorf(op, forest.ErrMissingData, "%s has no %q variable", path, name)
	}
	lengths := nc.Header.Lengths(name)
	if len(lengths) != 2 {
		f.Close()
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "%s: %q has %d dimensions, want 2", path, name, len(lengths))
	}

	if v, ok := nc.Header.GetAttribute("", "format_version").(string); ok && v != FormatVersion {
		f.Close()
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "%s: format version %q, want %q", path, v, FormatVersion)
	}

	geo := forest.Geometry{Rows: lengths[0], Cols: lengths[1]}
	coeffs, _ := nc.Header.GetAttribute("", "geotransform").([]float64)
	if geo.Transform, err = forest.GeoTransformFromCoefficients(coeffs); err != nil {
		f.Close()
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "%s: %v", path, err)
	}
	geo.CRS, _ = nc.Header.GetAttribute("", "crs").(string)
	return &opened{file: f, nc: nc, geo: geo}, nil
}

func (o *opened) read(op, name string, buf interface{}) error {
	defer o.file.Close()
	if _, err := o.nc.Reader(name, nil, nil).Read(buf); err != nil {
		return forest.Errorf(op, forest.ErrInvalidInput, "reading %s: %v", name, err)
	}
	return nil
}

// WriteCover stores a binary cover grid.
func WriteCover(path string, g *forest.CoverGrid) error {
	if g == nil {
		return forest.Errorf("raster.WriteCover", forest.ErrMissingData, "nil cover grid")
	}
	h := newHeader(g.Geometry, CoverVar, "forest cover (1 forest, 0 non-forest)", "", []int32{})
	return write(path, h, CoverVar, g.Int32s())
}

// ReadCover loads a cover grid written by WriteCover or any NetCDF file
// with an INT "cover" variable on two dimensions.
func ReadCover(path string) (*forest.CoverGrid, error) {
	const op = "raster.ReadCover"
	o, err := open(op, path, CoverVar)
	if err != nil {
		return nil, err
	}
	buf := make([]int32, o.geo.Len())
	if err := o.read(op, CoverVar, buf); err != nil {
		return nil, err
	}
	return forest.NewCoverGrid(o.geo, buf)
}

// WriteCanopy stores percent canopy cover at single precision. NaN marks
// cells without data.
func WriteCanopy(path string, geo forest.Geometry, percent []float64) error {
	if err := geo.Validate(); err != nil {
		return forest.Errorf("raster.WriteCanopy", forest.ErrInvalidInput, "%v", err)
	}
	if len(percent) != geo.Len() {
		return forest.Errorf("raster.WriteCanopy", forest.ErrShapeMismatch, "%d values for %dx%d grid", len(percent), geo.Rows, geo.Cols)
	}
	buf := make([]float32, len(percent))
	for i, v := range percent {
		buf[i] = float32(v)
	}
	h := newHeader(geo, CanopyVar, "canopy cover", "percent", []float32{})
	return write(path, h, CanopyVar, buf)
}

// ReadCanopy loads a percent canopy grid from a NetCDF file with a
// two-dimensional "canopy" variable of any numeric type. Cells holding the
// variable's fill value come back as NaN; other values outside [0, 100]
// are InvalidInput.
func ReadCanopy(path string) (forest.Geometry, []float64, error) {
	const op = "raster.ReadCanopy"
	o, err := open(op, path, CanopyVar)
	if err != nil {
		return forest.Geometry{}, nil, err
	}
	n := o.geo.Len()
	buf := o.nc.Header.ZeroValue(CanopyVar, n)
	fill := o.nc.Header.FillValue(CanopyVar)
	switch buf.(type) {
	case []float32, []float64, []uint8, []int16, []int32:
	default:
		o.file.Close()
		return forest.Geometry{}, nil, forest.Errorf(op, forest.ErrInvalidInput, "%s: %q is not numeric", path, CanopyVar)
	}
	if err := o.read(op, CanopyVar, buf); err != nil {
		return forest.Geometry{}, nil, err
	}

	values := make([]float64, n)
	switch b := buf.(type) {
	case []float32:
		f, ok := fill.(float32)
		for i, v := range b {
			values[i] = orNaN(float64(v), ok && v == f)
		}
	case []float64:
		f, ok := fill.(float64)
		for i, v := range b {
			values[i] = orNaN(v, ok && v == f)
		}
	case []uint8:
		f, ok := fill.(uint8)
		for i, v := range b {
			values[i] = orNaN(float64(v), ok && v == f)
		}
	case []int16:
		f, ok := fill.(int16)
		for i, v := range b {
			values[i] = orNaN(float64(v), ok && v == f)
		}
	case []int32:
		f, ok := fill.(int32)
		for i, v := range b {
			values[i] = orNaN(float64(v), ok && v == f)
		}
	}
	for i, v := range values {
		if !math.IsNaN(v) && (v < 0 || v > 100) {
			return forest.Geometry{}, nil, forest.Errorf(op, forest.ErrInvalidInput, "cell %d is %v percent", i, v)
		}
	}
	return o.geo, values, nil
}

func orNaN(v float64, missing bool) float64 {
	if missing || math.IsNaN(v) {
		return math.NaN()
	}
	return v
}

// WriteMask stores a boolean mask as bytes.
func WriteMask(path string, m *forest.Mask) error {
	if err := m.Validate(); err != nil {
		return err
	}
	h := newHeader(m.Geometry, MaskVar, "cell selection (1 set, 0 clear)", "", []uint8{})
	return write(path, h, MaskVar, m.Uint8s())
}

// ReadMask loads a mask written by WriteMask. Any byte other than 0 or 1
// is InvalidInput.
func ReadMask(path string) (*forest.Mask, error) {
	const op = "raster.ReadMask"
	o, err := open(op, path, MaskVar)
	if err != nil {
		return nil, err
	}
	buf := make([]uint8, o.geo.Len())
	if err := o.read(op, MaskVar, buf); err != nil {
		return nil, err
	}
	cells := make([]bool, len(buf))
	for i, b := range buf {
		switch b {
		case 0:
		case 1:
			cells[i] = true
		default:
			return nil, forest.Errorf(op, forest.ErrInvalidInput, "cell %d has value %d", i, b)
		}
	}
	return forest.NewMask(o.geo, cells)
}

// WriteStock stores a carbon stock grid at single precision.
func WriteStock(path string, s *forest.StockGrid, units string) error {
	if s == nil {
		return forest.Errorf("raster.WriteStock", forest.ErrMissingData, "nil stock grid")
	}
	h := newHeader(s.Geometry, StockVar, "carbon stock per cell", units, []float32{})
	return write(path, h, StockVar, s.Float32s())
}

// ReadStock loads a stock grid. Values are widened from float32.
func ReadStock(path string) (*forest.StockGrid, error) {
	const op = "raster.ReadStock"
	o, err := open(op, path, StockVar)
	if err != nil {
		return nil, err
	}
	buf := make([]float32, o.geo.Len())
	if err := o.read(op, StockVar, buf); err != nil {
		return nil, err
	}
	values := make([]float64, len(buf))
	for i, v := range buf {
		if math.IsNaN(float64(v)) {
			return nil, forest.Errorf(op, forest.ErrInvalidInput, "cell %d is NaN", i)
		}
		values[i] = float64(v)
	}
	return forest.NewStockGrid(o.geo, values)
}
