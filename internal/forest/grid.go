package forest

import "math"

// Cover values.
const (
	NonForest uint8 = 0
	Forest    uint8 = 1
)

// CoverGrid is an immutable binary land-cover raster.
type CoverGrid struct {
	Geometry
	values []uint8
}

// NewCoverGrid copies values into a new grid. Values must be 0 or 1 and
// there must be exactly Rows*Cols of them.
func NewCoverGrid(geo Geometry, values []int32) (*CoverGrid, error) {
	const op = "forest.NewCoverGrid"
	if err := geo.Validate(); err != nil {
		return nil, Errorf(op, ErrInvalidInput, "%v", err)
	}
	if len(values) != geo.Len() {
		return nil, Errorf(op, ErrShapeMismatch, "%d values for %dx%d grid", len(values), geo.Rows, geo.Cols)
	}
	out := make([]uint8, len(values))
	for i, v := range values {
		if v != 0 && v != 1 {
			return nil, Errorf(op, ErrInvalidInput, "cell %d has non-binary value %d", i, v)
		}
		out[i] = uint8(v)
	}
	return &CoverGrid{Geometry: geo, values: out}, nil
}

// At returns the cover value at (row, col).
func (g *CoverGrid) At(row, col int) uint8 { return g.values[g.Index(row, col)] }

// IsForest reports whether row-major cell i is forest.
func (g *CoverGrid) IsForest(i int) bool { return g.values[i] == Forest }

// ForestCount is the number of forest cells.
func (g *CoverGrid) ForestCount() int {
	n := 0
	for _, v := range g.values {
		if v == Forest {
			n++
		}
	}
	return n
}

// Int32s returns a copy of the cells widened for storage.
func (g *CoverGrid) Int32s() []int32 {
	out := make([]int32, len(g.values))
	for i, v := range g.values {
		out[i] = int32(v)
	}
	return out
}

// ClassifyCanopy derives a cover grid from percent canopy cover: a cell is
// forest when its canopy is at least thresholdPercent. NaN cells are
// non-forest.
func ClassifyCanopy(geo Geometry, canopy []float64, thresholdPercent float64) (*CoverGrid, error) {
	const op = "forest.ClassifyCanopy"
	if math.IsNaN(thresholdPercent) || thresholdPercent < 0 || thresholdPercent > 100 {
		return nil, Errorf(op, ErrInvalidInput, "threshold %v outside [0, 100]", thresholdPercent)
	}
	if err := geo.Validate(); err != nil {
		return nil, Errorf(op, ErrInvalidInput, "%v", err)
	}
	if len(canopy) != geo.Len() {
		return nil, Errorf(op, ErrShapeMismatch, "%d values for %dx%d grid", len(canopy), geo.Rows, geo.Cols)
	}
	out := make([]uint8, len(canopy))
	for i, v := range canopy {
		if v >= thresholdPercent {
			out[i] = Forest
		}
	}
	return &CoverGrid{Geometry: geo, values: out}, nil
}

// ForestArea is the total forest area of the grid in unit.
func ForestArea(g *CoverGrid, unit AreaUnit) (float64, error) {
	if g == nil {
		return 0, Errorf("forest.ForestArea", ErrMissingData, "nil grid")
	}
	return sumArea(g.Geometry, unit, g.IsForest)
}

// Mask is an immutable boolean grid. Transition masks and hotspot masks
// are both Masks.
type Mask struct {
	Geometry
	cells []bool
}

// NewMask copies cells into a new mask after checking the declared shape.
func NewMask(geo Geometry, cells []bool) (*Mask, error) {
	const op = "forest.NewMask"
	if err := geo.Validate(); err != nil {
		return nil, Errorf(op, ErrInvalidInput, "%v", err)
	}
	if len(cells) != geo.Len() {
		return nil, Errorf(op, ErrInvalidInput, "%d cells for %dx%d mask", len(cells), geo.Rows, geo.Cols)
	}
	out := make([]bool, len(cells))
	copy(out, cells)
	return &Mask{Geometry: geo, cells: out}, nil
}

// MaskFromFunc builds a mask by evaluating set for every row-major index.
func MaskFromFunc(geo Geometry, set func(i int) bool) *Mask {
	cells := make([]bool, geo.Len())
	for i := range cells {
		cells[i] = set(i)
	}
	return &Mask{Geometry: geo, cells: cells}
}

// Validate checks that the cell slice agrees with the declared shape.
// The zero Mask fails.
func (m *Mask) Validate() error {
	if m == nil {
		return Errorf("forest.Mask", ErrMissingData, "nil mask")
	}
	if err := m.Geometry.Validate(); err != nil {
		return Errorf("forest.Mask", ErrInvalidInput, "%v", err)
	}
	if len(m.cells) != m.Len() {
		return Errorf("forest.Mask", ErrInvalidInput, "%d cells for %dx%d mask", len(m.cells), m.Rows, m.Cols)
	}
	return nil
}

// At returns the cell at (row, col).
func (m *Mask) At(row, col int) bool { return m.cells[m.Index(row, col)] }

// Set reports whether row-major cell i is true.
func (m *Mask) Set(i int) bool { return m.cells[i] }

// Count is the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Uint8s returns the mask as 0/1 bytes for storage.
func (m *Mask) Uint8s() []uint8 {
	out := make([]uint8, len(m.cells))
	for i, c := range m.cells {
		if c {
			out[i] = 1
		}
	}
	return out
}

// Float64s returns the mask as 0/1 reals.
func (m *Mask) Float64s() []float64 {
	out := make([]float64, len(m.cells))
	for i, c := range m.cells {
		if c {
			out[i] = 1
		}
	}
	return out
}

// MaskArea is the total area of the true cells in unit.
func MaskArea(m *Mask, unit AreaUnit) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return sumArea(m.Geometry, unit, m.Set)
}

// StockGrid is an immutable per-cell carbon stock raster.
type StockGrid struct {
	Geometry
	values []float64
}

// NewStockGrid copies values into a new stock grid.
func NewStockGrid(geo Geometry, values []float64) (*StockGrid, error) {
	const op = "forest.NewStockGrid"
	if err := geo.Validate(); err != nil {
		return nil, Errorf(op, ErrInvalidInput, "%v", err)
	}
	if len(values) != geo.Len() {
		return nil, Errorf(op, ErrShapeMismatch, "%d values for %dx%d grid", len(values), geo.Rows, geo.Cols)
	}
	out := make([]float64, len(values))
	copy(out, values)
	return &StockGrid{Geometry: geo, values: out}, nil
}

// At returns the stock at (row, col).
func (s *StockGrid) At(row, col int) float64 { return s.values[s.Index(row, col)] }

// Values returns a copy of the cells in row-major order.
func (s *StockGrid) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Float32s narrows the cells to the storage pixel type.
func (s *StockGrid) Float32s() []float32 {
	out := make([]float32, len(s.values))
	for i, v := range s.values {
		out[i] = float32(v)
	}
	return out
}
