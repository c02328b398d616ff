package forest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry(rows, cols int) Geometry {
	return Geometry{
		Rows:      rows,
		Cols:      cols,
		Transform: GeoTransform{OriginX: 500000, PixelWidth: 30, OriginY: 4500000, PixelHeight: -30},
		CRS:       "EPSG:32617",
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestError_UnwrapsKind(t *testing.T) {
	err := Errorf("op", ErrShapeMismatch, "3x3 vs %s", "2x2")
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.False(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "op: shape mismatch: 3x3 vs 2x2", err.Error())

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "op", fe.Op)

	bare := &Error{Op: "x", Kind: ErrMissingData}
	assert.Equal(t, "x: missing data", bare.Error())
}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

func TestGeometry_Matches(t *testing.T) {
	a := testGeometry(3, 4)
	b := a
	b.CRS = " epsg:32617 "
	assert.True(t, a.Matches(b))
	assert.NoError(t, a.CheckMatch("t", b))

	c := testGeometry(4, 3)
	assert.False(t, a.Matches(c))
	assert.ErrorIs(t, a.CheckMatch("t", c), ErrShapeMismatch)

	d := a
	d.Transform.OriginX++
	assert.ErrorIs(t, a.CheckMatch("t", d), ErrShapeMismatch)

	e := a
	e.CRS = "EPSG:4326"
	assert.ErrorIs(t, a.CheckMatch("t", e), ErrShapeMismatch)
}

func TestGeoTransform_Coefficients(t *testing.T) {
	gt := GeoTransform{1, 2, 3, 4, 5, 6}
	back, err := GeoTransformFromCoefficients(gt.Coefficients())
	require.NoError(t, err)
	assert.Equal(t, gt, back)

	_, err = GeoTransformFromCoefficients([]float64{1, 2})
	assert.Error(t, err)

	x, y := GeoTransform{OriginX: 10, PixelWidth: 2, OriginY: 20, PixelHeight: -2}.Apply(1, 3)
	assert.Equal(t, 16.0, x)
	assert.Equal(t, 18.0, y)
}

func TestGeometry_PixelArea(t *testing.T) {
	g := testGeometry(2, 2)
	assert.Equal(t, 900.0, g.PixelArea())
	assert.Equal(t, 900.0, g.PixelAreaAt(1))

	ha, err := g.CellArea(0, UnitHectares)
	require.NoError(t, err)
	assert.InDelta(t, 0.09, ha, 1e-12)

	px, err := g.CellArea(0, UnitPixels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, px)

	_, err = g.CellArea(0, AreaUnit("acre"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGeometry_PixelAreaAtGeographic(t *testing.T) {
	g := Geometry{
		Rows:      90,
		Cols:      1,
		Transform: GeoTransform{OriginX: 0, PixelWidth: 1, OriginY: 1, PixelHeight: -1},
		CRS:       "EPSG:4326",
	}
	require.True(t, g.IsGeographic())

	// Spherical zone area between latitudes 0 and 1 degree, 1 degree wide.
	rad := math.Pi / 180
	want := EarthRadiusMeters * EarthRadiusMeters * rad * math.Sin(rad)
	assert.InEpsilon(t, want, g.PixelAreaAt(0), 1e-6)

	// Cells shrink towards the pole.
	assert.Less(t, g.PixelAreaAt(60), g.PixelAreaAt(0))
}

func TestParseAreaUnit(t *testing.T) {
	for in, want := range map[string]AreaUnit{"ha": UnitHectares, " M2 ": UnitSquareMeters, "px": UnitPixels, "": UnitPixels} {
		got, err := ParseAreaUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAreaUnit("km")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// Grids
// ---------------------------------------------------------------------------

func TestNewCoverGrid(t *testing.T) {
	g, err := NewCoverGrid(testGeometry(2, 2), []int32{1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), g.At(0, 1))
	assert.Equal(t, uint8(1), g.At(1, 0))
	assert.Equal(t, 3, g.ForestCount())
	assert.Equal(t, []int32{1, 0, 1, 1}, g.Int32s())

	_, err = NewCoverGrid(testGeometry(2, 2), []int32{1, 0, 2, 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewCoverGrid(testGeometry(2, 2), []int32{1, 0, 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewCoverGrid(testGeometry(0, 2), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCoverGrid_IsImmutable(t *testing.T) {
	values := []int32{1, 1}
	g, err := NewCoverGrid(testGeometry(1, 2), values)
	require.NoError(t, err)
	values[0] = 0
	assert.Equal(t, uint8(1), g.At(0, 0))

	out := g.Int32s()
	out[1] = 0
	assert.Equal(t, uint8(1), g.At(0, 1))
}

func TestClassifyCanopy(t *testing.T) {
	canopy := []float64{0, 29.9, 30, 100, math.NaN(), 55}
	g, err := ClassifyCanopy(testGeometry(2, 3), canopy, 30)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 1, 1, 0, 1}, g.Int32s())

	_, err = ClassifyCanopy(testGeometry(2, 3), canopy, 101)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ClassifyCanopy(testGeometry(2, 3), canopy, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ClassifyCanopy(testGeometry(2, 2), canopy, 30)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForestArea(t *testing.T) {
	g, err := NewCoverGrid(testGeometry(2, 2), []int32{1, 0, 1, 1})
	require.NoError(t, err)

	px, err := ForestArea(g, UnitPixels)
	require.NoError(t, err)
	assert.Equal(t, 3.0, px)

	ha, err := ForestArea(g, UnitHectares)
	require.NoError(t, err)
	assert.InDelta(t, 0.27, ha, 1e-12)

	_, err = ForestArea(nil, UnitPixels)
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestMask(t *testing.T) {
	m, err := NewMask(testGeometry(2, 2), []bool{true, false, false, true})
	require.NoError(t, err)
	assert.NoError(t, m.Validate())
	assert.Equal(t, 2, m.Count())
	assert.True(t, m.At(1, 1))
	assert.Equal(t, []uint8{1, 0, 0, 1}, m.Uint8s())
	assert.Equal(t, []float64{1, 0, 0, 1}, m.Float64s())

	area, err := MaskArea(m, UnitSquareMeters)
	require.NoError(t, err)
	assert.Equal(t, 1800.0, area)

	_, err = NewMask(testGeometry(2, 2), []bool{true})
	assert.ErrorIs(t, err, ErrInvalidInput)

	var zero Mask
	assert.ErrorIs(t, zero.Validate(), ErrInvalidInput)

	var nilMask *Mask
	assert.ErrorIs(t, nilMask.Validate(), ErrMissingData)

	broken := &Mask{Geometry: testGeometry(2, 2), cells: []bool{true}}
	assert.ErrorIs(t, broken.Validate(), ErrInvalidInput)
}

func TestMaskFromFunc(t *testing.T) {
	m := MaskFromFunc(testGeometry(1, 4), func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []uint8{1, 0, 1, 0}, m.Uint8s())
}

func TestStockGrid(t *testing.T) {
	s, err := NewStockGrid(testGeometry(1, 3), []float64{0, 100, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.At(0, 1))
	assert.Equal(t, []float32{0, 100, 0.1}, s.Float32s())

	vals := s.Values()
	vals[0] = 42
	assert.Equal(t, 0.0, s.At(0, 0))

	_, err = NewStockGrid(testGeometry(1, 3), []float64{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// ---------------------------------------------------------------------------
// Series
// ---------------------------------------------------------------------------

func TestNewCoverSeries(t *testing.T) {
	geo := testGeometry(1, 2)
	g1, _ := NewCoverGrid(geo, []int32{1, 1})
	g2, _ := NewCoverGrid(geo, []int32{1, 0})
	g3, _ := NewCoverGrid(geo, []int32{0, 0})

	s, err := NewCoverSeries(
		Timepoint{Date: YearStart(2010), Grid: g3},
		Timepoint{Date: YearStart(2000), Grid: g1},
		Timepoint{Date: YearStart(2005), Grid: g2},
	)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 2000, s.At(0).Date.Year())
	assert.Equal(t, 2005, s.At(1).Date.Year())
	assert.Equal(t, 2010, s.At(2).Date.Year())
	assert.Len(t, s.Timepoints(), 3)
}

func TestNewCoverSeries_Errors(t *testing.T) {
	geo := testGeometry(1, 2)
	g1, _ := NewCoverGrid(geo, []int32{1, 1})
	other, _ := NewCoverGrid(testGeometry(2, 1), []int32{1, 1})

	_, err := NewCoverSeries()
	assert.ErrorIs(t, err, ErrMissingData)

	noon := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = NewCoverSeries(Timepoint{Date: YearStart(2000), Grid: g1}, Timepoint{Date: noon, Grid: g1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewCoverSeries(Timepoint{Date: YearStart(2000), Grid: g1}, Timepoint{Date: YearStart(2001), Grid: other})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewCoverSeries(Timepoint{Date: YearStart(2000)})
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestYearsBetween(t *testing.T) {
	assert.InDelta(t, 4.0, YearsBetween(YearStart(2000), YearStart(2004)), 1e-9)
	assert.InDelta(t, -1.0, YearsBetween(YearStart(2001), YearStart(2000)), 0.01)
}
