package forest

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for geodesic cell areas.
const EarthRadiusMeters = 6371008.8

// GeoTransform is an affine pixel-to-world transform in GDAL ordering:
//
//	x = OriginX + col*PixelWidth + row*RowRotation
//	y = OriginY + col*ColRotation + row*PixelHeight
//
// PixelHeight is normally negative for north-up rasters.
type GeoTransform struct {
	OriginX     float64 `json:"origin_x"`
	PixelWidth  float64 `json:"pixel_width"`
	RowRotation float64 `json:"row_rotation"`
	OriginY     float64 `json:"origin_y"`
	ColRotation float64 `json:"col_rotation"`
	PixelHeight float64 `json:"pixel_height"`
}

// Coefficients returns the transform as the six-element GDAL array.
func (t GeoTransform) Coefficients() []float64 {
	return []float64{t.OriginX, t.PixelWidth, t.RowRotation, t.OriginY, t.ColRotation, t.PixelHeight}
}

// GeoTransformFromCoefficients is the inverse of Coefficients.
func GeoTransformFromCoefficients(c []float64) (GeoTransform, error) {
	if len(c) != 6 {
		return GeoTransform{}, fmt.Errorf("geotransform needs 6 coefficients, got %d", len(c))
	}
	return GeoTransform{c[0], c[1], c[2], c[3], c[4], c[5]}, nil
}

// Apply maps a fractional (row, col) pixel position to world coordinates.
func (t GeoTransform) Apply(row, col float64) (x, y float64) {
	x = t.OriginX + col*t.PixelWidth + row*t.RowRotation
	y = t.OriginY + col*t.ColRotation + row*t.PixelHeight
	return x, y
}

// Geometry is the spatial metadata shared by co-registered grids.
type Geometry struct {
	Rows      int          `json:"rows"`
	Cols      int          `json:"cols"`
	Transform GeoTransform `json:"transform"`
	CRS       string       `json:"crs"`
}

// Len is the number of cells, Rows*Cols.
func (g Geometry) Len() int { return g.Rows * g.Cols }

// Index returns the row-major offset of (row, col).
func (g Geometry) Index(row, col int) int { return row*g.Cols + col }

// Validate reports whether the geometry describes a usable grid.
func (g Geometry) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("grid must have positive dimensions, got %dx%d", g.Rows, g.Cols)
	}
	return nil
}

// SameCRS compares coordinate reference identifiers ignoring case and
// surrounding whitespace. Two empty identifiers are considered equal.
func SameCRS(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Matches reports whether g and o are co-registered: same shape, same
// transform and same coordinate reference.
func (g Geometry) Matches(o Geometry) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols &&
		g.Transform == o.Transform && SameCRS(g.CRS, o.CRS)
}

// CheckMatch returns an ErrShapeMismatch error naming the first difference
// between g and o, or nil when they match.
func (g Geometry) CheckMatch(op string, o Geometry) error {
	switch {
	case g.Rows != o.Rows || g.Cols != o.Cols:
		return Errorf(op, ErrShapeMismatch, "%dx%d vs %dx%d", g.Rows, g.Cols, o.Rows, o.Cols)
	case g.Transform != o.Transform:
		return Errorf(op, ErrShapeMismatch, "transform %v vs %v", g.Transform.Coefficients(), o.Transform.Coefficients())
	case !SameCRS(g.CRS, o.CRS):
		return Errorf(op, ErrShapeMismatch, "crs %q vs %q", g.CRS, o.CRS)
	}
	return nil
}

// IsGeographic reports whether the CRS is longitude/latitude in degrees.
func (g Geometry) IsGeographic() bool {
	switch strings.ToUpper(strings.TrimSpace(g.CRS)) {
	case "EPSG:4326", "OGC:CRS84", "CRS:84", "WGS84":
		return true
	}
	return false
}

// PixelArea is the planar cell area in squared CRS units.
func (g Geometry) PixelArea() float64 {
	t := g.Transform
	return math.Abs(t.PixelWidth*t.PixelHeight - t.RowRotation*t.ColRotation)
}

// PixelAreaAt returns the area of a cell in the given row in square metres
// for geographic grids, or the planar PixelArea otherwise. Rotation terms
// are ignored for geographic grids.
func (g Geometry) PixelAreaAt(row int) float64 {
	if !g.IsGeographic() {
		return g.PixelArea()
	}
	t := g.Transform
	lat0 := t.OriginY + float64(row)*t.PixelHeight
	lat1 := lat0 + t.PixelHeight
	lon0 := t.OriginX
	lon1 := lon0 + t.PixelWidth
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(clampLat(lat0), lon0)).
		AddPoint(s2.LatLngFromDegrees(clampLat(lat1), lon1))
	return rect.Area() * EarthRadiusMeters * EarthRadiusMeters
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// AreaUnit selects how cell counts are converted to areas.
type AreaUnit string

const (
	UnitPixels       AreaUnit = "px"
	UnitSquareMeters AreaUnit = "m2"
	UnitHectares     AreaUnit = "ha"
)

// ParseAreaUnit validates a unit name.
func ParseAreaUnit(s string) (AreaUnit, error) {
	switch u := AreaUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitPixels, UnitSquareMeters, UnitHectares:
		return u, nil
	case "":
		return UnitPixels, nil
	}
	return "", Errorf("forest.ParseAreaUnit", ErrInvalidInput, "unknown area unit %q", s)
}

// CellArea returns the area of one cell in the given row expressed in unit.
// Planar grids are assumed to use metres when unit is m2 or ha.
func (g Geometry) CellArea(row int, unit AreaUnit) (float64, error) {
	switch unit {
	case UnitPixels, "":
		return 1, nil
	case UnitSquareMeters:
		return g.PixelAreaAt(row), nil
	case UnitHectares:
		return g.PixelAreaAt(row) / 10000, nil
	}
	return 0, Errorf("forest.CellArea", ErrInvalidInput, "unknown area unit %q", unit)
}

// sumArea adds up the area of every cell for which set returns true.
// Cell area only varies by row, so it is looked up once per row.
func sumArea(g Geometry, unit AreaUnit, set func(i int) bool) (float64, error) {
	var total float64
	for r := 0; r < g.Rows; r++ {
		a, err := g.CellArea(r, unit)
		if err != nil {
			return 0, err
		}
		n := 0
		base := r * g.Cols
		for c := 0; c < g.Cols; c++ {
			if set(base + c) {
				n++
			}
		}
		total += float64(n) * a
	}
	return total, nil
}
