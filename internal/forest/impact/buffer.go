package impact

import (
	"fmt"
	"maps"
	"math"

	"github.com/ctessum/geom"

	"github.com/banshee-data/forest.report/internal/config"
	"github.com/banshee-data/forest.report/internal/forest"
)

// DefaultSegments is the number of straight segments used to approximate
// a quarter circle.
const DefaultSegments = 8

// Config holds buffering parameters.
type Config struct {
	Distance float64 // buffer distance in CRS units (default: 1000)
	Segments int     // segments per quarter circle (default: 8)
}

// DefaultConfig returns a Config built from the canonical analysis defaults
// file. Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromAnalysis(config.MustLoadDefaultConfig())
}

// ConfigFromAnalysis builds a Config from loaded analysis settings.
func ConfigFromAnalysis(cfg *config.AnalysisConfig) *Config {
	return &Config{
		Distance: cfg.GetBufferDistance(),
		Segments: cfg.GetBufferSegments(),
	}
}

// Validate checks the parameter ranges.
func (c *Config) Validate() error {
	if math.IsNaN(c.Distance) || math.IsInf(c.Distance, 0) || c.Distance < 0 {
		return fmt.Errorf("distance must be a non-negative number, got %v", c.Distance)
	}
	if c.Segments < 1 {
		return fmt.Errorf("segments must be at least 1, got %d", c.Segments)
	}
	return nil
}

// WithDistance sets the buffer distance.
func (c *Config) WithDistance(d float64) *Config {
	c.Distance = d
	return c
}

// WithSegments sets the quarter-circle resolution.
func (c *Config) WithSegments(n int) *Config {
	c.Segments = n
	return c
}

// Buffer expands every feature independently by c.Distance. A zero
// distance returns each geometry unchanged.
func (c *Config) Buffer(features FeatureSet) (*ZoneSet, error) {
	const op = "impact.Buffer"
	if err := c.Validate(); err != nil {
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "%v", err)
	}
	zones := make([]ImpactZone, 0, len(features.Features))
	for i, f := range features.Features {
		if f.Geometry == nil {
			return nil, forest.Errorf(op, forest.ErrMissingData, "feature %d (%q) has no geometry", i, f.ID)
		}
		kind, ok := kindOf(f.Geometry)
		if !ok {
			return nil, forest.Errorf(op, forest.ErrInvalidInput, "feature %d (%q): unsupported geometry %T", i, f.ID, f.Geometry)
		}
		g := f.Geometry
		if c.Distance > 0 {
			buffered, err := bufferGeom(f.Geometry, c.Distance, c.Segments)
			if err != nil {
				return nil, forest.Errorf(op, forest.ErrInvalidInput, "feature %d (%q): %v", i, f.ID, err)
			}
			g = buffered
		}
		zones = append(zones, ImpactZone{
			FeatureID:  f.ID,
			Kind:       kind,
			Distance:   c.Distance,
			Geometry:   g,
			Attributes: maps.Clone(f.Attributes),
		})
	}
	return &ZoneSet{CRS: features.CRS, Zones: zones}, nil
}

// Buffer is Config{distance, DefaultSegments}.Buffer(features).
func Buffer(features FeatureSet, distance float64) (*ZoneSet, error) {
	c := &Config{Distance: distance, Segments: DefaultSegments}
	return c.Buffer(features)
}

// bufferGeom returns the set of points within d of g. g must be one of the
// kinds accepted by kindOf and d must be positive.
func bufferGeom(g geom.Geom, d float64, quarter int) (geom.Polygonal, error) {
	switch t := g.(type) {
	case geom.Point:
		return t.Buffer(d, 4*quarter), nil
	case *geom.Point:
		return t.Buffer(d, 4*quarter), nil
	case geom.MultiPoint:
		parts := make([]geom.Polygonal, len(t))
		for i, p := range t {
			parts[i] = p.Buffer(d, 4*quarter)
		}
		return unionAll(parts)
	case geom.LineString:
		return bufferPath(geom.Path(t), d, quarter, false)
	case geom.MultiLineString:
		parts := make([]geom.Polygonal, len(t))
		for i, l := range t {
			part, err := bufferPath(geom.Path(l), d, quarter, false)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
		return unionAll(parts)
	case geom.Polygon:
		return bufferPolygon(t, d, quarter)
	case geom.MultiPolygon:
		parts := make([]geom.Polygonal, len(t))
		for i, p := range t {
			part, err := bufferPolygon(p, d, quarter)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
		return unionAll(parts)
	}
	return geom.Polygon{}, nil
}

// bufferPolygon grows p outward by d: the polygon itself plus a capsule
// around every edge of every ring. Holes shrink accordingly.
func bufferPolygon(p geom.Polygon, d float64, quarter int) (geom.Polygonal, error) {
	parts := []geom.Polygonal{p}
	for _, ring := range p {
		part, err := bufferPath(ring, d, quarter, true)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return unionAll(parts)
}

// bufferPath unions the capsules around each segment of path. When closed
// is set the segment from the last vertex back to the first is included.
func bufferPath(path geom.Path, d float64, quarter int, closed bool) (geom.Polygonal, error) {
	switch len(path) {
	case 0:
		return geom.Polygon{}, nil
	case 1:
		return path[0].Buffer(d, 4*quarter), nil
	}
	n := len(path) - 1
	if closed && !path[0].Equals(path[n]) {
		n++
	}
	parts := make([]geom.Polygonal, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, capsule(path[i], path[(i+1)%len(path)], d, quarter))
	}
	return unionAll(parts)
}

// capsule is the counter-clockwise outline of all points within d of the
// segment a-b: two half circles joined by straight sides. A zero-length
// segment degenerates to a circle.
func capsule(a, b geom.Point, d float64, quarter int) geom.Polygon {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return a.Buffer(d, 4*quarter)
	}
	theta := math.Atan2(dy, dx)
	step := math.Pi / float64(2*quarter)
	ring := make(geom.Path, 0, 4*quarter+2)

	// Segments aligned with the circle grid reuse the same unit vectors,
	// so capsules meeting at a vertex share their arc points exactly.
	if m := theta / step; math.Abs(m-math.Round(m)) < 1e-9 {
		unit := circleGrid(quarter)
		k0 := int(math.Round(m))
		for i := 0; i <= 2*quarter; i++ {
			u := unit[mod(k0-quarter+i, len(unit))]
			ring = append(ring, geom.Point{X: b.X + d*u.X, Y: b.Y + d*u.Y})
		}
		for i := 0; i <= 2*quarter; i++ {
			u := unit[mod(k0+quarter+i, len(unit))]
			ring = append(ring, geom.Point{X: a.X + d*u.X, Y: a.Y + d*u.Y})
		}
		return geom.Polygon{ring}
	}

	for i := 0; i <= 2*quarter; i++ {
		s, c := math.Sincos(theta - math.Pi/2 + float64(i)*step)
		ring = append(ring, geom.Point{X: b.X + d*c, Y: b.Y + d*s})
	}
	for i := 0; i <= 2*quarter; i++ {
		s, c := math.Sincos(theta + math.Pi/2 + float64(i)*step)
		ring = append(ring, geom.Point{X: a.X + d*c, Y: a.Y + d*s})
	}
	return geom.Polygon{ring}
}

// circleGrid returns the unit vectors at angles k*pi/(2*quarter) for
// k in [0, 4*quarter), with components that should be 0 or 1 made exact.
func circleGrid(quarter int) []geom.Point {
	step := math.Pi / float64(2*quarter)
	unit := make([]geom.Point, 4*quarter)
	for k := range unit {
		s, c := math.Sincos(float64(k) * step)
		unit[k] = geom.Point{X: snapUnit(c), Y: snapUnit(s)}
	}
	return unit
}

func snapUnit(v float64) float64 {
	switch {
	case math.Abs(v) < 1e-12:
		return 0
	case math.Abs(v-1) < 1e-12:
		return 1
	case math.Abs(v+1) < 1e-12:
		return -1
	}
	return v
}

func mod(k, n int) int {
	k %= n
	if k < 0 {
		k += n
	}
	return k
}

// unionAll merges parts in balanced pairs so the operands of each overlay
// stay similar in size.
func unionAll(parts []geom.Polygonal) (geom.Polygonal, error) {
	switch len(parts) {
	case 0:
		return geom.Polygon{}, nil
	case 1:
		return asPolygon(parts[0])
	}
	mid := len(parts) / 2
	left, err := unionAll(parts[:mid])
	if err != nil {
		return nil, err
	}
	right, err := unionAll(parts[mid:])
	if err != nil {
		return nil, err
	}
	return union(left, right)
}
