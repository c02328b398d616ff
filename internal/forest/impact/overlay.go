package impact

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Polygon clipping mis-handles vertices that sit exactly on the other
// operand's edges, which is the normal case for a buffer centred on a
// forest boundary. Every overlay result is therefore checked against the
// operands with a tolerant point classifier; a result that fails is
// recomputed with the clip operand shifted by a small, growing offset.

const (
	// overlayRelTol scales the boundary band with the operands' extent.
	overlayRelTol = 1e-9
	// overlayAttempts is the number of shifted retries after the first try.
	overlayAttempts = 5
	// goldenAngle spreads successive shift directions around the circle.
	goldenAngle = 2.399963229728653
)

type overlayOp int

const (
	opUnion overlayOp = iota
	opDifference
)

func (o overlayOp) String() string {
	if o == opUnion {
		return "union"
	}
	return "difference"
}

// side is a tolerant point-in-polygon answer.
type side int

const (
	onBoundary side = iota
	inside
	outside
)

// overlay computes a op b and verifies the result, shifting b when the
// clipper's output disagrees with the operands.
func overlay(a, b geom.Polygonal, op overlayOp) (geom.Polygonal, error) {
	pa, err := asPolygon(a)
	if err != nil {
		return nil, err
	}
	pb, err := asPolygon(b)
	if err != nil {
		return nil, err
	}
	if len(pb) == 0 {
		return pa, nil
	}
	if len(pa) == 0 {
		if op == opUnion {
			return pb, nil
		}
		return geom.Polygon{}, nil
	}

	tol := overlayTolerance(pa, pb)
	shifted := pb
	for attempt := 0; attempt <= overlayAttempts; attempt++ {
		if attempt > 0 {
			eps := tol * math.Pow(10, float64(attempt))
			s, c := math.Sincos(float64(attempt) * goldenAngle)
			shifted = translate(pb, eps*c, eps*s)
		}
		res, ok := clip(pa, shifted, op)
		if ok && checkOverlay(pa, shifted, res, op, tol) {
			return res, nil
		}
	}
	return nil, fmt.Errorf("polygon %s did not converge after %d attempts", op, overlayAttempts+1)
}

// union returns a ∪ b.
func union(a, b geom.Polygonal) (geom.Polygonal, error) { return overlay(a, b, opUnion) }

// difference returns a minus b.
func difference(a, b geom.Polygonal) (geom.Polygonal, error) {
	return overlay(a, b, opDifference)
}

// asPolygon flattens a Polygonal into a single ring list. Multi-part
// inputs are unioned first so overlapping parts do not cancel.
func asPolygon(pg geom.Polygonal) (geom.Polygon, error) {
	switch t := pg.(type) {
	case nil:
		return geom.Polygon{}, nil
	case geom.Polygon:
		return t, nil
	case *geom.Polygon:
		if t == nil {
			return geom.Polygon{}, nil
		}
		return *t, nil
	}
	parts := pg.Polygons()
	if len(parts) == 0 {
		return geom.Polygon{}, nil
	}
	acc := parts[0]
	for _, p := range parts[1:] {
		u, err := overlay(acc, p, opUnion)
		if err != nil {
			return nil, err
		}
		acc = u.(geom.Polygon)
	}
	return acc, nil
}

// clip runs the clipper, treating a panic as a failed attempt.
func clip(a, b geom.Polygon, op overlayOp) (res geom.Polygon, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	var out geom.Polygonal
	if op == opUnion {
		out = a.Union(b)
	} else {
		out = a.Difference(b)
	}
	p, isPoly := out.(geom.Polygon)
	if !isPoly {
		return nil, false
	}
	return p, true
}

// checkOverlay tests res against the operands: its area must lie within
// the bounds the operation allows, operand vertices that are clearly on
// one side must land on the matching side of res, and res vertices must
// not sit where the operation excludes them.
func checkOverlay(a, b, res geom.Polygon, op overlayOp, tol float64) bool {
	areaA, areaB, areaR := a.Area(), b.Area(), res.Area()
	slack := tol * (perimeter(a) + perimeter(b))
	ba, bb := expand(a.Bounds(), tol), expand(b.Bounds(), tol)

	switch op {
	case opUnion:
		if areaR < math.Max(areaA, areaB)-slack || areaR > areaA+areaB+slack {
			return false
		}
		for _, pair := range [][2]geom.Polygon{{a, b}, {b, a}} {
			src, other := pair[0], pair[1]
			otherBounds := expand(other.Bounds(), tol)
			for _, r := range src {
				for _, pt := range r {
					if otherBounds.Overlaps(pt.Bounds()) && classify(pt, other, tol) != outside {
						continue
					}
					if classify(pt, res, tol) == outside {
						return false
					}
				}
			}
		}
		for _, r := range res {
			for _, pt := range r {
				if ba.Overlaps(pt.Bounds()) && classify(pt, a, tol) == inside {
					return false
				}
				if bb.Overlaps(pt.Bounds()) && classify(pt, b, tol) == inside {
					return false
				}
				if !ba.Overlaps(pt.Bounds()) && !bb.Overlaps(pt.Bounds()) {
					return false
				}
			}
		}

	case opDifference:
		if areaR < areaA-areaB-slack || areaR > areaA+slack {
			return false
		}
		for _, r := range b {
			for _, pt := range r {
				if !ba.Overlaps(pt.Bounds()) {
					continue
				}
				if classify(pt, a, tol) == inside && classify(pt, res, tol) == inside {
					return false
				}
			}
		}
		for _, r := range a {
			for _, pt := range r {
				if bb.Overlaps(pt.Bounds()) && classify(pt, b, tol) != outside {
					continue
				}
				if classify(pt, res, tol) == outside {
					return false
				}
			}
		}
		for _, r := range res {
			for _, pt := range r {
				if !ba.Overlaps(pt.Bounds()) || classify(pt, a, tol) == outside {
					return false
				}
				if bb.Overlaps(pt.Bounds()) && classify(pt, b, tol) == inside {
					return false
				}
			}
		}
	}
	return true
}

// classify places pt relative to the even-odd interior of p. Points within
// tol of any edge are onBoundary.
func classify(pt geom.Point, p geom.Polygon, tol float64) side {
	in := false
	tol2 := tol * tol
	for _, r := range p {
		n := len(r)
		if n < 2 {
			continue
		}
		for i := 0; i < n; i++ {
			a, b := r[i], r[(i+1)%n]
			if a.Equals(b) {
				continue
			}
			if segDist2(pt, a, b) <= tol2 {
				return onBoundary
			}
			if (a.Y > pt.Y) != (b.Y > pt.Y) {
				x := a.X + (pt.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
				if pt.X < x {
					in = !in
				}
			}
		}
	}
	if in {
		return inside
	}
	return outside
}

// segDist2 is the squared distance from p to segment a-b.
func segDist2(p, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	ex, ey := a.X+t*dx-p.X, a.Y+t*dy-p.Y
	return ex*ex + ey*ey
}

// overlayTolerance is the width of the boundary band: a fraction of the
// combined extent, never below the rounding error of the coordinates.
func overlayTolerance(a, b geom.Polygon) float64 {
	bounds := a.Bounds()
	bounds.Extend(b.Bounds())
	extent := math.Max(bounds.Max.X-bounds.Min.X, bounds.Max.Y-bounds.Min.Y)
	mag := math.Max(
		math.Max(math.Abs(bounds.Min.X), math.Abs(bounds.Max.X)),
		math.Max(math.Abs(bounds.Min.Y), math.Abs(bounds.Max.Y)),
	)
	return math.Max(overlayRelTol*extent, 64*mag*0x1p-52)
}

func perimeter(p geom.Polygon) float64 {
	var sum float64
	for _, r := range p {
		for i := 0; i+1 < len(r); i++ {
			sum += math.Hypot(r[i+1].X-r[i].X, r[i+1].Y-r[i].Y)
		}
	}
	return sum
}

func expand(b *geom.Bounds, d float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: geom.Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

func translate(p geom.Polygon, dx, dy float64) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		out[i] = make(geom.Path, len(r))
		for j, pt := range r {
			out[i][j] = geom.Point{X: pt.X + dx, Y: pt.Y + dy}
		}
	}
	return out
}
