package impact

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/banshee-data/forest.report/internal/forest"
)

// sliverTolerance is the fraction of a source polygon's area below which
// an overlay piece is treated as clipping noise rather than a fragment.
const sliverTolerance = 1e-12

// indexedZone lets a zone polygon live in the rtree.
type indexedZone struct {
	geom.Polygonal
}

// Fragment subtracts the union of the impact zones from every forest
// polygon and returns the surviving pieces, each a single outer ring with
// its holes. Polygons no zone touches pass through unchanged.
func Fragment(forestSet PolygonSet, zones *ZoneSet) ([]geom.Polygon, FragmentationMetrics, error) {
	const op = "impact.Fragment"
	var metrics FragmentationMetrics
	if zones == nil {
		return nil, metrics, forest.Errorf(op, forest.ErrMissingData, "nil zone set")
	}
	if !forest.SameCRS(forestSet.CRS, zones.CRS) {
		return nil, metrics, forest.Errorf(op, forest.ErrCRSMismatch, "forest %q vs zones %q", forestSet.CRS, zones.CRS)
	}

	tree := rtree.NewTree(25, 50)
	for _, z := range zones.Zones {
		p, ok := z.Geometry.(geom.Polygonal)
		if !ok {
			continue
		}
		a := p.Area()
		if a <= 0 {
			continue
		}
		metrics.ImpactZoneArea += a
		tree.Insert(&indexedZone{Polygonal: p})
	}

	var fragments []geom.Polygon
	for idx, fp := range forestSet.Polygons {
		orig := fp.Area()
		metrics.OriginalForestArea += orig
		if orig <= 0 {
			continue
		}

		candidates := tree.SearchIntersect(fp.Bounds())
		if len(candidates) == 0 {
			fragments = append(fragments, fp)
			metrics.FragmentedForestArea += orig
			continue
		}
		hits := make([]geom.Polygonal, len(candidates))
		for i, c := range candidates {
			hits[i] = c.(*indexedZone).Polygonal
		}
		cut, err := unionAll(hits)
		if err != nil {
			return nil, metrics, forest.Errorf(op, forest.ErrInvalidInput, "zone union: %v", err)
		}
		rest, err := difference(fp, cut)
		if err != nil {
			return nil, metrics, forest.Errorf(op, forest.ErrInvalidInput, "forest polygon %d: %v", idx, err)
		}

		var rings geom.Polygon
		for _, part := range rest.Polygons() {
			rings = append(rings, part...)
		}
		pieces := splitPieces(rings, orig*sliverTolerance)

		var area float64
		for _, p := range pieces {
			area += p.Area()
		}
		if len(pieces) == 1 && area >= orig*(1-sliverTolerance) {
			// Zones only touched the bounding box.
			fragments = append(fragments, fp)
			metrics.FragmentedForestArea += orig
			continue
		}
		fragments = append(fragments, pieces...)
		metrics.FragmentedForestArea += math.Min(area, orig)
	}
	metrics.FragmentCount = len(fragments)
	return fragments, metrics, nil
}

// SplitRings regroups a clipped polygon's flat ring list into one polygon
// per outer ring, holes attached.
func SplitRings(rings geom.Polygon) []geom.Polygon {
	return splitPieces(rings, 0)
}

// splitPieces regroups the flat ring list produced by polygon clipping
// into separate polygons. A ring nested inside an even number of other
// rings is an outer boundary; an odd count makes it a hole of its
// smallest enclosing ring. Rings with area at or below minArea are dropped.
func splitPieces(rings geom.Polygon, minArea float64) []geom.Polygon {
	var kept []geom.Path
	var areas []float64
	for _, r := range rings {
		if len(r) < 3 {
			continue
		}
		a := geom.Polygon{r}.Area()
		if a <= minArea {
			continue
		}
		kept = append(kept, r)
		areas = append(areas, a)
	}

	n := len(kept)
	depth := make([]int, n)
	parent := make([]int, n)
	for i := range kept {
		parent[i] = -1
		for j := range kept {
			if i == j || areas[j] <= areas[i] {
				continue
			}
			if ringInside(kept[i], kept[j]) {
				depth[i]++
				if parent[i] < 0 || areas[j] < areas[parent[i]] {
					parent[i] = j
				}
			}
		}
	}

	pieceOf := make(map[int]int, n)
	var pieces []geom.Polygon
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Outer rings first, largest first, so output order is stable.
	sort.SliceStable(order, func(a, b int) bool { return areas[order[a]] > areas[order[b]] })
	for _, i := range order {
		if depth[i]%2 == 0 {
			pieceOf[i] = len(pieces)
			pieces = append(pieces, geom.Polygon{kept[i]})
		}
	}
	for _, i := range order {
		if depth[i]%2 == 1 {
			if k, ok := pieceOf[parent[i]]; ok {
				pieces[k] = append(pieces[k], kept[i])
			}
		}
	}
	return pieces
}

// ringInside reports whether ring r lies inside ring container. The first
// vertex of r clearly off the container's boundary decides; if every vertex
// is on the boundary, edge midpoints are tried.
func ringInside(r, container geom.Path) bool {
	poly := geom.Polygon{container}
	b := poly.Bounds()
	tol := overlayRelTol * math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	for _, pt := range r {
		switch classify(pt, poly, tol) {
		case inside:
			return true
		case outside:
			return false
		}
	}
	for i := 0; i+1 < len(r); i++ {
		mid := geom.Point{X: (r[i].X + r[i+1].X) / 2, Y: (r[i].Y + r[i+1].Y) / 2}
		switch classify(mid, poly, tol) {
		case inside:
			return true
		case outside:
			return false
		}
	}
	return false
}
