package impact

import (
	"github.com/ctessum/geom"
)

// Kind is the geometry family of an infrastructure feature.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

// Feature is one infrastructure geometry with its source attributes.
type Feature struct {
	ID         string
	Geometry   geom.Geom
	Attributes map[string]string
}

// FeatureSet is a collection of infrastructure features sharing one
// coordinate reference.
type FeatureSet struct {
	CRS      string
	Features []Feature
}

// ImpactZone is the buffered footprint of one feature. Geometry is
// polygonal for any positive distance; with distance zero it is the
// source geometry unchanged.
type ImpactZone struct {
	FeatureID  string
	Kind       Kind
	Distance   float64
	Geometry   geom.Geom
	Attributes map[string]string
}

// Area is the planar area of the zone, zero for non-polygonal geometry.
func (z ImpactZone) Area() float64 {
	if p, ok := z.Geometry.(geom.Polygonal); ok {
		return p.Area()
	}
	return 0
}

// ZoneSet is the result of buffering a FeatureSet.
type ZoneSet struct {
	CRS   string
	Zones []ImpactZone
}

// PolygonSet is a collection of forest polygons sharing one coordinate
// reference.
type PolygonSet struct {
	CRS      string
	Polygons []geom.Polygon
}

// Area is the sum of the polygon areas.
func (s PolygonSet) Area() float64 {
	var a float64
	for _, p := range s.Polygons {
		a += p.Area()
	}
	return a
}

// FragmentationMetrics summarizes one forest-minus-zones overlay.
type FragmentationMetrics struct {
	OriginalForestArea   float64 `json:"original_forest_area"`
	FragmentedForestArea float64 `json:"fragmented_forest_area"`
	ImpactZoneArea       float64 `json:"impact_zone_area"`
	FragmentCount        int     `json:"fragment_count"`
}

func kindOf(g geom.Geom) (Kind, bool) {
	switch g.(type) {
	case geom.Point, *geom.Point, geom.MultiPoint:
		return KindPoint, true
	case geom.LineString, geom.MultiLineString:
		return KindLine, true
	case geom.Polygon, geom.MultiPolygon:
		return KindPolygon, true
	}
	return "", false
}
