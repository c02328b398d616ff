package vector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/goccy/go-json"

	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/impact"
)

// FeatureCollection is the GeoJSON document this package reads and writes.
type FeatureCollection struct {
	Type     string           `json:"type"`
	CRS      *NamedCRS        `json:"crs,omitempty"`
	Features []GeoJSONFeature `json:"features"`
}

// NamedCRS is the GeoJSON 2008 named coordinate reference member.
type NamedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// GeoJSONFeature is one member of a FeatureCollection.
type GeoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

func namedCRS(name string) *NamedCRS {
	if name == "" {
		return nil
	}
	c := &NamedCRS{Type: "name"}
	c.Properties.Name = name
	return c
}

func (fc *FeatureCollection) crsName() string {
	if fc.CRS == nil {
		return ""
	}
	return fc.CRS.Properties.Name
}

// ZonesCollection converts impact zones to GeoJSON. Each feature carries
// feature_id, kind, distance and area plus the source attributes.
func ZonesCollection(zones *impact.ZoneSet) (*FeatureCollection, error) {
	if zones == nil {
		return nil, forest.Errorf("vector.ZonesCollection", forest.ErrMissingData, "nil zone set")
	}
	fc := &FeatureCollection{Type: "FeatureCollection", CRS: namedCRS(zones.CRS), Features: []GeoJSONFeature{}}
	for _, z := range zones.Zones {
		g, err := toGeoJSON(z.Geometry)
		if err != nil {
			return nil, forest.Errorf("vector.ZonesCollection", forest.ErrInvalidInput, "zone %q: %v", z.FeatureID, err)
		}
		props := make(map[string]interface{}, len(z.Attributes)+4)
		for k, v := range z.Attributes {
			props[k] = v
		}
		props["feature_id"] = z.FeatureID
		props["kind"] = string(z.Kind)
		props["distance"] = z.Distance
		props["area"] = z.Area()
		fc.Features = append(fc.Features, GeoJSONFeature{Type: "Feature", ID: z.FeatureID, Geometry: g, Properties: props})
	}
	return fc, nil
}

// FragmentsCollection converts fragmentation output polygons to GeoJSON,
// numbering them in order and recording each area.
func FragmentsCollection(crs string, fragments []geom.Polygon) (*FeatureCollection, error) {
	fc := &FeatureCollection{Type: "FeatureCollection", CRS: namedCRS(crs), Features: []GeoJSONFeature{}}
	for i, p := range fragments {
		g, err := toGeoJSON(p)
		if err != nil {
			return nil, forest.Errorf("vector.FragmentsCollection", forest.ErrInvalidInput, "fragment %d: %v", i, err)
		}
		fc.Features = append(fc.Features, GeoJSONFeature{
			Type:       "Feature",
			ID:         i,
			Geometry:   g,
			Properties: map[string]interface{}{"fragment": i, "area": p.Area()},
		})
	}
	return fc, nil
}

// toGeoJSON converts g, splitting a clipped polygon that holds several
// outer rings into a MultiPolygon so that readers do not take the extra
// outers for holes.
func toGeoJSON(g geom.Geom) (*geojson.Geometry, error) {
	switch t := g.(type) {
	case *geom.Point:
		return geojson.ToGeoJSON(*t)
	case geom.Polygon:
		if pieces := impact.SplitRings(t); len(pieces) > 1 {
			return geojson.ToGeoJSON(geom.MultiPolygon(pieces))
		}
	}
	return geojson.ToGeoJSON(g)
}

// Encode writes fc as indented JSON.
func Encode(w io.Writer, fc *FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// WriteFile encodes fc to path, creating parent directories.
func WriteFile(path string, fc *FeatureCollection) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vector: create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vector: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return Encode(f, fc)
}

// Decode reads a FeatureCollection into a FeatureSet. Property values are
// stringified; the feature "id" member becomes Feature.ID, falling back to
// the feature's position.
func Decode(r io.Reader) (impact.FeatureSet, error) {
	const op = "vector.Decode"
	var fc FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return impact.FeatureSet{}, forest.Errorf(op, forest.ErrInvalidInput, "%v", err)
	}
	if fc.Type != "FeatureCollection" {
		return impact.FeatureSet{}, forest.Errorf(op, forest.ErrInvalidInput, "type %q, want FeatureCollection", fc.Type)
	}

	set := impact.FeatureSet{CRS: fc.crsName()}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return set, forest.Errorf(op, forest.ErrMissingData, "feature %d has no geometry", i)
		}
		g, err := geojson.FromGeoJSON(f.Geometry)
		if err != nil {
			return set, forest.Errorf(op, forest.ErrInvalidInput, "feature %d: %v", i, err)
		}
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = stringify(v)
		}
		id := strconv.Itoa(i)
		if f.ID != nil {
			id = stringify(f.ID)
		}
		set.Features = append(set.Features, impact.Feature{ID: id, Geometry: g, Attributes: attrs})
	}
	return set, nil
}

// DecodePolygons reads a FeatureCollection of polygons as forest cover.
func DecodePolygons(r io.Reader) (impact.PolygonSet, error) {
	features, err := Decode(r)
	if err != nil {
		return impact.PolygonSet{CRS: features.CRS}, err
	}
	return polygonsOf("vector.DecodePolygons", features)
}

// ReadFile opens path and decodes it with Decode.
func ReadFile(path string) (impact.FeatureSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return impact.FeatureSet{}, forest.Errorf("vector.ReadFile", forest.ErrMissingData, "%v", err)
	}
	defer f.Close()
	return Decode(f)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
