package vector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"

	"github.com/banshee-data/forest.report/internal/forest"
	"github.com/banshee-data/forest.report/internal/forest/impact"
	"github.com/banshee-data/forest.report/internal/monitoring"
)

var logf = monitoring.Prefixed("vector: ")

// ReadOptions controls how shapefile rows become features.
type ReadOptions struct {
	// IDField names the attribute used as Feature.ID. Empty means the
	// zero-based row number.
	IDField string
	// CRS is the reference the features must end up in. Without a .prj the
	// coordinates are taken to be in CRS already. With one, the file must
	// either name the same EPSG code or be transformable into CRS, which
	// requires CRS to parse as a projection (EPSG:4326, EPSG:3857, a proj4
	// string or WKT); anything else is ErrCRSMismatch. An empty CRS keeps
	// the coordinates as stored and labels the set with the .prj's own
	// identity.
	CRS string
}

// ReadFeatures decodes every non-null shape in a shapefile. All attribute
// columns are kept as strings.
func ReadFeatures(path string, opts ReadOptions) (impact.FeatureSet, error) {
	const op = "vector.ReadFeatures"
	set := impact.FeatureSet{}

	d, err := shp.NewDecoder(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, forest.Errorf(op, forest.ErrMissingData, "%v", err)
		}
		return set, forest.Errorf(op, forest.ErrInvalidInput, "%v", err)
	}
	defer d.Close()

	trans, label, err := transformFor(path, opts.CRS)
	if err != nil {
		return set, forest.Errorf(op, forest.ErrCRSMismatch, "%s: %v", path, err)
	}
	set.CRS = label

	names := fieldNames(d.Fields())
	if opts.IDField != "" && !containsFold(names, opts.IDField) {
		return set, forest.Errorf(op, forest.ErrInvalidInput, "%s has no %q attribute", path, opts.IDField)
	}

	for row := 0; ; row++ {
		g, fields, more := d.DecodeRowFields(names...)
		if !more {
			break
		}
		if g == nil {
			logf("%s row %d has a null shape, skipping", path, row)
			continue
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return set, forest.Errorf(op, forest.ErrInvalidInput, "row %d: reproject: %v", row, err)
			}
		}
		attrs := make(map[string]string, len(fields))
		for k, v := range fields {
			attrs[k] = strings.TrimSpace(v)
		}
		id := strconv.Itoa(row)
		if opts.IDField != "" {
			id = lookupFold(attrs, opts.IDField)
		}
		set.Features = append(set.Features, impact.Feature{ID: id, Geometry: g, Attributes: attrs})
	}
	if err := d.Error(); err != nil {
		return set, forest.Errorf(op, forest.ErrInvalidInput, "%s: %v", path, err)
	}
	return set, nil
}

// ReadPolygons decodes a polygon shapefile into a forest PolygonSet.
// Multi-part shapes contribute one polygon per part.
func ReadPolygons(path string, opts ReadOptions) (impact.PolygonSet, error) {
	const op = "vector.ReadPolygons"
	features, err := ReadFeatures(path, ReadOptions{CRS: opts.CRS})
	if err != nil {
		return impact.PolygonSet{}, err
	}
	return polygonsOf(op, features)
}

func polygonsOf(op string, features impact.FeatureSet) (impact.PolygonSet, error) {
	set := impact.PolygonSet{CRS: features.CRS}
	for _, f := range features.Features {
		switch g := f.Geometry.(type) {
		case geom.Polygon:
			set.Polygons = append(set.Polygons, g)
		case geom.MultiPolygon:
			set.Polygons = append(set.Polygons, g...)
		default:
			return set, forest.Errorf(op, forest.ErrInvalidInput, "feature %q is %T, want polygon", f.ID, f.Geometry)
		}
	}
	return set, nil
}

var epsgAuthority = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// prjEPSG returns "EPSG:<code>" for the outermost authority in a WKT .prj,
// or "" when it names none.
func prjEPSG(wkt string) string {
	m := epsgAuthority.FindAllStringSubmatch(wkt, -1)
	if len(m) == 0 {
		return ""
	}
	return "EPSG:" + m[len(m)-1][1]
}

// transformFor reads the .prj beside path and returns the reprojection into
// target, nil when the coordinates are already there, and the CRS label the
// decoded features carry. It never labels untransformed coordinates with a
// target the .prj disagrees with.
func transformFor(path, target string) (proj.Transformer, string, error) {
	prjPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	b, err := os.ReadFile(prjPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, target, nil
	}
	if err != nil {
		return nil, "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return nil, target, nil
	}
	code := prjEPSG(text)
	if target == "" {
		if code != "" {
			return nil, code, nil
		}
		return nil, text, nil
	}
	if code != "" && forest.SameCRS(code, target) {
		return nil, target, nil
	}

	src, err := proj.Parse(text)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read %s as a projection: %v", filepath.Base(prjPath), err)
	}
	dst, err := proj.Parse(target)
	if err != nil {
		return nil, "", fmt.Errorf("%s does not name %q and that CRS is not a known projection to reproject into", filepath.Base(prjPath), target)
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, "", err
	}
	logf("reprojecting %s into %s", filepath.Base(path), target)
	return trans, target, nil
}

// WriteZones writes polygonal zones as a polygon shapefile with feature_id,
// kind, distance and area columns. Zones without area are skipped; the
// number written is returned.
func WriteZones(path string, zones *impact.ZoneSet) (n int, err error) {
	const op = "vector.WriteZones"
	if zones == nil {
		return 0, forest.Errorf(op, forest.ErrMissingData, "nil zone set")
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.StringField("feature_id", 50),
		goshp.StringField("kind", 10),
		goshp.FloatField("distance", 30, 10),
		goshp.FloatField("area", 30, 10),
	)
	if err != nil {
		return 0, forest.Errorf(op, forest.ErrInvalidInput, "%v", err)
	}
	defer e.Close()

	for _, z := range zones.Zones {
		p, ok := z.Geometry.(geom.Polygonal)
		if !ok || p.Area() <= 0 {
			continue
		}
		var rings geom.Polygon
		for _, part := range p.Polygons() {
			rings = append(rings, part...)
		}
		if err := e.EncodeFields(rings, z.FeatureID, string(z.Kind), z.Distance, p.Area()); err != nil {
			return n, forest.Errorf(op, forest.ErrInvalidInput, "zone %q: %v", z.FeatureID, err)
		}
		n++
	}
	return n, nil
}

func fieldNames(fields []goshp.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(string(f.Name[:]), "\x00")
	}
	return names
}

func containsFold(names []string, want string) bool {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return true
		}
	}
	return false
}

func lookupFold(attrs map[string]string, key string) string {
	if v, ok := attrs[key]; ok {
		return v
	}
	for k, v := range attrs {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
