// Package vector moves infrastructure features, impact zones, and forest
// polygons between files and the impact package's types.
//
// Shapefiles are read through ctessum/geom/encoding/shp. When the shapefile
// has a .prj and the caller names a target CRS that the proj package
// understands, geometries are reprojected on the way in. GeoJSON
// FeatureCollections carry the CRS identifier as a named "crs" member.
//
// Dependency rule: vector may import internal/forest and
// internal/forest/impact. The core packages never import vector.
package vector
