// Package pipeline runs one land-cover change analysis end to end.
//
// # Responsibilities
//
//   - Load cover grids, cover series, infrastructure features and forest
//     polygons from disk.
//   - Run the analysis steps in order: deforestation, carbon,
//     infrastructure, series.
//   - Export per-step products (NetCDF masks and stocks, GeoJSON and
//     shapefile zones, PNG plots, an HTML loss chart) and persist the
//     summary row to CSV and SQLite.
//
// A step that fails is logged through the Observer and recorded in the
// Result; later steps still run and files already written stay in place.
// A step whose inputs are absent fails with forest.ErrMissingData.
//
// # Dependency rule
//
// pipeline is the only package that imports both the analysis packages
// under internal/forest and the storage and report collaborators.
package pipeline
