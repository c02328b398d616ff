// Package impact measures how infrastructure fragments forest cover.
//
// Responsibilities: planar buffering of infrastructure features (points,
// lines, polygons and their multi forms) into impact zones, and the
// overlay of forest polygons minus the union of those zones, reporting the
// surviving fragments and FragmentationMetrics.
//
// All geometry is planar in the units of the shared coordinate reference.
// Nothing is reprojected: sets on different references are rejected with
// forest.ErrCRSMismatch.
//
// Dependency rule: impact depends on internal/forest for the error
// taxonomy, on internal/config for Config defaults, and on
// github.com/ctessum/geom for polygon clipping and spatial indexing.
package impact
