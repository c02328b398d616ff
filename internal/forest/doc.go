// Package forest owns the land-cover data model shared by every analysis
// stage: co-registered grid geometry, binary cover grids, boolean masks,
// carbon-stock grids and dated cover series.
//
// Responsibilities: construction-time validation of grids (binary values,
// declared shape), geometry comparison, pixel area in planar and geographic
// reference systems, canopy classification, and the error taxonomy
// (ErrShapeMismatch, ErrInvalidInput, ErrCRSMismatch, ErrMissingData).
//
// Dependency rule: forest depends on nothing else in this module. The
// analysis packages (change, hotspot, carbon, impact) depend on forest and
// never on each other.
package forest
