// Package hotspot finds spatial clusters of change activity in a
// transition mask.
//
// Responsibilities: separable Gaussian smoothing of a mask, thresholding
// the smoothed surface into a hotspot mask, and labelling 8-connected
// hotspot regions with their extent and centroid.
//
// Dependency rule: hotspot depends on internal/forest and, for building a
// Config from the loaded analysis settings, internal/config.
package hotspot
