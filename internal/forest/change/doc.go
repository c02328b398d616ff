// Package change detects land-cover transitions between timepoints and
// normalizes them into rates.
//
// Responsibilities: forest-loss and forest-gain masks between two
// co-registered cover grids, area and annual rate of a transition mask,
// per-interval loss accounting over a cover series, and trailing moving
// averages of those intervals.
//
// Dependency rule: change depends only on internal/forest.
package change
