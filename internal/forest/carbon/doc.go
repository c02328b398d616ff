// Package carbon derives per-cell carbon stocks from cover grids and
// summarizes their distribution.
//
// Statistics are computed in float64 over cells in row-major order, so
// repeated runs over identical inputs produce identical results.
package carbon
