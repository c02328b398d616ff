// Package report renders the outputs of an analysis run: the results row
// (CSV), static PNG plots drawn with gonum/plot, and an interactive HTML
// loss-trend chart drawn with go-echarts.
//
// Dependency rule: report may import internal/forest and its
// sub-packages. It never computes analysis results itself; callers pass
// in finished values.
package report
