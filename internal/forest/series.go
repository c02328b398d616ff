package forest

import (
	"sort"
	"time"
)

// Timepoint associates an observation date with a cover grid.
type Timepoint struct {
	Date time.Time
	Grid *CoverGrid
}

// CoverSeries is a date-ordered set of co-registered cover grids with at
// most one grid per calendar date.
type CoverSeries struct {
	points []Timepoint
}

// NewCoverSeries sorts the timepoints by date and checks that no date
// repeats and all grids share one geometry.
func NewCoverSeries(points ...Timepoint) (*CoverSeries, error) {
	const op = "forest.NewCoverSeries"
	if len(points) == 0 {
		return nil, Errorf(op, ErrMissingData, "no timepoints")
	}
	sorted := make([]Timepoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for i, p := range sorted {
		if p.Grid == nil {
			return nil, Errorf(op, ErrMissingData, "no grid for %s", p.Date.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		if sameDay(sorted[i-1].Date, p.Date) {
			return nil, Errorf(op, ErrInvalidInput, "duplicate date %s", p.Date.Format(time.DateOnly))
		}
		if err := sorted[0].Grid.CheckMatch(op, p.Grid.Geometry); err != nil {
			return nil, err
		}
	}
	return &CoverSeries{points: sorted}, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// Len is the number of timepoints.
func (s *CoverSeries) Len() int { return len(s.points) }

// At returns the i-th timepoint in date order.
func (s *CoverSeries) At(i int) Timepoint { return s.points[i] }

// Timepoints returns a copy of the ordered entries.
func (s *CoverSeries) Timepoints() []Timepoint {
	out := make([]Timepoint, len(s.points))
	copy(out, s.points)
	return out
}

// YearsBetween is the elapsed time from a to b in fractional Julian years.
// It is negative when b precedes a.
func YearsBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24 / 365.25
}

// YearStart returns 1 January of year in UTC, the date used for annual
// products that carry only a year.
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
