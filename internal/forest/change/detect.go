package change

import "github.com/banshee-data/forest.report/internal/forest"

// Detect returns the forest-loss mask between two co-registered grids:
// true exactly where start is forest and end is not.
func Detect(start, end *forest.CoverGrid) (*forest.Mask, error) {
	return transition("change.Detect", start, end, func(s, e bool) bool { return s && !e })
}

// Gain returns the forest-gain mask: true where start is non-forest and
// end is forest.
func Gain(start, end *forest.CoverGrid) (*forest.Mask, error) {
	return transition("change.Gain", start, end, func(s, e bool) bool { return !s && e })
}

func transition(op string, start, end *forest.CoverGrid, rule func(s, e bool) bool) (*forest.Mask, error) {
	if start == nil || end == nil {
		return nil, forest.Errorf(op, forest.ErrMissingData, "both start and end grids are required")
	}
	if err := start.CheckMatch(op, end.Geometry); err != nil {
		return nil, err
	}
	return forest.MaskFromFunc(start.Geometry, func(i int) bool {
		return rule(start.IsForest(i), end.IsForest(i))
	}), nil
}
