package hotspot

import (
	"sort"

	"github.com/banshee-data/forest.report/internal/forest"
)

// Region is one 8-connected cluster of hotspot cells.
type Region struct {
	ID          int
	PixelCount  int
	MinRow      int
	MinCol      int
	MaxRow      int
	MaxCol      int
	CentroidRow float64
	CentroidCol float64
}

// Regions labels the 8-connected components of mask. IDs are assigned in
// row-major discovery order starting at 1; the result is sorted by
// descending PixelCount, ties by ID.
func Regions(mask *forest.Mask) ([]Region, error) {
	if err := mask.Validate(); err != nil {
		return nil, err
	}
	rows, cols := mask.Rows, mask.Cols
	labels := make([]int, mask.Len()) // 0=unlabelled, >0=region ID
	var regions []Region
	queue := make([]int, 0, 64)

	for seed := range labels {
		if labels[seed] != 0 || !mask.Set(seed) {
			continue
		}
		id := len(regions) + 1
		reg := Region{ID: id, MinRow: rows, MinCol: cols, MaxRow: -1, MaxCol: -1}
		var sumRow, sumCol float64

		labels[seed] = id
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			r, c := idx/cols, idx%cols

			reg.PixelCount++
			sumRow += float64(r)
			sumCol += float64(c)
			reg.MinRow = min(reg.MinRow, r)
			reg.MaxRow = max(reg.MaxRow, r)
			reg.MinCol = min(reg.MinCol, c)
			reg.MaxCol = max(reg.MaxCol, c)

			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					n := nr*cols + nc
					if labels[n] == 0 && mask.Set(n) {
						labels[n] = id
						queue = append(queue, n)
					}
				}
			}
		}
		reg.CentroidRow = sumRow / float64(reg.PixelCount)
		reg.CentroidCol = sumCol / float64(reg.PixelCount)
		regions = append(regions, reg)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].PixelCount > regions[j].PixelCount
	})
	return regions, nil
}
