package hotspot

import (
	"math"

	"github.com/banshee-data/forest.report/internal/forest"
)

// MaxKernelRadius bounds round(truncate*sigma), in cells.
const MaxKernelRadius = 1 << 16

// gaussianKernel returns normalized 1-D weights for offsets -radius..radius
// where radius = round(truncate*sigma).
func gaussianKernel(sigma, truncate float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect maps an out-of-range index back into [0, n) by mirroring about
// the outer cell edges, so the edge sample is repeated (d c b a | a b c d).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// foldKernel folds a kernel centred at radius onto the 2n period of reflect,
// so a kernel wider than the axis costs no more than the axis itself. The
// returned weights apply to offsets 0..len-1 after subtracting the returned
// centre.
func foldKernel(kernel []float64, n int) (weights []float64, centre int) {
	radius := len(kernel) / 2
	period := 2 * n
	if len(kernel) <= period {
		return kernel, radius
	}
	folded := make([]float64, period)
	for k, w := range kernel {
		m := (k - radius) % period
		if m < 0 {
			m += period
		}
		folded[m] += w
	}
	return folded, 0
}

// Smooth convolves the mask with an isotropic Gaussian of the given sigma
// (in cells) and returns the real-valued result in row-major order. The
// kernel is truncated at truncate standard deviations; a truncated radius
// above MaxKernelRadius cells is ErrInvalidInput.
func Smooth(mask *forest.Mask, sigma, truncate float64) ([]float64, error) {
	const op = "hotspot.Smooth"
	if err := mask.Validate(); err != nil {
		return nil, err
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "sigma must be positive, got %v", sigma)
	}
	if !(truncate > 0) || math.IsInf(truncate, 0) {
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "truncate must be positive, got %v", truncate)
	}
	if r := truncate*sigma + 0.5; !(r < MaxKernelRadius+1) {
		return nil, forest.Errorf(op, forest.ErrInvalidInput, "kernel radius %.4g cells exceeds %d (sigma %v, truncate %v)", math.Floor(r), MaxKernelRadius, sigma, truncate)
	}

	rows, cols := mask.Rows, mask.Cols
	kernel := gaussianKernel(sigma, truncate)
	colKernel, colCentre := foldKernel(kernel, cols)
	rowKernel, rowCentre := foldKernel(kernel, rows)
	src := mask.Float64s()

	// Rows first, then columns; the Gaussian is separable.
	tmp := make([]float64, len(src))
	for r := 0; r < rows; r++ {
		base := r * cols
		for c := 0; c < cols; c++ {
			var acc float64
			for k, w := range colKernel {
				acc += w * src[base+reflect(c+k-colCentre, cols)]
			}
			tmp[base+c] = acc
		}
	}
	out := make([]float64, len(src))
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			var acc float64
			for k, w := range rowKernel {
				acc += w * tmp[reflect(r+k-rowCentre, rows)*cols+c]
			}
			out[r*cols+c] = acc
		}
	}
	return out, nil
}
