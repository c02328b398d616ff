package hotspot

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/forest.report/internal/forest"
)

func squareGeo(n int) forest.Geometry {
	return forest.Geometry{Rows: n, Cols: n, Transform: forest.GeoTransform{PixelWidth: 30, PixelHeight: -30}, CRS: "EPSG:32633"}
}

func maskWith(t *testing.T, rows, cols int, on ...[2]int) *forest.Mask {
	t.Helper()
	g := forest.Geometry{Rows: rows, Cols: cols, Transform: forest.GeoTransform{PixelWidth: 30, PixelHeight: -30}, CRS: "EPSG:32633"}
	cells := make([]bool, rows*cols)
	for _, rc := range on {
		cells[rc[0]*cols+rc[1]] = true
	}
	m, err := forest.NewMask(g, cells)
	if err != nil {
		t.Fatalf("NewMask: %v", err)
	}
	return m
}

func blockMask(t *testing.T, n, lo, hi int) *forest.Mask {
	t.Helper()
	var on [][2]int
	for r := lo; r <= hi; r++ {
		for c := lo; c <= hi; c++ {
			on = append(on, [2]int{r, c})
		}
	}
	return maskWith(t, n, n, on...)
}

// =============================================================================
// Smoothing
// =============================================================================

func TestReflect(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 5, 0}, {4, 5, 4},
		{-1, 5, 0}, {-2, 5, 1}, {-5, 5, 4}, {-6, 5, 4},
		{5, 5, 4}, {6, 5, 3}, {9, 5, 0}, {10, 5, 0},
		{-3, 1, 0}, {7, 1, 0},
	}
	for _, tt := range tests {
		if got := reflect(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(2, 4)
	if len(k) != 17 {
		t.Fatalf("kernel length = %d, want 17", len(k))
	}
	var sum float64
	for i, w := range k {
		sum += w
		if w != k[len(k)-1-i] {
			t.Errorf("kernel not symmetric at %d", i)
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("kernel sum = %v, want 1", sum)
	}

	// Radius rounds half up: 0.75*2 = 1.5 -> 2.
	if got := len(gaussianKernel(0.75, 2)); got != 5 {
		t.Errorf("kernel length = %d, want 5", got)
	}
}

func TestSmooth_Impulse(t *testing.T) {
	m := maskWith(t, 31, 31, [2]int{15, 15})
	out, err := Smooth(m, 1, DefaultTruncate)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range out {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("impulse mass = %v, want 1", sum)
	}
	// Peak of a unit-sigma 2-D Gaussian is 1/(2*pi).
	if got := out[15*31+15]; math.Abs(got-1/(2*math.Pi)) > 1e-4 {
		t.Errorf("peak = %v, want %v", got, 1/(2*math.Pi))
	}
	if out[15*31+14] != out[15*31+16] || out[14*31+15] != out[15*31+14] {
		t.Error("smoothing is not isotropic around the impulse")
	}
}

func TestSmooth_ConstantGridUnchanged(t *testing.T) {
	var on [][2]int
	for r := 0; r < 4; r++ {
		for c := 0; c < 3; c++ {
			on = append(on, [2]int{r, c})
		}
	}
	out, err := Smooth(maskWith(t, 4, 3, on...), 2, DefaultTruncate)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("cell %d = %v, want 1", i, v)
		}
	}
}

// smoothDirect convolves without folding, for comparison.
func smoothDirect(m *forest.Mask, sigma, truncate float64) []float64 {
	kernel := gaussianKernel(sigma, truncate)
	radius := len(kernel) / 2
	src := m.Float64s()
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			for k, w := range kernel {
				tmp[r*m.Cols+c] += w * src[r*m.Cols+reflect(c+k-radius, m.Cols)]
			}
		}
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			for k, w := range kernel {
				out[r*m.Cols+c] += w * tmp[reflect(r+k-radius, m.Rows)*m.Cols+c]
			}
		}
	}
	return out
}

func TestSmooth_KernelWiderThanGrid(t *testing.T) {
	m := maskWith(t, 5, 4, [2]int{0, 0}, [2]int{3, 2})
	out, err := Smooth(m, 3, DefaultTruncate)
	if err != nil {
		t.Fatal(err)
	}
	want := smoothDirect(m, 3, DefaultTruncate)
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("cell %d = %v, want %v", i, out[i], want[i])
		}
	}

	// A kernel far wider than the grid spreads the mass evenly.
	out, err = Smooth(maskWith(t, 3, 3, [2]int{0, 0}), 1000, DefaultTruncate)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if math.Abs(v-1.0/9) > 1e-3 {
			t.Errorf("cell %d = %v, want about 1/9", i, v)
		}
	}
}

func TestSmooth_RejectsOversizedKernel(t *testing.T) {
	m := maskWith(t, 3, 3, [2]int{1, 1})
	for _, sigma := range []float64{1e300, 1e9, MaxKernelRadius} {
		if _, err := Smooth(m, sigma, DefaultTruncate); !errors.Is(err, forest.ErrInvalidInput) {
			t.Errorf("sigma %v: err = %v, want ErrInvalidInput", sigma, err)
		}
	}
	if _, err := Smooth(m, MaxKernelRadius/DefaultTruncate-1, DefaultTruncate); err != nil {
		t.Errorf("largest accepted kernel: %v", err)
	}
}

// =============================================================================
// Detect
// =============================================================================

func TestDetect_Block(t *testing.T) {
	hot, err := Detect(blockMask(t, 21, 8, 12), 0.1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !hot.At(10, 10) {
		t.Error("block centre should be a hotspot")
	}
	if hot.At(0, 0) || hot.At(20, 20) {
		t.Error("far corners should not be hotspots")
	}
	if hot.Geometry != squareGeo(21) {
		t.Error("hotspot mask must keep the source geometry")
	}
}

func TestDetect_EmptyMask(t *testing.T) {
	hot, err := Detect(maskWith(t, 5, 5), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hot.Count() != 0 {
		t.Errorf("empty mask produced %d hotspots", hot.Count())
	}
}

func TestDetect_Monotonic(t *testing.T) {
	m := maskWith(t, 12, 12, [2]int{2, 2}, [2]int{2, 3}, [2]int{3, 3}, [2]int{9, 9}, [2]int{6, 1}, [2]int{0, 11})
	thresholds := []float64{0, 0.01, 0.03, 0.05, 0.1, 0.2, 0.5}
	var prev *forest.Mask
	for _, th := range thresholds {
		hot, err := Detect(m, th, 1.5)
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil {
			for i := 0; i < hot.Len(); i++ {
				if hot.Set(i) && !prev.Set(i) {
					t.Fatalf("threshold %v added cell %d absent at lower threshold", th, i)
				}
			}
		}
		prev = hot
	}
}

func TestDetect_InvalidParameters(t *testing.T) {
	m := maskWith(t, 3, 3, [2]int{1, 1})
	tests := []struct {
		name             string
		threshold, sigma float64
	}{
		{"negative threshold", -0.1, 2},
		{"zero sigma", 0.1, 0},
		{"negative sigma", 0.1, -1},
		{"NaN sigma", 0.1, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Detect(m, tt.threshold, tt.sigma); !errors.Is(err, forest.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
	if _, err := Detect(nil, 0.1, 2); !errors.Is(err, forest.ErrMissingData) {
		t.Errorf("nil mask: got %v, want ErrMissingData", err)
	}
}

func TestConfig_Builder(t *testing.T) {
	c := (&Config{}).WithThreshold(0.2).WithSigma(1).WithTruncate(3)
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Threshold != 0.2 || c.Sigma != 1 || c.Truncate != 3 {
		t.Errorf("builder produced %+v", c)
	}
	if err := c.WithTruncate(0).Validate(); err == nil {
		t.Error("zero truncate should fail validation")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	want := &Config{Threshold: 0.1, Sigma: 2, Truncate: 4}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("DefaultConfig (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Regions
// =============================================================================

func TestRegions(t *testing.T) {
	// Two diagonal-connected cells, one 2x2 block, one isolated cell.
	m := maskWith(t, 6, 6,
		[2]int{0, 0}, [2]int{1, 1},
		[2]int{3, 3}, [2]int{3, 4}, [2]int{4, 3}, [2]int{4, 4},
		[2]int{0, 5},
	)
	got, err := Regions(m)
	if err != nil {
		t.Fatal(err)
	}
	want := []Region{
		{ID: 3, PixelCount: 4, MinRow: 3, MinCol: 3, MaxRow: 4, MaxCol: 4, CentroidRow: 3.5, CentroidCol: 3.5},
		{ID: 1, PixelCount: 2, MinRow: 0, MinCol: 0, MaxRow: 1, MaxCol: 1, CentroidRow: 0.5, CentroidCol: 0.5},
		{ID: 2, PixelCount: 1, MinRow: 0, MinCol: 5, MaxRow: 0, MaxCol: 5, CentroidRow: 0, CentroidCol: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Regions (-want +got):\n%s", diff)
	}
}

func TestRegions_FromDetectedBlock(t *testing.T) {
	hot, err := Detect(blockMask(t, 21, 8, 12), 0.1, 2)
	if err != nil {
		t.Fatal(err)
	}
	regions, err := Regions(hot)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if math.Abs(regions[0].CentroidRow-10) > 1e-9 || math.Abs(regions[0].CentroidCol-10) > 1e-9 {
		t.Errorf("centroid = (%v, %v), want (10, 10)", regions[0].CentroidRow, regions[0].CentroidCol)
	}
}

func TestRegions_Empty(t *testing.T) {
	got, err := Regions(maskWith(t, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d regions, want 0", len(got))
	}
}
