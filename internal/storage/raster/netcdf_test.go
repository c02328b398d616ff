package raster

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/forest.report/internal/forest"
)

func testGeometry() forest.Geometry {
	return forest.Geometry{
		Rows: 2,
		Cols: 3,
		Transform: forest.GeoTransform{
			OriginX: 500000, PixelWidth: 30, OriginY: 6000000, PixelHeight: -30,
		},
		CRS: "EPSG:32618",
	}
}

func TestCoverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.nc")
	values := []int32{1, 0, 1, 1, 1, 0}
	g, err := forest.NewCoverGrid(testGeometry(), values)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteCover(path, g); err != nil {
		t.Fatalf("WriteCover: %v", err)
	}
	back, err := ReadCover(path)
	if err != nil {
		t.Fatalf("ReadCover: %v", err)
	}

	if diff := cmp.Diff(testGeometry(), back.Geometry); diff != "" {
		t.Errorf("geometry mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(values, back.Int32s()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestMaskRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "loss.nc")
	cells := []bool{false, true, true, false, false, true}
	m, err := forest.NewMask(testGeometry(), cells)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteMask(path, m); err != nil {
		t.Fatalf("WriteMask: %v", err)
	}
	back, err := ReadMask(path)
	if err != nil {
		t.Fatalf("ReadMask: %v", err)
	}
	if back.Count() != 3 {
		t.Errorf("Count() = %d, want 3", back.Count())
	}
	if diff := cmp.Diff(m.Uint8s(), back.Uint8s()); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	if !back.Matches(testGeometry()) {
		t.Errorf("geometry not preserved: %+v", back.Geometry)
	}
}

func TestStockRoundTripSinglePrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.nc")
	values := []float64{0, 100, 0.1, 1e6 + 0.3, 12.5, 0}
	s, err := forest.NewStockGrid(testGeometry(), values)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteStock(path, s, "tC"); err != nil {
		t.Fatalf("WriteStock: %v", err)
	}
	back, err := ReadStock(path)
	if err != nil {
		t.Fatalf("ReadStock: %v", err)
	}

	got := back.Values()
	for i, v := range values {
		want := float64(float32(v))
		if got[i] != want {
			t.Errorf("cell %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestCanopyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canopy.nc")
	values := []float64{0, 12.5, 30, math.NaN(), 99.5, 100}
	if err := WriteCanopy(path, testGeometry(), values); err != nil {
		t.Fatalf("WriteCanopy: %v", err)
	}
	geo, back, err := ReadCanopy(path)
	if err != nil {
		t.Fatalf("ReadCanopy: %v", err)
	}
	if diff := cmp.Diff(testGeometry(), geo); diff != "" {
		t.Errorf("geometry mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(values, back, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCanopyFromBytes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "canopy_u8.nc")
	writeRaw(t, p, CanopyVar, []uint8{0, 25, 50, 75, 100, 30})
	_, back, err := ReadCanopy(p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0, 25, 50, 75, 100, 30}, back); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	p = filepath.Join(dir, "canopy_bad.nc")
	writeRaw(t, p, CanopyVar, []uint8{0, 101, 0, 0, 0, 0})
	if _, _, err := ReadCanopy(p); !errors.Is(err, forest.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}

	g, err := forest.NewCoverGrid(testGeometry(), make([]int32, 6))
	if err != nil {
		t.Fatal(err)
	}
	p = filepath.Join(dir, "cover.nc")
	if err := WriteCover(p, g); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadCanopy(p); !errors.Is(err, forest.ErrMissingData) {
		t.Errorf("err = %v, want ErrMissingData", err)
	}
}

func TestGeographicCRSPreserved(t *testing.T) {
	geo := forest.Geometry{
		Rows:      1,
		Cols:      2,
		Transform: forest.GeoTransform{OriginX: -75, PixelWidth: 0.01, OriginY: 45, PixelHeight: -0.01},
		CRS:       "EPSG:4326",
	}
	g, err := forest.NewCoverGrid(geo, []int32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "geo.nc")
	if err := WriteCover(path, g); err != nil {
		t.Fatal(err)
	}
	back, err := ReadCover(path)
	if err != nil {
		t.Fatal(err)
	}
	if !back.IsGeographic() {
		t.Errorf("IsGeographic() = false after round trip, CRS %q", back.CRS)
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadCover(filepath.Join(dir, "absent.nc"))
		if !errors.Is(err, forest.ErrMissingData) {
			t.Errorf("err = %v, want ErrMissingData", err)
		}
	})

	t.Run("not netcdf", func(t *testing.T) {
		p := filepath.Join(dir, "junk.nc")
		if err := os.WriteFile(p, []byte("definitely not a netcdf header"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := ReadCover(p)
		if !errors.Is(err, forest.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("wrong variable", func(t *testing.T) {
		m, err := forest.NewMask(testGeometry(), make([]bool, 6))
		if err != nil {
			t.Fatal(err)
		}
		p := filepath.Join(dir, "mask.nc")
		if err := WriteMask(p, m); err != nil {
			t.Fatal(err)
		}
		_, err = ReadCover(p)
		if !errors.Is(err, forest.ErrMissingData) {
			t.Errorf("err = %v, want ErrMissingData", err)
		}
	})

	t.Run("non-binary mask byte", func(t *testing.T) {
		p := filepath.Join(dir, "bad_mask.nc")
		writeRaw(t, p, MaskVar, []uint8{0, 1, 2, 0, 0, 0})
		_, err := ReadMask(p)
		if !errors.Is(err, forest.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("nil grids", func(t *testing.T) {
		if err := WriteCover(filepath.Join(dir, "nil.nc"), nil); !errors.Is(err, forest.ErrMissingData) {
			t.Errorf("WriteCover(nil) = %v, want ErrMissingData", err)
		}
		if err := WriteMask(filepath.Join(dir, "nil.nc"), nil); !errors.Is(err, forest.ErrMissingData) {
			t.Errorf("WriteMask(nil) = %v, want ErrMissingData", err)
		}
	})
}

// writeRaw writes a file with the package layout but arbitrary bytes.
func writeRaw(t *testing.T, path, name string, data []uint8) {
	t.Helper()
	h := newHeader(testGeometry(), name, "raw", "", []uint8{})
	if err := write(path, h, name, data); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := cdf.Open(f); err != nil {
		t.Fatalf("reopen: %v", err)
	}
}
