package telemetry

import "image/png"
import "os"
import "path/filepath"
import "strings"
import "testing"

import "github.com/neurlang/stylegan/tensor"

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder("run", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.AddScalar("loss/d", 1.5)
	r.Iter(16)
	if r.CurrentIter() != 16 {
		t.Fatalf("iter = %d, want 16", r.CurrentIter())
	}
	r.AddScalar("loss/g", 0.5)

	raw, err := os.ReadFile(filepath.Join(dir, "run", "scalars.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"tag":"loss/g"`) || !strings.Contains(string(raw), `"iter":16`) {
		t.Fatalf("scalar log missing fields: %s", raw)
	}

	if err := r.Renew("8x8"); err != nil {
		t.Fatal(err)
	}
	batch := tensor.New(4, 1*4*4)
	for i := range batch.Data {
		batch.Data[i] = float64(i%17) / 16
	}
	if err := r.AddImages("sample", batch, 1, 4, 4); err != nil {
		t.Fatal(err)
	}

	segments, err := filepath.Glob(filepath.Join(dir, "run", "8x8-*", "sample_16.png"))
	if err != nil || len(segments) != 1 {
		t.Fatalf("sample grid not written: %v %v", segments, err)
	}
	f, err := os.Open(segments[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	// four samples lay out on one 4-column row
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 4 {
		t.Fatalf("grid bounds %v", img.Bounds())
	}
}

func TestWriteGridClips(t *testing.T) {
	dir := t.TempDir()
	batch := tensor.New(1, 3*2*2)
	for i := range batch.Data {
		batch.Data[i] = 2 // above range, must clip instead of wrapping
	}
	path := filepath.Join(dir, "grid.png")
	if err := WriteGrid(path, batch, 3, 2, 2); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatalf("clipped pixel = %v %v %v, want white", r, g, b)
	}
}
