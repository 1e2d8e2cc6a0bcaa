package ema

import "math"
import "testing"

func TestDecay(t *testing.T) {
	if d := Decay(16, 0); d != 0 {
		t.Fatalf("zero halflife decay = %v, want 0", d)
	}
	if d := Decay(16, -1); d != 0 {
		t.Fatalf("negative halflife decay = %v, want 0", d)
	}
	// one halflife worth of samples per update halves the shadow's weight
	if d := Decay(500, 500); math.Abs(d-0.5) > 1e-12 {
		t.Fatalf("halflife decay = %v, want 0.5", d)
	}
	got := Decay(16, 10000)
	want := math.Pow(0.5, 16.0/10000)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("decay = %v, want %v", got, want)
	}
}

func TestUpdateConverges(t *testing.T) {
	e := New(0.5)
	e.Register("w", []float64{0})
	target := []float64{10}
	var prev float64
	for i := 0; i < 60; i++ {
		got := e.Update("w", target)
		if got[0] < prev {
			t.Fatalf("shadow moved away from a fixed target at step %d", i)
		}
		prev = got[0]
	}
	if math.Abs(prev-10) > 1e-9 {
		t.Fatalf("shadow = %v, want near 10", prev)
	}
}

func TestZeroDecayTracksValue(t *testing.T) {
	e := New(0)
	e.Register("w", []float64{1, 2})
	got := e.Update("w", []float64{7, 8})
	if got[0] != 7 || got[1] != 8 {
		t.Fatalf("zero decay shadow = %v, want the raw value", got)
	}
}

func TestFixedPoint(t *testing.T) {
	e := New(0.9)
	e.Register("w", []float64{3})
	got := e.Update("w", []float64{3})
	if got[0] != 3 {
		t.Fatalf("updating with the registered value moved the shadow to %v", got[0])
	}
}

func TestUpdateReturnsCopy(t *testing.T) {
	e := New(0.5)
	e.Register("w", []float64{0})
	got := e.Update("w", []float64{4})
	got[0] = 999
	if e.Shadow("w")[0] == 999 {
		t.Fatal("Update must not alias the internal shadow")
	}
}

func TestUnregisteredPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("update of an unregistered name must panic")
		}
	}()
	New(0.5).Update("nope", []float64{1})
}
