package amp

import "math"
import "testing"

import "github.com/neurlang/stylegan/layer"
import "github.com/neurlang/stylegan/learning"

func testOpt(value float64) (layer.Named, *learning.Adam) {
	p := layer.NewParam(1)
	p.Value.Data[0] = value
	np := layer.Named{Name: "w", Param: p}
	return np, learning.NewAdam([2]float64{0, 0.99}, 1e-8, learning.Group{LR: 0.1, Params: []layer.Named{np}})
}

func TestInitializeLevels(t *testing.T) {
	_, opt := testOpt(0)
	opts, s, err := Initialize([]*learning.Adam{opt}, "O0")
	if err != nil || len(opts) != 1 {
		t.Fatalf("O0: %v", err)
	}
	if s.LossScale() != 1 {
		t.Fatalf("O0 loss scale = %v, want 1", s.LossScale())
	}
	_, s, err = Initialize([]*learning.Adam{opt}, "O1")
	if err != nil {
		t.Fatalf("O1: %v", err)
	}
	if s.LossScale() != 1<<16 {
		t.Fatalf("O1 loss scale = %v, want 65536", s.LossScale())
	}
	if _, _, err = Initialize([]*learning.Adam{opt}, "O9"); err == nil {
		t.Fatal("unknown level must be rejected")
	}
}

func TestStepSkipsNonFinite(t *testing.T) {
	np, opt := testOpt(2)
	_, s, err := Initialize([]*learning.Adam{opt}, "O1")
	if err != nil {
		t.Fatal(err)
	}
	before := s.LossScale()
	np.Param.Grad.Data[0] = math.Inf(1)
	if s.Step(opt) {
		t.Fatal("step with Inf gradient must be skipped")
	}
	if np.Param.Value.Data[0] != 2 {
		t.Fatalf("skipped step still moved the parameter to %v", np.Param.Value.Data[0])
	}
	if s.LossScale() != before/2 {
		t.Fatalf("scale after overflow = %v, want %v", s.LossScale(), before/2)
	}
}

func TestScaleFloorsAtOne(t *testing.T) {
	np, opt := testOpt(0)
	_, s, err := Initialize([]*learning.Adam{opt}, "O1")
	if err != nil {
		t.Fatal(err)
	}
	np.Param.Grad.Data[0] = math.NaN()
	for i := 0; i < 64; i++ {
		s.Step(opt)
	}
	if s.LossScale() != 1 {
		t.Fatalf("scale bottomed out at %v, want 1", s.LossScale())
	}
}

func TestScaleGrowsAfterCleanRun(t *testing.T) {
	np, opt := testOpt(0)
	_, s, err := Initialize([]*learning.Adam{opt}, "O1")
	if err != nil {
		t.Fatal(err)
	}
	before := s.LossScale()
	for i := 0; i < 2000; i++ {
		np.Param.Grad.Data[0] = 1e-3
		if !s.Step(opt) {
			t.Fatalf("clean step %d skipped", i)
		}
	}
	if s.LossScale() != before*2 {
		t.Fatalf("scale after clean run = %v, want %v", s.LossScale(), before*2)
	}
}

func TestDisabledScalerSteps(t *testing.T) {
	np, opt := testOpt(5)
	_, s, err := Initialize([]*learning.Adam{opt}, "O0")
	if err != nil {
		t.Fatal(err)
	}
	np.Param.Grad.Data[0] = 1
	if !s.Step(opt) {
		t.Fatal("disabled scaler must always step")
	}
	if np.Param.Value.Data[0] == 5 {
		t.Fatal("disabled scaler step did not move the parameter")
	}
	if s.ScaleLoss(3) != 3 {
		t.Fatalf("O0 ScaleLoss(3) = %v, want 3", s.ScaleLoss(3))
	}
}
