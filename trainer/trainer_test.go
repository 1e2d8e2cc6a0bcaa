package trainer

import "io/fs"
import "math"
import "path/filepath"
import "strings"
import "testing"

import "github.com/neurlang/stylegan/config"
import "github.com/neurlang/stylegan/datasets"
import "github.com/neurlang/stylegan/device"
import "github.com/neurlang/stylegan/net/stylegan"

func testTrainer(t *testing.T, maxSize int) *Trainer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Dataset:               "synthetic",
		GeneratorChannels:     []int{3, 2},
		DiscriminatorChannels: []int{3, 2},
		ImgChannels:           1,
		NZ:                    4,
		StyleDepth:            2,
		DefaultLR:             0.001,
		Betas:                 [2]float64{0, 0.99},
		Eps:                   1e-8,
		PhaseIter:             16,
		WeightsHalflifeImages: 100,
		BatchSize:             4,
		NCPU:                  2,
		OptLevel:              "O1",
		LogIter:               100,
		CheckpointDir:         filepath.Join(dir, "checkpoints"),
		RunDir:                filepath.Join(dir, "runs"),
		RunName:               "test",
		Device:                "host",
		Seed:                  1,
	}
	p := datasets.NewSynthetic(64, maxSize, 1)
	tr, err := New(cfg, p, device.Host{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Loader().Close() })
	return tr
}

func TestAlphaRamp(t *testing.T) {
	tr := testTrainer(t, 32)
	for i := 0; i < 3; i++ {
		if err := tr.Grow(); err != nil {
			t.Fatal(err)
		}
	}
	if tr.Loader().ImgSize() != 16 {
		t.Fatalf("expected the 16x16 tier, got %d", tr.Loader().ImgSize())
	}
	if a := tr.Alpha(0); a != 0 {
		t.Fatalf("Alpha(0) = %v, want 0", a)
	}
	if a := tr.Alpha(8); a != 0.5 {
		t.Fatalf("Alpha(8) = %v, want 0.5", a)
	}
	prev := -1.0
	for seen := 0; seen <= 32; seen += 4 {
		a := tr.Alpha(seen)
		if a < prev {
			t.Fatalf("alpha not monotone at seen=%d", seen)
		}
		prev = a
	}
	// the doubled phase budget spends its second half fully blended
	if a := tr.Alpha(24); a != 1 {
		t.Fatalf("Alpha(24) = %v, want 1", a)
	}
}

func TestAlphaPinnedOnSmallTiers(t *testing.T) {
	tr := testTrainer(t, 32)
	for _, size := range []int{4, 8} {
		if err := tr.Grow(); err != nil {
			t.Fatal(err)
		}
		if tr.Loader().ImgSize() != size {
			t.Fatalf("tier %d, want %d", tr.Loader().ImgSize(), size)
		}
		if a := tr.Alpha(0); a != 1 {
			t.Fatalf("size %d: Alpha(0) = %v, want pinned 1", size, a)
		}
	}
}

func TestGrowKeepsTwinsAligned(t *testing.T) {
	tr := testTrainer(t, 32)
	for i := 0; i < 2; i++ {
		if err := tr.Grow(); err != nil {
			t.Fatal(err)
		}
	}
	live := tr.Generator().NamedParameters()
	twin := tr.GeneratorEMA().NamedParameters()
	if len(live) != len(twin) {
		t.Fatalf("parameter counts diverged: %d != %d", len(live), len(twin))
	}
	for i := range live {
		if live[i].Name != twin[i].Name {
			t.Fatalf("parameter %d named %q vs %q", i, live[i].Name, twin[i].Name)
		}
		if live[i].Param.Value.Len() != twin[i].Param.Value.Len() {
			t.Fatalf("%s sized %d vs %d", live[i].Name, live[i].Param.Value.Len(), twin[i].Param.Value.Len())
		}
	}
	if lr, styleLR := tr.LearningRates(); styleLR != lr*0.01 {
		t.Fatalf("style lr %v, want %v", styleLR, lr*0.01)
	}
}

func TestTrainingStepsMoveParameters(t *testing.T) {
	tr := testTrainer(t, 32)
	if err := tr.Grow(); err != nil {
		t.Fatal(err)
	}
	e := tr.InitEMA()

	real, _, ok := tr.Loader().Next()
	if !ok {
		t.Fatal("loader yielded no batch")
	}
	before := stylegan.ExportState(tr.Generator().NamedParameters())
	dBefore := stylegan.ExportState(tr.Discriminator().NamedParameters())

	dLoss, realScore, fakeScore := tr.DiscriminatorStep(real, 1)
	if math.IsNaN(dLoss) || math.IsNaN(realScore) || math.IsNaN(fakeScore) {
		t.Fatalf("discriminator step produced NaN: %v %v %v", dLoss, realScore, fakeScore)
	}
	gLoss := tr.GeneratorStep(tr.Loader().BatchSize(), 1, e)
	if math.IsNaN(gLoss) {
		t.Fatalf("generator step produced NaN: %v", gLoss)
	}

	changed := 0
	for _, np := range tr.Generator().NamedParameters() {
		for i, v := range np.Param.Value.Data {
			if v != before[np.Name].Data[i] {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Fatal("generator step left every parameter unchanged")
	}
	changed = 0
	for _, np := range tr.Discriminator().NamedParameters() {
		for i, v := range np.Param.Value.Data {
			if v != dBefore[np.Name].Data[i] {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Fatal("discriminator step left every parameter unchanged")
	}
}

func TestZeroHalflifeShadowTracksLive(t *testing.T) {
	tr := testTrainer(t, 32)
	tr.halflife = 0
	if err := tr.Grow(); err != nil {
		t.Fatal(err)
	}
	e := tr.InitEMA()

	real, _, ok := tr.Loader().Next()
	if !ok {
		t.Fatal("loader yielded no batch")
	}
	tr.DiscriminatorStep(real, 1)
	tr.GeneratorStep(tr.Loader().BatchSize(), 1, e)

	for _, np := range tr.Generator().NamedParameters() {
		if !np.Param.Trainable {
			continue
		}
		shadow := e.Shadow(np.Name)
		for i, v := range np.Param.Value.Data {
			if v != shadow[i] {
				t.Fatalf("zero halflife: %s[%d] live %v shadow %v", np.Name, i, v, shadow[i])
			}
		}
	}
}

func TestMixingProbability(t *testing.T) {
	tr := testTrainer(t, 32)
	const draws = 10000
	two := 0
	for i := 0; i < draws; i++ {
		if len(tr.SampleLatents(2)) == 2 {
			two++
		}
	}
	frac := float64(two) / draws
	if frac < 0.88 || frac > 0.92 {
		t.Fatalf("two-latent fraction %v, want about 0.9", frac)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	tr := testTrainer(t, 32)
	if err := tr.Grow(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Grow(); err != nil {
		t.Fatal(err)
	}
	e := tr.InitEMA()
	real, seen, ok := tr.Loader().Next()
	if !ok {
		t.Fatal("loader yielded no batch")
	}
	tr.DiscriminatorStep(real, 0.5)
	tr.GeneratorStep(tr.Loader().BatchSize(), 0.5, e)
	if err := tr.SaveEMA(e); err != nil {
		t.Fatal(err)
	}
	if err := tr.SaveCheckpoint(TickAt(seen)); err != nil {
		t.Fatal(err)
	}
	path := CheckpointPath(tr.cfg.CheckpointDir, 8, TickAt(seen))

	// the smoothed weights were also exported standalone
	sd, err := stylegan.ReadZlibStateFromFile(filepath.Join(tr.cfg.CheckpointDir, "8x8_ema.pth"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sd.Names()) != len(tr.GeneratorEMA().NamedParameters()) {
		t.Fatalf("ema export holds %d parameters, want %d", len(sd.Names()), len(tr.GeneratorEMA().NamedParameters()))
	}

	restored := testTrainer(t, 32)
	if err := restored.LoadCheckpoint(path); err != nil {
		t.Fatal(err)
	}
	if restored.Loader().ImgSize() != 8 {
		t.Fatalf("restored at %d, want 8", restored.Loader().ImgSize())
	}

	wantG := stylegan.ExportState(tr.Generator().NamedParameters())
	gotG := stylegan.ExportState(restored.Generator().NamedParameters())
	for name, want := range wantG {
		got := gotG[name]
		for i := range want.Data {
			if got.Data[i] != want.Data[i] {
				t.Fatalf("restored %s[%d] = %v, want %v", name, i, got.Data[i], want.Data[i])
			}
		}
	}
	wantE := stylegan.ExportState(tr.GeneratorEMA().NamedParameters())
	gotE := stylegan.ExportState(restored.GeneratorEMA().NamedParameters())
	for name, want := range wantE {
		got := gotE[name]
		for i := range want.Data {
			if got.Data[i] != want.Data[i] {
				t.Fatalf("restored ema %s[%d] diverged", name, i)
			}
		}
	}
	if restored.optD.T != tr.optD.T || restored.optG.T != tr.optG.T {
		t.Fatal("optimizer step counters were not restored")
	}
	if lrs := restored.optG.LRs(); lrs[1] != tr.styleLR {
		t.Fatalf("restored style lr %v, want %v", lrs[1], tr.styleLR)
	}

	// a mid-phase tick resumes the phase where it left off
	if _, seen2, ok := restored.Loader().Next(); !ok || seen2 != seen+restored.Loader().BatchSize() {
		t.Fatalf("resumed progress %d ok %v, want %d", seen2, ok, seen+restored.Loader().BatchSize())
	}
}

func TestCheckpointLastGrows(t *testing.T) {
	tr := testTrainer(t, 32)
	if err := tr.Grow(); err != nil {
		t.Fatal(err)
	}
	if err := tr.SaveCheckpoint(TickLast); err != nil {
		t.Fatal(err)
	}
	path := CheckpointPath(tr.cfg.CheckpointDir, 4, TickLast)

	restored := testTrainer(t, 32)
	if err := restored.LoadCheckpoint(path); err != nil {
		t.Fatal(err)
	}
	if restored.Loader().ImgSize() != 8 {
		t.Fatalf("a phase-end checkpoint must resume one tier up, got %d", restored.Loader().ImgSize())
	}
	if restored.Generator().Step() != 2 {
		t.Fatalf("generator grew %d tiers, want 2", restored.Generator().Step())
	}
}

func TestCheckpointBeyondLadderFails(t *testing.T) {
	tr := testTrainer(t, 32)
	for i := 0; i < 3; i++ {
		if err := tr.Grow(); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.SaveCheckpoint(TickAt(4)); err != nil {
		t.Fatal(err)
	}
	path := CheckpointPath(tr.cfg.CheckpointDir, 16, TickAt(4))

	// a provider topping out below the checkpoint resolution cannot resume it
	small := testTrainer(t, 8)
	if err := small.LoadCheckpoint(path); err == nil {
		t.Fatal("restoring past the provider's ladder must fail")
	}
}

func TestRunClimbsTheLadder(t *testing.T) {
	if testing.Short() {
		t.Skip("full ladder run")
	}
	tr := testTrainer(t, 16)
	if err := tr.Run(""); err != nil {
		t.Fatal(err)
	}
	// every phase up to the provider's top tier left its end-of-phase artifact
	for _, size := range []int{4, 8, 16} {
		path := CheckpointPath(tr.cfg.CheckpointDir, size, TickLast)
		rec, err := ReadRecord(path)
		if err != nil {
			t.Fatalf("missing phase checkpoint %s: %v", path, err)
		}
		if rec.ImgSize != size || !rec.Tick.Last {
			t.Fatalf("checkpoint %s holds size %d tick %v", path, rec.ImgSize, rec.Tick)
		}
	}
}

func TestLoggedGridsCoverBothGenerators(t *testing.T) {
	if testing.Short() {
		t.Skip("full ladder run")
	}
	tr := testTrainer(t, 8)
	tr.cfg.LogIter = 1
	if err := tr.Run(""); err != nil {
		t.Fatal(err)
	}
	// every log point leaves a live grid and a smoothed grid side by side
	tags := map[string]int{}
	root := filepath.Join(tr.cfg.RunDir, tr.cfg.RunName)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".png") {
			return nil
		}
		base := strings.TrimSuffix(name, ".png")
		tags[base[:strings.LastIndex(base, "_")]]++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if tags["sample"] == 0 || tags["sample_ema"] == 0 {
		t.Fatalf("sample grids per tag: %v", tags)
	}
	if tags["sample"] != tags["sample_ema"] {
		t.Fatalf("unpaired sample grids: %v", tags)
	}
}

func TestTickEncoding(t *testing.T) {
	if TickLast.String() != "last" || TickAt(640).String() != "640" {
		t.Fatalf("tick strings: %q %q", TickLast.String(), TickAt(640).String())
	}
	for _, tick := range []Tick{TickLast, TickAt(0), TickAt(1234)} {
		raw, err := tick.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		var back Tick
		if err := back.UnmarshalJSON(raw); err != nil {
			t.Fatal(err)
		}
		if back != tick {
			t.Fatalf("tick %v round-tripped to %v", tick, back)
		}
	}
	var bad Tick
	if err := bad.UnmarshalJSON([]byte(`"first"`)); err == nil {
		t.Fatal("unknown tick word must be rejected")
	}
}
