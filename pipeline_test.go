package canopy

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// stubClassifier labels every crop with the first class at a fixed score
type stubClassifier struct {
	classes int
	calls   int
}

func (s *stubClassifier) Predict(batch gocv.Mat, count int) ([][]float32, error) {

	s.calls++

	out := make([][]float32, count)

	for i := range out {
		scores := make([]float32, s.classes)
		scores[0] = 5
		out[i] = scores
	}

	return out, nil
}

func (s *stubClassifier) Close() error {
	return nil
}

// plantationFrame draws green crowns on a soil colored background
func plantationFrame() gocv.Mat {

	img := gocv.NewMatWithSize(1000, 1000, gocv.MatTypeCV8UC3)

	soil := color.RGBA{R: 150, G: 110, B: 80, A: 255}
	gocv.Rectangle(&img, image.Rect(0, 0, 1000, 1000), soil, -1)

	foliage := color.RGBA{R: 40, G: 170, B: 50, A: 255}

	for _, c := range []image.Point{{X: 200, Y: 200}, {X: 650, Y: 250},
		{X: 400, Y: 700}} {
		gocv.Circle(&img, c, 70, foliage, -1)
	}

	return img
}

func TestProcessNoImages(t *testing.T) {

	pipeline, err := NewPipeline(DefaultConfig(), nil)

	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	defer pipeline.Close()

	if _, err := pipeline.Process(nil); err != ErrNoImages {
		t.Errorf("expected ErrNoImages, got %v", err)
	}
}

func TestProcessSingleFrame(t *testing.T) {

	img := plantationFrame()
	defer img.Close()

	cls := &stubClassifier{classes: 5}

	pipeline, err := NewPipeline(DefaultConfig(), cls)

	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	defer pipeline.Close()

	res, err := pipeline.Process([]gocv.Mat{img})

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	defer res.Close()

	if res.Stitched {
		t.Errorf("single frame must not report stitched")
	}

	if res.Stats.Total == 0 {
		t.Fatalf("expected trees to be detected")
	}

	if cls.calls == 0 {
		t.Errorf("expected the classifier to be called")
	}

	// the stub always answers with the first class
	for _, tree := range res.Trees {
		if tree.Disease != "Healthy" {
			t.Errorf("expected Healthy, got %s", tree.Disease)
		}
	}

	if res.Stats.Healthy != res.Stats.Total {
		t.Errorf("expected all trees healthy, got %d of %d",
			res.Stats.Healthy, res.Stats.Total)
	}

	if !res.Stages.Segmented || !res.Stages.Classified {
		t.Errorf("expected segmented and classified stage flags, got %+v",
			res.Stages)
	}
}

func TestProcessWithoutClassifier(t *testing.T) {

	img := plantationFrame()
	defer img.Close()

	pipeline, err := NewPipeline(DefaultConfig(), nil)

	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	defer pipeline.Close()

	res, err := pipeline.Process([]gocv.Mat{img})

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	defer res.Close()

	if res.Stats.Total == 0 {
		t.Fatalf("expected trees to be detected without a classifier")
	}

	if res.Stats.Unclassified != res.Stats.Total {
		t.Errorf("expected all trees unclassified, got %d of %d",
			res.Stats.Unclassified, res.Stats.Total)
	}

	if len(res.Stats.DiseaseCounts) != 0 {
		t.Errorf("expected an empty histogram, got %v", res.Stats.DiseaseCounts)
	}

	// running without a classifier is a supported configuration, not a
	// degraded run
	for _, warn := range res.Warnings {
		if warn == ErrClassifierUnavailable {
			t.Errorf("unexpected ErrClassifierUnavailable warning")
		}
	}

	if res.Stages.Classified {
		t.Errorf("expected classified stage flag to be false")
	}
}

// brokenClassifier fails every batch
type brokenClassifier struct{}

func (b *brokenClassifier) Predict(batch gocv.Mat, count int) ([][]float32,
	error) {
	return nil, errInference
}

func (b *brokenClassifier) Close() error {
	return nil
}

var errInference = errors.New("inference failed")

func TestProcessClassifierFailure(t *testing.T) {

	img := plantationFrame()
	defer img.Close()

	pipeline, err := NewPipeline(DefaultConfig(), &brokenClassifier{})

	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	defer pipeline.Close()

	res, err := pipeline.Process([]gocv.Mat{img})

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	defer res.Close()

	if res.Stats.Total == 0 {
		t.Fatalf("expected trees to be detected")
	}

	if res.Stats.Unclassified != res.Stats.Total {
		t.Errorf("expected all trees unclassified, got %d of %d",
			res.Stats.Unclassified, res.Stats.Total)
	}

	// an actual classifier failure is a degraded run and must warn
	found := false

	for _, warn := range res.Warnings {
		if warn == ErrClassifierUnavailable {
			found = true
		}
	}

	if !found {
		t.Errorf("expected ErrClassifierUnavailable warning")
	}

	if res.Stages.Classified {
		t.Errorf("expected classified stage flag to be false")
	}
}

func TestProcessNoVegetation(t *testing.T) {

	img := gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3)
	defer img.Close()

	gray := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	gocv.Rectangle(&img, image.Rect(0, 0, 500, 500), gray, -1)

	cfg := DefaultConfig()
	cfg.SkipEnhance = true

	pipeline, err := NewPipeline(cfg, nil)

	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	defer pipeline.Close()

	res, err := pipeline.Process([]gocv.Mat{img})

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	defer res.Close()

	if res.Stats.Total != 0 {
		t.Errorf("expected no trees on a gray frame, got %d", res.Stats.Total)
	}

	if res.Stages.VegetationFound {
		t.Errorf("expected vegetation stage flag to be false")
	}

	found := false

	for _, warn := range res.Warnings {
		if warn == ErrNoVegetation {
			found = true
		}
	}

	if !found {
		t.Errorf("expected ErrNoVegetation warning")
	}
}

func TestBatchingEquivalence(t *testing.T) {

	img := plantationFrame()
	defer img.Close()

	run := func(batchSize int) []string {

		cfg := DefaultConfig()
		cfg.BatchSize = batchSize

		pipeline, err := NewPipeline(cfg, &stubClassifier{classes: 5})

		if err != nil {
			t.Fatalf("pipeline creation failed: %v", err)
		}

		defer pipeline.Close()

		res, err := pipeline.Process([]gocv.Mat{img})

		if err != nil {
			t.Fatalf("process failed: %v", err)
		}

		defer res.Close()

		labels := make([]string, len(res.Trees))

		for i, tree := range res.Trees {
			labels[i] = tree.Disease
		}

		return labels
	}

	// batch size is a performance knob, not a semantic one
	single := run(1)
	batched := run(64)

	if len(single) != len(batched) {
		t.Fatalf("tree counts differ: %d vs %d", len(single), len(batched))
	}

	for i := range single {
		if single[i] != batched[i] {
			t.Errorf("tree %d: %s vs %s", i+1, single[i], batched[i])
		}
	}
}

func TestPool(t *testing.T) {

	pool, err := NewPool(2, DefaultConfig(), func() (Classifier, error) {
		return &stubClassifier{classes: 5}, nil
	})

	if err != nil {
		t.Fatalf("pool creation failed: %v", err)
	}

	a := pool.Get()
	b := pool.Get()

	if a == nil || b == nil || a == b {
		t.Errorf("expected two distinct pipelines")
	}

	pool.Return(a)
	pool.Return(b)

	pool.Close()
}
