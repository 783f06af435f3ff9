package segment

import (
	"image"
	"math"
	"testing"
)

func TestRescale(t *testing.T) {

	region := &TreeRegion{
		Box:      Box{X: 10, Y: 20, Width: 30, Height: 40},
		Centroid: image.Pt(25, 40),
		Area:     1200,
		Contour:  []image.Point{{X: 10, Y: 20}, {X: 40, Y: 20}, {X: 40, Y: 60}},
	}

	Rescale([]*TreeRegion{region}, 2.0)

	if region.Box != (Box{X: 20, Y: 40, Width: 60, Height: 80}) {
		t.Errorf("unexpected box %+v", region.Box)
	}

	if region.Centroid != image.Pt(50, 80) {
		t.Errorf("unexpected centroid %v", region.Centroid)
	}

	// area scales quadratically
	if region.Area != 4800 {
		t.Errorf("expected area 4800, got %f", region.Area)
	}

	if region.Contour[2] != image.Pt(80, 120) {
		t.Errorf("unexpected contour point %v", region.Contour[2])
	}
}

func TestRescaleIdentity(t *testing.T) {

	region := &TreeRegion{
		Box:      Box{X: 10, Y: 20, Width: 30, Height: 40},
		Centroid: image.Pt(25, 40),
		Area:     1200,
	}

	Rescale([]*TreeRegion{region}, 1.0)

	if region.Box != (Box{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Errorf("identity rescale modified box %+v", region.Box)
	}
}

func TestRescaleRoundTrip(t *testing.T) {

	region := &TreeRegion{
		Box:      Box{X: 120, Y: 240, Width: 64, Height: 96},
		Centroid: image.Pt(152, 288),
		Area:     4800,
	}

	regions := []*TreeRegion{region}

	Rescale(regions, 0.5)
	Rescale(regions, 2.0)

	// down then up by the inverse reproduces the original within rounding
	if region.Box != (Box{X: 120, Y: 240, Width: 64, Height: 96}) {
		t.Errorf("round trip changed box to %+v", region.Box)
	}

	if region.Centroid != image.Pt(152, 288) {
		t.Errorf("round trip changed centroid to %v", region.Centroid)
	}

	if math.Abs(region.Area-4800) > 1 {
		t.Errorf("round trip changed area to %f", region.Area)
	}
}

func TestSortReadingOrder(t *testing.T) {

	// trees in two visual rows, centroids deliberately not row aligned
	regions := []*TreeRegion{
		{Centroid: image.Pt(500, 130)}, // row 1, right
		{Centroid: image.Pt(50, 250)},  // row 2, left
		{Centroid: image.Pt(100, 110)}, // row 1, left
		{Centroid: image.Pt(300, 280)}, // row 2, right
	}

	SortReadingOrder(regions)

	want := []image.Point{
		{X: 100, Y: 110},
		{X: 500, Y: 130},
		{X: 50, Y: 250},
		{X: 300, Y: 280},
	}

	for i, pt := range want {
		if regions[i].Centroid != pt {
			t.Errorf("position %d: expected %v, got %v", i, pt,
				regions[i].Centroid)
		}
	}
}

func TestSortReadingOrderDeterministic(t *testing.T) {

	build := func(order []int) []*TreeRegion {
		pts := []image.Point{
			{X: 100, Y: 110}, {X: 500, Y: 130},
			{X: 50, Y: 250}, {X: 300, Y: 280},
		}

		regions := make([]*TreeRegion, len(order))

		for i, idx := range order {
			regions[i] = &TreeRegion{Centroid: pts[idx]}
		}

		return regions
	}

	a := build([]int{0, 1, 2, 3})
	b := build([]int{3, 2, 1, 0})

	SortReadingOrder(a)
	SortReadingOrder(b)

	for i := range a {
		if a[i].Centroid != b[i].Centroid {
			t.Errorf("position %d differs between detection orders", i)
		}
	}
}
