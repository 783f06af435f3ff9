package segment

import (
	"testing"
)

func TestDedupSuppressesOverlaps(t *testing.T) {

	strong := &TreeRegion{
		Box:         Box{X: 0, Y: 0, Width: 100, Height: 100},
		Area:        9000,
		Solidity:    0.9,
		Circularity: 0.8,
	}

	// heavy overlap with strong, lower quality
	weak := &TreeRegion{
		Box:         Box{X: 10, Y: 10, Width: 100, Height: 100},
		Area:        8000,
		Solidity:    0.5,
		Circularity: 0.4,
	}

	// well separated
	other := &TreeRegion{
		Box:         Box{X: 300, Y: 300, Width: 80, Height: 80},
		Area:        5000,
		Solidity:    0.7,
		Circularity: 0.6,
	}

	kept := Dedup([]*TreeRegion{weak, other, strong}, 0.4)

	if len(kept) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(kept))
	}

	for _, region := range kept {
		if region == weak {
			t.Errorf("expected overlapping weak region to be suppressed")
		}
	}

	// no two kept regions may overlap beyond the threshold
	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			if IoU(kept[i].Box, kept[j].Box) > 0.4 {
				t.Errorf("kept regions %d and %d overlap beyond threshold", i, j)
			}
		}
	}
}

func TestDedupKeepsDisjoint(t *testing.T) {

	regions := []*TreeRegion{
		{Box: Box{X: 0, Y: 0, Width: 50, Height: 50}, Area: 2000, Solidity: 0.8},
		{Box: Box{X: 100, Y: 0, Width: 50, Height: 50}, Area: 2000, Solidity: 0.8},
		{Box: Box{X: 0, Y: 100, Width: 50, Height: 50}, Area: 2000, Solidity: 0.8},
	}

	kept := Dedup(regions, 0.4)

	if len(kept) != 3 {
		t.Errorf("expected all 3 disjoint regions kept, got %d", len(kept))
	}
}

func TestDedupOrderIndependent(t *testing.T) {

	build := func() []*TreeRegion {
		return []*TreeRegion{
			{Box: Box{X: 0, Y: 0, Width: 100, Height: 100}, Area: 9000,
				Solidity: 0.9, Circularity: 0.8},
			{Box: Box{X: 20, Y: 20, Width: 100, Height: 100}, Area: 6000,
				Solidity: 0.5, Circularity: 0.4},
			{Box: Box{X: 300, Y: 0, Width: 60, Height: 60}, Area: 3000,
				Solidity: 0.7, Circularity: 0.5},
		}
	}

	forward := build()
	keptA := Dedup(forward, 0.4)

	reversed := build()
	reversed[0], reversed[2] = reversed[2], reversed[0]
	keptB := Dedup(reversed, 0.4)

	if len(keptA) != len(keptB) {
		t.Fatalf("kept counts differ: %d vs %d", len(keptA), len(keptB))
	}

	for i := range keptA {
		if keptA[i].Box != keptB[i].Box {
			t.Errorf("region %d differs between orderings", i)
		}
	}
}
