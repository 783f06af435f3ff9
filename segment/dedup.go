package segment

import (
	"sort"
)

// Dedup removes overlapping duplicate crown candidates.  Candidates are
// ranked by their composite quality score and kept greedily unless their
// bounding box IoU with an already kept region exceeds the threshold.
// Masks of suppressed regions are released.
func Dedup(regions []*TreeRegion, iouThreshold float64) []*TreeRegion {

	if len(regions) < 2 {
		return regions
	}

	ranked := make([]*TreeRegion, len(regions))
	copy(ranked, regions)

	// ties broken on area then position so the result does not depend on
	// detection order
	sort.Slice(ranked, func(i, j int) bool {
		qi, qj := ranked[i].Quality(), ranked[j].Quality()

		if qi != qj {
			return qi > qj
		}

		if ranked[i].Area != ranked[j].Area {
			return ranked[i].Area > ranked[j].Area
		}

		if ranked[i].Box.X != ranked[j].Box.X {
			return ranked[i].Box.X < ranked[j].Box.X
		}

		return ranked[i].Box.Y < ranked[j].Box.Y
	})

	keep := make([]*TreeRegion, 0, len(ranked))

	for _, region := range ranked {
		suppressed := false

		for _, kept := range keep {
			if IoU(region.Box, kept.Box) > iouThreshold {
				suppressed = true
				break
			}
		}

		if suppressed {
			_ = region.Close()
			continue
		}

		keep = append(keep, region)
	}

	return keep
}
