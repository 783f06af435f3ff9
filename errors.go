package canopy

import "errors"

var (
	// ErrNoImages is returned when Process is called with no input frames.
	// This is the only fatal input condition, all later stages degrade
	// instead of failing.
	ErrNoImages = errors.New("no input images")

	// ErrStitchFailed indicates panorama composition failed and the first
	// frame was analysed instead
	ErrStitchFailed = errors.New("stitching failed, analysed first frame")

	// ErrNoVegetation indicates the vegetation mask was empty so no trees
	// could be segmented
	ErrNoVegetation = errors.New("no vegetation detected")

	// ErrClassifierUnavailable indicates the configured classifier failed
	// to score every region, so all trees were reported unclassified.  A
	// pipeline built without a classifier does not record this warning.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)
