package canopy

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Batch concatenates preprocessed float32 crop Mats into a single NHWC Mat
// so a classifier can score many crowns in one inference call
type Batch struct {
	mat gocv.Mat
	// size of the batch
	size int
	// width is the input tensor size width
	width int
	// height is the input tensor size height
	height int
	// channels is the input tensor number of channels
	channels int
	// matCnt is a counter for how many Mats have been added with Add()
	matCnt int
	// imgSize stores an images size made up from its elements
	imgSize int
}

// NewBatch creates a batch of concatenated Mats for the given input shape
// and batch size
func NewBatch(batchSize, height, width, channels int) *Batch {

	shape := []int{batchSize, height, width, channels}

	return &Batch{
		size:     batchSize,
		height:   height,
		width:    width,
		channels: channels,
		mat:      gocv.NewMatWithSizes(shape, gocv.MatTypeCV32F),
		matCnt:   0,
		imgSize:  height * width * channels,
	}
}

// Add a Mat to the batch
func (b *Batch) Add(img gocv.Mat) error {

	// check if batch is full
	if b.matCnt >= b.size {
		return fmt.Errorf("batch full")
	}

	res := b.addAt(b.matCnt, img)

	if res != nil {
		return res
	}

	// increment image counter
	b.matCnt++
	return nil
}

// AddAt adds a Mat to the batch at the specific index location
func (b *Batch) AddAt(idx int, img gocv.Mat) error {

	if idx < 0 || idx >= b.size {
		return fmt.Errorf("index %d out of range [0-%d)", idx, b.size)
	}

	return b.addAt(idx, img)
}

// addAt adds a Mat to the specified index location
func (b *Batch) addAt(idx int, img gocv.Mat) error {

	// validate mat dimensions
	if img.Rows() != b.height || img.Cols() != b.width ||
		img.Channels() != b.channels {
		return fmt.Errorf("image does not match batch shape")
	}

	if img.Type() != gocv.MatTypeCV32FC3 && img.Type() != gocv.MatTypeCV32F {
		return fmt.Errorf("image must be float32")
	}

	if !img.IsContinuous() {
		img = img.Clone()
	}

	// pointer of the batch mat
	dstAll, err := b.mat.DataPtrFloat32()

	if err != nil {
		return fmt.Errorf("error accessing float32 batch memory: %w", err)
	}

	src, err := img.DataPtrFloat32()

	if err != nil {
		return fmt.Errorf("error getting float32 data from image: %w", err)
	}

	offset := idx * b.imgSize
	copy(dstAll[offset:], src)

	return nil
}

// Count returns the number of images added since the last Clear
func (b *Batch) Count() int {
	return b.matCnt
}

// Size returns the batch capacity
func (b *Batch) Size() int {
	return b.size
}

// Mat returns the concatenated mat
func (b *Batch) Mat() gocv.Mat {
	return b.mat
}

// Clear the batch so it can be reused again
func (b *Batch) Clear() {
	// just reset the counter, we don't need to clear the underlying b.mat
	// as it will be overwritten when Add() is called with new images
	b.matCnt = 0
}

// Close the batch and free allocated memory
func (b *Batch) Close() error {
	return b.mat.Close()
}
