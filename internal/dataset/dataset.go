// Package dataset holds labeled tabular data and turns it into batches of
// born tensors.
//
// A Dataset is a dense float32 feature matrix with one int32 class label per
// row. Randomness (shuffling, splitting, synthetic generation) always comes
// from a *rand.Rand passed by the caller, so a seed fully determines the
// result.
package dataset

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrEmptyDataset      = errors.New("dataset: empty")
	ErrDimensionMismatch = errors.New("dataset: dimension mismatch")
	ErrInvalidLabel      = errors.New("dataset: invalid label")
	ErrInvalidSplit      = errors.New("dataset: invalid split")
)

// Dataset is a labeled feature matrix.
type Dataset struct {
	X [][]float32 // [num_samples, num_features]
	Y []int32     // [num_samples]

	// Classes holds the original label names when labels were mapped from
	// strings. Class i is Classes[i].
	Classes []string
}

// New validates x and y and returns a dataset holding them.
func New(x [][]float32, y []int32) (*Dataset, error) {
	d := &Dataset{X: x, Y: y}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that the dataset is non-empty and rectangular and that
// every label is non-negative.
func (d *Dataset) Validate() error {
	if d == nil || len(d.X) == 0 {
		return ErrEmptyDataset
	}
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrDimensionMismatch, len(d.X), len(d.Y))
	}
	width := len(d.X[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no features", ErrDimensionMismatch)
	}
	for i, row := range d.X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrDimensionMismatch, i, len(row), width)
		}
	}
	for i, label := range d.Y {
		if label < 0 {
			return fmt.Errorf("%w: row %d has label %d", ErrInvalidLabel, i, label)
		}
	}
	return nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.X)
}

// NumFeatures returns the number of features per sample.
func (d *Dataset) NumFeatures() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// NumClasses returns the largest label plus one.
func (d *Dataset) NumClasses() int {
	n := int32(-1)
	for _, label := range d.Y {
		if label > n {
			n = label
		}
	}
	if len(d.Classes) > int(n)+1 {
		return len(d.Classes)
	}
	return int(n) + 1
}

// Counts returns the number of samples per class.
func (d *Dataset) Counts() []int {
	counts := make([]int, d.NumClasses())
	for _, label := range d.Y {
		counts[label]++
	}
	return counts
}

// Subset returns the rows at idx. Rows are shared with d, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		X:       make([][]float32, len(idx)),
		Y:       make([]int32, len(idx)),
		Classes: d.Classes,
	}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}
