package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/bornfit/internal/parallel"
)

// Batch is a mini-batch of samples as tensors.
type Batch[B tensor.Backend] struct {
	X    *tensor.Tensor[float32, B] // [size, num_features]
	Y    *tensor.Tensor[int32, B]   // [size]
	Size int

	// Index holds the row of the dataset each sample came from.
	Index []int
}

// Batches splits d into mini-batches of at most size samples.
//
// When shuffle is set the sample order is permuted with rng first. The last
// batch may be smaller when size does not divide the number of samples.
func Batches[B tensor.Backend](d *Dataset, backend B, size int, shuffle bool, rng *rand.Rand) ([]*Batch[B], error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be > 0 (got %d)", size)
	}

	numSamples := d.Len()
	features := d.NumFeatures()
	indices := make([]int, numSamples)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		if rng == nil {
			return nil, fmt.Errorf("dataset: shuffle needs a random source")
		}
		rng.Shuffle(numSamples, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	batches := make([]*Batch[B], 0, (numSamples+size-1)/size)
	for i := 0; i < numSamples; i += size {
		end := i + size
		if end > numSamples {
			end = numSamples
		}
		n := end - i

		xRaw, err := tensor.NewRaw(tensor.Shape{n, features}, tensor.Float32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("dataset: failed to create features tensor: %w", err)
		}
		yRaw, err := tensor.NewRaw(tensor.Shape{n}, tensor.Int32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("dataset: failed to create labels tensor: %w", err)
		}

		xData := xRaw.AsFloat32()
		yData := yRaw.AsInt32()
		rows := indices[i:end:end]
		parallel.For(n, parallel.DefaultConfig(), func(r int) {
			idx := rows[r]
			copy(xData[r*features:(r+1)*features], d.X[idx])
			yData[r] = d.Y[idx]
		})

		batches = append(batches, &Batch[B]{
			X:     tensor.New[float32, B](xRaw, backend),
			Y:     tensor.New[int32, B](yRaw, backend),
			Size:  n,
			Index: rows,
		})
	}
	return batches, nil
}
