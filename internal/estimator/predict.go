package estimator

import (
	"fmt"

	"github.com/born-ml/born/autodiff"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/dataset"
)

// Predict returns the most likely class of each row of x.
func (c *Classifier[B]) Predict(x [][]float32) ([]int32, error) {
	var pred []int32
	err := c.infer(x, func(b *dataset.Batch[*autodiff.Backend[B]]) {
		pred = append(pred, c.net.Forward(b.X).Argmax(1).Data()...)
	})
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// PredictProba returns the class probabilities of each row of x.
func (c *Classifier[B]) PredictProba(x [][]float32) ([][]float32, error) {
	var proba [][]float32
	err := c.infer(x, func(b *dataset.Batch[*autodiff.Backend[B]]) {
		p := c.net.Forward(b.X).Softmax(1)
		data := p.Data()
		k := p.Shape()[1]
		for i := 0; i < b.Size; i++ {
			row := make([]float32, k)
			copy(row, data[i*k:(i+1)*k])
			proba = append(proba, row)
		}
	})
	if err != nil {
		return nil, err
	}
	return proba, nil
}

// Score returns the accuracy of the predictions on d.
func (c *Classifier[B]) Score(d *dataset.Dataset) (float64, error) {
	if d == nil {
		return 0, dataset.ErrEmptyDataset
	}
	if err := d.Validate(); err != nil {
		return 0, err
	}
	pred, err := c.Predict(d.X)
	if err != nil {
		return 0, err
	}
	return callback.Accuracy(d.Y, pred), nil
}

// infer runs fn on batches of x in order, in evaluation mode and without
// recording gradients.
func (c *Classifier[B]) infer(x [][]float32, fn func(*dataset.Batch[*autodiff.Backend[B]])) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if len(x) == 0 {
		return dataset.ErrEmptyDataset
	}
	if got, want := len(x[0]), c.mlp.InputUnits; got != want {
		return fmt.Errorf("%w: data has %d features, module expects %d", ErrDimensionMismatch, got, want)
	}

	d := &dataset.Dataset{X: x, Y: make([]int32, len(x))}
	batches, err := dataset.Batches(d, c.ad, c.cfg.BatchSize, false, nil)
	if err != nil {
		return err
	}

	c.net.SetTraining(false)
	autodiff.NoGrad(c.ad, func() {
		for _, b := range batches {
			fn(b)
		}
	})
	return nil
}
