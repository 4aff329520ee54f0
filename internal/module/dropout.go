package module

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dropout zeroes each input element with probability P during training and
// scales the kept elements by 1/(1-P). It is the identity in evaluation
// mode.
//
// The mask is drawn from the random source given at construction.
type Dropout[B tensor.Backend] struct {
	P float64

	backend  B
	rng      *rand.Rand
	training bool
}

// NewDropout creates a Dropout layer in training mode.
func NewDropout[B tensor.Backend](p float64, backend B, rng *rand.Rand) *Dropout[B] {
	return &Dropout[B]{P: p, backend: backend, rng: rng, training: true}
}

// SetTraining switches between training and evaluation mode.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Forward implements nn.Module.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P <= 0 {
		return input
	}

	scale := float32(1 / (1 - d.P))
	mask := make([]float32, input.NumElements())
	for i := range mask {
		if d.rng.Float64() >= d.P {
			mask[i] = scale
		}
	}
	m, err := tensor.FromSlice(mask, input.Shape(), d.backend)
	if err != nil {
		panic(fmt.Sprintf("Dropout: %v", err))
	}
	return input.Mul(m)
}

// Parameters implements nn.Module. Dropout has no trainable parameters.
func (d *Dropout[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// StateDict implements nn.Module.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict implements nn.Module.
func (d *Dropout[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
