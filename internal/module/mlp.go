// Package module defines the networks trained by the estimator.
//
// MLP is the configuration of a feed-forward classifier. It is a params
// node whose fields are all structural: changing any of them requires the
// network to be rebuilt with Build.
package module

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/bornfit/internal/params"
)

// ErrInvalidConfig is returned by Build for an unusable configuration.
var ErrInvalidConfig = errors.New("module: invalid config")

// Activation names.
const (
	ReLU    = "relu"
	Tanh    = "tanh"
	Sigmoid = "sigmoid"
)

// MLP configures a multi-layer perceptron:
//
//	Linear(in, hidden) → nonlin → Dropout
//	(Linear(hidden, hidden) → nonlin) × (NumHidden-1)
//	Linear(hidden, out)
//
// The output is raw logits.
type MLP struct {
	InputUnits  int
	HiddenUnits int
	OutputUnits int
	NumHidden   int
	Nonlin      string
	Dropout     float64
}

// NewMLP returns the default configuration.
func NewMLP() *MLP {
	return &MLP{
		InputUnits:  20,
		HiddenUnits: 10,
		OutputUnits: 2,
		NumHidden:   1,
		Nonlin:      ReLU,
		Dropout:     0.5,
	}
}

// Fields implements params.Node.
func (m *MLP) Fields() []params.Field {
	return []params.Field{
		params.Bind("input_units", &m.InputUnits).AsStructural().WithCheck(params.Positive),
		params.Bind("hidden_units", &m.HiddenUnits).AsStructural().WithCheck(params.Positive),
		params.Bind("output_units", &m.OutputUnits).AsStructural().WithCheck(params.Positive),
		params.Bind("num_hidden", &m.NumHidden).AsStructural().WithCheck(params.Positive),
		params.Bind("nonlin", &m.Nonlin).AsStructural().WithCheck(params.OneOf(ReLU, Tanh, Sigmoid)),
		params.Bind("dropout", &m.Dropout).AsStructural().WithCheck(params.Fraction),
	}
}

// Validate checks the configuration.
func (m *MLP) Validate() error {
	switch {
	case m.InputUnits <= 0, m.HiddenUnits <= 0, m.OutputUnits <= 0:
		return fmt.Errorf("%w: units must be > 0 (input %d, hidden %d, output %d)",
			ErrInvalidConfig, m.InputUnits, m.HiddenUnits, m.OutputUnits)
	case m.NumHidden <= 0:
		return fmt.Errorf("%w: num_hidden must be > 0 (got %d)", ErrInvalidConfig, m.NumHidden)
	case m.Dropout < 0 || m.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1) (got %g)", ErrInvalidConfig, m.Dropout)
	}
	switch m.Nonlin {
	case ReLU, Tanh, Sigmoid:
		return nil
	default:
		return fmt.Errorf("%w: unknown nonlin %q", ErrInvalidConfig, m.Nonlin)
	}
}

// Clone returns a copy of the configuration.
func (m *MLP) Clone() *MLP {
	c := *m
	return &c
}

// Net is a built MLP.
type Net[B tensor.Backend] struct {
	seq      *nn.Sequential[B]
	linears  []*nn.Linear[B]
	dropouts []*Dropout[B]
	config   MLP
}

// Build creates the network described by cfg on backend.
//
// Weights are drawn from rng with Xavier uniform initialization and biases
// are zero, so a seed fully determines the initial network. rng also drives
// the dropout masks during training.
func Build[B tensor.Backend](cfg *MLP, backend B, rng *rand.Rand) (*Net[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}

	net := &Net[B]{config: *cfg}
	var layers []nn.Module[B]

	in := cfg.InputUnits
	for i := 0; i < cfg.NumHidden; i++ {
		lin := nn.NewLinear(in, cfg.HiddenUnits, backend)
		act, err := activation[B](cfg.Nonlin)
		if err != nil {
			return nil, err
		}
		net.linears = append(net.linears, lin)
		layers = append(layers, lin, act)
		if i == 0 {
			drop := NewDropout(cfg.Dropout, backend, rng)
			net.dropouts = append(net.dropouts, drop)
			layers = append(layers, drop)
		}
		in = cfg.HiddenUnits
	}
	out := nn.NewLinear(in, cfg.OutputUnits, backend)
	net.linears = append(net.linears, out)
	layers = append(layers, out)

	for _, lin := range net.linears {
		xavierUniform(lin, rng)
	}
	net.seq = nn.NewSequential(layers...)
	return net, nil
}

func activation[B tensor.Backend](name string) (nn.Module[B], error) {
	switch name {
	case ReLU:
		return nn.NewReLU[B](), nil
	case Tanh:
		return nn.NewTanh[B](), nil
	case Sigmoid:
		return nn.NewSigmoid[B](), nil
	default:
		return nil, fmt.Errorf("%w: unknown nonlin %q", ErrInvalidConfig, name)
	}
}

func xavierUniform[B tensor.Backend](lin *nn.Linear[B], rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(lin.InFeatures()+lin.OutFeatures()))
	w := lin.Weight().Tensor().Data()
	for i := range w {
		w[i] = float32((2*rng.Float64() - 1) * limit)
	}
	if b := lin.Bias(); b != nil {
		data := b.Tensor().Data()
		for i := range data {
			data[i] = 0
		}
	}
}

// Forward implements nn.Module.
func (n *Net[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return n.seq.Forward(x)
}

// Parameters implements nn.Module.
func (n *Net[B]) Parameters() []*nn.Parameter[B] {
	return n.seq.Parameters()
}

// StateDict implements nn.Module.
func (n *Net[B]) StateDict() map[string]*tensor.RawTensor {
	return n.seq.StateDict()
}

// LoadStateDict implements nn.Module.
func (n *Net[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return n.seq.LoadStateDict(stateDict)
}

// SetTraining switches dropout on or off.
func (n *Net[B]) SetTraining(training bool) {
	for _, d := range n.dropouts {
		d.SetTraining(training)
	}
}

// Config returns the configuration the network was built from.
func (n *Net[B]) Config() MLP {
	return n.config
}

// NumParameters returns the number of trainable scalars.
func (n *Net[B]) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}
