// Package estimator implements the neural network classifier.
//
// A Classifier wraps a born network with everything needed to train it: a
// loss, an optimizer, the callback dispatcher, the training history and a
// seeded random source. Its hyperparameters and the fields of every owned
// component are addressable through nested keys:
//
//	clf.SetParams(map[string]any{
//	    "max_epochs":                     20,
//	    "module__hidden_units":           32,
//	    "callbacks__milestone__threshold": 0.8,
//	})
//
// Changing a structural parameter (any module field, the optimizer name or
// momentum) rebuilds the owning component. Everything else takes effect in
// place.
package estimator

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/history"
	"github.com/born-ml/bornfit/internal/module"
	"github.com/born-ml/bornfit/internal/params"
)

// Common errors.
var (
	ErrNotInitialized    = errors.New("estimator: not initialized")
	ErrDimensionMismatch = errors.New("estimator: dimension mismatch")
	ErrUnknownOptimizer  = errors.New("estimator: unknown optimizer")
)

// Classifier trains a multi-layer perceptron on tabular data.
//
// B is the compute backend; the classifier wraps it with born's autodiff
// backend. A Classifier is not safe for concurrent use.
type Classifier[B tensor.Backend] struct {
	backend B
	ad      *autodiff.Backend[B]

	cfg    Config
	mlp    *module.MLP
	logger *zap.Logger
	out    io.Writer
	root   *params.Group

	defaults []callback.Entry
	user     []callback.Entry

	net         *module.Net[*autodiff.Backend[B]]
	criterion   *nn.CrossEntropyLoss[*autodiff.Backend[B]]
	optimizer   optim.Optimizer
	callbacks   *callback.Dispatcher
	hist        *history.History
	rng         *rand.Rand
	initialized bool
	stopReason  string
	runID       string
}

// New creates a classifier on backend. It fails when two callbacks share a
// name or when WithParams holds an unresolvable key.
func New[B tensor.Backend](backend B, opts ...Option) (*Classifier[B], error) {
	s := &settings{config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.module == nil {
		s.module = module.NewMLP()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.out == nil {
		s.out = os.Stdout
	}

	c := &Classifier[B]{
		backend:  backend,
		ad:       autodiff.New(backend),
		cfg:      s.config,
		mlp:      s.module,
		logger:   s.logger,
		out:      s.out,
		defaults: callback.Defaults(true),
		user:     s.callbacks,
		hist:     history.New(),
	}
	if err := c.bindCallbacks(); err != nil {
		return nil, err
	}
	c.root = c.paramTree()

	if len(s.params) > 0 {
		if err := c.SetParams(s.params); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// bindCallbacks rebuilds the dispatcher from the registered callbacks. The
// print_log default is left out when the classifier is not verbose.
func (c *Classifier[B]) bindCallbacks() error {
	defaults := c.defaults
	if !c.cfg.Verbose {
		defaults = make([]callback.Entry, 0, len(c.defaults))
		for _, e := range c.defaults {
			if e.Name != "print_log" {
				defaults = append(defaults, e)
			}
		}
	}
	d, err := callback.NewDispatcher(defaults, c.user)
	if err != nil {
		return err
	}
	c.callbacks = d
	return nil
}

// Initialize (re)creates the random source, network, loss, optimizer,
// callbacks and history.
func (c *Classifier[B]) Initialize() error {
	if err := c.validate(); err != nil {
		return err
	}
	c.rng = rand.New(rand.NewSource(c.cfg.Seed))
	if err := c.initializeModule(); err != nil {
		return err
	}
	c.criterion = nn.NewCrossEntropyLoss(c.ad)
	if err := c.initializeOptimizer(); err != nil {
		return err
	}
	if err := c.bindCallbacks(); err != nil {
		return err
	}
	if err := c.callbacks.Initialize(); err != nil {
		return err
	}
	c.hist = history.New()
	c.initialized = true

	c.logger.Debug("initialized",
		zap.Int64("seed", c.cfg.Seed),
		zap.Int("parameters", c.net.NumParameters()),
		zap.String("optimizer", c.cfg.Optimizer),
		zap.Strings("callbacks", c.callbacks.Children()),
	)
	return nil
}

func (c *Classifier[B]) validate() error {
	switch {
	case c.cfg.MaxEpochs <= 0:
		return fmt.Errorf("estimator: max_epochs must be > 0 (got %d)", c.cfg.MaxEpochs)
	case c.cfg.BatchSize <= 0:
		return fmt.Errorf("estimator: batch_size must be > 0 (got %d)", c.cfg.BatchSize)
	case c.cfg.LR <= 0:
		return fmt.Errorf("estimator: lr must be > 0 (got %g)", c.cfg.LR)
	case c.cfg.TrainSplit < 0 || c.cfg.TrainSplit >= 1:
		return fmt.Errorf("estimator: train_split must be in [0, 1) (got %g)", c.cfg.TrainSplit)
	}
	return nil
}

func (c *Classifier[B]) initializeModule() error {
	net, err := module.Build(c.mlp, c.ad, c.rng)
	if err != nil {
		return err
	}
	c.net = net
	return nil
}

func (c *Classifier[B]) initializeOptimizer() error {
	ps := c.net.Parameters()
	switch c.cfg.Optimizer {
	case OptimizerSGD:
		c.optimizer = optim.NewSGD(ps, optim.SGDConfig{
			LR:       float32(c.cfg.LR),
			Momentum: float32(c.cfg.Momentum),
		}, c.ad)
	case OptimizerAdam:
		c.optimizer = optim.NewAdam(ps, optim.AdamConfig{
			LR:    float32(c.cfg.LR),
			Betas: [2]float32{0.9, 0.999},
			Eps:   1e-8,
		}, c.ad)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOptimizer, c.cfg.Optimizer)
	}
	return nil
}

// Initialized reports whether Initialize has run.
func (c *Classifier[B]) Initialized() bool {
	return c.initialized
}

// Config returns the current hyperparameters.
func (c *Classifier[B]) Config() Config {
	return c.cfg
}

// Module returns the network, or nil before Initialize.
func (c *Classifier[B]) Module() *module.Net[*autodiff.Backend[B]] {
	return c.net
}

// Callbacks returns the callback dispatcher.
func (c *Classifier[B]) Callbacks() *callback.Dispatcher {
	return c.callbacks
}

// Callback returns the callback addressed by name or position.
func (c *Classifier[B]) Callback(name string) (callback.Callback, error) {
	cb, ok := c.callbacks.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", callback.ErrNotFound, name)
	}
	return cb, nil
}

// History implements callback.Net.
func (c *Classifier[B]) History() *history.History {
	return c.hist
}

// Logger implements callback.Net.
func (c *Classifier[B]) Logger() *zap.Logger {
	return c.logger
}

// Output implements callback.Net.
func (c *Classifier[B]) Output() io.Writer {
	return c.out
}

// LR implements callback.Net. It returns the optimizer's current rate, or
// the configured one before Initialize.
func (c *Classifier[B]) LR() float64 {
	if c.optimizer == nil {
		return c.cfg.LR
	}
	return float64(c.optimizer.GetLR())
}

// SetLR implements callback.Net. It changes the optimizer's rate in place
// without touching the configured rate.
func (c *Classifier[B]) SetLR(lr float64) error {
	if c.optimizer == nil {
		return ErrNotInitialized
	}
	setter, ok := c.optimizer.(interface{ SetLR(float32) })
	if !ok {
		return fmt.Errorf("estimator: optimizer %q cannot change its learning rate", c.cfg.Optimizer)
	}
	setter.SetLR(float32(lr))
	return nil
}

// Stop implements callback.Net.
func (c *Classifier[B]) Stop(reason string) {
	if c.stopReason == "" {
		c.stopReason = reason
	}
}

// StopReason returns why the last fit ended early, or "" when it ran all
// of its epochs.
func (c *Classifier[B]) StopReason() string {
	return c.stopReason
}
