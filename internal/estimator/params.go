package estimator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/params"
)

// Top-level components of the parameter tree.
const (
	componentModule    = "module"
	componentOptimizer = "optimizer"
	componentCriterion = "criterion"
	componentCallbacks = "callbacks"
)

// callbacksNode resolves to the current dispatcher, which is replaced when
// the callback list is rebound.
type callbacksNode struct {
	get func() params.Parent
}

func (n callbacksNode) Fields() []params.Field { return nil }

func (n callbacksNode) Children() []string { return n.get().Children() }

func (n callbacksNode) Child(name string) (params.Node, bool) { return n.get().Child(name) }

func (c *Classifier[B]) paramTree() *params.Group {
	lr := params.Func("lr", func() float64 { return c.cfg.LR }, c.setConfiguredLR).WithCheck(params.Positive)

	optimizer := params.NewGroup(
		params.Bind("name", &c.cfg.Optimizer).AsStructural().WithCheck(params.OneOf(OptimizerSGD, OptimizerAdam)),
		params.Bind("momentum", &c.cfg.Momentum).AsStructural().WithCheck(params.NonNegative),
		lr,
	)

	return params.NewGroup(
		params.Bind("max_epochs", &c.cfg.MaxEpochs).WithCheck(params.Positive),
		lr,
		params.Bind("batch_size", &c.cfg.BatchSize).WithCheck(params.Positive),
		params.Bind("warm_start", &c.cfg.WarmStart),
		params.Bind("train_split", &c.cfg.TrainSplit).WithCheck(params.Fraction),
		params.Bind("stratified", &c.cfg.Stratified),
		params.Bind("seed", &c.cfg.Seed),
		params.Bind("verbose", &c.cfg.Verbose),
	).
		Add(componentModule, c.mlp).
		Add(componentOptimizer, optimizer).
		Add(componentCriterion, params.Empty{}).
		Add(componentCallbacks, callbacksNode{get: func() params.Parent { return c.callbacks }})
}

// setConfiguredLR stores the configured rate and applies it to a live
// optimizer.
func (c *Classifier[B]) setConfiguredLR(lr float64) {
	c.cfg.LR = lr
	if c.optimizer != nil {
		_ = c.SetLR(lr)
	}
}

// SetParams assigns nested parameters.
//
// Every key is resolved and every value validated before anything changes;
// an unresolvable key fails with a *params.Error naming the segment and no
// value is applied. On an initialized classifier, structural changes then
// rebuild their component: any module field rebuilds the module and the
// optimizer, the optimizer name or momentum rebuilds the optimizer, and
// verbose rebinds the callback list. If a rebuild fails every value is
// restored.
func (c *Classifier[B]) SetParams(values map[string]any) error {
	plan, err := params.Resolve(c.root, values)
	if err != nil {
		return err
	}
	plan.Apply()

	for _, ch := range plan.Changes {
		c.logger.Debug("set param", zap.String("key", ch.Key), zap.Any("value", ch.Value), zap.Any("prev", ch.Prev))
	}

	if err := c.rebuild(plan); err != nil {
		plan.Revert()
		if rerr := c.rebuild(plan); rerr != nil {
			return fmt.Errorf("estimator: %w (restoring: %v)", err, rerr)
		}
		return err
	}
	return nil
}

func (c *Classifier[B]) rebuild(plan *params.Plan) error {
	if touchesKey(plan, "verbose") {
		if err := c.bindCallbacks(); err != nil {
			return err
		}
	}
	if !c.initialized {
		return nil
	}

	switch {
	case plan.Touches(componentModule, true):
		if err := c.mlp.Validate(); err != nil {
			return err
		}
		if err := c.initializeModule(); err != nil {
			return err
		}
		if err := c.initializeOptimizer(); err != nil {
			return err
		}
		c.logger.Info("module rebuilt", zap.Int("parameters", c.net.NumParameters()))
	case plan.Touches(componentOptimizer, true):
		if err := c.initializeOptimizer(); err != nil {
			return err
		}
		c.logger.Info("optimizer rebuilt", zap.String("optimizer", c.cfg.Optimizer))
	}
	return nil
}

func touchesKey(plan *params.Plan, key string) bool {
	for _, ch := range plan.Changes {
		if ch.Owner() == "" && ch.Field.Name == key {
			return true
		}
	}
	return false
}

// Params returns every addressable parameter keyed by its full path.
func (c *Classifier[B]) Params() map[string]any {
	return params.Flatten(c.root)
}

// ParamKeys returns the sorted keys of Params.
func (c *Classifier[B]) ParamKeys() []string {
	return params.Keys(c.root)
}

// GetParam returns the value at key.
func (c *Classifier[B]) GetParam(key string) (any, error) {
	return params.Get(c.root, key)
}
