package callback

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/params"
)

// Threshold modes of EarlyStopping.
const (
	ThresholdRel = "rel"
	ThresholdAbs = "abs"
)

// EarlyStopping stops training when Monitor has not improved by Threshold
// for Patience consecutive epochs.
type EarlyStopping struct {
	Monitor       string
	Patience      int
	Threshold     float64
	ThresholdMode string
	LowerIsBetter bool

	misses int
	best   float64
}

// NewEarlyStopping creates an EarlyStopping on valid_loss.
func NewEarlyStopping() *EarlyStopping {
	return &EarlyStopping{
		Monitor:       "valid_loss",
		Patience:      5,
		Threshold:     1e-4,
		ThresholdMode: ThresholdRel,
		LowerIsBetter: true,
	}
}

// Kind implements Callback.
func (e *EarlyStopping) Kind() string { return "early_stopping" }

// Fields implements params.Node.
func (e *EarlyStopping) Fields() []params.Field {
	return []params.Field{
		params.Bind("monitor", &e.Monitor),
		params.Bind("patience", &e.Patience).WithCheck(params.Positive),
		params.Bind("threshold", &e.Threshold).WithCheck(params.NonNegative),
		params.Bind("threshold_mode", &e.ThresholdMode).WithCheck(params.OneOf(ThresholdRel, ThresholdAbs)),
		params.Bind("lower_is_better", &e.LowerIsBetter),
	}
}

// Initialize implements Callback.
func (e *EarlyStopping) Initialize() error {
	e.reset()
	return nil
}

func (e *EarlyStopping) reset() {
	e.misses = 0
	if e.LowerIsBetter {
		e.best = math.Inf(1)
	} else {
		e.best = math.Inf(-1)
	}
}

// Misses returns the number of consecutive epochs without improvement.
func (e *EarlyStopping) Misses() int {
	return e.misses
}

// OnTrainBegin implements TrainBeginner. Each fit starts a fresh count.
func (e *EarlyStopping) OnTrainBegin(_ Net, _ *State) error {
	e.reset()
	return nil
}

// OnEpochEnd implements EpochEnder.
func (e *EarlyStopping) OnEpochEnd(net Net, _ *State) error {
	h := net.History()
	if !h.Has(-1, e.Monitor) {
		return nil
	}
	v, err := h.Float(-1, e.Monitor)
	if err != nil {
		return err
	}
	if e.improved(v) {
		e.best = v
		e.misses = 0
		return nil
	}
	e.misses++
	if e.misses >= e.Patience {
		reason := fmt.Sprintf("%s did not improve for %d epochs (best %.4f)", e.Monitor, e.misses, e.best)
		net.Logger().Info("early stopping", zap.String("monitor", e.Monitor), zap.Int("epoch", h.Len()), zap.Float64("best", e.best))
		net.Stop(reason)
	}
	return nil
}

func (e *EarlyStopping) improved(v float64) bool {
	if math.IsInf(e.best, 0) {
		return true
	}
	if e.ThresholdMode == ThresholdAbs {
		if e.LowerIsBetter {
			return v < e.best-e.Threshold
		}
		return v > e.best+e.Threshold
	}
	if e.LowerIsBetter {
		return v < e.best*(1-e.Threshold)
	}
	return v > e.best*(1+e.Threshold)
}

// Scheduler policies.
const (
	PolicyStep        = "step"
	PolicyExponential = "exponential"
)

// LRScheduler adjusts the learning rate at the beginning of every epoch
// and records it as "lr".
//
// The step policy multiplies the initial rate by Gamma every StepSize
// epochs; the exponential policy multiplies it by Gamma every epoch. The
// epoch count comes from the history, so warm-started runs continue the
// schedule. When the rate was changed from outside between two fits, the
// schedule is rebased so that it continues from the new rate.
type LRScheduler struct {
	Policy   string
	StepSize int
	Gamma    float64

	base float64
	last float64 // rate set by the last OnEpochBegin
}

// NewLRScheduler creates a step scheduler.
func NewLRScheduler(stepSize int, gamma float64) *LRScheduler {
	return &LRScheduler{Policy: PolicyStep, StepSize: stepSize, Gamma: gamma}
}

// Kind implements Callback.
func (s *LRScheduler) Kind() string { return "lr_scheduler" }

// Fields implements params.Node.
func (s *LRScheduler) Fields() []params.Field {
	return []params.Field{
		params.Bind("policy", &s.Policy).WithCheck(params.OneOf(PolicyStep, PolicyExponential)),
		params.Bind("step_size", &s.StepSize).WithCheck(params.Positive),
		params.Bind("gamma", &s.Gamma).WithCheck(params.Positive),
	}
}

// Initialize implements Callback.
func (s *LRScheduler) Initialize() error {
	s.base, s.last = 0, 0
	return nil
}

// OnTrainBegin implements TrainBeginner.
func (s *LRScheduler) OnTrainBegin(net Net, _ *State) error {
	lr := net.LR()
	if s.base != 0 && s.last != 0 && math.Abs(lr-s.last) <= 1e-6*s.last {
		return nil
	}
	s.base = lr / s.factor(net.History().Len())
	s.last = lr
	return nil
}

// OnEpochBegin implements EpochBeginner.
func (s *LRScheduler) OnEpochBegin(net Net, _ *State) error {
	h := net.History()
	lr := s.At(h.Len() - 1)
	if err := net.SetLR(lr); err != nil {
		return err
	}
	s.last = lr
	return h.Record("lr", lr)
}

// At returns the learning rate for the 0-based epoch index.
func (s *LRScheduler) At(epoch int) float64 {
	return s.base * s.factor(epoch)
}

func (s *LRScheduler) factor(epoch int) float64 {
	if epoch < 0 {
		epoch = 0
	}
	switch s.Policy {
	case PolicyExponential:
		return math.Pow(s.Gamma, float64(epoch))
	default:
		step := s.StepSize
		if step <= 0 {
			step = 1
		}
		return math.Pow(s.Gamma, float64(epoch/step))
	}
}
