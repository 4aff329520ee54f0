package callback

import (
	"fmt"
	"time"

	"github.com/born-ml/bornfit/internal/params"
)

// EpochTimer records the wall time of each epoch as "dur", in seconds.
type EpochTimer struct {
	now   func() time.Time
	start time.Time
}

// NewEpochTimer creates an EpochTimer.
func NewEpochTimer() *EpochTimer {
	return &EpochTimer{now: time.Now}
}

// Kind implements Callback.
func (t *EpochTimer) Kind() string { return "epoch_timer" }

// Fields implements params.Node.
func (t *EpochTimer) Fields() []params.Field { return nil }

// Initialize implements Callback.
func (t *EpochTimer) Initialize() error {
	t.start = time.Time{}
	return nil
}

// OnEpochBegin implements EpochBeginner.
func (t *EpochTimer) OnEpochBegin(_ Net, _ *State) error {
	t.start = t.now()
	return nil
}

// OnEpochEnd implements EpochEnder.
func (t *EpochTimer) OnEpochEnd(net Net, _ *State) error {
	return net.History().Record("dur", t.now().Sub(t.start).Seconds())
}

// bestTracker remembers the best value seen so far.
type bestTracker struct {
	value float64
	set   bool
}

// update reports whether v improves on the best value and stores it if so.
func (b *bestTracker) update(v float64, lowerIsBetter bool) bool {
	improved := !b.set || (lowerIsBetter && v < b.value) || (!lowerIsBetter && v > b.value)
	if improved {
		b.value = v
		b.set = true
	}
	return improved
}

func (b *bestTracker) reset() {
	*b = bestTracker{}
}

// PassthroughScoring averages a per-batch value, weighted by batch size,
// into the epoch record and flags "<key>_best" when it improves.
//
// The trainer records "train_loss"/"train_batch_size" for training
// batches and "valid_loss"/"valid_batch_size" for validation batches.
type PassthroughScoring struct {
	Key           string
	SizeKey       string
	LowerIsBetter bool

	best bestTracker
}

// NewPassthroughScoring creates a PassthroughScoring for key. The batch
// size key is derived from the key prefix ("train_loss" uses
// "train_batch_size").
func NewPassthroughScoring(key string, lowerIsBetter bool) *PassthroughScoring {
	return &PassthroughScoring{
		Key:           key,
		SizeKey:       sizeKey(key),
		LowerIsBetter: lowerIsBetter,
	}
}

func sizeKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '_' {
			return key[:i] + "_batch_size"
		}
	}
	return key + "_batch_size"
}

// Kind implements Callback.
func (p *PassthroughScoring) Kind() string { return "passthrough_scoring" }

// Fields implements params.Node.
func (p *PassthroughScoring) Fields() []params.Field {
	return []params.Field{
		params.Bind("lower_is_better", &p.LowerIsBetter),
	}
}

// Initialize implements Callback.
func (p *PassthroughScoring) Initialize() error {
	p.best.reset()
	return nil
}

// OnEpochEnd implements EpochEnder.
//
// Epochs without batches carrying the key are skipped.
func (p *PassthroughScoring) OnEpochEnd(net Net, _ *State) error {
	h := net.History()
	values, err := h.BatchFloats(-1, p.Key)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	sizes, err := h.BatchFloats(-1, p.SizeKey)
	if err != nil {
		return err
	}
	if len(sizes) != len(values) {
		return fmt.Errorf("%s: %d values but %d batch sizes", p.Key, len(values), len(sizes))
	}

	var sum, n float64
	for i, v := range values {
		sum += v * sizes[i]
		n += sizes[i]
	}
	if n == 0 {
		return nil
	}
	avg := sum / n
	if err := h.Record(p.Key, avg); err != nil {
		return err
	}
	return h.Flag(p.Key+"_best", p.best.update(avg, p.LowerIsBetter))
}

// Scoring names accepted by EpochScoring.
const (
	ScoringAccuracy         = "accuracy"
	ScoringBalancedAccuracy = "balanced_accuracy"
)

// EpochScoring computes a score on the predictions of the epoch and
// records it under Name, flagging "<Name>_best" when it improves.
type EpochScoring struct {
	Name          string
	Scoring       string
	OnTrain       bool
	LowerIsBetter bool

	best bestTracker
}

// NewEpochScoring creates an EpochScoring recording scoring under name.
func NewEpochScoring(name, scoring string, onTrain bool) *EpochScoring {
	return &EpochScoring{Name: name, Scoring: scoring, OnTrain: onTrain}
}

// Kind implements Callback.
func (e *EpochScoring) Kind() string { return "epoch_scoring" }

// Fields implements params.Node.
func (e *EpochScoring) Fields() []params.Field {
	return []params.Field{
		params.Bind("scoring", &e.Scoring).WithCheck(params.OneOf(ScoringAccuracy, ScoringBalancedAccuracy)),
		params.Bind("on_train", &e.OnTrain),
		params.Bind("lower_is_better", &e.LowerIsBetter),
	}
}

// Initialize implements Callback.
func (e *EpochScoring) Initialize() error {
	if e.Name == "" {
		return fmt.Errorf("epoch_scoring: empty name")
	}
	e.best.reset()
	return nil
}

// OnEpochEnd implements EpochEnder.
func (e *EpochScoring) OnEpochEnd(net Net, s *State) error {
	y, pred := s.validTargets()
	if e.OnTrain {
		y, pred = s.trainTargets()
	}
	if len(y) == 0 || len(pred) != len(y) {
		return nil
	}

	var score float64
	switch e.Scoring {
	case ScoringAccuracy:
		score = Accuracy(y, pred)
	case ScoringBalancedAccuracy:
		score = BalancedAccuracy(y, pred)
	default:
		return fmt.Errorf("%s: unknown scoring %q", e.Name, e.Scoring)
	}

	h := net.History()
	if err := h.Record(e.Name, score); err != nil {
		return err
	}
	return h.Flag(e.Name+"_best", e.best.update(score, e.LowerIsBetter))
}

func (s *State) validTargets() ([]int32, []int32) {
	if s == nil || s.Valid == nil {
		return nil, nil
	}
	return s.Valid.Y, s.ValidPred
}

func (s *State) trainTargets() ([]int32, []int32) {
	if s == nil || s.Train == nil {
		return nil, nil
	}
	return s.Train.Y, s.TrainPred
}

// Accuracy returns the fraction of pred equal to y.
func Accuracy(y, pred []int32) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i := range y {
		if y[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// BalancedAccuracy returns the mean per-class recall over the classes
// present in y.
func BalancedAccuracy(y, pred []int32) float64 {
	total := make(map[int32]int)
	hit := make(map[int32]int)
	for i, c := range y {
		total[c]++
		if pred[i] == c {
			hit[c]++
		}
	}
	if len(total) == 0 {
		return 0
	}
	var sum float64
	for c, n := range total {
		sum += float64(hit[c]) / float64(n)
	}
	return sum / float64(len(total))
}
