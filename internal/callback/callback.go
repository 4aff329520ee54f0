// Package callback implements the training lifecycle hooks.
//
// A Callback is notified at fixed points of a training run. Every callback
// implements Initialize and exposes its settable fields; the lifecycle
// events it reacts to are chosen by implementing the matching handler
// interfaces (TrainBeginner, EpochEnder, ...). Callbacks that do not
// implement a handler are simply not called for that event.
//
// The Dispatcher owns the ordered callback list of a trainer and builds an
// explicit per-event dispatch table when it is initialized. Hooks fire in
// registration order for every event.
package callback

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/dataset"
	"github.com/born-ml/bornfit/internal/history"
	"github.com/born-ml/bornfit/internal/params"
)

// Common errors.
var (
	ErrDuplicateName = errors.New("callback: duplicate name")
	ErrUnknownKind   = errors.New("callback: unknown kind")
	ErrNotFound      = errors.New("callback: not found")
)

// Event is a lifecycle point of a training run.
type Event int

// Lifecycle events, in the order they occur.
const (
	EventInitialize Event = iota
	EventTrainBegin
	EventEpochBegin
	EventBatchBegin
	EventBatchEnd
	EventEpochEnd
	EventTrainEnd

	numEvents
)

// String returns the hook name of the event.
func (e Event) String() string {
	switch e {
	case EventInitialize:
		return "initialize"
	case EventTrainBegin:
		return "on_train_begin"
	case EventEpochBegin:
		return "on_epoch_begin"
	case EventBatchBegin:
		return "on_batch_begin"
	case EventBatchEnd:
		return "on_batch_end"
	case EventEpochEnd:
		return "on_epoch_end"
	case EventTrainEnd:
		return "on_train_end"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Callback is the contract every callback satisfies.
type Callback interface {
	params.Node

	// Kind returns the registry name of the callback type. Unnamed
	// callbacks are addressed by their kind.
	Kind() string

	// Initialize resets the internal state of the callback. It is called
	// every time the owning trainer is (re)initialized and must be
	// idempotent.
	Initialize() error
}

// TrainBeginner handles EventTrainBegin.
type TrainBeginner interface {
	OnTrainBegin(net Net, s *State) error
}

// EpochBeginner handles EventEpochBegin.
//
// The history record of the epoch is already appended when the hook runs.
type EpochBeginner interface {
	OnEpochBegin(net Net, s *State) error
}

// BatchBeginner handles EventBatchBegin.
type BatchBeginner interface {
	OnBatchBegin(net Net, b *Batch) error
}

// BatchEnder handles EventBatchEnd.
type BatchEnder interface {
	OnBatchEnd(net Net, b *Batch) error
}

// EpochEnder handles EventEpochEnd.
type EpochEnder interface {
	OnEpochEnd(net Net, s *State) error
}

// TrainEnder handles EventTrainEnd.
//
// The hook fires exactly once per fit, whether the epoch budget was reached
// or training stopped early.
type TrainEnder interface {
	OnTrainEnd(net Net, s *State) error
}

// Net is the view of the trainer handed to hooks.
type Net interface {
	// History returns the training history.
	History() *history.History

	// Logger returns the trainer's logger.
	Logger() *zap.Logger

	// Output returns the writer for console output.
	Output() io.Writer

	// LR returns the current learning rate of the optimizer.
	LR() float64

	// SetLR updates the learning rate of the optimizer in place.
	SetLR(lr float64) error

	// Stop asks the trainer to end the run after the current epoch.
	Stop(reason string)

	// SaveParams writes the module weights and the history to dir.
	SaveParams(dir string) error
}

// State is the data of a training run visible to epoch-level hooks.
type State struct {
	// Epoch is the 1-based number of the current epoch. It is 0 in
	// OnTrainBegin.
	Epoch int

	Train *dataset.Dataset
	Valid *dataset.Dataset // nil when no validation split is used

	// Predictions for Train and Valid made during the epoch.
	TrainPred []int32
	ValidPred []int32

	// StopReason is set when the run ended before the epoch budget.
	StopReason string
}

// Batch is the data of a single batch visible to batch-level hooks.
type Batch struct {
	Training bool
	Index    int // 0-based within the epoch and phase
	Size     int
	Loss     float64 // set before OnBatchEnd
}

// Prefix returns "train" or "valid".
func (b *Batch) Prefix() string {
	if b.Training {
		return "train"
	}
	return "valid"
}
