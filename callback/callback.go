// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package callback provides the training lifecycle hooks of a Classifier.
//
// A callback implements Callback plus any of the handler interfaces
// (TrainBeginner, EpochBeginner, BatchBeginner, BatchEnder, EpochEnder,
// TrainEnder). Hooks fire in registration order.
package callback

import (
	"github.com/born-ml/bornfit/internal/callback"
)

// Common errors.
var (
	ErrDuplicateName = callback.ErrDuplicateName
	ErrUnknownKind   = callback.ErrUnknownKind
	ErrNotFound      = callback.ErrNotFound
)

// Scoring and scheduling names.
const (
	ScoringAccuracy         = callback.ScoringAccuracy
	ScoringBalancedAccuracy = callback.ScoringBalancedAccuracy
	ThresholdRel            = callback.ThresholdRel
	ThresholdAbs            = callback.ThresholdAbs
	PolicyStep              = callback.PolicyStep
	PolicyExponential       = callback.PolicyExponential
)

// Core types.
type (
	Callback      = callback.Callback
	Net           = callback.Net
	State         = callback.State
	Batch         = callback.Batch
	Event         = callback.Event
	Entry         = callback.Entry
	Dispatcher    = callback.Dispatcher
	TrainBeginner = callback.TrainBeginner
	EpochBeginner = callback.EpochBeginner
	BatchBeginner = callback.BatchBeginner
	BatchEnder    = callback.BatchEnder
	EpochEnder    = callback.EpochEnder
	TrainEnder    = callback.TrainEnder
)

// Built-in callbacks.
type (
	EpochTimer         = callback.EpochTimer
	PassthroughScoring = callback.PassthroughScoring
	EpochScoring       = callback.EpochScoring
	PrintLog           = callback.PrintLog
	Milestone          = callback.Milestone
	EarlyStopping      = callback.EarlyStopping
	LRScheduler        = callback.LRScheduler
	Checkpoint         = callback.Checkpoint
)

// Named returns an entry with an explicit name.
func Named(name string, cb Callback) Entry { return callback.Named(name, cb) }

// Lookup returns a new callback of the given kind with default settings.
func Lookup(kind string) (Callback, error) { return callback.Lookup(kind) }

// Kinds returns the registered kinds in sorted order.
func Kinds() []string { return callback.Kinds() }

// NewMilestone reports the first epoch at which valid_acc reaches
// threshold.
func NewMilestone(threshold float64) *Milestone { return callback.NewMilestone(threshold) }

// NewEarlyStopping stops training when valid_loss stops improving.
func NewEarlyStopping() *EarlyStopping { return callback.NewEarlyStopping() }

// NewLRScheduler decays the learning rate by gamma every stepSize epochs.
func NewLRScheduler(stepSize int, gamma float64) *LRScheduler {
	return callback.NewLRScheduler(stepSize, gamma)
}

// NewCheckpoint saves the model to dir when valid_loss improves.
func NewCheckpoint(dir string) *Checkpoint { return callback.NewCheckpoint(dir) }

// NewEpochScoring scores the epoch predictions under name.
func NewEpochScoring(name, scoring string, onTrain bool) *EpochScoring {
	return callback.NewEpochScoring(name, scoring, onTrain)
}

// NewPassthroughScoring averages a batch metric into an epoch metric.
func NewPassthroughScoring(key string, lowerIsBetter bool) *PassthroughScoring {
	return callback.NewPassthroughScoring(key, lowerIsBetter)
}

// NewPrintLog prints the per-epoch table.
func NewPrintLog() *PrintLog { return callback.NewPrintLog() }

// NewEpochTimer records the epoch duration under "dur".
func NewEpochTimer() *EpochTimer { return callback.NewEpochTimer() }

// Accuracy returns the fraction of matching labels.
func Accuracy(y, pred []int32) float64 { return callback.Accuracy(y, pred) }
