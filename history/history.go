// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package history provides the append-only training log of a Classifier.
package history

import (
	"github.com/born-ml/bornfit/internal/history"
)

// Common errors.
var (
	ErrIndexOutOfRange = history.ErrIndexOutOfRange
	ErrKeyNotFound     = history.ErrKeyNotFound
	ErrEmpty           = history.ErrEmpty
)

// EpochKey holds the 1-based epoch number of every record.
const EpochKey = history.EpochKey

// History is a list of epoch records.
type History = history.History

// Epoch is one epoch record.
type Epoch = history.Epoch

// Batch is one batch record.
type Batch = history.Batch

// New returns an empty history.
func New() *History { return history.New() }

// Load reads a history written by History.Save.
func Load(path string) (*History, error) { return history.Load(path) }
