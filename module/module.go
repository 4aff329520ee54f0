// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package module provides the networks trained by a Classifier.
package module

import (
	"github.com/born-ml/bornfit/internal/module"
)

// ErrInvalidConfig is returned for an unusable configuration.
var ErrInvalidConfig = module.ErrInvalidConfig

// Activation names.
const (
	ReLU    = module.ReLU
	Tanh    = module.Tanh
	Sigmoid = module.Sigmoid
)

// MLP configures a multi-layer perceptron.
type MLP = module.MLP

// NewMLP returns the default configuration.
func NewMLP() *MLP { return module.NewMLP() }
