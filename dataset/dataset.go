// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset provides labeled tabular data for a Classifier.
package dataset

import (
	"io"
	"math/rand"

	"github.com/born-ml/bornfit/internal/dataset"
)

// Common errors.
var (
	ErrEmptyDataset      = dataset.ErrEmptyDataset
	ErrDimensionMismatch = dataset.ErrDimensionMismatch
	ErrInvalidLabel      = dataset.ErrInvalidLabel
	ErrInvalidSplit      = dataset.ErrInvalidSplit
)

// Dataset is a feature matrix and its labels.
type Dataset = dataset.Dataset

// CSVOptions configures LoadCSV.
type CSVOptions = dataset.CSVOptions

// ClassificationConfig configures MakeClassification.
type ClassificationConfig = dataset.ClassificationConfig

// New validates and wraps x and y.
func New(x [][]float32, y []int32) (*Dataset, error) { return dataset.New(x, y) }

// LoadCSV reads a dataset with one sample per record.
func LoadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) { return dataset.LoadCSV(r, opts) }

// LoadCSVFile reads the CSV file at path.
func LoadCSVFile(path string, opts CSVOptions) (*Dataset, error) {
	return dataset.LoadCSVFile(path, opts)
}

// DefaultClassificationConfig returns the default generator settings.
func DefaultClassificationConfig() ClassificationConfig {
	return dataset.DefaultClassificationConfig()
}

// MakeClassification generates a random classification problem.
func MakeClassification(cfg ClassificationConfig, rng *rand.Rand) (*Dataset, error) {
	return dataset.MakeClassification(cfg, rng)
}
