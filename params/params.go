// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package params exposes nested parameter addressing.
//
// Keys are split on "__" (or "." when the key has no "__"). Every segment
// but the last names a child component; the last names a field.
package params

import (
	"github.com/born-ml/bornfit/internal/params"
)

// Common errors.
var (
	ErrUnknownComponent = params.ErrUnknownComponent
	ErrUnknownParam     = params.ErrUnknownParam
	ErrInvalidValue     = params.ErrInvalidValue
	ErrInvalidPath      = params.ErrInvalidPath
)

// Separator joins path segments.
const Separator = params.Separator

type (
	// Node is a component exposing settable fields.
	Node = params.Node
	// Parent is a component owning named child components.
	Parent = params.Parent
	// Field is a named settable value.
	Field = params.Field
	// Error reports the key and segment that failed.
	Error = params.Error
	// Value constrains the supported field kinds.
	Value = params.Value
)

// Bind returns a field reading and writing *p.
func Bind[T Value](name string, p *T) Field { return params.Bind(name, p) }

// Split splits a key into its segments.
func Split(key string) []string { return params.Split(key) }
