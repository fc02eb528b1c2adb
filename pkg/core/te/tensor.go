// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package te

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tgraph/pkg/core/shapes"
	"github.com/gomlx/tgraph/pkg/support/xslices"
)

// Tensor is one output of an Operation. It is a small value type, copy it freely.
//
// The zero value is an invalid tensor, see Ok.
type Tensor struct {
	op    *Operation
	index int
}

// TensorKey is the stable identity of a Tensor: the OpID of its producer plus the output index.
//
// Compare tensors by key, not by the Operation pointer: graph rewrites replace operations by
// new versions with the same OpID.
type TensorKey struct {
	Op    OpID
	Index int
}

// String implements fmt.Stringer.
func (k TensorKey) String() string { return fmt.Sprintf("op#%d:%d", k.Op, k.Index) }

// Ok returns whether the tensor is valid, that is, it has a producer operation.
func (t Tensor) Ok() bool { return t.op != nil }

// Op returns the operation that produces the tensor.
func (t Tensor) Op() *Operation { return t.op }

// Index of the output of Op this tensor refers to.
func (t Tensor) Index() int { return t.index }

// Key returns the stable identity of the tensor.
func (t Tensor) Key() TensorKey {
	if t.op == nil {
		return TensorKey{Op: -1}
	}
	return TensorKey{Op: t.op.id, Index: t.index}
}

// Same returns whether both tensors have the same identity.
func (t Tensor) Same(other Tensor) bool { return t.Key() == other.Key() }

// Shape of the tensor.
func (t Tensor) Shape() shapes.Shape {
	if t.op == nil {
		return shapes.Invalid()
	}
	return t.op.shapes[t.index]
}

// DType of the tensor.
func (t Tensor) DType() dtypes.DType { return t.Shape().DType }

// Rank of the tensor.
func (t Tensor) Rank() int { return t.Shape().Rank() }

// Name of the tensor, for printing.
func (t Tensor) Name() string {
	if t.op == nil {
		return "<invalid>"
	}
	if t.op.NumOutputs() == 1 {
		return t.op.name
	}
	return fmt.Sprintf("%s.%d", t.op.name, t.index)
}

// String implements fmt.Stringer.
func (t Tensor) String() string {
	return fmt.Sprintf("%s%s", t.Name(), t.Shape())
}

// At returns an expression reading the tensor at the given indices, one per axis.
func (t Tensor) At(indices ...Expr) Expr {
	if !t.Ok() {
		exceptions.Panicf("te.Tensor.At(): invalid tensor")
	}
	if len(indices) != t.Rank() {
		exceptions.Panicf("te.Tensor.At(): tensor %s has rank %d, but %d indices were given", t, t.Rank(), len(indices))
	}
	return &Load{Tensor: t, Indices: append([]Expr(nil), indices...)}
}

// Keys returns the keys of the given tensors.
func Keys(tensors []Tensor) []TensorKey {
	return xslices.Map(tensors, Tensor.Key)
}
