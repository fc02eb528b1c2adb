// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package te

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tgraph/pkg/core/shapes"
)

// OpKind enumerates the kinds of operations.
//
//go:generate go tool enumer -type=OpKind -output=gen_opkind_enumer.go operation.go
type OpKind int

const (
	// PlaceholderKind is a leaf: a tensor fed from outside the graph (inputs, weights, labels, ...).
	PlaceholderKind OpKind = iota

	// ComputeKind computes its outputs from a body expression over its axes.
	ComputeKind
)

// Operation is a node of the tensor graph. It is immutable once built.
//
// A ComputeOp defines each output element `out[axis...] = body[i]` for every point of its axes.
// All outputs of an Operation share the same axes (and hence the same dimensions).
type Operation struct {
	id     OpID
	kind   OpKind
	name   string
	shapes []shapes.Shape

	axis       []*IterVar
	reduceAxis []*IterVar
	body       []Expr
	inputs     []Tensor
}

// Placeholder creates a leaf tensor fed from outside the graph.
func Placeholder(name string, shape shapes.Shape) Tensor {
	if !shape.Ok() {
		exceptions.Panicf("te.Placeholder(%q): invalid shape %s", name, shape)
	}
	op := &Operation{
		id:     newOpID(),
		kind:   PlaceholderKind,
		name:   name,
		shapes: []shapes.Shape{shape.Clone()},
	}
	return op.Output(0)
}

// Compute creates a new operation with one output of the given dimensions. The body is built
// by fn from the output axes, and its dtype defines the dtype of the output.
//
// Example, a matrix multiplication:
//
//	k := te.ReduceAxis("k", 64)
//	c := te.Compute("C", []int{32, 16}, func(axis []*te.IterVar) te.Expr {
//		i, j := axis[0].Var(), axis[1].Var()
//		return te.Sum(te.Mul(a.At(i, k.Var()), b.At(k.Var(), j)), k)
//	})
func Compute(name string, dims []int, fn func(axis []*IterVar) Expr) Tensor {
	return ComputeMulti(name, dims, func(axis []*IterVar) []Expr {
		return []Expr{fn(axis)}
	})[0]
}

// ComputeMulti is like Compute, but fn may return more than one body expression, each defining
// one output of the operation.
func ComputeMulti(name string, dims []int, fn func(axis []*IterVar) []Expr) []Tensor {
	axis := make([]*IterVar, len(dims))
	for ii, dim := range dims {
		axis[ii] = NewIterVar(fmt.Sprintf("%s_i%d", name, ii), dim, DataPar)
	}
	op := newComputeOp(newOpID(), name, axis, fn(axis))
	return op.Outputs()
}

func newComputeOp(id OpID, name string, axis []*IterVar, body []Expr) *Operation {
	if len(body) == 0 {
		exceptions.Panicf("te.Compute(%q): body has no expressions", name)
	}
	dims := make([]int, len(axis))
	for ii, a := range axis {
		dims[ii] = a.Extent()
	}
	op := &Operation{
		id:     id,
		kind:   ComputeKind,
		name:   name,
		axis:   axis,
		body:   body,
		shapes: make([]shapes.Shape, len(body)),
	}
	for ii, expr := range body {
		if expr == nil {
			exceptions.Panicf("te.Compute(%q): body #%d is nil", name, ii)
		}
		op.shapes[ii] = shapes.Make(expr.DType(), dims...)
	}
	op.inputs, op.reduceAxis = collectInputsAndReduceAxes(body)
	return op
}

// collectInputsAndReduceAxes returns the tensors loaded and the reduction axes used in body,
// both deduplicated and in order of first occurrence.
func collectInputsAndReduceAxes(body []Expr) (inputs []Tensor, reduceAxis []*IterVar) {
	seenTensors := make(map[TensorKey]bool)
	seenAxes := make(map[VarID]bool)
	for _, expr := range body {
		Walk(expr, func(e Expr) bool {
			switch eT := e.(type) {
			case *Load:
				if key := eT.Tensor.Key(); !seenTensors[key] {
					seenTensors[key] = true
					inputs = append(inputs, eT.Tensor)
				}
			case *Reduce:
				for _, axis := range eT.Axis {
					if !seenAxes[axis.ID()] {
						seenAxes[axis.ID()] = true
						reduceAxis = append(reduceAxis, axis)
					}
				}
			}
			return true
		})
	}
	return
}

// ID is the stable identifier of the operation.
func (op *Operation) ID() OpID { return op.id }

// Kind of the operation.
func (op *Operation) Kind() OpKind { return op.kind }

// IsPlaceholder returns whether the operation is a leaf fed from outside the graph.
func (op *Operation) IsPlaceholder() bool { return op.kind == PlaceholderKind }

// Name of the operation, for printing.
func (op *Operation) Name() string { return op.name }

// NumOutputs returns the number of tensors produced.
func (op *Operation) NumOutputs() int { return len(op.shapes) }

// Output returns the ii-th output tensor.
func (op *Operation) Output(ii int) Tensor {
	if ii < 0 || ii >= len(op.shapes) {
		exceptions.Panicf("operation %q has %d outputs, output #%d requested", op.name, len(op.shapes), ii)
	}
	return Tensor{op: op, index: ii}
}

// Outputs returns all output tensors.
func (op *Operation) Outputs() []Tensor {
	outputs := make([]Tensor, len(op.shapes))
	for ii := range outputs {
		outputs[ii] = op.Output(ii)
	}
	return outputs
}

// Axis returns the output (data-parallel) axes. Empty for placeholders.
// The returned slice must not be modified.
func (op *Operation) Axis() []*IterVar { return op.axis }

// ReduceAxis returns all reduction axes used in the body, in order of first occurrence.
// The returned slice must not be modified.
func (op *Operation) ReduceAxis() []*IterVar { return op.reduceAxis }

// Body returns the body expressions, one per output. Empty for placeholders.
// The returned slice must not be modified.
func (op *Operation) Body() []Expr { return op.body }

// InputTensors returns the tensors read by the body, in order of first occurrence.
// The returned slice must not be modified.
func (op *Operation) InputTensors() []Tensor { return op.inputs }

// WithBody returns a new version of the ComputeOp with the given body, keeping its ID, name
// and axes. This is how rewrites preserve tensor identities.
func (op *Operation) WithBody(body []Expr) *Operation {
	if op.kind != ComputeKind {
		exceptions.Panicf("Operation.WithBody(): operation %q is a %s", op.name, op.kind)
	}
	if len(body) != len(op.body) {
		exceptions.Panicf("Operation.WithBody(): operation %q has %d outputs, got %d body expressions",
			op.name, len(op.body), len(body))
	}
	newOp := newComputeOp(op.id, op.name, op.axis, body)
	for ii, shape := range op.shapes {
		if !newOp.shapes[ii].Equal(shape) {
			exceptions.Panicf("Operation.WithBody(): operation %q output #%d changes from %s to %s",
				op.name, ii, shape, newOp.shapes[ii])
		}
	}
	return newOp
}

// String implements fmt.Stringer.
func (op *Operation) String() string {
	if op == nil {
		return "<nil Operation>"
	}
	if op.kind == PlaceholderKind {
		return fmt.Sprintf("%s = placeholder%s", op.name, op.shapes[0])
	}
	axes := make([]string, len(op.axis))
	for ii, axis := range op.axis {
		axes[ii] = axis.Name()
	}
	bodies := make([]string, len(op.body))
	for ii, expr := range op.body {
		bodies[ii] = expr.String()
	}
	return fmt.Sprintf("%s[%s] = %s", op.name, strings.Join(axes, ", "), strings.Join(bodies, "; "))
}
