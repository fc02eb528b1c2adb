// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tag generates canonical structural signatures ("tags") of computations, and substitutes
// the tensors and axes of an expression, so a schedule computed for one computation can be
// replayed on another one with the same tag.
//
// Two (axis, body) pairs get the same tag if and only if they are structurally identical up to
// renaming of tensors and iteration variables: same operators, nesting, immediates (with their
// dtypes), axis extents, reduction structure and tensor shapes.
package tag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/x448/float16"
)

// namer assigns canonical names to variables and tensors, in order of first occurrence.
type namer struct {
	vars         map[te.VarID]string
	numReduce    int
	numFree      int
	freeVars     []*te.IterVar
	tensors      map[te.TensorKey]string
	tensorsOrder []te.Tensor
}

func newNamer(axis []*te.IterVar) *namer {
	n := &namer{
		vars:    make(map[te.VarID]string, len(axis)),
		tensors: make(map[te.TensorKey]string),
	}
	for ii, a := range axis {
		n.vars[a.ID()] = "i" + strconv.Itoa(ii)
	}
	return n
}

func (n *namer) varName(v *te.IterVar) string {
	if name, found := n.vars[v.ID()]; found {
		return name
	}
	var name string
	if v.IsReduce() {
		name = fmt.Sprintf("r%d:%d", n.numReduce, v.Extent())
		n.numReduce++
		// Later references use the short name, the extent is written at the first occurrence.
		n.vars[v.ID()] = name[:strings.IndexByte(name, ':')]
		return name
	}
	name = "v" + strconv.Itoa(n.numFree)
	n.numFree++
	n.vars[v.ID()] = name
	n.freeVars = append(n.freeVars, v)
	return name
}

func (n *namer) tensorName(t te.Tensor) string {
	if name, found := n.tensors[t.Key()]; found {
		return name
	}
	name := "T" + strconv.Itoa(len(n.tensorsOrder))
	n.tensors[t.Key()] = name
	n.tensorsOrder = append(n.tensorsOrder, t)
	return name
}

// canonicalFloat rounds value to the precision of dtype, so immediates that are equal once
// converted to dtype get the same representation.
func canonicalFloat(value float64, dtype dtypes.DType) float64 {
	switch dtype {
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(value)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(value)).Float32())
	case dtypes.Float32:
		return float64(float32(value))
	}
	return value
}

func (n *namer) write(sb *strings.Builder, expr te.Expr) {
	switch e := expr.(type) {
	case *te.IntImm:
		fmt.Fprintf(sb, "%s(%d)", e.Type, e.Value)
	case *te.FloatImm:
		fmt.Fprintf(sb, "%s(%s)", e.Type, strconv.FormatFloat(canonicalFloat(e.Value, e.Type), 'g', -1, 64))
	case *te.Var:
		sb.WriteString(n.varName(e.IterVar))
	case *te.Binary:
		n.writeCall(sb, e.Op.String(), e.X, e.Y)
	case *te.Compare:
		n.writeCall(sb, e.Op.String(), e.X, e.Y)
	case *te.Unary:
		n.writeCall(sb, e.Op.String(), e.X)
	case *te.Cast:
		n.writeCall(sb, "cast<"+e.Type.String()+">", e.X)
	case *te.Select:
		n.writeCall(sb, "select", e.Cond, e.True, e.False)
	case *te.Load:
		sb.WriteString(n.tensorName(e.Tensor))
		sb.WriteByte('[')
		for ii, index := range e.Indices {
			if ii > 0 {
				sb.WriteByte(',')
			}
			n.write(sb, index)
		}
		sb.WriteByte(']')
	case *te.Reduce:
		sb.WriteString("reduce_")
		sb.WriteString(e.Combiner.String())
		sb.WriteByte('<')
		for ii, axis := range e.Axis {
			if ii > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(n.varName(axis))
		}
		sb.WriteString(">(")
		n.write(sb, e.Source)
		if e.Condition != nil {
			sb.WriteString(" where ")
			n.write(sb, e.Condition)
		}
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "?%T", expr)
	}
}

func (n *namer) writeCall(sb *strings.Builder, name string, args ...te.Expr) {
	sb.WriteString(name)
	sb.WriteByte('(')
	for ii, arg := range args {
		if ii > 0 {
			sb.WriteByte(',')
		}
		n.write(sb, arg)
	}
	sb.WriteByte(')')
}

// FromBody returns the tag of the computation of body over the data-parallel axis.
//
// Data axes are named by position (i0, i1, ...), reduction axes by first occurrence (r0, r1, ...)
// and tensors by first load (T0, T1, ...). Extents, dtypes and shapes are part of the tag, the
// original names are not.
func FromBody(axis []*te.IterVar, body []te.Expr) string {
	n := newNamer(axis)
	var sb strings.Builder
	sb.WriteString("axis(")
	for ii, a := range axis {
		if ii > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "i%d:%d", ii, a.Extent())
	}
	sb.WriteString(")")
	for ii, expr := range body {
		fmt.Fprintf(&sb, ";out%d=", ii)
		n.write(&sb, expr)
	}
	if len(n.freeVars) > 0 {
		sb.WriteString(";free(")
		for ii, v := range n.freeVars {
			if ii > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "v%d:%d", ii, v.Extent())
		}
		sb.WriteByte(')')
	}
	if len(n.tensorsOrder) > 0 {
		sb.WriteString(";tensors(")
		for ii, t := range n.tensorsOrder {
			if ii > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "T%d:%s", ii, t.Shape())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// FromOperation returns the tag of a compute operation. Placeholders are tagged by their shape.
func FromOperation(op *te.Operation) string {
	if op.IsPlaceholder() {
		return "placeholder" + op.Output(0).Shape().String()
	}
	return FromBody(op.Axis(), op.Body())
}

// Tensors returns the tensors loaded by body, in the order they are named by FromBody.
func Tensors(body []te.Expr) []te.Tensor {
	n := newNamer(nil)
	var sb strings.Builder
	for _, expr := range body {
		n.write(&sb, expr)
	}
	return n.tensorsOrder
}

// ReduceAxes returns the reduction axes of body, in the order they are named by FromBody.
func ReduceAxes(body []te.Expr) []*te.IterVar {
	var axes []*te.IterVar
	seen := make(map[te.VarID]bool)
	add := func(v *te.IterVar) {
		if v.IsReduce() && !seen[v.ID()] {
			seen[v.ID()] = true
			axes = append(axes, v)
		}
	}
	for _, expr := range body {
		te.Walk(expr, func(e te.Expr) bool {
			switch eT := e.(type) {
			case *te.Var:
				add(eT.IterVar)
			case *te.Reduce:
				for _, axis := range eT.Axis {
					add(axis)
				}
			}
			return true
		})
	}
	return axes
}
