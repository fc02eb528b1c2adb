// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package te

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// VarID is a process-wide unique and stable identifier of an IterVar.
type VarID int64

// OpID is a process-wide unique and stable identifier of an Operation.
//
// Rewritten versions of an operation (see Operation.WithBody) keep the OpID, so tensor
// identities (see TensorKey) survive graph rewrites.
type OpID int64

var (
	nextVarID atomic.Int64
	nextOpID  atomic.Int64
)

func newVarID() VarID { return VarID(nextVarID.Add(1)) }
func newOpID() OpID   { return OpID(nextOpID.Add(1)) }

// IterVarKind distinguishes data-parallel (output) axes from reduction axes.
//
//go:generate go tool enumer -type=IterVarKind -output=gen_itervarkind_enumer.go itervar.go
type IterVarKind int

const (
	// DataPar is an output axis of a computation.
	DataPar IterVarKind = iota

	// CommReduce is a commutative reduction axis, only used inside a Reduce expression.
	CommReduce
)

// IterVar is an iteration variable ("axis") with domain [0, extent).
//
// It is immutable. Two IterVar are the same variable only if they have the same ID, the name is
// only used for printing.
type IterVar struct {
	id     VarID
	name   string
	extent int
	kind   IterVarKind
}

// NewIterVar creates a new iteration variable with a fresh ID.
// It panics if extent <= 0.
func NewIterVar(name string, extent int, kind IterVarKind) *IterVar {
	if extent <= 0 {
		exceptions.Panicf("te.NewIterVar(%q): extent must be > 0, got %d", name, extent)
	}
	return &IterVar{id: newVarID(), name: name, extent: extent, kind: kind}
}

// ReduceAxis creates a new reduction axis with the given extent.
func ReduceAxis(name string, extent int) *IterVar {
	return NewIterVar(name, extent, CommReduce)
}

// ID returns the stable identifier of the variable.
func (v *IterVar) ID() VarID { return v.id }

// Name of the variable, for printing only.
func (v *IterVar) Name() string { return v.name }

// Extent is the size of the domain of the variable.
func (v *IterVar) Extent() int { return v.extent }

// Kind of the variable.
func (v *IterVar) Kind() IterVarKind { return v.kind }

// IsReduce returns whether it is a reduction axis.
func (v *IterVar) IsReduce() bool { return v.kind == CommReduce }

// Var returns an expression referencing this variable.
func (v *IterVar) Var() Expr { return &Var{IterVar: v} }

// String implements fmt.Stringer.
func (v *IterVar) String() string {
	if v == nil {
		return "<nil IterVar>"
	}
	return fmt.Sprintf("%s[0:%d]", v.name, v.extent)
}

// VarsOf returns the Var expressions of the given axes, a convenience to index tensors.
func VarsOf(axes []*IterVar) []Expr {
	vars := make([]Expr, len(axes))
	for ii, axis := range axes {
		vars[ii] = axis.Var()
	}
	return vars
}
