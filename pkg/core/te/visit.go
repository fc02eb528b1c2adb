// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package te

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Walk visits expr and its sub-expressions in pre-order. If visit returns false the children
// of that node are not visited.
func Walk(expr Expr, visit func(e Expr) bool) {
	if expr == nil || !visit(expr) {
		return
	}
	for _, child := range expr.Children() {
		Walk(child, visit)
	}
}

// Rewrite returns a copy of expr where nodes are replaced according to fn.
//
// fn is called in pre-order: if it returns (replacement, true) the node is replaced and its
// children are not visited (fn may call Rewrite itself if needed). Otherwise, the children are
// rewritten and the node is rebuilt only if any of them changed, so untouched sub-trees are
// shared with the original.
func Rewrite(expr Expr, fn func(e Expr) (Expr, bool)) Expr {
	if replacement, ok := fn(expr); ok {
		return replacement
	}
	children := expr.Children()
	if len(children) == 0 {
		return expr
	}
	var newChildren []Expr
	for ii, child := range children {
		newChild := Rewrite(child, fn)
		if newChild != child && newChildren == nil {
			newChildren = slices.Clone(children)
		}
		if newChildren != nil {
			newChildren[ii] = newChild
		}
	}
	if newChildren == nil {
		return expr
	}
	return WithChildren(expr, newChildren)
}

// WithChildren returns a copy of expr with its children (as returned by Expr.Children) replaced.
func WithChildren(expr Expr, children []Expr) Expr {
	if len(children) != len(expr.Children()) {
		exceptions.Panicf("te.WithChildren(%s): expected %d children, got %d", expr, len(expr.Children()), len(children))
	}
	switch e := expr.(type) {
	case *Binary:
		return &Binary{Op: e.Op, X: children[0], Y: children[1]}
	case *Compare:
		return &Compare{Op: e.Op, X: children[0], Y: children[1]}
	case *Unary:
		return &Unary{Op: e.Op, X: children[0]}
	case *Cast:
		return &Cast{Type: e.Type, X: children[0]}
	case *Select:
		return &Select{Cond: children[0], True: children[1], False: children[2]}
	case *Load:
		return &Load{Tensor: e.Tensor, Indices: children}
	case *Reduce:
		r := &Reduce{Combiner: e.Combiner, Source: children[0], Axis: e.Axis}
		if e.Condition != nil {
			r.Condition = children[1]
		}
		return r
	}
	// Leaves.
	return expr
}

// SubstituteVars replaces every reference to the variables in vars (keyed by VarID) by the
// corresponding expression.
func SubstituteVars(expr Expr, vars map[VarID]Expr) Expr {
	if len(vars) == 0 {
		return expr
	}
	return Rewrite(expr, func(e Expr) (Expr, bool) {
		if v, ok := e.(*Var); ok {
			if replacement, found := vars[v.IterVar.ID()]; found {
				return replacement, true
			}
		}
		return nil, false
	})
}

// Equal returns whether a and b are structurally equal: same expression types, operators,
// constants, and the same variables and tensors (compared by their stable identities).
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch aT := a.(type) {
	case *IntImm:
		bT, ok := b.(*IntImm)
		return ok && aT.Value == bT.Value && aT.Type == bT.Type
	case *FloatImm:
		bT, ok := b.(*FloatImm)
		return ok && aT.Value == bT.Value && aT.Type == bT.Type
	case *Var:
		bT, ok := b.(*Var)
		return ok && aT.IterVar.ID() == bT.IterVar.ID()
	case *Binary:
		bT, ok := b.(*Binary)
		return ok && aT.Op == bT.Op && Equal(aT.X, bT.X) && Equal(aT.Y, bT.Y)
	case *Compare:
		bT, ok := b.(*Compare)
		return ok && aT.Op == bT.Op && Equal(aT.X, bT.X) && Equal(aT.Y, bT.Y)
	case *Unary:
		bT, ok := b.(*Unary)
		return ok && aT.Op == bT.Op && Equal(aT.X, bT.X)
	case *Cast:
		bT, ok := b.(*Cast)
		return ok && aT.Type == bT.Type && Equal(aT.X, bT.X)
	case *Select:
		bT, ok := b.(*Select)
		return ok && Equal(aT.Cond, bT.Cond) && Equal(aT.True, bT.True) && Equal(aT.False, bT.False)
	case *Load:
		bT, ok := b.(*Load)
		return ok && aT.Tensor.Same(bT.Tensor) && slices.EqualFunc(aT.Indices, bT.Indices, Equal)
	case *Reduce:
		bT, ok := b.(*Reduce)
		if !ok || aT.Combiner != bT.Combiner {
			return false
		}
		if !slices.EqualFunc(aT.Axis, bT.Axis, func(x, y *IterVar) bool { return x.ID() == y.ID() }) {
			return false
		}
		return Equal(aT.Source, bT.Source) && Equal(aT.Condition, bT.Condition)
	}
	return false
}

// EqualBodies compares two lists of expressions with Equal.
func EqualBodies(a, b []Expr) bool {
	return slices.EqualFunc(a, b, Equal)
}
