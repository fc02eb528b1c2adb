// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tag

import (
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/pkg/errors"
)

// Substitution maps the tensors and iteration variables of one computation to those of another.
type Substitution struct {
	tensors map[te.TensorKey]te.Tensor
	vars    map[te.VarID]*te.IterVar
}

// NewSubstitution pairs each element of orgInputs, orgAxis and orgReduceAxis with the element in
// the same position of inputs, axis and reduceAxis respectively.
//
// It fails with an error wrapping tgerrors.ErrArityMismatch if the lengths of the paired lists
// differ, or if paired tensors have different ranks.
func NewSubstitution(orgInputs, inputs []te.Tensor, orgAxis, axis, orgReduceAxis, reduceAxis []*te.IterVar) (*Substitution, error) {
	if len(orgInputs) != len(inputs) {
		return nil, errors.Wrapf(tgerrors.ErrArityMismatch, "substitution of %d input tensors by %d", len(orgInputs), len(inputs))
	}
	if len(orgAxis) != len(axis) {
		return nil, errors.Wrapf(tgerrors.ErrArityMismatch, "substitution of %d axes by %d", len(orgAxis), len(axis))
	}
	if len(orgReduceAxis) != len(reduceAxis) {
		return nil, errors.Wrapf(tgerrors.ErrArityMismatch, "substitution of %d reduce axes by %d", len(orgReduceAxis), len(reduceAxis))
	}
	s := &Substitution{
		tensors: make(map[te.TensorKey]te.Tensor, len(inputs)),
		vars:    make(map[te.VarID]*te.IterVar, len(axis)+len(reduceAxis)),
	}
	for ii, org := range orgInputs {
		if org.Rank() != inputs[ii].Rank() {
			return nil, errors.Wrapf(tgerrors.ErrArityMismatch, "substitution of input #%d %s (rank %d) by %s (rank %d)",
				ii, org, org.Rank(), inputs[ii], inputs[ii].Rank())
		}
		s.tensors[org.Key()] = inputs[ii]
	}
	for ii, org := range orgAxis {
		s.vars[org.ID()] = axis[ii]
	}
	for ii, org := range orgReduceAxis {
		s.vars[org.ID()] = reduceAxis[ii]
	}
	return s, nil
}

// Apply returns expr with the substitution applied. Sub-trees without substituted references are
// shared with expr.
func (s *Substitution) Apply(expr te.Expr) te.Expr {
	return te.Rewrite(expr, s.rewrite)
}

func (s *Substitution) rewrite(e te.Expr) (te.Expr, bool) {
	switch eT := e.(type) {
	case *te.Var:
		if v, found := s.vars[eT.IterVar.ID()]; found {
			return v.Var(), true
		}
	case *te.Load:
		t, found := s.tensors[eT.Tensor.Key()]
		if !found {
			return nil, false
		}
		indices := make([]te.Expr, len(eT.Indices))
		for ii, index := range eT.Indices {
			indices[ii] = s.Apply(index)
		}
		return &te.Load{Tensor: t, Indices: indices}, true
	case *te.Reduce:
		changed := false
		axes := make([]*te.IterVar, len(eT.Axis))
		for ii, axis := range eT.Axis {
			axes[ii] = axis
			if v, found := s.vars[axis.ID()]; found {
				axes[ii] = v
				changed = true
			}
		}
		if !changed {
			return nil, false
		}
		r := &te.Reduce{Combiner: eT.Combiner, Source: s.Apply(eT.Source), Axis: axes}
		if eT.Condition != nil {
			r.Condition = s.Apply(eT.Condition)
		}
		return r, true
	}
	return nil, false
}

// SubstituteExpression returns body with every load of orgInputs[i] replaced by a load of
// inputs[i], every reference to orgAxis[i] by axis[i] and every reference to orgReduceAxis[i]
// (including in reduction axis lists) by reduceAxis[i].
//
// It fails with an error wrapping tgerrors.ErrArityMismatch if the lengths of the paired lists
// differ.
func SubstituteExpression(body te.Expr, orgInputs, inputs []te.Tensor, orgAxis, axis, orgReduceAxis, reduceAxis []*te.IterVar) (te.Expr, error) {
	s, err := NewSubstitution(orgInputs, inputs, orgAxis, axis, orgReduceAxis, reduceAxis)
	if err != nil {
		return nil, err
	}
	return s.Apply(body), nil
}
