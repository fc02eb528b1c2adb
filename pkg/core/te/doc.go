// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package te is a small immutable tensor-expression library: the input language of the graph
// transformation passes in pkg/tg.
//
// The main elements in the package are:
//
//   - IterVar: an iteration variable ("axis") with a domain [0, extent). Data-parallel axes index
//     the outputs of an operation, reduction axes are bound by a Reduce expression.
//
//   - Expr: the expression tree (constants, variables, arithmetic, comparisons, Load of a tensor
//     element, Reduce over reduction axes).
//
//   - Operation: either a Placeholder (a leaf fed from outside the graph) or a ComputeOp defined
//     by one body expression per output over its axes.
//
//   - Tensor: one output of an Operation. Its identity is the TensorKey (OpID plus output index),
//     not the Operation pointer.
//
// Everything is immutable once built: passes that rewrite a graph create new versions of the
// operations (see Operation.WithBody), keeping their OpID.
//
// Builder functions panic (with github.com/gomlx/exceptions) on programming errors like
// mismatched dtypes or ranks: catch them with exceptions.TryCatch at the API boundary if needed.
package te
