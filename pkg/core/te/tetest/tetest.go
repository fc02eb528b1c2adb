// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tetest holds builders of common tensor-expression graphs used by tests.
//
// All tensors are Float32.
package tetest

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tgraph/pkg/core/shapes"
	"github.com/gomlx/tgraph/pkg/core/te"
)

// Placeholder creates a Float32 placeholder with the given dimensions.
func Placeholder(name string, dims ...int) te.Tensor {
	return te.Placeholder(name, shapes.Make(dtypes.Float32, dims...))
}

// Zero returns a Float32 zero constant.
func Zero() te.Expr { return te.Const(dtypes.Float32, 0) }

// MatMul returns a[n,k] x b[k,m].
func MatMul(name string, a, b te.Tensor) te.Tensor {
	k := te.ReduceAxis(name+"_k", a.Shape().Dim(1))
	return te.Compute(name, []int{a.Shape().Dim(0), b.Shape().Dim(1)}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(te.Mul(a.At(axis[0].Var(), k.Var()), b.At(k.Var(), axis[1].Var())), k)
	})
}

// MatMulTN returns transpose(a[k,n]) x b[k,m].
func MatMulTN(name string, a, b te.Tensor) te.Tensor {
	k := te.ReduceAxis(name+"_k", a.Shape().Dim(0))
	return te.Compute(name, []int{a.Shape().Dim(1), b.Shape().Dim(1)}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(te.Mul(a.At(k.Var(), axis[0].Var()), b.At(k.Var(), axis[1].Var())), k)
	})
}

// MatMulNT returns a[n,k] x transpose(b[m,k]).
func MatMulNT(name string, a, b te.Tensor) te.Tensor {
	k := te.ReduceAxis(name+"_k", a.Shape().Dim(1))
	return te.Compute(name, []int{a.Shape().Dim(0), b.Shape().Dim(0)}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(te.Mul(a.At(axis[0].Var(), k.Var()), b.At(axis[1].Var(), k.Var())), k)
	})
}

// Elementwise applies fn to the elements of tensors of the same shape.
func Elementwise(name string, fn func(args ...te.Expr) te.Expr, inputs ...te.Tensor) te.Tensor {
	dims := inputs[0].Shape().Dimensions
	return te.Compute(name, dims, func(axis []*te.IterVar) te.Expr {
		vars := te.VarsOf(axis)
		args := make([]te.Expr, len(inputs))
		for ii, input := range inputs {
			args[ii] = input.At(vars...)
		}
		return fn(args...)
	})
}

// Add returns a+b, element-wise.
func Add(name string, a, b te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr { return te.Add(args[0], args[1]) }, a, b)
}

// Mul returns a*b, element-wise.
func Mul(name string, a, b te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr { return te.Mul(args[0], args[1]) }, a, b)
}

// Exp returns e^a, element-wise.
func Exp(name string, a te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr { return te.Exp(args[0]) }, a)
}

// ReLU returns max(a, 0), element-wise.
func ReLU(name string, a te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr { return te.Max(args[0], Zero()) }, a)
}

// ReLUGrad returns grad where x > 0, and 0 elsewhere.
func ReLUGrad(name string, grad, x te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr {
		return te.Where(te.Cmp(te.OpGT, args[1], Zero()), args[0], Zero())
	}, grad, x)
}

// BiasAdd returns x[n,m] + bias[m].
func BiasAdd(name string, x, bias te.Tensor) te.Tensor {
	return te.Compute(name, x.Shape().Dimensions, func(axis []*te.IterVar) te.Expr {
		return te.Add(x.At(axis[0].Var(), axis[1].Var()), bias.At(axis[1].Var()))
	})
}

// RowSum returns the sum of the rows of a[n,m], shaped [n].
func RowSum(name string, a te.Tensor) te.Tensor {
	r := te.ReduceAxis(name+"_r", a.Shape().Dim(1))
	return te.Compute(name, []int{a.Shape().Dim(0)}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(a.At(axis[0].Var(), r.Var()), r)
	})
}

// SquaredErrorLoss returns the scalar sum((y-label)^2) for 2D y and label.
func SquaredErrorLoss(name string, y, label te.Tensor) te.Tensor {
	r0 := te.ReduceAxis(name+"_r0", y.Shape().Dim(0))
	r1 := te.ReduceAxis(name+"_r1", y.Shape().Dim(1))
	return te.Compute(name, nil, func(_ []*te.IterVar) te.Expr {
		diff := te.Sub(y.At(r0.Var(), r1.Var()), label.At(r0.Var(), r1.Var()))
		return te.Sum(te.Mul(diff, diff), r0, r1)
	})
}

// SquaredErrorGrad returns 2*(y-label), the gradient of SquaredErrorLoss with respect to y.
func SquaredErrorGrad(name string, y, label te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr {
		return te.Mul(te.Const(dtypes.Float32, 2), te.Sub(args[0], args[1]))
	}, y, label)
}

// SGD returns w - lr*grad, where lr is a scalar.
func SGD(name string, w, grad, lr te.Tensor) te.Tensor {
	return Elementwise(name, func(args ...te.Expr) te.Expr {
		return te.Sub(args[0], te.Mul(lr.At(), args[1]))
	}, w, grad)
}

// MLP holds the tensors of a 2-layer perceptron training graph:
//
//	H = X x W1; A = relu(H); Y = A x W2; Loss = sum((Y-Label)^2)
//
// with hand-written gradients and SGD updates.
type MLP struct {
	X, Label, W1, W2, LR te.Tensor
	H, A, Y, Loss        te.Tensor
	DY, DA, DH           te.Tensor
	G1, G2               te.Tensor
	U1, U2               te.Tensor
}

// BuildMLP builds the MLP training graph for the given dimensions.
func BuildMLP(batch, in, hidden, out int) *MLP {
	m := &MLP{}
	m.X = Placeholder("x", batch, in)
	m.Label = Placeholder("label", batch, out)
	m.W1 = Placeholder("w1", in, hidden)
	m.W2 = Placeholder("w2", hidden, out)
	m.LR = Placeholder("lr")

	m.H = MatMul("h", m.X, m.W1)
	m.A = ReLU("a", m.H)
	m.Y = MatMul("y", m.A, m.W2)
	m.Loss = SquaredErrorLoss("loss", m.Y, m.Label)

	m.DY = SquaredErrorGrad("dy", m.Y, m.Label)
	m.DA = MatMulNT("da", m.DY, m.W2)
	m.DH = ReLUGrad("dh", m.DA, m.H)
	m.G1 = MatMulTN("g1", m.X, m.DH)
	m.G2 = MatMulTN("g2", m.A, m.DY)

	m.U1 = SGD("u1", m.W1, m.G1, m.LR)
	m.U2 = SGD("u2", m.W2, m.G2, m.LR)
	return m
}
