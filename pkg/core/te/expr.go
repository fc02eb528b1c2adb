// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package te

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Expr is a node of an expression tree: the body of a ComputeOp.
//
// Expressions are immutable: never modify the fields of an Expr after it has been constructed,
// use Rewrite to build modified copies instead. Sub-expressions may be shared among many trees.
type Expr interface {
	// DType of the value the expression evaluates to.
	DType() dtypes.DType

	// Children returns the sub-expressions, in a fixed order for each expression type.
	Children() []Expr

	// String pretty-prints the expression.
	String() string
}

// IntImm is an integer constant.
type IntImm struct {
	Value int64
	Type  dtypes.DType
}

// FloatImm is a floating point constant.
type FloatImm struct {
	Value float64
	Type  dtypes.DType
}

// Var references an iteration variable, data-parallel or reduction.
type Var struct {
	IterVar *IterVar
}

// BinaryOp enumerates the arithmetic binary operators.
//
//go:generate go tool enumer -type=BinaryOp -trimprefix=Op -transform=lower -output=gen_binaryop_enumer.go expr.go
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpPow
)

// Binary is an arithmetic binary operation, both operands have the same DType.
type Binary struct {
	Op   BinaryOp
	X, Y Expr
}

// CompareOp enumerates the comparison operators.
//
//go:generate go tool enumer -type=CompareOp -trimprefix=Op -transform=lower -output=gen_compareop_enumer.go expr.go
type CompareOp int

const (
	OpLT CompareOp = iota
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
)

// Compare is a comparison, it evaluates to a Bool.
type Compare struct {
	Op   CompareOp
	X, Y Expr
}

// UnaryOp enumerates the element-wise unary functions.
//
//go:generate go tool enumer -type=UnaryOp -trimprefix=Op -transform=lower -output=gen_unaryop_enumer.go expr.go
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpExp
	OpLog
	OpSqrt
	OpTanh
	OpSigmoid
	OpAbs
)

// Unary is an element-wise unary function.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// Cast converts X to Type.
type Cast struct {
	Type dtypes.DType
	X    Expr
}

// Select evaluates to True if Cond holds, False otherwise.
type Select struct {
	Cond, True, False Expr
}

// Load reads one element of Tensor at the given Indices, one per axis of the tensor.
type Load struct {
	Tensor  Tensor
	Indices []Expr
}

// Combiner enumerates the commutative reduction operators.
//
//go:generate go tool enumer -type=Combiner -trimprefix=Combine -transform=lower -output=gen_combiner_enumer.go expr.go
type Combiner int

const (
	CombineSum Combiner = iota
	CombineProd
	CombineMax
	CombineMin
)

// Reduce combines Source over all values of the Axis (reduction variables) for which
// Condition holds. Condition may be nil, meaning always true.
type Reduce struct {
	Combiner  Combiner
	Source    Expr
	Axis      []*IterVar
	Condition Expr
}

// DType implements Expr.
func (e *IntImm) DType() dtypes.DType   { return e.Type }
func (e *FloatImm) DType() dtypes.DType { return e.Type }
func (e *Var) DType() dtypes.DType      { return dtypes.Int32 }
func (e *Binary) DType() dtypes.DType   { return e.X.DType() }
func (e *Compare) DType() dtypes.DType  { return dtypes.Bool }
func (e *Unary) DType() dtypes.DType    { return e.X.DType() }
func (e *Cast) DType() dtypes.DType     { return e.Type }
func (e *Select) DType() dtypes.DType   { return e.True.DType() }
func (e *Load) DType() dtypes.DType     { return e.Tensor.DType() }
func (e *Reduce) DType() dtypes.DType   { return e.Source.DType() }

// Children implements Expr.
func (e *IntImm) Children() []Expr   { return nil }
func (e *FloatImm) Children() []Expr { return nil }
func (e *Var) Children() []Expr      { return nil }
func (e *Binary) Children() []Expr   { return []Expr{e.X, e.Y} }
func (e *Compare) Children() []Expr  { return []Expr{e.X, e.Y} }
func (e *Unary) Children() []Expr    { return []Expr{e.X} }
func (e *Cast) Children() []Expr     { return []Expr{e.X} }
func (e *Select) Children() []Expr   { return []Expr{e.Cond, e.True, e.False} }
func (e *Load) Children() []Expr     { return e.Indices }
func (e *Reduce) Children() []Expr {
	if e.Condition == nil {
		return []Expr{e.Source}
	}
	return []Expr{e.Source, e.Condition}
}

// String implements Expr.
func (e *IntImm) String() string { return strconv.FormatInt(e.Value, 10) }
func (e *FloatImm) String() string {
	return strconv.FormatFloat(e.Value, 'g', -1, 64)
}
func (e *Var) String() string     { return e.IterVar.Name() }
func (e *Binary) String() string  { return fmt.Sprintf("%s(%s, %s)", e.Op, e.X, e.Y) }
func (e *Compare) String() string { return fmt.Sprintf("%s(%s, %s)", e.Op, e.X, e.Y) }
func (e *Unary) String() string   { return fmt.Sprintf("%s(%s)", e.Op, e.X) }
func (e *Cast) String() string    { return fmt.Sprintf("cast<%s>(%s)", e.Type, e.X) }
func (e *Select) String() string {
	return fmt.Sprintf("select(%s, %s, %s)", e.Cond, e.True, e.False)
}
func (e *Load) String() string {
	parts := make([]string, len(e.Indices))
	for ii, index := range e.Indices {
		parts[ii] = index.String()
	}
	return fmt.Sprintf("%s[%s]", e.Tensor.Name(), strings.Join(parts, ", "))
}
func (e *Reduce) String() string {
	axes := make([]string, len(e.Axis))
	for ii, axis := range e.Axis {
		axes[ii] = axis.String()
	}
	if e.Condition != nil {
		return fmt.Sprintf("reduce_%s(%s, axis=[%s], where=%s)", e.Combiner, e.Source, strings.Join(axes, ", "), e.Condition)
	}
	return fmt.Sprintf("reduce_%s(%s, axis=[%s])", e.Combiner, e.Source, strings.Join(axes, ", "))
}

// Int returns an Int32 constant.
func Int(value int) Expr { return &IntImm{Value: int64(value), Type: dtypes.Int32} }

// Const returns a floating point constant of the given dtype.
func Const(dtype dtypes.DType, value float64) Expr {
	if !dtype.IsFloat() {
		exceptions.Panicf("te.Const: dtype %s is not a float, use IntImm for integer constants", dtype)
	}
	return &FloatImm{Value: value, Type: dtype}
}

func binary(op BinaryOp, x, y Expr) Expr {
	if x == nil || y == nil {
		exceptions.Panicf("te.%s: nil operand", op)
	}
	if x.DType() != y.DType() {
		exceptions.Panicf("te.%s: operands have different dtypes %s and %s", op, x.DType(), y.DType())
	}
	return &Binary{Op: op, X: x, Y: y}
}

// Add returns x+y.
func Add(x, y Expr) Expr { return binary(OpAdd, x, y) }

// Sub returns x-y.
func Sub(x, y Expr) Expr { return binary(OpSub, x, y) }

// Mul returns x*y.
func Mul(x, y Expr) Expr { return binary(OpMul, x, y) }

// Div returns x/y.
func Div(x, y Expr) Expr { return binary(OpDiv, x, y) }

// Mod returns x%y.
func Mod(x, y Expr) Expr { return binary(OpMod, x, y) }

// Min returns min(x, y).
func Min(x, y Expr) Expr { return binary(OpMin, x, y) }

// Max returns max(x, y).
func Max(x, y Expr) Expr { return binary(OpMax, x, y) }

// Pow returns x^y.
func Pow(x, y Expr) Expr { return binary(OpPow, x, y) }

func unary(op UnaryOp, x Expr) Expr {
	if x == nil {
		exceptions.Panicf("te.%s: nil operand", op)
	}
	return &Unary{Op: op, X: x}
}

// Neg returns -x.
func Neg(x Expr) Expr { return unary(OpNeg, x) }

// Exp returns e^x.
func Exp(x Expr) Expr { return unary(OpExp, x) }

// Log returns the natural logarithm of x.
func Log(x Expr) Expr { return unary(OpLog, x) }

// Sqrt returns the square root of x.
func Sqrt(x Expr) Expr { return unary(OpSqrt, x) }

// Tanh returns the hyperbolic tangent of x.
func Tanh(x Expr) Expr { return unary(OpTanh, x) }

// Sigmoid returns 1/(1+e^-x).
func Sigmoid(x Expr) Expr { return unary(OpSigmoid, x) }

// Abs returns |x|.
func Abs(x Expr) Expr { return unary(OpAbs, x) }

// CastTo converts x to dtype.
func CastTo(x Expr, dtype dtypes.DType) Expr { return &Cast{Type: dtype, X: x} }

// Cmp returns the comparison `x op y`.
func Cmp(op CompareOp, x, y Expr) Expr {
	if x.DType() != y.DType() {
		exceptions.Panicf("te.Cmp(%s): operands have different dtypes %s and %s", op, x.DType(), y.DType())
	}
	return &Compare{Op: op, X: x, Y: y}
}

// Where returns onTrue if cond holds, onFalse otherwise.
func Where(cond, onTrue, onFalse Expr) Expr {
	if cond.DType() != dtypes.Bool {
		exceptions.Panicf("te.Where: condition must be Bool, got %s", cond.DType())
	}
	if onTrue.DType() != onFalse.DType() {
		exceptions.Panicf("te.Where: branches have different dtypes %s and %s", onTrue.DType(), onFalse.DType())
	}
	return &Select{Cond: cond, True: onTrue, False: onFalse}
}

func reduce(combiner Combiner, source Expr, axes []*IterVar) Expr {
	if len(axes) == 0 {
		exceptions.Panicf("te.reduce_%s: no reduction axes given", combiner)
	}
	for _, axis := range axes {
		if !axis.IsReduce() {
			exceptions.Panicf("te.reduce_%s: axis %s is not a reduction axis, create it with te.ReduceAxis", combiner, axis)
		}
	}
	return &Reduce{Combiner: combiner, Source: source, Axis: append([]*IterVar(nil), axes...)}
}

// Sum reduces source over the given reduction axes.
func Sum(source Expr, axes ...*IterVar) Expr { return reduce(CombineSum, source, axes) }

// Prod multiplies source over the given reduction axes.
func Prod(source Expr, axes ...*IterVar) Expr { return reduce(CombineProd, source, axes) }

// ReduceMax takes the maximum of source over the given reduction axes.
func ReduceMax(source Expr, axes ...*IterVar) Expr { return reduce(CombineMax, source, axes) }

// ReduceMin takes the minimum of source over the given reduction axes.
func ReduceMin(source Expr, axes ...*IterVar) Expr { return reduce(CombineMin, source, axes) }
