package elementwise

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// kernel is a CPU elementwise kernel. The buffers it receives are validated
// for count and equal length before launch, since gonum/floats panics on
// mismatched slices.
type kernel struct {
	name   string
	arity  int
	launch func(b [][]float64)
}

func (k kernel) Name() string {
	return k.name
}

func (k kernel) Launch(buffers [][]float64) error {
	if len(buffers) != k.arity {
		return fmt.Errorf("expected %d buffers, got %d", k.arity, len(buffers))
	}
	for _, b := range buffers[1:] {
		if len(b) != len(buffers[0]) {
			return fmt.Errorf("buffer length mismatch: %d != %d", len(b), len(buffers[0]))
		}
	}
	k.launch(buffers)
	return nil
}

// binaryOp describes one binary elementwise operation and its kernels.
type binaryOp struct {
	name        string
	commutative bool
	// direct writes lhs op rhs into dst
	direct func(dst, lhs, rhs []float64)
	// inplace computes dst = dst op src
	inplace func(dst, src []float64)
}

var (
	opAdd = binaryOp{
		name:        "add",
		commutative: true,
		direct:      func(dst, lhs, rhs []float64) { floats.AddTo(dst, lhs, rhs) },
		inplace:     floats.Add,
	}
	opSub = binaryOp{
		name:    "sub",
		direct:  func(dst, lhs, rhs []float64) { floats.SubTo(dst, lhs, rhs) },
		inplace: floats.Sub,
	}
	opMul = binaryOp{
		name:        "mul",
		commutative: true,
		direct:      func(dst, lhs, rhs []float64) { floats.MulTo(dst, lhs, rhs) },
		inplace:     floats.Mul,
	}
	opDiv = binaryOp{
		name:    "div",
		direct:  func(dst, lhs, rhs []float64) { floats.DivTo(dst, lhs, rhs) },
		inplace: floats.Div,
	}
)

// directKernel takes buffers [lhs, rhs, out].
func (op binaryOp) directKernel() kernel {
	return kernel{name: op.name, arity: 3, launch: func(b [][]float64) {
		op.direct(b[2], b[0], b[1])
	}}
}

// inplaceKernel takes buffers [dst, src].
func (op binaryOp) inplaceKernel() kernel {
	return kernel{name: op.name + "_inplace", arity: 2, launch: func(b [][]float64) {
		op.inplace(b[0], b[1])
	}}
}

// scalarOp describes an operation between a tensor and a scalar.
type scalarOp struct {
	name  string
	apply func(dst []float64, rhs float64)
}

var (
	opAddScalar = scalarOp{name: "add_scalar", apply: func(dst []float64, rhs float64) { floats.AddConst(rhs, dst) }}
	opSubScalar = scalarOp{name: "sub_scalar", apply: func(dst []float64, rhs float64) { floats.AddConst(-rhs, dst) }}
	opMulScalar = scalarOp{name: "mul_scalar", apply: func(dst []float64, rhs float64) { floats.Scale(rhs, dst) }}
	opDivScalar = scalarOp{name: "div_scalar", apply: func(dst []float64, rhs float64) { floats.Scale(1/rhs, dst) }}
)

// directKernel takes buffers [lhs, out].
func (op scalarOp) directKernel(rhs float64) kernel {
	return kernel{name: op.name, arity: 2, launch: func(b [][]float64) {
		copy(b[1], b[0])
		op.apply(b[1], rhs)
	}}
}

// inplaceKernel takes buffers [lhs].
func (op scalarOp) inplaceKernel(rhs float64) kernel {
	return kernel{name: op.name + "_inplace", arity: 1, launch: func(b [][]float64) {
		op.apply(b[0], rhs)
	}}
}

func fillKernel(value float64) kernel {
	return kernel{name: "fill", arity: 1, launch: func(b [][]float64) {
		for i := range b[0] {
			b[0][i] = value
		}
	}}
}

// copyKernel takes buffers [src, dst].
var copyKernel = kernel{name: "copy", arity: 2, launch: func(b [][]float64) {
	copy(b[1], b[0])
}}
