// Package elementwise implements tensor arithmetic on top of the compute
// client. Whenever an operand may be updated in place, the choice between the
// in-place and the out-of-place kernel is autotuned per operation and shape.
//
// Every operation takes ownership of its tensor operands: the result may reuse
// an operand's buffer and the other operands are released. Clone an operand
// first to keep using it.
package elementwise

import (
	"fmt"

	"github.com/fxnlabs/autotune/internal/compute"
)

func Add(lhs, rhs *Tensor) (*Tensor, error) { return binary(opAdd, lhs, rhs) }
func Sub(lhs, rhs *Tensor) (*Tensor, error) { return binary(opSub, lhs, rhs) }
func Mul(lhs, rhs *Tensor) (*Tensor, error) { return binary(opMul, lhs, rhs) }
func Div(lhs, rhs *Tensor) (*Tensor, error) { return binary(opDiv, lhs, rhs) }

func AddScalar(lhs *Tensor, rhs float64) (*Tensor, error) { return scalar(opAddScalar, lhs, rhs) }
func SubScalar(lhs *Tensor, rhs float64) (*Tensor, error) { return scalar(opSubScalar, lhs, rhs) }
func MulScalar(lhs *Tensor, rhs float64) (*Tensor, error) { return scalar(opMulScalar, lhs, rhs) }
func DivScalar(lhs *Tensor, rhs float64) (*Tensor, error) { return scalar(opDivScalar, lhs, rhs) }

func binary(op binaryOp, lhs, rhs *Tensor) (*Tensor, error) {
	if !lhs.shape.Equal(rhs.shape) {
		return nil, fmt.Errorf("%s: %w: %s vs %s", op.name, ErrShapeMismatch, lhs.shape, rhs.shape)
	}
	if lhs == rhs {
		// one tensor on both sides owns two references
		rhs = lhs.Clone()
	}

	if lhs.CanMut() || (op.commutative && rhs.CanMut()) {
		if !lhs.CanMut() {
			// only rhs can be reused; operands of a commutative op swap freely
			lhs, rhs = rhs, lhs
		}
		set := newBinarySet(op, lhs, rhs)
		defer set.scratch.release()
		if err := lhs.client.ExecuteAutotune(set); err != nil {
			if set.result == nil {
				_ = releaseAll(lhs, rhs)
			}
			return nil, fmt.Errorf("%s: %w", op.name, err)
		}
		return set.result, nil
	}

	out, err := lhs.client.Empty(lhs.shape.NumElements())
	if err != nil {
		return nil, err
	}
	if err := lhs.client.Execute(op.directKernel(), lhs.handle, rhs.handle, out); err != nil {
		_ = lhs.client.Free(out)
		return nil, fmt.Errorf("%s: %w", op.name, err)
	}
	result := newTensor(lhs.client, lhs.shape, out)
	return result, releaseAll(lhs, rhs)
}

func scalar(op scalarOp, lhs *Tensor, rhs float64) (*Tensor, error) {
	if lhs.CanMut() {
		set := newScalarSet(op, lhs, rhs)
		defer set.scratch.release()
		if err := lhs.client.ExecuteAutotune(set); err != nil {
			if set.result == nil {
				_ = lhs.Release()
			}
			return nil, fmt.Errorf("%s: %w", op.name, err)
		}
		return set.result, nil
	}

	out, err := lhs.client.Empty(lhs.shape.NumElements())
	if err != nil {
		return nil, err
	}
	if err := lhs.client.Execute(op.directKernel(rhs), lhs.handle, out); err != nil {
		_ = lhs.client.Free(out)
		return nil, fmt.Errorf("%s: %w", op.name, err)
	}
	result := newTensor(lhs.client, lhs.shape, out)
	return result, lhs.Release()
}

// Kernels lists the names of every kernel this package can dispatch. It is
// part of the cache checksum so a changed kernel set invalidates persisted
// winners.
func Kernels() []string {
	names := []string{fillKernel(0).name, copyKernel.name}
	for _, op := range []binaryOp{opAdd, opSub, opMul, opDiv} {
		names = append(names, op.directKernel().name, op.inplaceKernel().name)
	}
	for _, op := range []scalarOp{opAddScalar, opSubScalar, opMulScalar, opDivScalar} {
		names = append(names, op.directKernel(0).name, op.inplaceKernel(0).name)
	}
	return names
}

// Warmup autotunes every operation for shape on client, with both operands
// owned by the caller, so later calls of that form run the cached winner.
func Warmup(client compute.Client, shape Shape) error {
	for _, op := range []binaryOp{opAdd, opSub, opMul, opDiv} {
		fn := func(a, b *Tensor) (*Tensor, error) { return binary(op, a, b) }
		if err := warmupBinary(client, shape, fn); err != nil {
			return fmt.Errorf("warmup %s: %w", op.name, err)
		}
	}
	for _, op := range []scalarOp{opAddScalar, opSubScalar, opMulScalar, opDivScalar} {
		fn := func(a *Tensor, v float64) (*Tensor, error) { return scalar(op, a, v) }
		if err := warmupScalar(client, shape, fn); err != nil {
			return fmt.Errorf("warmup %s: %w", op.name, err)
		}
	}
	return nil
}

func warmupBinary(client compute.Client, shape Shape, fn func(a, b *Tensor) (*Tensor, error)) error {
	a, err := Ones(client, shape)
	if err != nil {
		return err
	}
	b, err := Ones(client, shape)
	if err != nil {
		_ = a.Release()
		return err
	}
	out, err := fn(a, b)
	if err != nil {
		return err
	}
	return out.Release()
}

func warmupScalar(client compute.Client, shape Shape, fn func(a *Tensor, v float64) (*Tensor, error)) error {
	a, err := Ones(client, shape)
	if err != nil {
		return err
	}
	out, err := fn(a, 2)
	if err != nil {
		return err
	}
	return out.Release()
}
