package elementwise

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fxnlabs/autotune/internal/compute"
)

var (
	ErrShapeMismatch = errors.New("tensor shapes do not match")
	ErrDataSize      = errors.New("data length does not match shape")
	ErrReleased      = errors.New("tensor already released")
)

// Shape lists the dimensions of a tensor.
type Shape []int

// NumElements returns the product of all dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

// Tensor is a float64 tensor stored in a device buffer.
// Clones share the buffer; a tensor is mutable in place only while it is
// the buffer's sole owner. Each instance holds one reference and gives it up
// once, on its first Release.
type Tensor struct {
	client   compute.Client
	shape    Shape
	handle   compute.Handle
	refs     *atomic.Int32
	released atomic.Bool
}

func newTensor(client compute.Client, shape Shape, handle compute.Handle) *Tensor {
	refs := new(atomic.Int32)
	refs.Store(1)
	return &Tensor{client: client, shape: append(Shape(nil), shape...), handle: handle, refs: refs}
}

// FromData uploads data as a tensor of the given shape.
func FromData(client compute.Client, shape Shape, data []float64) (*Tensor, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrDataSize, len(data), shape)
	}
	h, err := client.Create(data)
	if err != nil {
		return nil, err
	}
	return newTensor(client, shape, h), nil
}

// Empty allocates a zeroed tensor.
func Empty(client compute.Client, shape Shape) (*Tensor, error) {
	h, err := client.Empty(shape.NumElements())
	if err != nil {
		return nil, err
	}
	return newTensor(client, shape, h), nil
}

// Full allocates a tensor with every element set to value.
func Full(client compute.Client, shape Shape, value float64) (*Tensor, error) {
	t, err := Empty(client, shape)
	if err != nil {
		return nil, err
	}
	if err := client.Execute(fillKernel(value), t.handle); err != nil {
		_ = t.Release()
		return nil, err
	}
	return t, nil
}

func Zeros(client compute.Client, shape Shape) (*Tensor, error) {
	return Full(client, shape, 0)
}

func Ones(client compute.Client, shape Shape) (*Tensor, error) {
	return Full(client, shape, 1)
}

func (t *Tensor) Shape() Shape {
	return append(Shape(nil), t.shape...)
}

func (t *Tensor) Client() compute.Client {
	return t.client
}

// Data reads the tensor back to host memory.
func (t *Tensor) Data() ([]float64, error) {
	if t.released.Load() {
		return nil, ErrReleased
	}
	return t.client.Read(t.handle)
}

// Clone returns a tensor sharing the same buffer. Neither copy can be
// mutated in place until the other is released. Cloning a released tensor
// returns another released tensor.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{client: t.client, shape: t.shape, handle: t.handle, refs: t.refs}
	if t.released.Load() {
		c.released.Store(true)
		return c
	}
	t.refs.Add(1)
	return c
}

// CanMut reports whether t is the sole owner of its buffer.
func (t *Tensor) CanMut() bool {
	return !t.released.Load() && t.refs.Load() == 1
}

// Release drops this instance's reference and frees the buffer with the last
// one. Releasing the same instance twice returns ErrReleased and leaves
// clones untouched.
func (t *Tensor) Release() error {
	if t.released.Swap(true) {
		return ErrReleased
	}
	if t.refs.Add(-1) == 0 {
		return t.client.Free(t.handle)
	}
	return nil
}
