package elementwise

import (
	"fmt"
	"math/rand/v2"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/tune"
)

const (
	variantDirect     = "direct"
	variantInplaceLHS = "inplace_lhs"
	variantInplaceRHS = "inplace_rhs"
)

// kernelOp is one autotune candidate: a kernel dispatched through a client.
// When alloc is set it allocates a fresh output buffer of that size and
// appends it to the inputs; otherwise it writes into inputs[output].
// done receives the output buffer after a successful dispatch. prepare, when
// set, restores the inputs before a timed run.
type kernelOp struct {
	tune.Once
	name    string
	client  compute.Client
	kernel  compute.Kernel
	inputs  func() ([]compute.Handle, error)
	alloc   int
	output  int
	done    func(out compute.Handle) error
	prepare func() error
}

func (o *kernelOp) Name() string {
	return o.name
}

func (o *kernelOp) Prepare() error {
	if o.prepare == nil {
		return nil
	}
	return o.prepare()
}

func (o *kernelOp) Execute() error {
	if err := o.Consume(); err != nil {
		return err
	}
	inputs, err := o.inputs()
	if err != nil {
		return err
	}

	handles := append([]compute.Handle(nil), inputs...)
	var out compute.Handle
	if o.alloc > 0 {
		out, err = o.client.Empty(o.alloc)
		if err != nil {
			return err
		}
		handles = append(handles, out)
	} else {
		out = inputs[o.output]
	}

	if err := o.client.Execute(o.kernel, handles...); err != nil {
		if o.alloc > 0 {
			_ = o.client.Free(out)
		}
		return err
	}
	if o.done == nil {
		return nil
	}
	return o.done(out)
}

func (o *kernelOp) Clone() tune.Operation {
	return &kernelOp{
		name:    o.name,
		client:  o.client,
		kernel:  o.kernel,
		inputs:  o.inputs,
		alloc:   o.alloc,
		output:  o.output,
		done:    o.done,
		prepare: o.prepare,
	}
}

// scratch holds random throwaway inputs for timing runs. Buffers are created
// on first use so a cache hit never allocates them. In-place candidates
// overwrite the working buffers, so reset copies the pristine values back
// before each timed run and repeated samples see the same inputs.
type scratch struct {
	client   compute.Client
	size     int
	count    int
	pristine []compute.Handle
	handles  []compute.Handle
	err      error
}

func (s *scratch) get() ([]compute.Handle, error) {
	if s.handles != nil || s.err != nil {
		return s.handles, s.err
	}
	for i := 0; i < s.count; i++ {
		data := make([]float64, s.size)
		for j := range data {
			// keep values away from zero so division stays finite
			data[j] = 1 + rand.Float64()
		}
		p, err := s.client.Create(data)
		if err != nil {
			return nil, s.fail(err)
		}
		s.pristine = append(s.pristine, p)
		h, err := s.client.Create(data)
		if err != nil {
			return nil, s.fail(err)
		}
		s.handles = append(s.handles, h)
	}
	return s.handles, nil
}

func (s *scratch) fail(err error) error {
	s.release()
	s.err = fmt.Errorf("allocate autotune scratch: %w", err)
	return s.err
}

// reset restores every working buffer from its pristine copy.
func (s *scratch) reset() error {
	handles, err := s.get()
	if err != nil {
		return err
	}
	for i, h := range handles {
		if err := s.client.Execute(copyKernel, s.pristine[i], h); err != nil {
			return fmt.Errorf("reset autotune scratch: %w", err)
		}
	}
	return nil
}

func (s *scratch) release() {
	for _, h := range s.handles {
		_ = s.client.Free(h)
	}
	for _, h := range s.pristine {
		_ = s.client.Free(h)
	}
	s.handles = nil
	s.pristine = nil
}

func fixed(handles ...compute.Handle) func() ([]compute.Handle, error) {
	return func() ([]compute.Handle, error) { return handles, nil }
}

func swapped(inputs func() ([]compute.Handle, error)) func() ([]compute.Handle, error) {
	return func() ([]compute.Handle, error) {
		h, err := inputs()
		if err != nil {
			return nil, err
		}
		return []compute.Handle{h[1], h[0]}, nil
	}
}

// binarySet chooses between writing lhs op rhs into a new buffer and
// updating one operand in place.
type binarySet struct {
	op       binaryOp
	lhs, rhs *Tensor
	variants []string
	scratch  *scratch
	result   *Tensor
}

func newBinarySet(op binaryOp, lhs, rhs *Tensor) *binarySet {
	variants := []string{variantDirect, variantInplaceLHS}
	if op.commutative && rhs.CanMut() {
		variants = append(variants, variantInplaceRHS)
	}
	return &binarySet{
		op:       op,
		lhs:      lhs,
		rhs:      rhs,
		variants: variants,
		scratch:  &scratch{client: lhs.client, size: lhs.shape.NumElements(), count: 2},
	}
}

func (s *binarySet) Key() tune.Key {
	return operationKey(s.op.name, s.variants, s.lhs.shape)
}

func (s *binarySet) Autotunables() []tune.Operation {
	ops := make([]tune.Operation, len(s.variants))
	for i, v := range s.variants {
		op := s.build(v, s.scratch.get, func(out compute.Handle) error {
			if v == variantDirect {
				return s.lhs.client.Free(out)
			}
			return nil
		})
		op.prepare = s.scratch.reset
		ops[i] = op
	}
	return ops
}

func (s *binarySet) Fastest(index int) tune.Operation {
	if index < 0 || index >= len(s.variants) {
		return nil
	}
	v := s.variants[index]
	return s.build(v, fixed(s.lhs.handle, s.rhs.handle), func(out compute.Handle) error {
		switch v {
		case variantInplaceLHS:
			if err := s.rhs.Release(); err != nil {
				return err
			}
			s.result = s.lhs
			return nil
		case variantInplaceRHS:
			if err := s.lhs.Release(); err != nil {
				return err
			}
			s.result = s.rhs
			return nil
		default:
			if err := releaseAll(s.lhs, s.rhs); err != nil {
				_ = s.lhs.client.Free(out)
				return err
			}
			s.result = newTensor(s.lhs.client, s.lhs.shape, out)
			return nil
		}
	})
}

func (s *binarySet) build(variant string, inputs func() ([]compute.Handle, error), done func(compute.Handle) error) *kernelOp {
	op := &kernelOp{
		name:   fmt.Sprintf("%s_%s", s.op.name, variant),
		client: s.lhs.client,
		inputs: inputs,
		done:   done,
	}
	switch variant {
	case variantDirect:
		op.kernel = s.op.directKernel()
		op.alloc = s.lhs.shape.NumElements()
	case variantInplaceLHS:
		op.kernel = s.op.inplaceKernel()
	case variantInplaceRHS:
		op.kernel = s.op.inplaceKernel()
		op.inputs = swapped(inputs)
	}
	return op
}

// scalarSet chooses between writing lhs op rhs into a new buffer and
// updating lhs in place.
type scalarSet struct {
	op      scalarOp
	lhs     *Tensor
	rhs     float64
	scratch *scratch
	result  *Tensor
}

var scalarVariants = []string{variantDirect, variantInplaceLHS}

func newScalarSet(op scalarOp, lhs *Tensor, rhs float64) *scalarSet {
	return &scalarSet{
		op:      op,
		lhs:     lhs,
		rhs:     rhs,
		scratch: &scratch{client: lhs.client, size: lhs.shape.NumElements(), count: 1},
	}
}

func (s *scalarSet) Key() tune.Key {
	return operationKey(s.op.name, scalarVariants, s.lhs.shape)
}

func (s *scalarSet) Autotunables() []tune.Operation {
	ops := make([]tune.Operation, len(scalarVariants))
	for i, v := range scalarVariants {
		op := s.build(v, s.scratch.get, func(out compute.Handle) error {
			if v == variantDirect {
				return s.lhs.client.Free(out)
			}
			return nil
		})
		op.prepare = s.scratch.reset
		ops[i] = op
	}
	return ops
}

func (s *scalarSet) Fastest(index int) tune.Operation {
	if index < 0 || index >= len(scalarVariants) {
		return nil
	}
	v := scalarVariants[index]
	return s.build(v, fixed(s.lhs.handle), func(out compute.Handle) error {
		if v == variantInplaceLHS {
			s.result = s.lhs
			return nil
		}
		if err := s.lhs.Release(); err != nil {
			_ = s.lhs.client.Free(out)
			return err
		}
		s.result = newTensor(s.lhs.client, s.lhs.shape, out)
		return nil
	})
}

func (s *scalarSet) build(variant string, inputs func() ([]compute.Handle, error), done func(compute.Handle) error) *kernelOp {
	op := &kernelOp{
		name:   fmt.Sprintf("%s_%s", s.op.name, variant),
		client: s.lhs.client,
		inputs: inputs,
		done:   done,
	}
	if variant == variantDirect {
		op.kernel = s.op.directKernel(s.rhs)
		op.alloc = s.lhs.shape.NumElements()
	} else {
		op.kernel = s.op.inplaceKernel(s.rhs)
	}
	return op
}

func operationKey(name string, variants []string, shape Shape) tune.Key {
	key := name
	for _, v := range variants {
		key += "-" + v
	}
	return tune.Key(fmt.Sprintf("%s-%s-f64", key, shape))
}

func releaseAll(tensors ...*Tensor) error {
	var first error
	for _, t := range tensors {
		if err := t.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
