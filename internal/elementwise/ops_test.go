package elementwise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/tune"
)

func newTestClient(t *testing.T) compute.Client {
	t.Helper()
	channel, err := compute.NewChannel(compute.StrategyMutex, compute.NewCPUServer(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { channel.Close() })
	return compute.NewClient(channel, tune.NewTuner(tune.Options{Warmup: 1, Samples: 3}, zap.NewNop()), compute.Properties{})
}

func tensor(t *testing.T, client compute.Client, data ...float64) *Tensor {
	t.Helper()
	x, err := FromData(client, Shape{len(data)}, data)
	require.NoError(t, err)
	return x
}

func read(t *testing.T, x *Tensor) []float64 {
	t.Helper()
	data, err := x.Data()
	require.NoError(t, err)
	return data
}

func TestBinaryOps(t *testing.T) {
	cases := []struct {
		name string
		fn   func(a, b *Tensor) (*Tensor, error)
		want []float64
	}{
		{"add", Add, []float64{9, 12, 15}},
		{"sub", Sub, []float64{-1, 0, 1}},
		{"mul", Mul, []float64{20, 36, 56}},
		{"div", Div, []float64{0.8, 1, 1.0 / 0.875}},
	}
	for _, tc := range cases {
		t.Run(tc.name+"/owned", func(t *testing.T) {
			client := newTestClient(t)
			out, err := tc.fn(tensor(t, client, 4, 6, 8), tensor(t, client, 5, 6, 7))
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, read(t, out), 1e-12)

			// the autotune pass ran and its scratch buffers are gone
			assert.Equal(t, 1, client.Tuner().Cache().Len())
			require.NoError(t, out.Release())
			assert.Zero(t, client.MemoryUsage())
		})

		t.Run(tc.name+"/shared", func(t *testing.T) {
			client := newTestClient(t)
			a := tensor(t, client, 4, 6, 8)
			b := tensor(t, client, 5, 6, 7)
			keepA, keepB := a.Clone(), b.Clone()

			out, err := tc.fn(a, b)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, read(t, out), 1e-12)

			// neither operand was mutable, so nothing was tuned or overwritten
			assert.Zero(t, client.Tuner().Cache().Len())
			assert.Equal(t, []float64{4, 6, 8}, read(t, keepA))
			assert.Equal(t, []float64{5, 6, 7}, read(t, keepB))
			assert.True(t, keepA.CanMut())

			require.NoError(t, releaseAll(out, keepA, keepB))
			assert.Zero(t, client.MemoryUsage())
		})
	}
}

func TestBinaryOps_CommutativeReusesRHS(t *testing.T) {
	client := newTestClient(t)
	a := tensor(t, client, 1, 2)
	keepA := a.Clone()
	b := tensor(t, client, 10, 20)

	out, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22}, read(t, out))
	assert.Equal(t, []float64{1, 2}, read(t, keepA))

	_, ok := client.Tuner().Cache().Lookup("add-direct-inplace_lhs-2-f64")
	assert.True(t, ok)

	require.NoError(t, releaseAll(out, keepA))
	assert.Zero(t, client.MemoryUsage())
}

func TestBinaryOps_SameTensorOnBothSides(t *testing.T) {
	client := newTestClient(t)
	a := tensor(t, client, 3, 4)

	out, err := Mul(a, a)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 16}, read(t, out))
	require.NoError(t, out.Release())
	assert.Zero(t, client.MemoryUsage())
}

func TestBinaryOps_ShapeMismatch(t *testing.T) {
	client := newTestClient(t)
	_, err := Add(tensor(t, client, 1, 2), tensor(t, client, 1, 2, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestScalarOps(t *testing.T) {
	cases := []struct {
		name string
		fn   func(a *Tensor, v float64) (*Tensor, error)
		want []float64
	}{
		{"add_scalar", AddScalar, []float64{3, 4, 6}},
		{"sub_scalar", SubScalar, []float64{-1, 0, 2}},
		{"mul_scalar", MulScalar, []float64{2, 4, 8}},
		{"div_scalar", DivScalar, []float64{0.5, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t)

			out, err := tc.fn(tensor(t, client, 1, 2, 4), 2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, read(t, out))
			assert.Equal(t, 1, client.Tuner().Cache().Len())

			a := tensor(t, client, 1, 2, 4)
			keep := a.Clone()
			shared, err := tc.fn(a, 2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, read(t, shared))
			assert.Equal(t, []float64{1, 2, 4}, read(t, keep))

			require.NoError(t, releaseAll(out, shared, keep))
			assert.Zero(t, client.MemoryUsage())
		})
	}
}

func TestOps_ReplayCachedWinner(t *testing.T) {
	client := newTestClient(t)
	shape := Shape{2, 2}
	key := tune.Key("sub-direct-inplace_lhs-2x2-f64")

	for i := 0; i < 3; i++ {
		a, err := Full(client, shape, 5)
		require.NoError(t, err)
		b, err := Ones(client, shape)
		require.NoError(t, err)
		out, err := Sub(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 4, 4, 4}, read(t, out))
		require.NoError(t, out.Release())
	}

	entries := client.Tuner().Cache().Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries, key)
	assert.Zero(t, client.MemoryUsage())
}

func TestOperationSets(t *testing.T) {
	client := newTestClient(t)

	t.Run("binary set order is stable per key", func(t *testing.T) {
		a, b := tensor(t, client, 1, 2), tensor(t, client, 3, 4)
		set := newBinarySet(opAdd, a, b)
		defer set.scratch.release()

		assert.Equal(t, tune.Key("add-direct-inplace_lhs-inplace_rhs-2-f64"), set.Key())
		first := set.Autotunables()
		second := set.Autotunables()
		require.Len(t, first, 3)
		for i := range first {
			assert.Equal(t, first[i].Name(), second[i].Name())
		}
		assert.Equal(t, "add_direct", first[0].Name())
		assert.Equal(t, "add_inplace_rhs", first[2].Name())
		assert.Nil(t, set.Fastest(3))
		assert.Nil(t, set.Fastest(-1))
		require.NoError(t, releaseAll(a, b))
	})

	t.Run("timing candidates never touch the real operands", func(t *testing.T) {
		a, b := tensor(t, client, 1, 2), tensor(t, client, 3, 4)
		set := newBinarySet(opSub, a, b)
		for _, op := range set.Autotunables() {
			require.NoError(t, op.Execute())
			assert.ErrorIs(t, op.Execute(), tune.ErrOperationConsumed)
		}
		set.scratch.release()
		assert.Equal(t, []float64{1, 2}, read(t, a))
		assert.Equal(t, []float64{3, 4}, read(t, b))
		assert.Nil(t, set.result)
		require.NoError(t, releaseAll(a, b))
	})

	t.Run("scalar set key", func(t *testing.T) {
		a := tensor(t, client, 1)
		set := newScalarSet(opDivScalar, a, 3)
		assert.Equal(t, tune.Key("div_scalar-direct-inplace_lhs-1-f64"), set.Key())
		assert.Len(t, set.Autotunables(), 2)
		assert.Nil(t, set.Fastest(2))
		set.scratch.release()
		require.NoError(t, a.Release())
	})

	assert.Zero(t, client.MemoryUsage())
}

func TestWarmup(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, Warmup(client, Shape{8}))
	assert.Equal(t, 8, client.Tuner().Cache().Len())
	assert.Zero(t, client.MemoryUsage())

	assert.Len(t, Kernels(), 18)
}

func readHandles(t *testing.T, client compute.Client, handles []compute.Handle) [][]float64 {
	t.Helper()
	out := make([][]float64, len(handles))
	for i, h := range handles {
		data, err := client.Read(h)
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func assertNormal(t *testing.T, values []float64) {
	t.Helper()
	for _, v := range values {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "value %g is not finite", v)
		assert.GreaterOrEqual(t, math.Abs(v), 0x1p-1022, "value %g is subnormal", v)
	}
}

func TestAutotunables_RepeatedSamplesSeeSameInputs(t *testing.T) {
	const samples = 2000
	client := newTestClient(t)

	binaryCases := []struct {
		op   binaryOp
		want func(l, r float64) float64
	}{
		{opAdd, func(l, r float64) float64 { return l + r }},
		{opSub, func(l, r float64) float64 { return l - r }},
		{opMul, func(l, r float64) float64 { return l * r }},
		{opDiv, func(l, r float64) float64 { return l / r }},
	}
	for _, tc := range binaryCases {
		t.Run(tc.op.name, func(t *testing.T) {
			a, b := tensor(t, client, 1, 2), tensor(t, client, 3, 4)
			set := newBinarySet(tc.op, a, b)
			defer set.scratch.release()

			inplace := set.Autotunables()[1]
			require.Equal(t, tc.op.name+"_inplace_lhs", inplace.Name())
			_, err := tune.Benchmark{Operation: inplace, Device: client, Warmup: 1, Samples: samples}.Run()
			require.NoError(t, err)

			pristine := readHandles(t, client, set.scratch.pristine)
			working := readHandles(t, client, set.scratch.handles)
			for i, v := range working[0] {
				assert.InDelta(t, tc.want(pristine[0][i], pristine[1][i]), v, 1e-12)
			}
			assertNormal(t, working[0])
			assert.Equal(t, pristine[1], working[1])
			require.NoError(t, releaseAll(a, b))
		})
	}

	scalarCases := []struct {
		op   scalarOp
		rhs  float64
		want func(l float64) float64
	}{
		{opMulScalar, 2, func(l float64) float64 { return l * 2 }},
		{opDivScalar, 3, func(l float64) float64 { return l / 3 }},
	}
	for _, tc := range scalarCases {
		t.Run(tc.op.name, func(t *testing.T) {
			a := tensor(t, client, 1, 2)
			set := newScalarSet(tc.op, a, tc.rhs)
			defer set.scratch.release()

			inplace := set.Autotunables()[1]
			_, err := tune.Benchmark{Operation: inplace, Device: client, Samples: samples}.Run()
			require.NoError(t, err)

			pristine := readHandles(t, client, set.scratch.pristine)
			working := readHandles(t, client, set.scratch.handles)
			for i, v := range working[0] {
				assert.InDelta(t, tc.want(pristine[0][i]), v, 1e-12)
			}
			assertNormal(t, working[0])
			require.NoError(t, a.Release())
		})
	}

	assert.Zero(t, client.MemoryUsage())
}

func TestFastest_FreesOutputWhenOperandReleaseFails(t *testing.T) {
	client := newTestClient(t)

	t.Run("binary", func(t *testing.T) {
		a := tensor(t, client, 1, 2)
		owner := tensor(t, client, 3, 4)
		// b has already given up its reference; owner keeps the buffer alive
		b := owner.Clone()
		require.NoError(t, b.Release())

		set := newBinarySet(opAdd, a, b)
		assert.ErrorIs(t, set.Fastest(0).Execute(), ErrReleased)
		assert.Nil(t, set.result)
		require.NoError(t, owner.Release())
	})

	t.Run("scalar", func(t *testing.T) {
		owner := tensor(t, client, 3, 4)
		b := owner.Clone()
		require.NoError(t, b.Release())

		set := newScalarSet(opAddScalar, b, 1)
		assert.ErrorIs(t, set.Fastest(0).Execute(), ErrReleased)
		assert.Nil(t, set.result)
		require.NoError(t, owner.Release())
	})

	assert.Zero(t, client.MemoryUsage())
}
