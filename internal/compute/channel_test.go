package compute

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"direct": StrategyDirect,
		"mutex":  StrategyMutex,
		"":       StrategyMutex,
		"Worker": StrategyWorker,
		"mpsc":   StrategyWorker,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("carrier-pigeon")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, "worker", StrategyWorker.String())
	assert.Equal(t, "Strategy(9)", Strategy(9).String())

	_, err = NewChannel(Strategy(9), NewCPUServer(nil))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestChannel_Strategies(t *testing.T) {
	for _, strategy := range []Strategy{StrategyDirect, StrategyMutex, StrategyWorker} {
		t.Run(strategy.String(), func(t *testing.T) {
			channel, err := NewChannel(strategy, NewCPUServer(zap.NewNop()))
			require.NoError(t, err)
			defer channel.Close()
			assert.Equal(t, strategy, channel.Strategy())

			a, err := channel.Create([]float64{1, 2})
			require.NoError(t, err)
			b, err := channel.Create([]float64{3, 4})
			require.NoError(t, err)
			out, err := channel.Empty(2)
			require.NoError(t, err)

			require.NoError(t, channel.Execute(addInto, []Handle{a, b, out}))
			require.NoError(t, channel.Sync())
			got, err := channel.Read(out)
			require.NoError(t, err)
			assert.Equal(t, []float64{4, 6}, got)

			assert.Equal(t, int64(6*8), channel.MemoryUsage())
			require.NoError(t, channel.Free(b))
			assert.ErrorIs(t, channel.Free(b), ErrUnknownHandle)
			assert.Equal(t, "cpu", channel.Info().Backend)
		})
	}
}

func TestChannel_ConcurrentAccess(t *testing.T) {
	for _, strategy := range []Strategy{StrategyMutex, StrategyWorker} {
		t.Run(strategy.String(), func(t *testing.T) {
			channel, err := NewChannel(strategy, NewCPUServer(zap.NewNop()))
			require.NoError(t, err)
			defer channel.Close()

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(v float64) {
					defer wg.Done()
					h, err := channel.Create([]float64{v})
					assert.NoError(t, err)
					got, err := channel.Read(h)
					assert.NoError(t, err)
					assert.Equal(t, []float64{v}, got)
					assert.NoError(t, channel.Free(h))
				}(float64(i))
			}
			wg.Wait()
			assert.Zero(t, channel.MemoryUsage())
		})
	}
}

func TestWorkerChannel_Close(t *testing.T) {
	channel, err := NewChannel(StrategyWorker, NewCPUServer(nil))
	require.NoError(t, err)

	require.NoError(t, channel.Close())
	require.NoError(t, channel.Close())

	_, err = channel.Create([]float64{1})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, channel.Sync(), ErrChannelClosed)
}
