package elementwise

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/tune"
)

func benchClient(b *testing.B, strategy compute.Strategy) compute.Client {
	channel, err := compute.NewChannel(strategy, compute.NewCPUServer(zap.NewNop()))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { channel.Close() })
	return compute.NewClient(channel, tune.NewTuner(tune.DefaultOptions(), zap.NewNop()), compute.Properties{})
}

func BenchmarkAdd(b *testing.B) {
	sizes := []int{1 << 10, 1 << 14, 1 << 18}
	strategies := []compute.Strategy{compute.StrategyDirect, compute.StrategyMutex, compute.StrategyWorker}

	for _, strategy := range strategies {
		for _, size := range sizes {
			b.Run(fmt.Sprintf("%s/size_%d", strategy, size), func(b *testing.B) {
				client := benchClient(b, strategy)
				shape := Shape{size}

				// First call pays for the autotune pass
				if err := Warmup(client, shape); err != nil {
					b.Fatal(err)
				}

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					b.StopTimer()
					x, err := Ones(client, shape)
					if err != nil {
						b.Fatal(err)
					}
					y, err := Ones(client, shape)
					if err != nil {
						b.Fatal(err)
					}
					b.StartTimer()

					out, err := Add(x, y)
					if err != nil {
						b.Fatal(err)
					}

					b.StopTimer()
					if err := out.Release(); err != nil {
						b.Fatal(err)
					}
					b.StartTimer()
				}

				seconds := b.Elapsed().Seconds()
				b.ReportMetric(float64(size*8*3*b.N)/seconds/1e9, "GB/s")
			})
		}
	}
}

func BenchmarkAutotunePass(b *testing.B) {
	client := benchClient(b, compute.StrategyMutex)
	shape := Shape{1 << 12}

	for i := 0; i < b.N; i++ {
		if err := client.WithTunerCache(func(c *tune.Cache) { c.Clear() }); err != nil {
			b.Fatal(err)
		}
		if err := Warmup(client, shape); err != nil {
			b.Fatal(err)
		}
	}
}
