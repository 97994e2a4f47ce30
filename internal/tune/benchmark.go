package tune

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultWarmup  = 1
	DefaultSamples = 10
)

// Device is the part of the compute client the harness needs: a full
// synchronisation point after each run.
type Device interface {
	Sync() error
}

// Durations holds the wall-clock samples of one candidate.
type Durations struct {
	samples []time.Duration
}

// NewDurations wraps a non-empty sample set.
func NewDurations(samples []time.Duration) (Durations, error) {
	if len(samples) == 0 {
		return Durations{}, ErrNoSamples
	}
	s := make([]time.Duration, len(samples))
	copy(s, samples)
	return Durations{samples: s}, nil
}

// Samples returns a copy of the raw samples in measurement order.
func (d Durations) Samples() []time.Duration {
	out := make([]time.Duration, len(d.samples))
	copy(out, d.samples)
	return out
}

func (d Durations) Len() int {
	return len(d.samples)
}

func (d Durations) sortedNanos() []float64 {
	xs := make([]float64, len(d.samples))
	for i, s := range d.samples {
		xs[i] = float64(s)
	}
	sort.Float64s(xs)
	return xs
}

// Median is the comparison metric between candidates.
// For an even number of samples it is the lower of the two middle values.
func (d Durations) Median() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	return time.Duration(stat.Quantile(0.5, stat.Empirical, d.sortedNanos(), nil))
}

func (d Durations) Mean() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	return time.Duration(stat.Mean(d.sortedNanos(), nil))
}

func (d Durations) StdDev() time.Duration {
	if len(d.samples) < 2 {
		return 0
	}
	return time.Duration(stat.StdDev(d.sortedNanos(), nil))
}

func (d Durations) Min() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	return time.Duration(d.sortedNanos()[0])
}

func (d Durations) Max() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	xs := d.sortedNanos()
	return time.Duration(xs[len(xs)-1])
}

func (d Durations) String() string {
	return fmt.Sprintf("mean %s, median %s, stddev %s, min %s, max %s (%d samples)",
		d.Mean(), d.Median(), d.StdDev(), d.Min(), d.Max(), len(d.samples))
}

// Benchmark times one operation through a device.
// Every run executes a fresh clone and synchronises the device before the
// clock is read, so the sample covers completion rather than enqueue latency.
// Clones implementing Preparer are reset before the clock starts.
type Benchmark struct {
	Operation Operation
	Device    Device
	Warmup    int
	Samples   int
	Now       func() time.Time
}

// Run executes the warmup runs, then the timed runs.
// Any execution or synchronisation failure aborts the benchmark.
func (b Benchmark) Run() (Durations, error) {
	samples := b.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	for i := 0; i < b.Warmup; i++ {
		op, err := b.prepare()
		if err == nil {
			err = b.execute(op)
		}
		if err != nil {
			return Durations{}, fmt.Errorf("warmup: %w", err)
		}
	}

	measured := make([]time.Duration, 0, samples)
	for i := 0; i < samples; i++ {
		op, err := b.prepare()
		if err != nil {
			return Durations{}, err
		}
		start := now()
		if err := b.execute(op); err != nil {
			return Durations{}, err
		}
		measured = append(measured, now().Sub(start))
	}
	return NewDurations(measured)
}

// prepare clones the operation and resets its inputs, outside the timed
// region.
func (b Benchmark) prepare() (Operation, error) {
	op := b.Operation.Clone()
	p, ok := op.(Preparer)
	if !ok {
		return op, nil
	}
	if err := p.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := b.Device.Sync(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return op, nil
}

func (b Benchmark) execute(op Operation) error {
	if err := op.Execute(); err != nil {
		return err
	}
	if err := b.Device.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}
