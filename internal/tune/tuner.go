package tune

import (
	"fmt"
	"time"

	"github.com/fxnlabs/autotune/internal/metrics"
	"go.uber.org/zap"
)

// Options control how candidates are benchmarked.
type Options struct {
	// Warmup is the number of untimed runs before sampling.
	Warmup int
	// Samples is the number of timed runs per candidate.
	Samples int
	// SkipFailedCandidates excludes a failing candidate from selection
	// instead of aborting the whole pass.
	SkipFailedCandidates bool
	// Now overrides the clock used for timing. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Warmup:  DefaultWarmup,
		Samples: DefaultSamples,
	}
}

// Tuner executes autotune benchmarking and caching for one compute context.
// It is single-owner state: callers sharing a tuner between goroutines must
// serialise calls to Execute.
type Tuner struct {
	cache *Cache
	opts  Options
	log   *zap.Logger
}

// NewTuner returns a tuner with an empty cache.
func NewTuner(opts Options, log *zap.Logger) *Tuner {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	if opts.Warmup < 0 {
		opts.Warmup = 0
	}
	return &Tuner{
		cache: NewCache(),
		opts:  opts,
		log:   log.Named("tuner"),
	}
}

// Cache exposes the tuner's cache to management collaborators (persistence,
// invalidation). It must not be mutated concurrently with Execute.
func (t *Tuner) Cache() *Cache {
	return t.cache
}

// Options returns the benchmarking options in effect.
func (t *Tuner) Options() Options {
	return t.opts
}

// Execute runs the fastest operation of set, benchmarking every candidate on
// device first if the set's key has not been seen.
func (t *Tuner) Execute(set OperationSet, device Device) error {
	var operation Operation
	result := t.cache.TryCache(set)
	if result.Hit {
		metrics.TuneCacheLookups.WithLabelValues("hit").Inc()
		operation = result.Operation
	} else {
		metrics.TuneCacheLookups.WithLabelValues("miss").Inc()
		var err error
		operation, err = t.autotune(result.Set, device)
		if err != nil {
			return err
		}
	}

	if operation == nil {
		return fmt.Errorf("%w (key %s)", ErrNoFastest, set.Key())
	}
	return operation.Execute()
}

type candidateResult struct {
	name      string
	durations Durations
	err       error
}

func (t *Tuner) autotune(set OperationSet, device Device) (Operation, error) {
	key := set.Key()
	autotunables := set.Autotunables()
	if len(autotunables) == 0 {
		t.log.Error("autotune contract violated", zap.Stringer("key", key), zap.Error(ErrEmptyOperationSet))
		return nil, fmt.Errorf("%w (key %s)", ErrEmptyOperationSet, key)
	}

	metrics.TuneBenchmarkPasses.Inc()
	results := make([]candidateResult, 0, len(autotunables))
	for _, op := range autotunables {
		name := op.Name()
		durations, err := t.runBenchmark(op, device)
		if err != nil {
			metrics.TuneBenchmarkFailures.WithLabelValues(name).Inc()
			if !t.opts.SkipFailedCandidates {
				return nil, fmt.Errorf("benchmark %s-%s: %w", name, key, err)
			}
			t.log.Warn("Benchmark failed, excluding candidate",
				zap.String("candidate", fmt.Sprintf("%s-%s", name, key)),
				zap.Error(err))
		}
		results = append(results, candidateResult{name: name, durations: durations, err: err})
	}

	for _, r := range results {
		if r.err != nil {
			continue
		}
		metrics.TuneCandidateMedian.WithLabelValues(r.name).Observe(r.durations.Median().Seconds())
		t.log.Info(fmt.Sprintf("Benchmark result %s-%s => %s", r.name, key, r.durations),
			zap.Duration("median", r.durations.Median()))
	}

	fastest, ok := findFastest(results)
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, ErrNoViableCandidate)
	}
	fastestName := results[fastest].name
	t.log.Info(fmt.Sprintf("Fastest result %s-%s", fastestName, key), zap.Int("index", fastest))
	metrics.TuneWinners.WithLabelValues(fastestName).Inc()

	t.cache.Insert(key, fastest)
	metrics.TuneCacheEntries.Set(float64(t.cache.Len()))

	result := t.cache.TryCache(set)
	if !result.Hit {
		t.log.Error("autotune contract violated", zap.Stringer("key", key), zap.Error(ErrCacheInconsistent))
		return nil, fmt.Errorf("%w (key %s)", ErrCacheInconsistent, key)
	}
	return result.Operation, nil
}

func (t *Tuner) runBenchmark(op Operation, device Device) (Durations, error) {
	return Benchmark{
		Operation: op,
		Device:    device,
		Warmup:    t.opts.Warmup,
		Samples:   t.opts.Samples,
		Now:       t.opts.Now,
	}.Run()
}

// findFastest returns the index of the smallest median among successful
// candidates. Ties go to the lowest index.
func findFastest(results []candidateResult) (int, bool) {
	fastest := -1
	var smallest time.Duration
	for i, r := range results {
		if r.err != nil {
			continue
		}
		median := r.durations.Median()
		if fastest < 0 || median < smallest {
			smallest = median
			fastest = i
		}
	}
	return fastest, fastest >= 0
}
