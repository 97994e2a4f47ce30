package compute

import (
	"fmt"
	"sync"

	"github.com/fxnlabs/autotune/internal/metrics"
	"github.com/fxnlabs/autotune/internal/tune"
)

// Properties are context-invariant limits shared by every clone of a client.
type Properties struct {
	// MaxBufferElements caps a single allocation. Zero means no limit.
	MaxBufferElements int
}

type sharedTuner struct {
	mu    sync.Mutex
	tuner *tune.Tuner
}

// Client is a cheap handle over a Channel. Copies and clones share the
// channel, the tuner and the properties; no device state is ever duplicated.
// Candidate operations and the benchmark harness both dispatch through a
// Client so timing covers the production path.
type Client struct {
	channel Channel
	tuner   *sharedTuner
	props   Properties
}

// NewClient bundles a channel with the tuner owned by this compute context.
func NewClient(channel Channel, tuner *tune.Tuner, props Properties) Client {
	return Client{
		channel: channel,
		tuner:   &sharedTuner{tuner: tuner},
		props:   props,
	}
}

// Clone returns a handle sharing everything with c.
func (c Client) Clone() Client {
	return c
}

func (c Client) Properties() Properties {
	return c.props
}

func (c Client) Strategy() Strategy {
	return c.channel.Strategy()
}

// Tuner returns the tuner of this compute context, or nil.
func (c Client) Tuner() *tune.Tuner {
	if c.tuner == nil {
		return nil
	}
	return c.tuner.tuner
}

func (c Client) checkSize(size int) error {
	if size < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if c.props.MaxBufferElements > 0 && size > c.props.MaxBufferElements {
		return fmt.Errorf("%w: %d > %d elements", ErrBufferTooLarge, size, c.props.MaxBufferElements)
	}
	return nil
}

// Create allocates a device buffer holding data.
func (c Client) Create(data []float64) (Handle, error) {
	if err := c.checkSize(len(data)); err != nil {
		return Handle{}, err
	}
	h, err := c.channel.Create(data)
	if err != nil {
		return Handle{}, err
	}
	c.reportMemory()
	return h, nil
}

// Empty allocates a zeroed device buffer of size elements.
func (c Client) Empty(size int) (Handle, error) {
	if err := c.checkSize(size); err != nil {
		return Handle{}, err
	}
	h, err := c.channel.Empty(size)
	if err != nil {
		return Handle{}, err
	}
	c.reportMemory()
	return h, nil
}

// Read copies a buffer back to the host.
func (c Client) Read(h Handle) ([]float64, error) {
	return c.channel.Read(h)
}

// Execute dispatches a kernel against handles.
func (c Client) Execute(kernel Kernel, handles ...Handle) error {
	if kernel == nil {
		return ErrNilKernel
	}
	metrics.ComputeDispatches.WithLabelValues(kernel.Name(), c.channel.Strategy().String()).Inc()
	return c.channel.Execute(kernel, handles)
}

// Free releases a buffer.
func (c Client) Free(h Handle) error {
	if err := c.channel.Free(h); err != nil {
		return err
	}
	c.reportMemory()
	return nil
}

// Sync blocks until all previously dispatched work has completed.
func (c Client) Sync() error {
	return c.channel.Sync()
}

func (c Client) Info() DeviceInfo {
	return c.channel.Info()
}

func (c Client) MemoryUsage() int64 {
	return c.channel.MemoryUsage()
}

// ExecuteAutotune runs the fastest operation of set, benchmarking the
// candidates through this client the first time the set's key is seen.
// Calls from clones of the same client are serialised. Operations of the set
// must not call ExecuteAutotune themselves.
func (c Client) ExecuteAutotune(set tune.OperationSet) error {
	if c.tuner == nil || c.tuner.tuner == nil {
		return ErrNoTuner
	}
	c.tuner.mu.Lock()
	defer c.tuner.mu.Unlock()
	return c.tuner.tuner.Execute(set, c)
}

// WithTunerCache runs fn with exclusive access to the tuner's cache, for
// management operations such as persistence and invalidation.
func (c Client) WithTunerCache(fn func(cache *tune.Cache)) error {
	if c.tuner == nil || c.tuner.tuner == nil {
		return ErrNoTuner
	}
	c.tuner.mu.Lock()
	defer c.tuner.mu.Unlock()
	cache := c.tuner.tuner.Cache()
	fn(cache)
	metrics.TuneCacheEntries.Set(float64(cache.Len()))
	return nil
}

func (c Client) reportMemory() {
	metrics.ComputeMemoryUsedBytes.Set(float64(c.channel.MemoryUsage()))
}
