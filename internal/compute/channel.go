package compute

import (
	"fmt"
	"strings"
)

// Channel wraps exactly one Server and exposes the same operations under a
// concurrency strategy. Every strategy has identical semantics; only latency
// and throughput differ.
type Channel interface {
	Create(data []float64) (Handle, error)
	Empty(size int) (Handle, error)
	Read(h Handle) ([]float64, error)
	Execute(kernel Kernel, handles []Handle) error
	Free(h Handle) error
	Sync() error
	Info() DeviceInfo
	MemoryUsage() int64

	// Strategy reports how the channel shares its server.
	Strategy() Strategy

	// Close stops the channel. The wrapped server is not released.
	Close() error
}

// Strategy selects how a Channel shares its Server between goroutines.
type Strategy int

const (
	// StrategyDirect calls the server on the caller's goroutine without
	// locking. Only one goroutine may use the channel.
	StrategyDirect Strategy = iota
	// StrategyMutex guards every call with a mutex.
	StrategyMutex
	// StrategyWorker hands every call to a dedicated goroutine pinned to one
	// OS thread, for device contexts that must be driven from a single thread.
	StrategyWorker
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyMutex:
		return "mutex"
	case StrategyWorker:
		return "worker"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "direct":
		return StrategyDirect, nil
	case "", "mutex":
		return StrategyMutex, nil
	case "worker", "mpsc":
		return StrategyWorker, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// NewChannel wraps server with the given strategy.
func NewChannel(strategy Strategy, server Server) (Channel, error) {
	switch strategy {
	case StrategyDirect:
		return newDirectChannel(server), nil
	case StrategyMutex:
		return newMutexChannel(server), nil
	case StrategyWorker:
		return newWorkerChannel(server), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
}
