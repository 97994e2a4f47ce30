package tune

import "sync/atomic"

// Key fingerprints a problem instance (operation, shape, dtype, backend).
// Equal keys share one cached winner.
type Key string

func (k Key) String() string {
	return string(k)
}

// Operation is one candidate strategy bound to its inputs.
//
// An operation is one-shot: Execute dispatches it through the client it was
// built with and consumes it. Executing a consumed operation returns
// ErrOperationConsumed and dispatches nothing. Clone returns a fresh,
// unconsumed operation bound to the same inputs; the benchmark harness uses
// it to take repeated samples.
type Operation interface {
	Name() string
	Execute() error
	Clone() Operation
}

// Preparer is implemented by timing operations whose inputs must be reset
// before each run, such as in-place candidates that overwrite their scratch
// operands. The harness calls Prepare and synchronises the device before the
// clock starts.
type Preparer interface {
	Prepare() error
}

// OperationSet groups the candidates sharing one Key.
//
// Autotunables returns throwaway instances used only for timing; it must be
// non-empty and list strategies in the same order on every call for the same
// key. Fastest rebuilds an unconsumed operation for the winning index, on the
// real inputs, independent of how many timing runs happened.
type OperationSet interface {
	Key() Key
	Autotunables() []Operation
	Fastest(index int) Operation
}

// Once enforces the one-shot contract. Embed it in an operation and call
// Consume at the top of Execute.
type Once struct {
	used atomic.Bool
}

// Consume marks the operation executed. It returns ErrOperationConsumed if it
// already was.
func (o *Once) Consume() error {
	if o.used.Swap(true) {
		return ErrOperationConsumed
	}
	return nil
}

// Consumed reports whether Consume has been called.
func (o *Once) Consumed() bool {
	return o.used.Load()
}
