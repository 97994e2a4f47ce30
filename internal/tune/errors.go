package tune

import (
	"errors"
	"fmt"
)

// ErrInvariantViolated marks defects in the calling or integrating code.
// Callers must abort the enclosing operation and never retry.
var ErrInvariantViolated = errors.New("autotune invariant violated")

var (
	ErrEmptyOperationSet = fmt.Errorf("%w: operation set has no autotunables", ErrInvariantViolated)
	ErrCacheInconsistent = fmt.Errorf("%w: cache missed right after insert", ErrInvariantViolated)
	ErrNoFastest         = fmt.Errorf("%w: operation set returned no operation for cached index", ErrInvariantViolated)

	ErrOperationConsumed = errors.New("operation already executed")
	ErrNoViableCandidate = errors.New("every autotune candidate failed")
	ErrNoSamples         = errors.New("benchmark produced no samples")
)
