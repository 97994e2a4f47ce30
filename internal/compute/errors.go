package compute

import "errors"

var (
	ErrUnknownHandle   = errors.New("unknown buffer handle")
	ErrBufferTooLarge  = errors.New("buffer exceeds client memory limit")
	ErrInvalidSize     = errors.New("invalid buffer size")
	ErrChannelClosed   = errors.New("compute channel closed")
	ErrUnknownStrategy = errors.New("unknown channel strategy")
	ErrUnknownBackend  = errors.New("unknown compute backend")
	ErrNilKernel       = errors.New("nil kernel")
	ErrNoTuner         = errors.New("client has no tuner")
)
