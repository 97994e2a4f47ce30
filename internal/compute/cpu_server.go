package compute

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

const float64Size = 8

// CPUServer implements Server on host memory.
// Kernels run synchronously on the calling goroutine, so Sync has nothing to wait for.
type CPUServer struct {
	log         *zap.Logger
	buffers     map[uint64][]float64
	nextID      uint64
	used        int64
	totalMemory int64
}

// NewCPUServer creates a new CPU server instance
func NewCPUServer(log *zap.Logger) *CPUServer {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("cpu")
	return &CPUServer{
		log:         log,
		buffers:     make(map[uint64][]float64),
		totalMemory: totalSystemMemory(log),
	}
}

// NewServer creates the server for a configured backend name.
func NewServer(backend string, log *zap.Logger) (Server, error) {
	switch backend {
	case "", "cpu":
		return NewCPUServer(log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

func (s *CPUServer) alloc(buf []float64) Handle {
	s.nextID++
	s.buffers[s.nextID] = buf
	s.used += int64(len(buf)) * float64Size
	return Handle{id: s.nextID}
}

func (s *CPUServer) lookup(h Handle) ([]float64, error) {
	buf, ok := s.buffers[h.id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h.id)
	}
	return buf, nil
}

// Create allocates a buffer holding a copy of data
func (s *CPUServer) Create(data []float64) (Handle, error) {
	buf := make([]float64, len(data))
	copy(buf, data)
	return s.alloc(buf), nil
}

// Empty allocates a zeroed buffer
func (s *CPUServer) Empty(size int) (Handle, error) {
	if size < 0 {
		return Handle{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return s.alloc(make([]float64, size)), nil
}

// Read returns a copy of the buffer contents
func (s *CPUServer) Read(h Handle) ([]float64, error) {
	buf, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(buf))
	copy(out, buf)
	return out, nil
}

// Execute launches the kernel against the buffers referenced by handles
func (s *CPUServer) Execute(kernel Kernel, handles []Handle) error {
	if kernel == nil {
		return ErrNilKernel
	}
	buffers := make([][]float64, len(handles))
	for i, h := range handles {
		buf, err := s.lookup(h)
		if err != nil {
			return err
		}
		buffers[i] = buf
	}
	if err := kernel.Launch(buffers); err != nil {
		s.log.Debug("kernel launch failed", zap.String("kernel", kernel.Name()), zap.Error(err))
		return fmt.Errorf("kernel %s: %w", kernel.Name(), err)
	}
	return nil
}

// Free releases the buffer
func (s *CPUServer) Free(h Handle) error {
	buf, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.used -= int64(len(buf)) * float64Size
	delete(s.buffers, h.id)
	return nil
}

// Sync is a no-op: every dispatch has completed by the time Execute returns
func (s *CPUServer) Sync() error {
	return nil
}

// Info returns device information for the host CPU
func (s *CPUServer) Info() DeviceInfo {
	return DeviceInfo{
		Name:              fmt.Sprintf("CPU (%s/%d)", runtime.GOARCH, runtime.NumCPU()),
		Backend:           "cpu",
		TotalMemory:       s.totalMemory,
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
	}
}

// MemoryUsage returns the bytes currently held by live buffers
func (s *CPUServer) MemoryUsage() int64 {
	return s.used
}

// totalSystemMemory returns the host's physical memory in bytes, or 0 if the
// OS cannot report it.
func totalSystemMemory(log *zap.Logger) int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to query system memory", zap.Error(err))
		return 0
	}
	return int64(vm.Total)
}
