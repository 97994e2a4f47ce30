package compute

// DeviceInfo contains information about the device behind a server
type DeviceInfo struct {
	Name              string `json:"name" yaml:"name"`
	Backend           string `json:"backend" yaml:"backend"`
	TotalMemory       int64  `json:"totalMemory" yaml:"totalMemory"` // in bytes
	ComputeCapability string `json:"computeCapability" yaml:"computeCapability"`
	DriverVersion     string `json:"driverVersion" yaml:"driverVersion"`
}

// Handle references a buffer owned by a Server.
// Handles are plain values; copying one never copies device memory.
type Handle struct {
	id uint64
}

// ID returns the server-assigned buffer identifier.
func (h Handle) ID() uint64 {
	return h.id
}

// Valid reports whether the handle was issued by a server.
func (h Handle) Valid() bool {
	return h.id != 0
}

// Kernel is a unit of device code dispatched against buffers.
// Launch receives the buffers in the same order as the handles given to Execute.
type Kernel interface {
	Name() string
	Launch(buffers [][]float64) error
}

// Server defines the capability set of a compute backend.
//
// Implementation notes:
//   - The server exclusively owns device memory; callers only hold Handles
//   - Execute may enqueue work asynchronously, Sync blocks until all
//     previously enqueued work has completed
//   - Read implies completion of the work writing the buffer
//   - Servers are not required to be safe for concurrent use; that policy
//     belongs to the Channel wrapping them
type Server interface {
	// Create allocates a buffer initialised with a copy of data.
	Create(data []float64) (Handle, error)

	// Empty allocates a zeroed buffer of size elements.
	Empty(size int) (Handle, error)

	// Read copies a buffer back to host memory.
	Read(h Handle) ([]float64, error)

	// Execute dispatches a kernel against the given buffers.
	Execute(kernel Kernel, handles []Handle) error

	// Free releases a buffer. Freeing an unknown handle is an error.
	Free(h Handle) error

	// Sync blocks until all enqueued work has completed.
	Sync() error

	// Info describes the device.
	Info() DeviceInfo

	// MemoryUsage returns the number of bytes currently allocated.
	MemoryUsage() int64
}
