package compute

import "sync"

type mutexChannel struct {
	mu     sync.Mutex
	server Server
}

func newMutexChannel(server Server) *mutexChannel {
	return &mutexChannel{server: server}
}

func (c *mutexChannel) Create(data []float64) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Create(data)
}

func (c *mutexChannel) Empty(size int) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Empty(size)
}

func (c *mutexChannel) Read(h Handle) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Read(h)
}

func (c *mutexChannel) Execute(kernel Kernel, handles []Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Execute(kernel, handles)
}

func (c *mutexChannel) Free(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Free(h)
}

func (c *mutexChannel) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Sync()
}

func (c *mutexChannel) Info() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.Info()
}

func (c *mutexChannel) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.MemoryUsage()
}

func (c *mutexChannel) Strategy() Strategy {
	return StrategyMutex
}

func (c *mutexChannel) Close() error {
	return nil
}
