package compute

type directChannel struct {
	server Server
}

func newDirectChannel(server Server) *directChannel {
	return &directChannel{server: server}
}

func (c *directChannel) Create(data []float64) (Handle, error) { return c.server.Create(data) }
func (c *directChannel) Empty(size int) (Handle, error)        { return c.server.Empty(size) }
func (c *directChannel) Read(h Handle) ([]float64, error)      { return c.server.Read(h) }
func (c *directChannel) Free(h Handle) error                   { return c.server.Free(h) }
func (c *directChannel) Sync() error                           { return c.server.Sync() }
func (c *directChannel) Info() DeviceInfo                      { return c.server.Info() }
func (c *directChannel) MemoryUsage() int64                    { return c.server.MemoryUsage() }
func (c *directChannel) Strategy() Strategy                    { return StrategyDirect }
func (c *directChannel) Close() error                          { return nil }

func (c *directChannel) Execute(kernel Kernel, handles []Handle) error {
	return c.server.Execute(kernel, handles)
}
