package compute

import (
	"runtime"
	"sync"
)

// workerChannel owns its server from a single goroutine locked to an OS
// thread. Callers send closures and wait for them to run.
type workerChannel struct {
	requests  chan func(Server)
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWorkerChannel(server Server) *workerChannel {
	c := &workerChannel{
		requests: make(chan func(Server)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run(server)
	return c
}

func (c *workerChannel) run(server Server) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	for {
		select {
		case req := <-c.requests:
			req(server)
		case <-c.quit:
			return
		}
	}
}

// call blocks until fn has run on the worker. A request accepted by the
// worker always runs, even if Close is called concurrently.
func (c *workerChannel) call(fn func(Server)) error {
	reply := make(chan struct{})
	req := func(s Server) {
		defer close(reply)
		fn(s)
	}
	select {
	case c.requests <- req:
	case <-c.quit:
		return ErrChannelClosed
	}
	<-reply
	return nil
}

func (c *workerChannel) Create(data []float64) (Handle, error) {
	var (
		h   Handle
		err error
	)
	if cerr := c.call(func(s Server) { h, err = s.Create(data) }); cerr != nil {
		return Handle{}, cerr
	}
	return h, err
}

func (c *workerChannel) Empty(size int) (Handle, error) {
	var (
		h   Handle
		err error
	)
	if cerr := c.call(func(s Server) { h, err = s.Empty(size) }); cerr != nil {
		return Handle{}, cerr
	}
	return h, err
}

func (c *workerChannel) Read(h Handle) ([]float64, error) {
	var (
		data []float64
		err  error
	)
	if cerr := c.call(func(s Server) { data, err = s.Read(h) }); cerr != nil {
		return nil, cerr
	}
	return data, err
}

func (c *workerChannel) Execute(kernel Kernel, handles []Handle) error {
	var err error
	if cerr := c.call(func(s Server) { err = s.Execute(kernel, handles) }); cerr != nil {
		return cerr
	}
	return err
}

func (c *workerChannel) Free(h Handle) error {
	var err error
	if cerr := c.call(func(s Server) { err = s.Free(h) }); cerr != nil {
		return cerr
	}
	return err
}

func (c *workerChannel) Sync() error {
	var err error
	if cerr := c.call(func(s Server) { err = s.Sync() }); cerr != nil {
		return cerr
	}
	return err
}

func (c *workerChannel) Info() DeviceInfo {
	var info DeviceInfo
	_ = c.call(func(s Server) { info = s.Info() })
	return info
}

func (c *workerChannel) MemoryUsage() int64 {
	var used int64
	_ = c.call(func(s Server) { used = s.MemoryUsage() })
	return used
}

func (c *workerChannel) Strategy() Strategy {
	return StrategyWorker
}

// Close stops the worker and waits for it to exit.
func (c *workerChannel) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	return nil
}
