package progress

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/timing"
)

const stillOpen = int64(-1)

// A Context is a named, timed interval, possibly nested inside another one. It
// is open from creation until Close is called for the first time.
//
// Only the goroutine that owns the context's thread opens and closes contexts
// in that thread. Accessors may be called from any goroutine; readers that do
// not own the thread get a relaxed-consistency view that may be slightly
// stale but never shows a half-written update.
type Context struct {
	id     idgen.ID
	name   string
	thread *Thread
	clock  timing.Clock

	startPerf time.Duration
	startCPU  time.Duration

	closing  atomic.Bool
	endPerf  atomic.Int64
	endCPU   atomic.Int64
	children atomic.Pointer[[]*Context]
}

func newContext(
	id idgen.ID,
	name string,
	thread *Thread,
	clock timing.Clock,
) *Context {
	c := &Context{
		id:        id,
		name:      name,
		thread:    thread,
		clock:     clock,
		startPerf: clock.ElapsedPerf(),
		startCPU:  clock.ElapsedCPU(),
	}

	c.endPerf.Store(stillOpen)
	c.endCPU.Store(stillOpen)

	return c
}

// ID returns the identity of the context. IDs are unique between two resets
// of the registry.
func (c *Context) ID() idgen.ID {
	return c.id
}

// Name returns the label of the context.
func (c *Context) Name() string {
	return c.name
}

// Thread returns the logical thread the context belongs to.
func (c *Context) Thread() ThreadID {
	return c.thread.id
}

// StartPerf returns the elapsed wall time at which the context was opened.
func (c *Context) StartPerf() time.Duration {
	return c.startPerf
}

// StartCPU returns the elapsed CPU time at which the context was opened.
func (c *Context) StartCPU() time.Duration {
	return c.startCPU
}

// EndPerf returns the elapsed wall time at which the context was closed. The
// second return value is false while the context is open.
func (c *Context) EndPerf() (time.Duration, bool) {
	end := c.endPerf.Load()
	if end == stillOpen {
		return 0, false
	}

	return time.Duration(end), true
}

// EndCPU returns the elapsed CPU time at which the context was closed. The
// second return value is false while the context is open.
func (c *Context) EndCPU() (time.Duration, bool) {
	if !c.Closed() {
		return 0, false
	}

	return time.Duration(c.endCPU.Load()), true
}

// Closed tells if the context has been closed.
func (c *Context) Closed() bool {
	return c.endPerf.Load() != stillOpen
}

// PerfElapsed returns the wall time spent in the context so far, or in total
// once it is closed.
func (c *Context) PerfElapsed() time.Duration {
	end, closed := c.EndPerf()
	if !closed {
		end = c.clock.ElapsedPerf()
	}

	return end - c.startPerf
}

// CPUElapsed returns the CPU time spent in the context so far, or in total
// once it is closed.
func (c *Context) CPUElapsed() time.Duration {
	end, closed := c.EndCPU()
	if !closed {
		end = c.clock.ElapsedCPU()
	}

	return end - c.startCPU
}

// Children returns the nested contexts in the order they were opened. The
// returned slice must not be modified.
func (c *Context) Children() []*Context {
	children := c.loadChildren()

	return children[:len(children):len(children)]
}

// Close records the end of the context. Only the first call has an effect;
// later calls keep the first measurement.
//
// Closing a context does not close the contexts nested in it. The thread's
// current context moves back to the nearest open ancestor.
func (c *Context) Close() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}

	// The CPU end is published before the wall end, as Closed looks at the
	// latter.
	c.endCPU.Store(int64(c.clock.ElapsedCPU()))
	c.endPerf.Store(int64(c.clock.ElapsedPerf()))

	c.thread.registry.InvokeHook(hookCtx(c.thread.registry, HookPosContextClose, c, nil))
}

func (c *Context) String() string {
	return fmt.Sprintf("%s(#%d)", c.name, c.id)
}

func (c *Context) loadChildren() []*Context {
	children := c.children.Load()
	if children == nil {
		return nil
	}

	return *children
}

// appendChild must only be called by the owning thread. Readers holding the
// previous slice never look past its length, so growing in place is safe.
func (c *Context) appendChild(child *Context) {
	children := append(c.loadChildren(), child)
	c.children.Store(&children)
}

// deepestOpen descends into the last child while that child is still open.
func (c *Context) deepestOpen() *Context {
	current := c

	for {
		children := current.loadChildren()
		if len(children) == 0 {
			return current
		}

		last := children[len(children)-1]
		if last.Closed() {
			return current
		}

		current = last
	}
}
