// Package timing provides the clocks that progress contexts are measured
// against. All readings are relative to the last reset; there are no
// calendar timestamps.
package timing

import (
	"sync"
	"time"
)

// A Clock reports the elapsed wall time and the consumed CPU time since its
// last reset.
type Clock interface {
	// Reset captures new origins for both counters.
	Reset()

	// ElapsedPerf returns the monotonic wall time since the last reset.
	ElapsedPerf() time.Duration

	// ElapsedCPU returns the CPU time the process consumed since the last
	// reset.
	ElapsedCPU() time.Duration
}

// SystemClock is a Clock backed by the monotonic system clock and the CPU
// time of the current process.
//
// Reset must only be called at a well-defined boundary, when no interval is
// measured against the previous origins.
type SystemClock struct {
	lock       sync.RWMutex
	perfOrigin time.Time
	cpuOrigin  time.Duration
	cpu        cpuSource
}

// NewSystemClock creates a SystemClock whose origins are the moment of
// creation.
func NewSystemClock() *SystemClock {
	c := &SystemClock{
		cpu: newCPUSource(),
	}

	c.Reset()

	return c
}

// Reset replaces both origins at once.
func (c *SystemClock) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.perfOrigin = time.Now()
	c.cpuOrigin = c.cpu.Now()
}

// ElapsedPerf returns the monotonic wall time since the last reset.
func (c *SystemClock) ElapsedPerf() time.Duration {
	c.lock.RLock()
	origin := c.perfOrigin
	c.lock.RUnlock()

	return time.Since(origin)
}

// ElapsedCPU returns the process CPU time consumed since the last reset.
func (c *SystemClock) ElapsedCPU() time.Duration {
	c.lock.RLock()
	origin := c.cpuOrigin
	c.lock.RUnlock()

	elapsed := c.cpu.Now() - origin
	if elapsed < 0 {
		return 0
	}

	return elapsed
}

var _ Clock = (*SystemClock)(nil)
