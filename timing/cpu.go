package timing

import (
	"sync"
	"time"
)

// cpuSource reads the total CPU time consumed by the process.
type cpuSource interface {
	Now() time.Duration
}

// monotonicCPU makes sure a source that may fail or jitter never reports a
// smaller value than it reported before.
type monotonicCPU struct {
	lock sync.Mutex
	read func() (time.Duration, bool)
	last time.Duration
}

func (m *monotonicCPU) Now() time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	now, ok := m.read()
	if ok && now > m.last {
		m.last = now
	}

	return m.last
}
