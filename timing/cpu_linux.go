//go:build linux

package timing

import (
	"time"

	"golang.org/x/sys/unix"
)

func newCPUSource() cpuSource {
	return &monotonicCPU{read: readProcessCPUTime}
}

func readProcessCPUTime() (time.Duration, bool) {
	var ts unix.Timespec

	err := unix.ClockGettime(unix.CLOCK_PROCESS_CPUTIME_ID, &ts)
	if err != nil {
		return 0, false
	}

	return time.Duration(ts.Nano()), true
}
