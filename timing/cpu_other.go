//go:build !linux

package timing

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

func newCPUSource() cpuSource {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &monotonicCPU{read: func() (time.Duration, bool) { return 0, false }}
	}

	return &monotonicCPU{read: func() (time.Duration, bool) {
		times, err := proc.Times()
		if err != nil {
			return 0, false
		}

		seconds := times.User + times.System

		return time.Duration(seconds * float64(time.Second)), true
	}}
}
