package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/progress/monitoring"
	"github.com/sarchlab/progress/progress"
)

// runWorkload opens a few nested contexts on t, sleeping in each for a
// multiple of unit.
func runWorkload(t *progress.Thread, unit time.Duration) error {
	err := t.Do("Init things", func() error {
		time.Sleep(5 * unit)
		return nil
	})
	if err != nil {
		return err
	}

	important := progress.Decorate(t,
		progress.NewFunc("doImportantThings", func(d time.Duration) (time.Duration, error) {
			time.Sleep(d)
			return d, nil
		}),
		"Do important things")

	return t.Do("Main loop", func() error {
		time.Sleep(2 * unit)

		for _, n := range []int{10, 8, 11} {
			if _, err := important.Call(time.Duration(n) * unit); err != nil {
				return err
			}
		}

		return nil
	})
}

// runDemo repeats the workload and publishes a counter every second, until
// ctx is done.
func runDemo(ctx context.Context, t *progress.Thread, s *monitoring.Server) {
	s.PublishString("Data")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for counter := 1; ; counter++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.PublishString(fmt.Sprintf("count %d", counter))

		if counter%10 == 0 {
			runRound(t, counter/10, func(t *progress.Thread) error {
				return runWorkload(t, 10*time.Millisecond)
			})
		}
	}
}

// runRound runs work inside a "Round <n>" context. The demo keeps going when
// a round fails.
func runRound(t *progress.Thread, round int, work func(*progress.Thread) error) {
	err := t.Do(fmt.Sprintf("Round %d", round), func() error {
		return work(t)
	})
	if err != nil {
		logrus.WithError(err).WithField("round", round).Debug("demo workload failed")
	}
}
