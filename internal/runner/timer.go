package runner

import "time"

// Scheduler is the dumb timer primitive the runner waits with. Schedule
// runs fn once after d and returns a cancel handle; cancelling after the
// callback ran is a no-op.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// AfterFuncScheduler schedules on the wall clock via time.AfterFunc.
type AfterFuncScheduler struct{}

// Schedule implements Scheduler.
func (AfterFuncScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
