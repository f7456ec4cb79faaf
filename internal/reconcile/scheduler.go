package reconcile

import "time"

// Scheduler runs fn once after delay. The returned cancel stops a callback
// that has not started yet; calling it more than once is safe.
type Scheduler interface {
	After(delay time.Duration, fn func()) (cancel func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(delay time.Duration, fn func()) (cancel func())

// After calls f(delay, fn).
func (f SchedulerFunc) After(delay time.Duration, fn func()) func() {
	return f(delay, fn)
}

// TimerScheduler schedules callbacks on runtime timers. Callbacks run on
// their own goroutine; callers that share an Engine across goroutines must
// wrap it so only one of them touches it at a time.
type TimerScheduler struct{}

// After implements Scheduler with time.AfterFunc.
func (TimerScheduler) After(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
