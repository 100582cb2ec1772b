package cdap

import "time"

// TaskHandle identifies one scheduled task so it can be cancelled.
type TaskHandle interface {
	// Cancel stops the task if it has not fired yet. It reports whether the
	// cancellation happened before the task ran.
	Cancel() bool
}

// TimerScheduler schedules deferred tasks. The session layer uses it for the
// connect/release timeouts and for deferred session destruction.
//
// Tasks run on the scheduler's own goroutines and must never be invoked
// while any session-layer lock is held.
type TimerScheduler interface {
	Schedule(delay time.Duration, task func()) TaskHandle
}

type realScheduler struct{}

type realTaskHandle struct {
	t *time.Timer
}

func (h *realTaskHandle) Cancel() bool {
	return h.t.Stop()
}

func (s *realScheduler) Schedule(delay time.Duration, task func()) TaskHandle {
	return &realTaskHandle{t: time.AfterFunc(delay, task)}
}

// NewTimerScheduler returns the default scheduler backed by time.AfterFunc.
func NewTimerScheduler() TimerScheduler {
	return &realScheduler{}
}
