package runtime

import (
	"log/slog"
	"time"
)

// Loop is the cooperative task queue backing the engine's single-threaded
// execution model. Timers and other goroutines only ever post closures
// here; the engine goroutine is the sole executor, so handlers run to
// completion with no re-entrancy and shared state needs no locks.
type Loop struct {
	log   *slog.Logger
	tasks chan func()
}

func NewLoop(log *slog.Logger, bufferSize int) *Loop {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Loop{log: log, tasks: make(chan func(), bufferSize)}
}

// Post queues a closure for execution on the engine goroutine. The queue is
// bounded; a full queue drops the task rather than blocking the caller.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	default:
		l.log.Warn("Engine task queue full, dropping task")
	}
}

// After schedules fn onto the loop once the delay elapses. The returned
// cancel function prevents a not-yet-posted callback from ever running.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	timer := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return func() { timer.Stop() }
}

// Tasks exposes the queue to the engine's select loop.
func (l *Loop) Tasks() <-chan func() {
	return l.tasks
}
