package mqttflow

import (
	"sync"
	"time"
)

// eventLoop runs posted tasks one at a time on a single goroutine. All
// engine state that is not atomic is owned by this goroutine.
type eventLoop struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	// timer registry, loop goroutine only
	timers      map[uint64]*loopTimer
	nextTimerID uint64
}

// loopTimer is a timer whose callback runs on the event loop.
type loopTimer struct {
	id        uint64
	t         *time.Timer
	period    time.Duration
	cancelled bool
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: make(map[uint64]*loopTimer),
	}
	go l.run()
	return l
}

func (l *eventLoop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, task := range batch {
			task()
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}

// post appends fn to the task queue. Tasks run in posting order. It
// reports false once the loop has been stopped.
func (l *eventLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// stop rejects further posts. Tasks already queued still run.
func (l *eventLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// after runs fn on the loop once d has elapsed. Loop goroutine only.
func (l *eventLoop) after(d time.Duration, fn func()) *loopTimer {
	return l.schedule(d, 0, fn)
}

// every runs fn on the loop each period until cancelled. Loop goroutine only.
func (l *eventLoop) every(period time.Duration, fn func()) *loopTimer {
	return l.schedule(period, period, fn)
}

func (l *eventLoop) schedule(d, period time.Duration, fn func()) *loopTimer {
	l.nextTimerID++
	lt := &loopTimer{id: l.nextTimerID, period: period}
	l.timers[lt.id] = lt

	lt.t = time.AfterFunc(d, func() {
		l.post(func() {
			if lt.cancelled {
				return
			}
			if lt.period > 0 {
				lt.t.Reset(lt.period)
			} else {
				lt.cancelled = true
				delete(l.timers, lt.id)
			}
			fn()
		})
	})
	return lt
}

// cancel stops lt. A nil or already fired timer is ignored.
func (l *eventLoop) cancel(lt *loopTimer) {
	if lt == nil || lt.cancelled {
		return
	}
	lt.cancelled = true
	lt.t.Stop()
	delete(l.timers, lt.id)
}

// cancelAll stops every registered timer.
func (l *eventLoop) cancelAll() {
	for _, lt := range l.timers {
		lt.cancelled = true
		lt.t.Stop()
	}
	clear(l.timers)
}

// pendingTimers returns the number of armed timers. Loop goroutine only.
func (l *eventLoop) pendingTimers() int {
	return len(l.timers)
}
