package mapengine

import "sync"

// Looper is the UI thread: callbacks posted from any goroutine run in order
// when the host drains it.
type Looper struct {
	mu    sync.Mutex
	queue []func()
	wake  func()
}

// NewLooper returns a looper. wake, if set, is called after each Post so a
// blocked host loop can drain.
func NewLooper(wake func()) *Looper {
	return &Looper{wake: wake}
}

func (l *Looper) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	if l.wake != nil {
		l.wake()
	}
}

// Drain runs queued callbacks, including ones posted while draining, and
// returns how many ran.
func (l *Looper) Drain() int {
	ran := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			fn()
			ran++
		}
	}
}
