// Package loop provides the cooperative scheduler that connection requests
// and their completions run on.
//
// Functions posted to a Loop run one at a time, in the order they were
// posted, on the goroutine that called Run. Blocking work is never run on
// the loop itself; use Go to run it elsewhere and deliver its outcome back.
package loop

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// DefaultQueueSize is the default number of queued functions.
const DefaultQueueSize = 64

// ErrStopped is returned by Run if the loop was already stopped.
var ErrStopped = errors.New("loop is stopped")

// Loop holds a queue of functions to be run sequentially.
type Loop struct {
	queue    chan func()
	stopping chan struct{}
	done     chan struct{}

	// mu is held for reading by Post while it queues a function, so
	// that Run can wait for in-flight posts before draining the queue.
	mu      sync.RWMutex
	stopped atomic.Bool
	running atomic.Bool
}

// New returns a new loop with the provided queue size.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Loop{
		queue:    make(chan func(), size),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run runs queued functions until the context is cancelled.
// Functions that were queued before the loop stopped are run before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.stopped.Load() || !l.running.CompareAndSwap(false, true) {
		return ErrStopped
	}

	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case fn := <-l.queue:
			fn()
		}
	}
}

// stop rejects further posts, and runs the functions left in the queue.
func (l *Loop) stop() {
	close(l.stopping)

	l.mu.Lock()
	l.stopped.Store(true)
	l.mu.Unlock()

	for {
		select {
		case fn := <-l.queue:
			fn()

		default:
			close(l.done)
			return
		}
	}
}

// Post queues a function to be run on the loop. It reports false if the
// loop has stopped and the function will never run.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stopped.Load() {
		return false
	}

	select {
	case l.queue <- fn:
		return true

	case <-l.stopping:
		return false
	}
}

// Go runs work on a new goroutine, and calls either ok or fail on the loop
// once it has returned.
func (l *Loop) Go(work func() error, ok func(), fail func(error)) {
	go func() {
		err := work()

		l.Post(func() {
			if err != nil {
				fail(err)
				return
			}

			ok()
		})
	}()
}

// Done returns a channel that is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
