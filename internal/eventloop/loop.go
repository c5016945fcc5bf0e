// Package eventloop runs every topology mutation on one goroutine. Other
// goroutines hand work over with Post; code already on the loop schedules
// cleanup with Defer, which runs once the current task has returned.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/taote/taote/internal/logging"
)

var loopLog = logging.ForComponent(logging.CompLoop)

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("eventloop: stopped")

// Loop is a single-threaded task runner with an idle queue.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	quitted sync.Once
	stopped bool

	// idle is touched only from the loop goroutine.
	idle []func()
}

// New returns a loop that is not yet running.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It never blocks and is safe from any
// goroutine. Tasks posted after the loop stopped are dropped and Post
// returns false.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		panic("eventloop: Post with nil func")
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Defer queues fn on the idle queue. It must be called from the loop
// goroutine; fn runs after the current task finishes, before the next
// posted task.
func (l *Loop) Defer(fn func()) {
	l.idle = append(l.idle, fn)
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() { fn(); close(ran) }) {
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit asks Run to return after the current task.
func (l *Loop) Quit() {
	l.quitted.Do(func() { close(l.quit) })
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes tasks until Quit is called or ctx ends. It returns nil on
// Quit and the context error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		select {
		case <-l.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				l.run(fn)
				l.drainIdle()
				select {
				case <-l.quit:
					return nil
				default:
				}
			}
		}
	}
}

func (l *Loop) drainIdle() {
	for len(l.idle) > 0 {
		fn := l.idle[0]
		l.idle = l.idle[1:]
		l.run(fn)
	}
	l.idle = nil
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			loopLog.Error("task_panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}
