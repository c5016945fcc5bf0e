package eventloop

import "sync"

// Coalescer merges bursts of same-key tasks: while one is pending, later
// posts only replace its function.
type Coalescer struct {
	mu        sync.Mutex
	pending   map[string]func()
	post      func(func()) bool
	destroyed bool
}

// NewCoalescer wraps post, typically Loop.Post.
func NewCoalescer(post func(func()) bool) *Coalescer {
	if post == nil {
		panic("eventloop: NewCoalescer with nil post")
	}
	return &Coalescer{pending: make(map[string]func()), post: post}
}

// Post schedules fn under key unless a task for key is already pending.
func (c *Coalescer) Post(key string, fn func()) {
	if fn == nil || key == "" {
		return
	}
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	_, queued := c.pending[key]
	c.pending[key] = fn
	c.mu.Unlock()
	if queued {
		return
	}

	ok := c.post(func() {
		c.mu.Lock()
		fn := c.pending[key]
		delete(c.pending, key)
		dead := c.destroyed
		c.mu.Unlock()
		if !dead && fn != nil {
			fn()
		}
	})
	if !ok {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}
}

// Destroy drops pending work and ignores later posts.
func (c *Coalescer) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	clear(c.pending)
	c.mu.Unlock()
}
