package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the most recent bytes written to it. It backs the
// SIGUSR1 crash dump.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []byte
	next    int
	wrapped bool
}

// NewRingBuffer returns a buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 2 * 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write never fails; older bytes are overwritten.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)
	if n >= size {
		copy(rb.buf, p[n-size:])
		rb.next = 0
		rb.wrapped = true
		return n, nil
	}
	c := copy(rb.buf[rb.next:], p)
	if c < n {
		copy(rb.buf, p[c:])
		rb.wrapped = true
	}
	rb.next = (rb.next + n) % size
	if rb.next == 0 {
		rb.wrapped = true
	}
	return n, nil
}

// Bytes returns the contents oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !rb.wrapped {
		return append([]byte(nil), rb.buf[:rb.next]...)
	}
	out := make([]byte, 0, len(rb.buf))
	out = append(out, rb.buf[rb.next:]...)
	return append(out, rb.buf[:rb.next]...)
}

// DumpToFile writes Bytes to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
