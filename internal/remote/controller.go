package remote

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/taote/taote/internal/eventloop"
	"github.com/taote/taote/internal/session"
)

// ErrCommandRejected is returned when the dispatcher did not accept a
// command: unknown name or no such window.
var ErrCommandRejected = errors.New("remote: command rejected")

// Controller is what the server drives.
type Controller interface {
	Command(ctx context.Context, window int, name string) (session.Snapshot, error)
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

// LoopController runs commands against a Runtime on its event loop.
type LoopController struct {
	loop *eventloop.Loop
	rt   *session.Runtime
	sf   singleflight.Group
}

// NewLoopController returns a Controller for rt, which must only be touched
// from loop.
func NewLoopController(loop *eventloop.Loop, rt *session.Runtime) *LoopController {
	return &LoopController{loop: loop, rt: rt}
}

// Command dispatches a named command and returns the topology afterwards.
func (c *LoopController) Command(ctx context.Context, window int, name string) (session.Snapshot, error) {
	var (
		ok   bool
		snap session.Snapshot
	)
	err := c.loop.Call(ctx, func() {
		ok = c.rt.Dispatch(session.Command{Window: window, Name: name})
		snap = c.rt.Snapshot()
	})
	if err != nil {
		return session.Snapshot{}, err
	}
	if !ok {
		return snap, ErrCommandRejected
	}
	return snap, nil
}

// Snapshot copies the topology. Concurrent callers share one trip through
// the loop.
func (c *LoopController) Snapshot(ctx context.Context) (session.Snapshot, error) {
	v, err, _ := c.sf.Do("snapshot", func() (any, error) {
		var snap session.Snapshot
		err := c.loop.Call(ctx, func() { snap = c.rt.Snapshot() })
		return snap, err
	})
	if err != nil {
		return session.Snapshot{}, err
	}
	return v.(session.Snapshot), nil
}
