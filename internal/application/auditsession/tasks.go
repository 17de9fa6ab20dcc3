package auditsession

import (
	"context"
	"sync"
)

// taskGroup runs the background lookups and writes of the engine. Restarting the
// group cancels the context handed to tasks of the previous session.
type taskGroup struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	active int
	idle   chan struct{}
}

func newTaskGroup() *taskGroup {
	g := &taskGroup{}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	return g
}

// restart cancels running tasks and derives a fresh context from parent's values
func (g *taskGroup) restart(parent context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel()
	g.ctx, g.cancel = context.WithCancel(context.WithoutCancel(parent))
}

func (g *taskGroup) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel()
}

func (g *taskGroup) Go(fn func(ctx context.Context)) {
	g.mu.Lock()
	ctx := g.ctx
	if g.active == 0 {
		g.idle = make(chan struct{})
	}
	g.active++
	g.mu.Unlock()

	go func() {
		defer g.done()
		fn(ctx)
	}()
}

func (g *taskGroup) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.active == 0 {
		close(g.idle)
	}
}

// Wait blocks until no task is running or ctx is done
func (g *taskGroup) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.active == 0 {
		g.mu.Unlock()
		return nil
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
