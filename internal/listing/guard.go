package listing

import (
	"context"
	"sync"
)

// Ticket identifies one fetch of a view.
type Ticket uint64

// Guard makes sure only the latest fetch of a view is rendered. Starting a
// fetch cancels the one before it.
type Guard struct {
	mu     sync.Mutex
	seq    Ticket
	cancel context.CancelFunc
}

// Begin issues the next ticket and a context cancelled by the following Begin.
func (g *Guard) Begin(parent context.Context) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	g.seq++
	g.cancel = cancel
	return g.seq, ctx
}

// Current reports whether t is still the latest ticket.
func (g *Guard) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return t == g.seq
}

// Commit runs render only while t is current and reports whether it ran.
func (g *Guard) Commit(t Ticket, render func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t != g.seq {
		return false
	}
	if render != nil {
		render()
	}
	return true
}

// Done releases the context of t if it is still the latest.
func (g *Guard) Done(t Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t == g.seq && g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Invalidate cancels the fetch in flight and makes every issued ticket stale.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.seq++
}

// Guards hands out one guard per view.
type Guards struct {
	m sync.Map
}

// For returns the guard of view.
func (gs *Guards) For(view string) *Guard {
	v, _ := gs.m.LoadOrStore(view, &Guard{})
	return v.(*Guard)
}

// Drop invalidates and forgets the guard of view.
func (gs *Guards) Drop(view string) {
	if v, ok := gs.m.LoadAndDelete(view); ok {
		v.(*Guard).Invalidate()
	}
}
