package runner

import (
	"context"
	"sync"
)

// Result is a worker exit report.
type Result struct {
	Name string
	Err  error
}

// Group supervises long-running workers. Workers started with Run
// report their exit on a shared channel so the caller can react to the
// first failure; Go is the anonymous variant for fire-and-wait pools.
type Group struct {
	wg   sync.WaitGroup
	once sync.Once
	exit chan Result
}

// Go starts fn and reports its exit on the returned channel.
func (g *Group) Go(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		done <- fn(ctx)
		close(done)
	}()
	return done
}

// Run starts a named worker; its exit is delivered on Exits. The exit
// channel holds 16 results, so keep the named worker set bounded or
// drain Exits while waiting.
func (g *Group) Run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.init()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.exit <- Result{Name: name, Err: fn(ctx)}
	}()
}

// Exits yields one Result per worker started with Run.
func (g *Group) Exits() <-chan Result {
	g.init()
	return g.exit
}

func (g *Group) init() {
	g.once.Do(func() { g.exit = make(chan Result, 16) })
}

// Wait blocks until every worker has returned.
func (g *Group) Wait() { g.wg.Wait() }
