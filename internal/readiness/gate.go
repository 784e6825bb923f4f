// Package readiness guards request handling behind a one-time database
// connect that is shared by every concurrent request.
package readiness

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"cgl-backend/internal/apperr"
)

type State int32

const (
	Uninitialized State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// ConnectFunc establishes the shared resource. It is called at most once at
// a time and never again after it succeeds.
type ConnectFunc func(ctx context.Context) error

const DefaultTimeout = 10 * time.Second

type Options struct {
	// Timeout bounds a single connect attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// OnResult, when set, is called after every connect attempt.
	OnResult func(err error, elapsed time.Duration)
}

type Gate struct {
	connect  ConnectFunc
	timeout  time.Duration
	onResult func(error, time.Duration)

	group singleflight.Group
	state atomic.Int32

	mu      sync.Mutex
	lastErr error
}

func New(connect ConnectFunc, opts Options) *Gate {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Gate{
		connect:  connect,
		timeout:  opts.Timeout,
		onResult: opts.OnResult,
	}
}

// EnsureReady returns nil once the connect routine has succeeded. Callers
// that arrive while an attempt is running wait for that attempt instead of
// starting their own. A failed attempt is not cached, so the next call
// retries. If ctx ends first the caller stops waiting but the attempt keeps
// running for the others.
func (g *Gate) EnsureReady(ctx context.Context) error {
	if g.State() == Ready {
		return nil
	}

	ch := g.group.DoChan("connect", func() (_ any, err error) {
		// A flight that finished between the check above and DoChan has
		// already published Ready.
		if g.State() == Ready {
			return nil, nil
		}
		// singleflight re-panics DoChan panics on a fresh goroutine, which
		// no middleware can recover.
		defer func() {
			if rec := recover(); rec != nil {
				err = g.fail(fmt.Errorf("connect panicked: %v", rec), 0)
			}
		}()
		return nil, g.attempt(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return apperr.Wrap(apperr.ConnectFailure, ctx.Err(), "")
	}
}

func (g *Gate) attempt(parent context.Context) error {
	g.state.Store(int32(Connecting))

	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	start := time.Now()
	if err := g.connect(ctx); err != nil {
		return g.fail(err, time.Since(start))
	}
	elapsed := time.Since(start)

	g.mu.Lock()
	g.lastErr = nil
	g.mu.Unlock()
	g.state.Store(int32(Ready))

	if g.onResult != nil {
		g.onResult(nil, elapsed)
	}
	return nil
}

// fail records a failed attempt and reopens the gate for the next caller.
func (g *Gate) fail(cause error, elapsed time.Duration) error {
	g.mu.Lock()
	g.lastErr = cause
	g.mu.Unlock()
	g.state.Store(int32(Uninitialized))

	err := apperr.Wrap(apperr.ConnectFailure, cause, "")
	if g.onResult != nil {
		g.onResult(err, elapsed)
	}
	return err
}

func (g *Gate) State() State {
	return State(g.state.Load())
}

// LastError is the error of the most recent attempt, or nil.
func (g *Gate) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}
