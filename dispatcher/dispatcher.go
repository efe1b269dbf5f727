// Package dispatcher serializes every agent invocation onto a single
// FIFO queue so concurrent chat, vibe, and plan triggers never race.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/logger"
)

// Invocation is a thunk that performs one agent turn.
type Invocation func(ctx context.Context) (gateway.AgentReply, error)

// job pairs an invocation with the channel its caller waits on.
type job struct {
	invoke Invocation
	result chan<- jobResult
}

type jobResult struct {
	reply gateway.AgentReply
	err   error
}

// Dispatcher is the only path to the agent gateway: every component
// that wants to trigger the agent submits through Submit, and
// invocations run strictly one at a time in arrival order.
type Dispatcher struct {
	queue chan job
	busy  atomic.Bool
	wg    sync.WaitGroup
}

// New builds a Dispatcher with the given queue depth.
func New(queueDepth int) *Dispatcher {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Dispatcher{queue: make(chan job, queueDepth)}
}

// Busy reports whether an invocation is currently running, so the
// autonomy engine can skip nudges that would otherwise queue behind a
// slow chat turn.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Run consumes the queue until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.run(ctx, j)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	d.busy.Store(true)
	defer d.busy.Store(false)

	reply, err := func() (reply gateway.AgentReply, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("dispatcher invocation panicked", "recover", r)
				err = panicError{r}
			}
		}()
		return j.invoke(ctx)
	}()

	if err != nil {
		logger.Error("dispatcher invocation failed", "err", err)
	}
	if j.result != nil {
		j.result <- jobResult{reply: reply, err: err}
	}
}

// Submit enqueues an invocation and returns its eventual result. The
// queue never blocks reads, so a full queue blocks the caller instead
// of dropping work — callers that must not block should run Submit in
// a goroutine.
func (d *Dispatcher) Submit(ctx context.Context, invoke Invocation) (gateway.AgentReply, error) {
	result := make(chan jobResult, 1)
	select {
	case d.queue <- job{invoke: invoke, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.reply, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitAsync enqueues an invocation without waiting for its result;
// failures are logged and otherwise discarded, matching the "a thunk
// that throws is logged and discarded" failure semantics.
func (d *Dispatcher) SubmitAsync(invoke Invocation) {
	select {
	case d.queue <- job{invoke: invoke}:
	default:
		logger.Warn("dispatcher queue full, dropping invocation")
	}
}

type panicError struct{ value any }

func (p panicError) Error() string {
	return "panic in dispatcher invocation"
}
