package service

import (
	"context"
	"time"
)

// gate admits one generation at a time with a bounded FIFO wait queue.
type gate struct {
	queueCh chan struct{}
	genCh   chan struct{}
	maxWait time.Duration
}

func newGate(depth int, maxWait time.Duration) *gate {
	if depth <= 0 {
		depth = 1
	}
	return &gate{
		queueCh: make(chan struct{}, depth),
		genCh:   make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// begin reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (g *gate) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-g.queueCh
		}
	}()
	select {
	case g.genCh <- struct{}{}:
		acquired = true
		return func() { <-g.genCh; <-g.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}
}

// waiting is the number of generations queued behind the running one.
func (g *gate) waiting() int {
	n := len(g.queueCh) - len(g.genCh)
	if n < 0 {
		return 0
	}
	return n
}

func (g *gate) inflight() int { return len(g.genCh) }
