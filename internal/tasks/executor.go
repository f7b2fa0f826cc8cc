// Package tasks implements a bounded background task executor and the
// Room Aggregation task that reduces completed room-member transcripts
// into one combined summary. Grounded on cmd/discord-voice-mcp/main.go's
// goroutine-per-background-job style, generalized into a small
// bounded-concurrency executor so a burst of room-ready events can't
// spawn unbounded goroutines.
package tasks

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Executor runs submitted functions on a bounded pool of goroutines.
// At-least-once, idempotent-write semantics are assumed of submitted
// functions; Executor itself never retries on its own.
type Executor struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewExecutor builds an Executor allowing up to maxConcurrent tasks to
// run at once.
func NewExecutor(maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Executor{sem: make(chan struct{}, maxConcurrent)}
}

// Submit runs fn asynchronously once a concurrency slot is free.
func (e *Executor) Submit(ctx context.Context, fn func(context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-e.sem }()

		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("background task panicked")
			}
		}()
		fn(ctx)
	}()
}

// Wait blocks until every submitted task has returned. Used at
// shutdown to avoid leaking in-flight room aggregation attempts.
func (e *Executor) Wait() { e.wg.Wait() }
