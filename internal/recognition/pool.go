// Package recognition implements the Recognition Worker Pool (C3): a
// fixed pool of workers draining an ordered in-queue, recognizing each
// segment and emitting results to an out-queue tagged with the
// sequence number assigned at enqueue time (not completion order).
//
// Grounded on internal/pipeline/queue.go + internal/pipeline/worker.go,
// generalized from a three-tier priority queue down to a single ordered
// queue with a pending-segments back-pressure counter, and simplified
// from a per-segment retry loop to a single recognition attempt per
// segment: recognizer errors become per-segment error results, not
// retryable faults.
package recognition

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fankserver/curemate-stt/internal/apperrors"
	"github.com/fankserver/curemate-stt/pkg/recognizer"
	"github.com/sirupsen/logrus"
)

// Segment is one unit of work submitted to the pool.
type Segment struct {
	JobID         string
	SequenceNum   int
	PCM           []byte
	PromptContext string // snapshotted by value at enqueue time, never a shared mutable ref
	SubmittedAt   time.Time
}

// Outcome is what the pool emits for a processed segment, in the same
// shape whether recognition succeeded or failed.
type Outcome struct {
	Segment    Segment
	Text       string
	Err        error
	ProcessDur time.Duration
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	WorkerCount int
	QueueSize   int
	GuardConfig HallucinationGuardConfig
}

// DefaultPoolConfig is the default worker count of 3.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount: 3,
		QueueSize:   64,
		GuardConfig: DefaultHallucinationGuardConfig(),
	}
}

// Pool is a fixed-size worker pool over a single Recognizer. One Pool
// is scoped to a single job's pipeline.
type Pool struct {
	in     chan Segment
	out    chan Outcome
	rec    recognizer.Recognizer
	guard  *HallucinationGuard
	config PoolConfig

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	pending int32 // back-pressure counter: segments submitted but not yet emitted
	closed  int32
}

// New builds and starts a Pool against rec.
func New(rec recognizer.Recognizer, cfg PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		in:     make(chan Segment, cfg.QueueSize),
		out:    make(chan Outcome, cfg.QueueSize),
		rec:    rec,
		guard:  NewHallucinationGuard(cfg.GuardConfig),
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}

	logrus.WithField("workers", cfg.WorkerCount).Info("recognition worker pool started")
	return p
}

// Submit enqueues a segment for recognition. Returns ErrQueueStopped
// once the pool has begun shutting down, ErrQueueFull if the in-queue
// is saturated.
func (p *Pool) Submit(seg Segment) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return apperrors.ErrQueueStopped
	}
	atomic.AddInt32(&p.pending, 1)
	select {
	case p.in <- seg:
		return nil
	case <-time.After(100 * time.Millisecond):
		atomic.AddInt32(&p.pending, -1)
		return apperrors.ErrQueueFull
	}
}

// PendingSegments reports how many submitted segments have not yet
// produced an outcome — the back-pressure signal C4 watches.
func (p *Pool) PendingSegments() int {
	return int(atomic.LoadInt32(&p.pending))
}

// Outcomes returns the channel outcomes are delivered on. Consumers
// must keep draining it until it is closed by Stop.
func (p *Pool) Outcomes() <-chan Outcome { return p.out }

// Stop signals workers to exit after draining the in-queue (sentinel
// shutdown: closing p.in causes each worker's range loop to end once
// the queue empties), then waits up to deadline for them to join.
func (p *Pool) Stop(deadline time.Duration) bool {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return true
	}
	close(p.in)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(p.out)
		logrus.Info("recognition worker pool stopped")
		return true
	case <-time.After(deadline):
		p.cancel()
		logrus.Warn("recognition worker pool join deadline exceeded, forcing cancellation")
		<-done
		close(p.out)
		return false
	}
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	logger := logrus.WithField("worker_id", id)
	logger.Debug("recognition worker started")
	defer logger.Debug("recognition worker stopped")

	for seg := range p.in {
		outcome := p.processSegment(seg)
		atomic.AddInt32(&p.pending, -1)

		select {
		case p.out <- outcome:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) processSegment(seg Segment) Outcome {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, 30*time.Second)
	defer cancel()

	result, err := p.rec.TranscribeSegment(ctx, seg.PCM, seg.PromptContext)
	dur := time.Since(start)

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id":   seg.JobID,
			"sequence": seg.SequenceNum,
		}).Warn("segment recognition failed")
		return Outcome{Segment: seg, Err: apperrors.ErrSTTProcessing, ProcessDur: dur}
	}

	text := result.Text
	if p.guard.IsHallucination(text) {
		logrus.WithFields(logrus.Fields{
			"job_id":   seg.JobID,
			"sequence": seg.SequenceNum,
			"text":     text,
		}).Debug("discarding suspected hallucinated segment text")
		text = ""
	}

	return Outcome{Segment: seg, Text: text, ProcessDur: dur}
}
