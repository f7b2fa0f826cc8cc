// Package stream implements the Stream Pipeline (C4): one instance
// per realtime job, composing the Audio Converter (C1), VAD Segmenter
// (C2) and Recognition Worker Pool (C3), assigning dense per-job
// sequence numbers at enqueue time and driving the job through its
// status lifecycle on finalize.
//
// Grounded on internal/audio/async_processor.go's per-packet
// convert/segment/enqueue/drain loop and event publication on
// completion, and on
// original_source/stt_api/services/pipeline/stream_pipeline.py's
// finalize() sequencing (flush, stop, drain-with-deadline, mark
// TRANSCRIBED, summarize, mark COMPLETED) and prompt-context
// accumulation.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fankserver/curemate-stt/internal/audio"
	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/jobmanager"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/fankserver/curemate-stt/internal/recognition"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// noSpeechMessage is the informational (not fatal) message recorded
// when a job's transcript is empty at finalize, generalized from the
// Korean "대화 내용 없음" ("no conversation content") string in
// original_source/stt_api/services/pipeline/stream_pipeline.py.
const noSpeechMessage = "no speech detected"

// Config bundles the converter/segmenter/pool configuration and the
// finalize deadlines, normally sourced from internal/config.Config.
type Config struct {
	Converter     audio.ConverterConfig
	Segmenter     audio.SegmenterConfig
	Pool          recognition.PoolConfig
	DrainDeadline time.Duration
	JoinDeadline  time.Duration
}

// Pipeline drives a single realtime job end to end.
type Pipeline struct {
	jobID uuid.UUID

	converter *audio.Converter
	segmenter *audio.Segmenter
	pool      *recognition.Pool

	jm  *jobmanager.Manager
	sum summarizer.Summarizer
	cfg Config

	mu            sync.Mutex
	nextSequence  int
	promptContext string // snapshotted by value, never shared with workers
	transcript    []string

	drainDone chan struct{}
}

// New builds a Pipeline for jobID and starts its result-draining
// goroutine. pool must already be started (recognition.New) and bound
// to this job's Recognizer.
func New(jobID uuid.UUID, cfg Config, jm *jobmanager.Manager, pool *recognition.Pool, sum summarizer.Summarizer) (*Pipeline, error) {
	converter, err := audio.NewConverter(cfg.Converter)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		jobID:        jobID,
		converter:    converter,
		segmenter:    audio.NewSegmenter(cfg.Segmenter),
		pool:         pool,
		jm:           jm,
		sum:          sum,
		cfg:          cfg,
		nextSequence: 1,
		drainDone:    make(chan struct{}),
	}

	go p.drainResults()
	return p, nil
}

// ProcessPacket converts one input packet, runs each resulting frame
// through the segmenter, and enqueues any completed segment onto the
// recognition pool with the sequence number reflecting enqueue order.
// A per-packet decode failure is already swallowed by the Converter
// (logged at debug); only a genuinely unrecoverable tag mismatch
// reaches here as an error.
func (p *Pipeline) ProcessPacket(packet []byte) error {
	frames, err := p.converter.ConvertPacket(packet)
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if p.segmenter.ProcessFrame(frame) == audio.EventSegmentReady {
			p.enqueue(p.segmenter.TakeSegment())
		}
	}
	return nil
}

func (p *Pipeline) enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	p.mu.Lock()
	seq := p.nextSequence
	p.nextSequence++
	promptSnapshot := p.promptContext
	p.mu.Unlock()

	seg := recognition.Segment{
		JobID:         p.jobID.String(),
		SequenceNum:   seq,
		PCM:           pcm,
		PromptContext: promptSnapshot,
		SubmittedAt:   time.Now(),
	}

	if err := p.pool.Submit(seg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id":   p.jobID,
			"sequence": seq,
		}).Warn("failed to submit segment to recognition pool")
	}
}

// drainResults appends every completed segment to the job's transcript
// via the Job Manager (which also publishes it to live subscribers)
// and accumulates the in-process transcript used at finalize. It exits
// once the pool closes its Outcomes channel (pool.Stop was called).
func (p *Pipeline) drainResults() {
	defer close(p.drainDone)

	for outcome := range p.pool.Outcomes() {
		p.handleOutcome(outcome)
	}
}

// waitForDrain blocks until the pool has no submitted-but-unemitted
// segments left (in-flight recognition has caught up), or deadline
// elapses, whichever comes first. The pool's workers are still running
// at this point — Stop (which sends the shutdown sentinel and joins
// them) only happens afterward — so this is what actually grants
// in-flight recognition the full drain window instead of the much
// shorter worker-join window.
func (p *Pipeline) waitForDrain(deadline time.Duration) {
	if p.pool.PendingSegments() == 0 {
		return
	}

	timeout := time.After(deadline)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.pool.PendingSegments() == 0 {
				return
			}
		case <-timeout:
			logrus.WithField("job_id", p.jobID).Warn("drain deadline exceeded during finalize")
			return
		}
	}
}

func (p *Pipeline) handleOutcome(outcome recognition.Outcome) {
	seg := outcome.Segment
	text := outcome.Text

	if outcome.Err != nil {
		logrus.WithError(outcome.Err).WithFields(logrus.Fields{
			"job_id":   p.jobID,
			"sequence": seg.SequenceNum,
		}).Warn("segment recognition error, continuing pipeline")
		_ = p.jm.LogError(context.Background(), p.jobID, "recognition", outcome.Err.Error())
		text = ""
	}

	p.mu.Lock()
	if text != "" {
		p.promptContext = rollingPromptContext(p.promptContext, text)
		p.transcript = append(p.transcript, text)
	}
	p.mu.Unlock()

	if err := p.jm.SaveSegment(context.Background(), model.Segment{
		JobID:       p.jobID,
		Text:        text,
		SequenceNum: seg.SequenceNum,
	}); err != nil {
		logrus.WithError(err).WithField("job_id", p.jobID).Warn("failed to persist segment")
	}
}

// Finalize flushes any trailing partial segment, stops accepting new
// audio, waits (up to DrainDeadline) for in-flight recognition to
// finish, joins the pool's workers (up to JoinDeadline), and then
// drives the job's terminal transition: an empty transcript marks the
// job TRANSCRIBED with an informational error and skips
// summarization; otherwise the job is marked TRANSCRIBED, the
// Summarizer is invoked, and on success the job is marked COMPLETED
// (on summarizer failure it is left at TRANSCRIBED).
func (p *Pipeline) Finalize(ctx context.Context) {
	if final := p.segmenter.Flush(); len(final) > 0 {
		p.enqueue(final)
	}

	p.waitForDrain(p.cfg.DrainDeadline)
	p.pool.Stop(p.cfg.JoinDeadline)
	<-p.drainDone

	p.mu.Lock()
	transcript := strings.TrimSpace(joinTranscript(p.transcript))
	p.mu.Unlock()

	if transcript == "" {
		if _, err := p.jm.UpdateStatus(ctx, p.jobID, model.StatusTranscribed,
			jobmanager.WithTranscript(""), jobmanager.WithError(noSpeechMessage)); err != nil {
			logrus.WithError(err).WithField("job_id", p.jobID).Error("failed to record empty-transcript status")
		}
		p.jm.PublishEvent(p.jobID, eventbus.Event{
			Type: eventbus.EventError,
			Data: eventbus.ErrorData{Message: noSpeechMessage},
		})
		return
	}

	if _, err := p.jm.UpdateStatus(ctx, p.jobID, model.StatusTranscribed, jobmanager.WithTranscript(transcript)); err != nil {
		logrus.WithError(err).WithField("job_id", p.jobID).Error("failed to mark job transcribed")
		return
	}

	summary, err := p.sum.GetSummary(ctx, transcript)
	if err != nil {
		logrus.WithError(err).WithField("job_id", p.jobID).Warn("summarizer failed, job stays TRANSCRIBED")
		_ = p.jm.LogError(ctx, p.jobID, "summarization", err.Error())
		p.jm.PublishEvent(p.jobID, eventbus.Event{
			Type: eventbus.EventError,
			Data: eventbus.ErrorData{Message: err.Error()},
		})
		return
	}

	job, err := p.jm.UpdateStatus(ctx, p.jobID, model.StatusCompleted, jobmanager.WithSummary(summary))
	if err != nil {
		logrus.WithError(err).WithField("job_id", p.jobID).Error("failed to mark job completed")
		return
	}

	segs, _ := p.jm.GetSegments(ctx, p.jobID)
	p.jm.PublishEvent(p.jobID, eventbus.Event{
		Type: eventbus.EventFinalSummary,
		Data: eventbus.FinalSummaryData{Summary: job.Summary, TotalSegments: len(segs)},
	})
}

func rollingPromptContext(prev, latest string) string {
	combined := prev
	if combined != "" {
		combined += " "
	}
	combined += latest
	const maxRunes = 500
	runes := []rune(combined)
	if len(runes) > maxRunes {
		runes = runes[len(runes)-maxRunes:]
	}
	return string(runes)
}

func joinTranscript(parts []string) string {
	return strings.Join(parts, " ")
}
