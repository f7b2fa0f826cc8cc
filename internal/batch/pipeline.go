// Package batch implements the Batch Pipeline (C5): a whole uploaded
// file is handed directly to the Recognizer's own streaming-segment
// interface, bypassing the Audio Converter and VAD Segmenter (the
// batch recognizer performs its own framing/VAD internally). A
// look-ahead over the segment channel tags the last segment so the
// caller can distinguish "more to come" from "finished".
//
// Grounded on original_source/stt_api/api/batch_endpoints.py and
// stt_service.py (streaming recognizer over a file, look-ahead to the
// last segment, cleanup-in-defer for the temp upload file), reusing
// the empty/non-empty transcript handling from the Stream Pipeline.
package batch

import (
	"context"
	"os"
	"strings"

	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/jobmanager"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/fankserver/curemate-stt/pkg/recognizer"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// noSpeechMessage mirrors internal/stream's informational message for
// an empty transcript.
const noSpeechMessage = "no speech detected"

// Run executes the batch pipeline for jobID against the audio file at
// path, which is always removed before Run returns regardless of
// outcome. On an unexpected failure the job is marked FAILED and an
// ErrorLog entry is written; the empty/non-empty transcript handling
// mirrors the Stream Pipeline's finalize().
func Run(ctx context.Context, jobID uuid.UUID, path string, jm *jobmanager.Manager, rec recognizer.Recognizer, sum summarizer.Summarizer) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).WithField("job_id", jobID).Warn("failed to clean up batch upload temp file")
		}
	}()

	if _, err := jm.UpdateStatus(ctx, jobID, model.StatusProcessing); err != nil {
		failJob(ctx, jm, jobID, "status_update", err)
		return
	}

	segCh, err := rec.TranscribeFileStreaming(ctx, path)
	if err != nil {
		failJob(ctx, jm, jobID, "recognition", err)
		return
	}

	transcript, sequenceCount := drainWithLookahead(ctx, jobID, jm, segCh)

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		if _, err := jm.UpdateStatus(ctx, jobID, model.StatusTranscribed,
			jobmanager.WithTranscript(""), jobmanager.WithError(noSpeechMessage)); err != nil {
			failJob(ctx, jm, jobID, "status_update", err)
			return
		}
		jm.PublishEvent(jobID, eventbus.Event{
			Type: eventbus.EventError,
			Data: eventbus.ErrorData{Message: noSpeechMessage},
		})
		_ = sequenceCount
		return
	}

	if _, err := jm.UpdateStatus(ctx, jobID, model.StatusTranscribed, jobmanager.WithTranscript(transcript)); err != nil {
		failJob(ctx, jm, jobID, "status_update", err)
		return
	}

	summary, err := sum.GetSummary(ctx, transcript)
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Warn("summarizer failed, batch job stays TRANSCRIBED")
		_ = jm.LogError(ctx, jobID, "summarization", err.Error())
		jm.PublishEvent(jobID, eventbus.Event{
			Type: eventbus.EventError,
			Data: eventbus.ErrorData{Message: err.Error()},
		})
		return
	}

	job, err := jm.UpdateStatus(ctx, jobID, model.StatusCompleted, jobmanager.WithSummary(summary))
	if err != nil {
		failJob(ctx, jm, jobID, "status_update", err)
		return
	}

	jm.PublishEvent(jobID, eventbus.Event{
		Type: eventbus.EventFinalSummary,
		Data: eventbus.FinalSummaryData{Summary: job.Summary, TotalSegments: sequenceCount},
	})
}

// drainWithLookahead reads segCh one-ahead so it can tag the final
// segment as IsLast before persisting it, saving each segment to the
// store/event bus as it's confirmed not to be a look-ahead artifact.
func drainWithLookahead(ctx context.Context, jobID uuid.UUID, jm *jobmanager.Manager, segCh <-chan recognizer.FileSegment) (string, int) {
	var transcript strings.Builder
	sequence := 0

	current, ok := <-segCh
	for ok {
		next, hasNext := <-segCh

		sequence++
		current.IsLast = !hasNext
		if transcript.Len() > 0 {
			transcript.WriteString(" ")
		}
		transcript.WriteString(current.Text)

		status := "PROCESSING"
		if current.IsLast {
			status = "TRANSCRIBED"
		}

		if err := jm.SaveSegment(ctx, model.Segment{
			JobID:       jobID,
			Text:        current.Text,
			StartMs:     int64Ptr(current.StartMs),
			EndMs:       int64Ptr(current.EndMs),
			SequenceNum: sequence,
			Status:      status,
		}); err != nil {
			logrus.WithError(err).WithField("job_id", jobID).Warn("failed to persist batch segment")
		}

		current, ok = next, hasNext
	}

	return transcript.String(), sequence
}

func int64Ptr(v int64) *int64 { return &v }

func failJob(ctx context.Context, jm *jobmanager.Manager, jobID uuid.UUID, stage string, err error) {
	logrus.WithError(err).WithField("job_id", jobID).Error("batch pipeline failed")
	_ = jm.LogError(ctx, jobID, stage, err.Error())
	if _, uerr := jm.UpdateStatus(ctx, jobID, model.StatusFailed, jobmanager.WithError(err.Error())); uerr != nil {
		logrus.WithError(uerr).WithField("job_id", jobID).Error("failed to mark batch job failed")
	}
}
