package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fankserver/curemate-stt/internal/store"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
	"github.com/sirupsen/logrus"
)

// RoomJobManager is the subset of jobmanager.Manager the aggregation
// task needs, kept narrow to avoid an import cycle (jobmanager calls
// into this package to submit the task in the first place).
type RoomJobManager interface {
	IsRoomReadyForSummary(ctx context.Context, roomID string) (bool, error)
	CompletedRoomTranscripts(ctx context.Context, roomID string) ([]store.ParticipantTranscript, error)
	WriteRoomSummary(ctx context.Context, roomID, summary string) error
}

// RoomAggregator runs the Room Aggregation Task: on a ready room, it
// concatenates every member's transcript, asks the Summarizer for one
// combined summary, and writes it back. Grounded on
// original_source/stt_api/services/storage/job_manager.py's
// check_and_trigger_room_summary plus the Celery requeue-with-delay
// convention visible in original_source/patient_api/services/tasks.py.
type RoomAggregator struct {
	summarizer summarizer.Summarizer
	maxRetries int
	retryDelay time.Duration
}

// NewRoomAggregator builds an aggregator with the given retry policy:
// after the first readiness check, up to maxRetries further checks,
// retryDelay apart (internal/config defaults: 5 retries, 10s).
func NewRoomAggregator(s summarizer.Summarizer, maxRetries int, retryDelay time.Duration) *RoomAggregator {
	return &RoomAggregator{summarizer: s, maxRetries: maxRetries, retryDelay: retryDelay}
}

// Run executes the aggregation for roomID, re-checking readiness
// before each attempt (guards against a stale trigger fired just
// before the last member's status write lands) and requeuing with a
// delay up to maxRetries times if the room isn't ready yet.
func (a *RoomAggregator) Run(ctx context.Context, roomID string, jm RoomJobManager) {
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		ready, err := jm.IsRoomReadyForSummary(ctx, roomID)
		if err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Error("room aggregation: readiness check failed")
			return
		}
		if ready {
			a.summarizeRoom(ctx, roomID, jm)
			return
		}

		if attempt == a.maxRetries {
			logrus.WithField("room_id", roomID).Warn("room aggregation: gave up waiting for room readiness")
			return
		}

		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"attempt": attempt + 1,
		}).Debug("room aggregation: not ready yet, requeuing with delay")

		select {
		case <-time.After(a.retryDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (a *RoomAggregator) summarizeRoom(ctx context.Context, roomID string, jm RoomJobManager) {
	transcripts, err := jm.CompletedRoomTranscripts(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("room aggregation: failed to read member transcripts")
		return
	}

	combined := concatenateParticipants(transcripts)

	summary, err := a.summarizer.GetSummary(ctx, combined)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("room aggregation: summarizer call failed")
		return
	}

	if err := jm.WriteRoomSummary(ctx, roomID, summary); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("room aggregation: failed to write room summary")
		return
	}

	logrus.WithField("room_id", roomID).Info("room aggregation complete")
}

// concatenateParticipants joins every member's transcript with a
// "participant: <member>" separator line, in job-creation order,
// generalized (English label, not Korean) from the format described in
// original_source/stt_api/services/storage/job_manager.py.
func concatenateParticipants(transcripts []store.ParticipantTranscript) string {
	var b strings.Builder
	for i, p := range transcripts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "participant: %s\n%s", p.MemberID, p.Transcript)
	}
	return b.String()
}
