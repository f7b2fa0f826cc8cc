package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/fankserver/curemate-stt/internal/store"
)

type fakeRoomJobManager struct {
	readyAfter     int
	checks         int
	transcripts    []store.ParticipantTranscript
	writtenSummary string
}

func (f *fakeRoomJobManager) IsRoomReadyForSummary(ctx context.Context, roomID string) (bool, error) {
	f.checks++
	return f.checks >= f.readyAfter, nil
}

func (f *fakeRoomJobManager) CompletedRoomTranscripts(ctx context.Context, roomID string) ([]store.ParticipantTranscript, error) {
	return f.transcripts, nil
}

func (f *fakeRoomJobManager) WriteRoomSummary(ctx context.Context, roomID, summary string) error {
	f.writtenSummary = summary
	return nil
}

type fakeSummarizer struct{ summary string }

func (f *fakeSummarizer) CheckConnection(ctx context.Context) error { return nil }
func (f *fakeSummarizer) GetSummary(ctx context.Context, transcript string) (string, error) {
	return f.summary, nil
}

func TestRoomAggregatorSummarizesWhenReady(t *testing.T) {
	jm := &fakeRoomJobManager{
		readyAfter: 1,
		transcripts: []store.ParticipantTranscript{
			{MemberID: "bob", Transcript: "hi there"},
			{MemberID: "alice", Transcript: "hello"},
		},
	}
	agg := NewRoomAggregator(&fakeSummarizer{summary: "combined"}, 3, time.Millisecond)

	agg.Run(context.Background(), "room-1", jm)

	if jm.writtenSummary != "combined" {
		t.Errorf("expected summary to be written, got %q", jm.writtenSummary)
	}
}

func TestRoomAggregatorRetriesUntilReady(t *testing.T) {
	jm := &fakeRoomJobManager{
		readyAfter:  3,
		transcripts: []store.ParticipantTranscript{{MemberID: "a", Transcript: "x"}},
	}
	agg := NewRoomAggregator(&fakeSummarizer{summary: "s"}, 5, time.Millisecond)

	agg.Run(context.Background(), "room-1", jm)

	if jm.checks < 3 {
		t.Errorf("expected at least 3 readiness checks, got %d", jm.checks)
	}
	if jm.writtenSummary != "s" {
		t.Error("expected summary eventually written once ready")
	}
}

func TestRoomAggregatorGivesUpAfterMaxRetries(t *testing.T) {
	jm := &fakeRoomJobManager{readyAfter: 1000}
	agg := NewRoomAggregator(&fakeSummarizer{summary: "s"}, 2, time.Millisecond)

	agg.Run(context.Background(), "room-1", jm)

	if jm.writtenSummary != "" {
		t.Error("expected no summary written when the room never becomes ready")
	}
}

func TestConcatenateParticipantsPreservesJobCreationOrder(t *testing.T) {
	out := concatenateParticipants([]store.ParticipantTranscript{
		{MemberID: "bob", Transcript: "b text"},
		{MemberID: "alice", Transcript: "a text"},
	})
	want := "participant: bob\nb text\n\nparticipant: alice\na text"
	if out != want {
		t.Errorf("expected creation-order participant concatenation, got %q", out)
	}
}
