package store

import (
	"context"
	"errors"
	"testing"

	"github.com/fankserver/curemate-stt/internal/apperrors"
	"github.com/fankserver/curemate-stt/internal/model"
)

func TestCreateAndGetJobRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	job := model.NewJob(model.KindBatch, nil)

	if err := m.CreateJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != job.ID || got.Status != model.StatusPending {
		t.Errorf("expected round-tripped job, got %+v", got)
	}
}

func TestGetJobNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetJob(context.Background(), model.NewJob(model.KindBatch, nil).ID)
	if !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpdateJobAppliesMutation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	job := model.NewJob(model.KindBatch, nil)
	_ = m.CreateJob(ctx, job)

	updated, err := m.UpdateJob(ctx, job.ID, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.Summary = "done"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusCompleted || updated.Summary != "done" {
		t.Errorf("expected mutation applied, got %+v", updated)
	}
}

func TestAppendAndListSegmentsPreservesOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	job := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJob(ctx, job)

	for i := 1; i <= 3; i++ {
		if err := m.AppendSegment(ctx, model.Segment{JobID: job.ID, Text: "x", SequenceNum: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	segs, err := m.ListSegments(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if seg.SequenceNum != i+1 {
			t.Errorf("expected sequence %d at index %d, got %d", i+1, i, seg.SequenceNum)
		}
	}
}

func TestCreateJobWithRoomRejectsDuplicateMember(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job1 := model.NewJob(model.KindRealtime, nil)
	if err := m.CreateJobWithRoom(ctx, job1, "room-1", "member-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job2 := model.NewJob(model.KindRealtime, nil)
	err := m.CreateJobWithRoom(ctx, job2, "room-1", "member-a")
	if !errors.Is(err, apperrors.ErrMemberConflict) {
		t.Errorf("expected ErrMemberConflict for duplicate member, got %v", err)
	}
}

func TestRoomStatusSummaryCountsByStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	jobA := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobA, "room-1", "a")
	jobB := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobB, "room-1", "b")

	_, _ = m.UpdateJob(ctx, jobA.ID, func(j *model.Job) { j.Status = model.StatusCompleted })

	summary, err := m.RoomStatusSummary(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalMembers != 2 {
		t.Errorf("expected 2 total members, got %d", summary.TotalMembers)
	}
	if summary.ByStatus[model.StatusCompleted] != 1 || summary.ByStatus[model.StatusPending] != 1 {
		t.Errorf("expected 1 completed + 1 pending, got %v", summary.ByStatus)
	}
}

func TestCompletedRoomTranscriptsOnlyIncludesTerminalJobs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	jobA := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobA, "room-1", "a")
	jobB := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobB, "room-1", "b")

	_, _ = m.UpdateJob(ctx, jobA.ID, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.Transcript = "hello from a"
	})

	transcripts, err := m.CompletedRoomTranscripts(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transcripts) != 1 || transcripts[0].MemberID != "a" || transcripts[0].Transcript != "hello from a" {
		t.Errorf("expected only member a's transcript, got %v", transcripts)
	}
}

func TestCompletedRoomTranscriptsPreservesJobCreationOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	jobB := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobB, "room-1", "zeta")
	jobA := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, jobA, "room-1", "alpha")

	_, _ = m.UpdateJob(ctx, jobB.ID, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.Transcript = "b text"
	})
	_, _ = m.UpdateJob(ctx, jobA.ID, func(j *model.Job) {
		j.Status = model.StatusTranscribed
		j.Transcript = "a text"
	})

	transcripts, err := m.CompletedRoomTranscripts(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transcripts) != 2 || transcripts[0].MemberID != "zeta" || transcripts[1].MemberID != "alpha" {
		t.Errorf("expected job-creation order (zeta, alpha), got %v", transcripts)
	}
}

func TestActiveMemberJobIgnoresTerminalPriorJob(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job1 := model.NewJob(model.KindRealtime, nil)
	_ = m.CreateJobWithRoom(ctx, job1, "room-1", "member-a")
	_, _ = m.UpdateJob(ctx, job1.ID, func(j *model.Job) { j.Status = model.StatusCompleted })

	if _, ok, err := m.ActiveMemberJob(ctx, "room-1", "member-a"); err != nil || ok {
		t.Errorf("expected no active job once the prior job completed, ok=%v err=%v", ok, err)
	}

	job2 := model.NewJob(model.KindRealtime, nil)
	if err := m.CreateJobWithRoom(ctx, job2, "room-1", "member-a"); err != nil {
		t.Fatalf("expected a second job to be allowed once the first completed, got %v", err)
	}

	jobID, ok, err := m.ActiveMemberJob(ctx, "room-1", "member-a")
	if err != nil || !ok || jobID != job2.ID {
		t.Errorf("expected job2 reported active, got id=%v ok=%v err=%v", jobID, ok, err)
	}
}

func TestWriteRoomSummaryClosesRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.GetOrCreateRoom(ctx, "room-1")

	if err := m.WriteRoomSummary(ctx, "room-1", "combined summary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	room, err := m.GetRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.Status != model.RoomClosed || room.TotalSummary != "combined summary" {
		t.Errorf("expected closed room with summary, got %+v", room)
	}
}
