// Package store declares the Job Store (C6) interface — the durable
// relational store itself is an external collaborator out of scope —
// and ships an in-memory reference implementation grounded on
// internal/session/manager.go's map+RWMutex pattern, generalized from
// a single Session entity to the full Job/Segment/ErrorLog/Room model.
package store

import (
	"context"

	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/google/uuid"
)

// RoomStatusSummary reports per-status member-job counts for a room,
// used by the Job Manager's readiness check.
type RoomStatusSummary struct {
	TotalMembers int
	ByStatus     map[model.JobStatus]int
}

// ParticipantTranscript is one member's transcript, ordered by the
// position its job was created in the room.
type ParticipantTranscript struct {
	MemberID   string
	Transcript string
}

// Store is the durable persistence interface consumed by the Job
// Manager (C8). Each method is independently atomic in the
// single-process sense; there is no cross-method transaction API
// because nothing in this system needs multi-statement atomicity.
type Store interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*model.Job)) (*model.Job, error)

	AppendSegment(ctx context.Context, seg model.Segment) error
	ListSegments(ctx context.Context, jobID uuid.UUID) ([]model.Segment, error)

	AppendErrorLog(ctx context.Context, e model.ErrorLog) error
	ListErrorLogs(ctx context.Context, jobID uuid.UUID) ([]model.ErrorLog, error)

	GetOrCreateRoom(ctx context.Context, roomID string) (*model.Room, error)
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
	// ActiveMemberJob returns the id of memberID's still-active (PENDING
	// or PROCESSING) job in roomID, if any, so a duplicate join attempt
	// can be rejected with the conflicting job's identifier. The zero
	// uuid.UUID with ok=false means no active job exists.
	ActiveMemberJob(ctx context.Context, roomID, memberID string) (jobID uuid.UUID, ok bool, err error)
	CreateJobWithRoom(ctx context.Context, job *model.Job, roomID, memberID string) error
	CountRoomMembers(ctx context.Context, roomID string) (int, error)
	RoomStatusSummary(ctx context.Context, roomID string) (RoomStatusSummary, error)
	// CompletedRoomTranscripts returns every member whose job has a
	// transcript available, in job-creation order.
	CompletedRoomTranscripts(ctx context.Context, roomID string) ([]ParticipantTranscript, error)
	WriteRoomSummary(ctx context.Context, roomID, summary string) error
}
