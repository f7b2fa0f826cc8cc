// Package model holds the durable entities shared by the store, job
// manager, pipelines and dispatcher: Job, Segment, ErrorLog and Room.
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the monotone lifecycle state of a Job.
type JobStatus string

const (
	StatusPending      JobStatus = "PENDING"
	StatusProcessing   JobStatus = "PROCESSING"
	StatusTranscribed  JobStatus = "TRANSCRIBED"
	StatusCompleted    JobStatus = "COMPLETED"
	StatusFailed       JobStatus = "FAILED"
)

// JobKind distinguishes the batch (whole-file) path from the realtime
// (bidirectional stream) path.
type JobKind string

const (
	KindBatch    JobKind = "BATCH"
	KindRealtime JobKind = "REALTIME"
)

// Job is the central unit of work: one audio conversation, one
// transcript, one summary.
type Job struct {
	ID         uuid.UUID              `json:"id"`
	Kind       JobKind                `json:"kind"`
	Status     JobStatus              `json:"status"`
	Transcript string                 `json:"transcript,omitempty"`
	Summary    string                 `json:"summary,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	RoomID     string                 `json:"room_id,omitempty"`
	MemberID   string                 `json:"member_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// NewJob builds a Job in PENDING status with a freshly minted id.
func NewJob(kind JobKind, metadata map[string]interface{}) *Job {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    StatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Segment is one ordered chunk of recognized speech within a Job's
// transcript. SequenceNum is dense starting at 1 and reflects enqueue
// order, not completion order.
type Segment struct {
	JobID       uuid.UUID `json:"job_id"`
	Text        string    `json:"text"`
	StartMs     *int64    `json:"start_ms,omitempty"`
	EndMs       *int64    `json:"end_ms,omitempty"`
	SequenceNum int       `json:"sequence_num"`
	// Status is the publish-time status tag carried on the segment's
	// transcript_segment event (e.g. a batch job tags every segment but
	// the last PROCESSING, the last TRANSCRIBED); empty for pipelines
	// that don't distinguish per-segment status.
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorLog is an append-only record of a stage-tagged failure for a
// Job. Never mutated or deleted once written.
type ErrorLog struct {
	JobID     uuid.UUID `json:"job_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomStatus tracks whether a room is still accepting member jobs.
type RoomStatus string

const (
	RoomActive RoomStatus = "ACTIVE"
	RoomClosed RoomStatus = "CLOSED"
)

// Room groups several members' realtime jobs for a combined summary.
type Room struct {
	ID           string     `json:"id"`
	Status       RoomStatus `json:"status"`
	TotalSummary string     `json:"total_summary,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
