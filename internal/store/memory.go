package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fankserver/curemate-stt/internal/apperrors"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// roomMember records which member submitted which job within a room,
// so CompletedRoomTranscripts can key transcripts by member.
type roomMember struct {
	jobID    uuid.UUID
	memberID string
}

// Memory is an in-process Store, the reference implementation used
// when no external database is wired. A production deployment swaps
// this for a relational-store-backed implementation behind the same
// Store interface without touching the Job Manager or pipelines.
type Memory struct {
	mu sync.RWMutex

	jobs     map[uuid.UUID]*model.Job
	segments map[uuid.UUID][]model.Segment
	errors   map[uuid.UUID][]model.ErrorLog
	rooms    map[string]*model.Room
	members  map[string][]roomMember // roomID -> members
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[uuid.UUID]*model.Job),
		segments: make(map[uuid.UUID][]model.Segment),
		errors:   make(map[uuid.UUID][]model.ErrorLog),
		rooms:    make(map[string]*model.Room),
		members:  make(map[string][]roomMember),
	}
}

func (m *Memory) CreateJob(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return &apperrors.JobCreationError{Cause: fmt.Errorf("job %s already exists", job.ID)}
	}
	cp := *job
	m.jobs[job.ID] = &cp

	logrus.WithField("job_id", job.ID).Debug("job created")
	return nil
}

func (m *Memory) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, apperrors.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *Memory) UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*model.Job)) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, apperrors.ErrJobNotFound
	}
	mutate(job)
	job.UpdatedAt = time.Now()
	cp := *job
	return &cp, nil
}

func (m *Memory) AppendSegment(ctx context.Context, seg model.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[seg.JobID]; !exists {
		return apperrors.ErrJobNotFound
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now()
	}
	m.segments[seg.JobID] = append(m.segments[seg.JobID], seg)
	return nil
}

func (m *Memory) ListSegments(ctx context.Context, jobID uuid.UUID) ([]model.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	segs := m.segments[jobID]
	out := make([]model.Segment, len(segs))
	copy(out, segs)
	return out, nil
}

func (m *Memory) AppendErrorLog(ctx context.Context, e model.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.errors[e.JobID] = append(m.errors[e.JobID], e)
	return nil
}

func (m *Memory) ListErrorLogs(ctx context.Context, jobID uuid.UUID) ([]model.ErrorLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := m.errors[jobID]
	out := make([]model.ErrorLog, len(errs))
	copy(out, errs)
	return out, nil
}

func (m *Memory) GetOrCreateRoom(ctx context.Context, roomID string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, exists := m.rooms[roomID]; exists {
		cp := *room
		return &cp, nil
	}
	room := &model.Room{ID: roomID, Status: model.RoomActive, CreatedAt: time.Now()}
	m.rooms[roomID] = room
	cp := *room
	return &cp, nil
}

func (m *Memory) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, apperrors.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

// ActiveMemberJob reports the id of memberID's PENDING or PROCESSING
// job in roomID, if any. A member whose prior job already reached a
// terminal status (TRANSCRIBED/COMPLETED/FAILED) is free to start a
// new one.
func (m *Memory) ActiveMemberJob(ctx context.Context, roomID, memberID string) (uuid.UUID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mem := range m.members[roomID] {
		if mem.memberID != memberID {
			continue
		}
		job, exists := m.jobs[mem.jobID]
		if !exists {
			continue
		}
		if job.Status == model.StatusPending || job.Status == model.StatusProcessing {
			return mem.jobID, true, nil
		}
	}
	return uuid.UUID{}, false, nil
}

func (m *Memory) CreateJobWithRoom(ctx context.Context, job *model.Job, roomID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mem := range m.members[roomID] {
		if mem.memberID != memberID {
			continue
		}
		if existing, exists := m.jobs[mem.jobID]; exists &&
			(existing.Status == model.StatusPending || existing.Status == model.StatusProcessing) {
			return apperrors.ErrMemberConflict
		}
	}
	if _, exists := m.jobs[job.ID]; exists {
		return &apperrors.JobCreationError{Cause: fmt.Errorf("job %s already exists", job.ID)}
	}

	if _, exists := m.rooms[roomID]; !exists {
		m.rooms[roomID] = &model.Room{ID: roomID, Status: model.RoomActive, CreatedAt: time.Now()}
	}

	job.RoomID = roomID
	job.MemberID = memberID
	cp := *job
	m.jobs[job.ID] = &cp
	m.members[roomID] = append(m.members[roomID], roomMember{jobID: job.ID, memberID: memberID})

	return nil
}

func (m *Memory) CountRoomMembers(ctx context.Context, roomID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[roomID]), nil
}

func (m *Memory) RoomStatusSummary(ctx context.Context, roomID string) (RoomStatusSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := RoomStatusSummary{ByStatus: make(map[model.JobStatus]int)}
	for _, mem := range m.members[roomID] {
		job, exists := m.jobs[mem.jobID]
		if !exists {
			continue
		}
		summary.TotalMembers++
		summary.ByStatus[job.Status]++
	}
	return summary, nil
}

func (m *Memory) CompletedRoomTranscripts(ctx context.Context, roomID string) ([]ParticipantTranscript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ParticipantTranscript
	for _, mem := range m.members[roomID] {
		job, exists := m.jobs[mem.jobID]
		if !exists {
			continue
		}
		if (job.Status == model.StatusCompleted || job.Status == model.StatusTranscribed) && job.Transcript != "" {
			out = append(out, ParticipantTranscript{MemberID: mem.memberID, Transcript: job.Transcript})
		}
	}
	return out, nil
}

func (m *Memory) WriteRoomSummary(ctx context.Context, roomID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return apperrors.ErrRoomNotFound
	}
	room.TotalSummary = summary
	room.Status = model.RoomClosed
	return nil
}
