// Package jobmanager implements the Job Manager (C8): a façade over
// the Job Store (C6) and Event Bus (C7), directly grounded on
// original_source/stt_api/services/storage/job_manager.py's method
// surface (create_job, get_job cache-first, update_status, save_segment,
// get_segments, log_error, get_errors, publish_event, subscribe_events,
// room methods, check_and_trigger_room_summary).
//
// The Python original fronts its DB with a Redis cache for read-through
// lookups; that cache is an external fast-KV collaborator out of scope
// here, so GetJob's cache-first behavior is represented as an optional
// second-level Cache interface that is consulted before the Store and
// best-effort written back to, preserving the read-through shape
// without requiring a concrete Redis client in this repo.
package jobmanager

import (
	"context"
	"sort"
	"time"

	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/fankserver/curemate-stt/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Cache is the optional fast read-through layer job_manager.py keeps
// in front of the database. A nil Cache (the default) simply disables
// the read-through path and every GetJob call falls through to Store.
type Cache interface {
	Get(ctx context.Context, jobID uuid.UUID) (*model.Job, bool)
	Set(ctx context.Context, job *model.Job)
}

// TaskExecutor is the narrow background-task-submission interface this
// package depends on: fire-and-forget, at-least-once, idempotent-write
// semantics assumed by the caller.
type TaskExecutor interface {
	Submit(ctx context.Context, fn func(context.Context))
}

// Manager is the Job Manager façade.
type Manager struct {
	store  store.Store
	bus    *eventbus.Bus
	cache  Cache
	tasks  TaskExecutor
}

// New builds a Manager. cache may be nil.
func New(st store.Store, bus *eventbus.Bus, cache Cache, tasks TaskExecutor) *Manager {
	return &Manager{store: st, bus: bus, cache: cache, tasks: tasks}
}

// CreateJob persists a new job and best-effort primes the cache,
// mirroring job_manager.py's create_job.
func (m *Manager) CreateJob(ctx context.Context, kind model.JobKind, metadata map[string]interface{}) (*model.Job, error) {
	job := model.NewJob(kind, metadata)
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	m.primeCache(ctx, job)
	return job, nil
}

// CreateJobWithRoom persists a new realtime job scoped to a room and
// member, rejecting a duplicate member with ErrMemberConflict.
func (m *Manager) CreateJobWithRoom(ctx context.Context, roomID, memberID string, metadata map[string]interface{}) (*model.Job, error) {
	job := model.NewJob(model.KindRealtime, metadata)
	if err := m.store.CreateJobWithRoom(ctx, job, roomID, memberID); err != nil {
		return nil, err
	}
	m.primeCache(ctx, job)
	return job, nil
}

// GetJob looks in the cache first, falling back to the store on a miss
// and writing the result back to the cache, mirroring job_manager.py's
// get_job cache-then-DB read-through.
func (m *Manager) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	if m.cache != nil {
		if job, ok := m.cache.Get(ctx, id); ok {
			return job, nil
		}
	}

	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	m.primeCache(ctx, job)
	return job, nil
}

func (m *Manager) primeCache(ctx context.Context, job *model.Job) {
	if m.cache == nil {
		return
	}
	m.cache.Set(ctx, job)
}

// UpdateStatus transitions a job's status and optional transcript/
// summary/error fields, syncing the cache afterward.
func (m *Manager) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, opts ...func(*model.Job)) (*model.Job, error) {
	job, err := m.store.UpdateJob(ctx, id, func(j *model.Job) {
		j.Status = status
		for _, opt := range opts {
			opt(j)
		}
	})
	if err != nil {
		return nil, err
	}
	m.primeCache(ctx, job)

	logrus.WithFields(logrus.Fields{
		"job_id": id,
		"status": status,
	}).Info("job status updated")

	return job, nil
}

// WithTranscript sets the job's transcript text.
func WithTranscript(text string) func(*model.Job) {
	return func(j *model.Job) { j.Transcript = text }
}

// WithSummary sets the job's summary text.
func WithSummary(text string) func(*model.Job) {
	return func(j *model.Job) { j.Summary = text }
}

// WithError sets the job's informational/error message.
func WithError(msg string) func(*model.Job) {
	return func(j *model.Job) { j.Error = msg }
}

// SaveSegment appends a transcript segment and publishes it to
// subscribers of this job.
func (m *Manager) SaveSegment(ctx context.Context, seg model.Segment) error {
	if err := m.store.AppendSegment(ctx, seg); err != nil {
		return err
	}
	m.PublishEvent(seg.JobID, eventbus.Event{
		Type: eventbus.EventTranscriptSegment,
		Data: eventbus.TranscriptSegmentData{SequenceNum: seg.SequenceNum, Text: seg.Text, Status: seg.Status},
	})
	return nil
}

// GetSegments lists a job's segments in sequence order. The store keeps
// them in append order, which for a multi-worker realtime job is
// recognition-completion order, so they are re-sorted here.
func (m *Manager) GetSegments(ctx context.Context, jobID uuid.UUID) ([]model.Segment, error) {
	segs, err := m.store.ListSegments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].SequenceNum < segs[j].SequenceNum })
	return segs, nil
}

// LogError appends a stage-tagged error record for a job.
func (m *Manager) LogError(ctx context.Context, jobID uuid.UUID, stage, message string) error {
	return m.store.AppendErrorLog(ctx, model.ErrorLog{
		JobID:     jobID,
		Stage:     stage,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// GetErrors lists a job's error log entries.
func (m *Manager) GetErrors(ctx context.Context, jobID uuid.UUID) ([]model.ErrorLog, error) {
	return m.store.ListErrorLogs(ctx, jobID)
}

// PublishEvent publishes an event to a job's subscribers.
func (m *Manager) PublishEvent(jobID uuid.UUID, event eventbus.Event) {
	m.bus.Publish(jobID.String(), event)
}

// SubscribeEvents subscribes to a job's live events.
func (m *Manager) SubscribeEvents(jobID uuid.UUID, subscriberID string) (<-chan eventbus.Event, func()) {
	return m.bus.Subscribe(jobID.String(), subscriberID)
}

// --- Room operations ---

// ActiveMemberJob reports the id of memberID's still-active (PENDING
// or PROCESSING) job in roomID, if any, so a second join attempt from
// the same member can be rejected with the conflicting job's id.
func (m *Manager) ActiveMemberJob(ctx context.Context, roomID, memberID string) (uuid.UUID, bool, error) {
	return m.store.ActiveMemberJob(ctx, roomID, memberID)
}

// GetRoomInfo fetches room metadata.
func (m *Manager) GetRoomInfo(ctx context.Context, roomID string) (*model.Room, error) {
	return m.store.GetRoom(ctx, roomID)
}

// IsRoomReadyForSummary reports whether every member job in the room
// has reached TRANSCRIBED or COMPLETED. A FAILED member never
// contributes to readiness, so a room with a failed member never
// auto-aggregates.
func (m *Manager) IsRoomReadyForSummary(ctx context.Context, roomID string) (bool, error) {
	summary, err := m.store.RoomStatusSummary(ctx, roomID)
	if err != nil {
		return false, err
	}
	if summary.TotalMembers == 0 {
		return false, nil
	}
	done := summary.ByStatus[model.StatusTranscribed] + summary.ByStatus[model.StatusCompleted]
	return done == summary.TotalMembers, nil
}

// CheckAndTriggerRoomSummary re-checks readiness and, if ready,
// submits the room aggregation task via the background task executor,
// mirroring job_manager.py's check_and_trigger_room_summary. aggregate
// is supplied by the caller (internal/tasks) to avoid an import cycle
// between jobmanager and tasks.
func (m *Manager) CheckAndTriggerRoomSummary(ctx context.Context, roomID string, aggregate func(context.Context, string)) (bool, error) {
	ready, err := m.IsRoomReadyForSummary(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !ready {
		summary, _ := m.store.RoomStatusSummary(ctx, roomID)
		logrus.WithFields(logrus.Fields{
			"room_id":       roomID,
			"total_members": summary.TotalMembers,
			"by_status":     summary.ByStatus,
		}).Debug("room not yet ready for summary")
		return false, nil
	}

	if m.tasks != nil {
		m.tasks.Submit(ctx, func(taskCtx context.Context) { aggregate(taskCtx, roomID) })
	} else {
		go aggregate(context.Background(), roomID)
	}
	return true, nil
}

// CompletedRoomTranscripts returns every member whose job has a
// transcript available, in job-creation order.
func (m *Manager) CompletedRoomTranscripts(ctx context.Context, roomID string) ([]store.ParticipantTranscript, error) {
	return m.store.CompletedRoomTranscripts(ctx, roomID)
}

// WriteRoomSummary persists the room's aggregated summary.
func (m *Manager) WriteRoomSummary(ctx context.Context, roomID, summary string) error {
	return m.store.WriteRoomSummary(ctx, roomID, summary)
}
