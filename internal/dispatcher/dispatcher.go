// Package dispatcher implements the Dispatcher (C9): the HTTP/WS
// surface, routing batch requests onto the Batch Pipeline (C5), live
// connections onto the Stream Pipeline (C4), and serving SSE
// backfill-then-live transcript events.
//
// The active-jobs table is grounded on
// internal/bot/simple_ssrc_manager.go's map+mutex registry pattern; the
// WS handler's control flow (accept, update status, drain inbound
// frames, finalize on disconnect) and SSE handler are grounded on
// original_source/stt_api/api/stream_endpoints.py, reexpressed with
// net/http + github.com/gorilla/websocket instead of FastAPI/asyncio.
package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fankserver/curemate-stt/internal/batch"
	"github.com/fankserver/curemate-stt/internal/config"
	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/jobmanager"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/fankserver/curemate-stt/internal/recognition"
	"github.com/fankserver/curemate-stt/internal/stream"
	"github.com/fankserver/curemate-stt/internal/tasks"
	"github.com/fankserver/curemate-stt/pkg/recognizer"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Dispatcher wires the Job Manager, pipelines and recognizer/
// summarizer factories behind the HTTP surface.
type Dispatcher struct {
	jm         *jobmanager.Manager
	cfg        config.Config
	newRec     func() recognizer.Recognizer
	sum        summarizer.Summarizer
	executor   *tasks.Executor
	aggregator *tasks.RoomAggregator

	upgrader websocket.Upgrader

	mu         sync.RWMutex
	activeJobs map[uuid.UUID]*stream.Pipeline
}

// New builds a Dispatcher. newRec constructs a fresh Recognizer for
// each realtime job's worker pool (each pool owns its recognizer
// instance); sum is shared across jobs since it is stateless.
func New(jm *jobmanager.Manager, cfg config.Config, newRec func() recognizer.Recognizer, sum summarizer.Summarizer, executor *tasks.Executor, aggregator *tasks.RoomAggregator) *Dispatcher {
	return &Dispatcher{
		jm:         jm,
		cfg:        cfg,
		newRec:     newRec,
		sum:        sum,
		executor:   executor,
		aggregator: aggregator,
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		activeJobs: make(map[uuid.UUID]*stream.Pipeline),
	}
}

// Routes registers the full HTTP/WS surface on mux.
func (d *Dispatcher) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/conversation/request", d.handleConversationRequest)
	mux.HandleFunc("GET /api/v1/conversation/result/{job_id}", d.handleResult)
	mux.HandleFunc("GET /api/v1/conversation/stream-events/{job_id}", d.handleStreamEvents)
	mux.HandleFunc("GET /api/v1/conversation/errors/{job_id}", d.handleErrors)
	mux.HandleFunc("POST /api/v1/stream/create", d.handleStreamCreate)
	mux.HandleFunc("GET /ws/v1/stream/{job_id}", d.handleStreamWS)
	mux.HandleFunc("GET /api/v1/stream/room/{room_id}", d.handleRoom)
	mux.HandleFunc("GET /api/v1/stream/health", d.handleHealth)
}

func (d *Dispatcher) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Batch (C5) ---

func (d *Dispatcher) handleConversationRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse upload: "+err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field: "+err.Error())
		return
	}
	defer file.Close()

	path, err := spoolToTemp(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not stage upload: "+err.Error())
		return
	}

	job, err := d.jm.CreateJob(r.Context(), model.KindBatch, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create job: "+err.Error())
		return
	}

	rec := d.newRec()
	d.executor.Submit(context.Background(), func(ctx context.Context) {
		if err := rec.Load(ctx); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Error("batch recognizer load failed")
			return
		}
		defer rec.Close()
		batch.Run(ctx, job.ID, path, d.jm, rec, d.sum)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.ID.String(),
		"job_type": string(model.KindBatch),
		"status":   string(job.Status),
		"message":  "upload accepted, processing started",
	})
}

func (d *Dispatcher) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job_id")
		return
	}
	job, err := d.jm.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (d *Dispatcher) handleErrors(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job_id")
		return
	}
	errs, err := d.jm.GetErrors(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

// handleStreamEvents serves SSE: it first backfills every already-
// persisted segment (and the final summary/error, if the job has
// already reached a terminal state) from the store, then forwards live
// events until a final_summary event arrives, the subscription closes,
// or the client disconnects, matching the backfill-then-live-merge
// semantics described above.
func (d *Dispatcher) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job_id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	job, err := d.jm.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	segs, _ := d.jm.GetSegments(r.Context(), jobID)
	for _, seg := range segs {
		writeSSE(w, eventbus.Event{Type: eventbus.EventTranscriptSegment, Data: eventbus.TranscriptSegmentData{
			SequenceNum:  seg.SequenceNum,
			Text:         seg.Text,
			Status:       seg.Status,
			IsHistorical: true,
		}})
	}
	flusher.Flush()

	// COMPLETED and FAILED are done for good. A TRANSCRIBED job with an
	// Error set is also done for good: that's the empty-transcript path,
	// which skips summarization entirely and never transitions further.
	// A TRANSCRIBED job with no Error is still in flight — a
	// final_summary (or a summarizer-failure error) may yet arrive — so
	// it falls through to the live subscription below instead.
	if isTerminal(job.Status) || (job.Status == model.StatusTranscribed && job.Error != "") {
		if job.Status == model.StatusCompleted {
			writeSSE(w, eventbus.Event{Type: eventbus.EventFinalSummary, Data: eventbus.FinalSummaryData{
				Summary:       job.Summary,
				TotalSegments: len(segs),
				IsHistorical:  true,
			}})
		} else if job.Error != "" {
			writeSSE(w, eventbus.Event{Type: eventbus.EventError, Data: eventbus.ErrorData{Message: job.Error, IsHistorical: true}})
		}
		flusher.Flush()
		return
	}

	subscriberID := uuid.NewString()
	live, unsubscribe := d.jm.SubscribeEvents(jobID, subscriberID)
	defer unsubscribe()

	for {
		select {
		case event, ok := <-live:
			if !ok {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
			if event.Type == eventbus.EventFinalSummary {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// isTerminal reports whether a job's SSE stream is over for good.
// TRANSCRIBED is deliberately excluded: it is the normal step just
// before COMPLETED, and a subscriber attaching while a job sits at
// TRANSCRIBED still needs to receive the eventual final_summary (or a
// summarizer-failure error) from the live subscription.
func isTerminal(s model.JobStatus) bool {
	return s == model.StatusCompleted || s == model.StatusFailed
}

func writeSSE(w http.ResponseWriter, event eventbus.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}

// --- Realtime (C4) ---

func (d *Dispatcher) handleStreamCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID      string                 `json:"room_id"`
		MemberID    string                 `json:"member_id"`
		Metadata    map[string]interface{} `json:"metadata"`
		AudioFormat string                 `json:"audio_format"`
		SampleRate  int                    `json:"sample_rate"`
		Channels    int                    `json:"channels"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.Metadata == nil {
		req.Metadata = map[string]interface{}{}
	}
	if req.AudioFormat != "" {
		req.Metadata["audio_format"] = req.AudioFormat
	}
	if req.SampleRate > 0 {
		req.Metadata["sample_rate"] = req.SampleRate
	}
	if req.Channels > 0 {
		req.Metadata["channels"] = req.Channels
	}

	var job *model.Job
	var err error
	if req.RoomID != "" {
		activeJobID, exists, checkErr := d.jm.ActiveMemberJob(r.Context(), req.RoomID, req.MemberID)
		if checkErr != nil {
			writeError(w, http.StatusInternalServerError, checkErr.Error())
			return
		}
		if exists {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "member already has a job in this room",
				"job_id": activeJobID.String(),
			})
			return
		}
		job, err = d.jm.CreateJobWithRoom(r.Context(), req.RoomID, req.MemberID, req.Metadata)
	} else {
		job, err = d.jm.CreateJob(r.Context(), model.KindRealtime, req.Metadata)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create job: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"job_id":   job.ID.String(),
		"job_type": string(model.KindRealtime),
		"status":   string(job.Status),
	})
}

func (d *Dispatcher) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		http.Error(w, "invalid job_id", http.StatusBadRequest)
		return
	}

	job, err := d.jm.GetJob(r.Context(), jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if _, err := d.jm.UpdateStatus(r.Context(), jobID, model.StatusProcessing); err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Error("failed to mark realtime job processing")
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": "internal error"})
		return
	}

	_ = conn.WriteJSON(map[string]string{"type": "connection_success"})

	rec := d.newRec()
	if err := rec.Load(r.Context()); err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Error("recognizer load failed for realtime job")
		_ = d.jm.LogError(context.Background(), jobID, "recognizer_load", err.Error())
		return
	}

	pool := recognition.New(rec, d.cfg.PoolConfig())
	convCfg := d.cfg.ConverterConfigFromMetadata(job.Metadata)
	pipeline, err := stream.New(jobID, d.cfg.PipelineConfig(convCfg), d.jm, pool, d.sum)
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Error("failed to construct stream pipeline")
		return
	}

	d.registerActive(jobID, pipeline)
	defer d.finalizeOnce(jobID, pipeline, rec)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// Normal disconnect: no ErrorLog entry.
			return
		}
		if err := pipeline.ProcessPacket(payload); err != nil {
			logrus.WithError(err).WithField("job_id", jobID).Debug("dropping packet after format error")
		}
	}
}

func (d *Dispatcher) registerActive(jobID uuid.UUID, p *stream.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeJobs[jobID] = p
}

// finalizeOnce runs the pipeline's finalize exactly once per
// connection (a socket can only close once) and always removes the job
// from the active-jobs table afterward, preventing the leak the
// Python original's `finally: active_jobs.pop(...)` guards against.
func (d *Dispatcher) finalizeOnce(jobID uuid.UUID, p *stream.Pipeline, rec recognizer.Recognizer) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainDeadline+d.cfg.JoinDeadline+5*time.Second)
	defer cancel()

	p.Finalize(ctx)
	rec.Close()

	d.mu.Lock()
	delete(d.activeJobs, jobID)
	d.mu.Unlock()

	job, err := d.jm.GetJob(ctx, jobID)
	if err == nil && job.RoomID != "" {
		d.executor.Submit(context.Background(), func(taskCtx context.Context) {
			if _, err := d.jm.CheckAndTriggerRoomSummary(taskCtx, job.RoomID, func(aggCtx context.Context, roomID string) {
				d.aggregator.Run(aggCtx, roomID, d.jm)
			}); err != nil {
				logrus.WithError(err).WithField("room_id", job.RoomID).Error("room summary trigger check failed")
			}
		})
	}
}

func (d *Dispatcher) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	room, err := d.jm.GetRoomInfo(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// spoolToTemp copies an uploaded file to a temp path the Batch Pipeline
// can hand to the recognizer's file-based interface; the pipeline
// removes this file once it's done (internal/batch.Run's defer).
func spoolToTemp(src interface {
	Read([]byte) (int, error)
}) (string, error) {
	f, err := os.CreateTemp("", "curemate-stt-upload-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				os.Remove(f.Name())
				return "", writeErr
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				os.Remove(f.Name())
				return "", readErr
			}
			break
		}
	}
	return f.Name(), nil
}
