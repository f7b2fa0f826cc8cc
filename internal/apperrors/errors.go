// Package apperrors carries the typed error taxonomy shared across the
// store, job manager and pipelines, grounded on the sentinel-error
// style of internal/pipeline/worker.go and internal/session/manager.go.
package apperrors

import (
	"errors"
	"fmt"
)

// Storage errors (C6).
var (
	ErrJobNotFound      = errors.New("job not found")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMemberConflict   = errors.New("member already has a job in this room")
)

// JobCreationError wraps a failure to persist a new job.
type JobCreationError struct {
	Cause error
}

func (e *JobCreationError) Error() string { return fmt.Sprintf("job creation failed: %v", e.Cause) }
func (e *JobCreationError) Unwrap() error  { return e.Cause }

// StorageException wraps any other unexpected storage-layer failure.
type StorageException struct {
	Op    string
	Cause error
}

func (e *StorageException) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Cause)
}
func (e *StorageException) Unwrap() error { return e.Cause }

// AudioFormatError signals that a packet (or the stream as a whole)
// could not be decoded under the format tag the caller supplied.
type AudioFormatError struct {
	Format string
	Cause  error
}

func (e *AudioFormatError) Error() string {
	return fmt.Sprintf("unsupported or malformed audio (format=%s): %v", e.Format, e.Cause)
}
func (e *AudioFormatError) Unwrap() error { return e.Cause }

// Recognizer errors (C3).
var (
	ErrModelNotLoaded    = errors.New("recognizer model not loaded")
	ErrSTTProcessing     = errors.New("speech recognition failed for this segment")
)

// Summarizer errors (C4/C5/C8).
var (
	ErrLLMConnection = errors.New("summarizer connection failed")
	ErrLLMResponse   = errors.New("summarizer returned an invalid response")
	ErrLLMTimeout    = errors.New("summarizer request timed out")
)

// Queue / pool control errors (C3).
var (
	ErrQueueFull    = errors.New("recognition queue is full")
	ErrQueueStopped = errors.New("recognition pool has stopped")
)
