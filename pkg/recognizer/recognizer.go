// Package recognizer declares the consumed speech-to-text interface
// (the model itself is an external collaborator, out of scope) and
// ships a deterministic mock plus a subprocess-backed reference
// implementation. Grounded on pkg/transcriber/interface.go and
// pkg/transcriber/context_transcriber.go.
package recognizer

import "context"

// Result is the outcome of recognizing one segment of audio.
type Result struct {
	Text       string
	Confidence float32
}

// FileSegment is one utterance produced while streaming a whole file
// through the batch recognizer.
type FileSegment struct {
	Text    string
	StartMs int64
	EndMs   int64
	IsLast  bool
}

// Recognizer is the narrow interface the pipelines depend on. Load is
// called on each freshly constructed Recognizer before first use — the
// dispatcher builds and loads one per job, so no model is loaded at
// process startup; TranscribeSegment is called per-segment by
// the Recognition Worker Pool (C3); TranscribeFileStreaming is called
// once per batch job (C5).
type Recognizer interface {
	Load(ctx context.Context) error

	// TranscribeSegment recognizes one already-framed, already-VAD-cut
	// slice of 16kHz mono 16-bit PCM, optionally biased by a rolling
	// prompt context snapshot.
	TranscribeSegment(ctx context.Context, pcm []byte, promptContext string) (Result, error)

	// TranscribeFileStreaming recognizes a whole audio file, yielding
	// segments in order as the backend produces them. The channel is
	// closed when recognition finishes or ctx is done; a non-nil error
	// is returned only for a fatal, whole-file failure.
	TranscribeFileStreaming(ctx context.Context, path string) (<-chan FileSegment, error)

	IsReady() bool
	Close() error
}
