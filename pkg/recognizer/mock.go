package recognizer

import (
	"context"
	"fmt"
)

// Mock is a deterministic Recognizer used by tests and by the default
// configuration when no real backend is configured. It echoes the
// byte-length of the segment it was given so tests can assert ordering
// without needing a real model.
type Mock struct {
	ready bool
	// NextText, if set, is returned verbatim for every call instead of
	// the canned "[segment N bytes]" text.
	NextText string
}

// NewMock returns a ready Mock.
func NewMock() *Mock { return &Mock{ready: true} }

func (m *Mock) Load(ctx context.Context) error {
	m.ready = true
	return nil
}

func (m *Mock) TranscribeSegment(ctx context.Context, pcm []byte, promptContext string) (Result, error) {
	if !m.ready {
		return Result{}, fmt.Errorf("mock recognizer not loaded")
	}
	text := m.NextText
	if text == "" {
		text = fmt.Sprintf("[segment %d bytes]", len(pcm))
	}
	return Result{Text: text, Confidence: 0.99}, nil
}

func (m *Mock) TranscribeFileStreaming(ctx context.Context, path string) (<-chan FileSegment, error) {
	out := make(chan FileSegment, 1)
	out <- FileSegment{Text: "[mock file transcript]", StartMs: 0, EndMs: 1000, IsLast: true}
	close(out)
	return out, nil
}

func (m *Mock) IsReady() bool { return m.ready }
func (m *Mock) Close() error  { return nil }
