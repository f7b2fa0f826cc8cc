package recognizer

import (
	"context"
	"testing"
)

func TestMockTranscribeSegmentReturnsCannedTextByLength(t *testing.T) {
	m := NewMock()
	result, err := m.TranscribeSegment(context.Background(), make([]byte, 42), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[segment 42 bytes]"
	if result.Text != want {
		t.Errorf("expected %q, got %q", want, result.Text)
	}
}

func TestMockTranscribeSegmentPrefersNextText(t *testing.T) {
	m := NewMock()
	m.NextText = "override"
	result, err := m.TranscribeSegment(context.Background(), make([]byte, 10), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "override" {
		t.Errorf("expected override text, got %q", result.Text)
	}
}

func TestMockTranscribeSegmentFailsWhenNotLoaded(t *testing.T) {
	m := &Mock{}
	if _, err := m.TranscribeSegment(context.Background(), nil, ""); err == nil {
		t.Error("expected an error from an unloaded mock recognizer")
	}
}

func TestMockTranscribeFileStreamingYieldsOneLastSegment(t *testing.T) {
	m := NewMock()
	ch, err := m.TranscribeFileStreaming(context.Background(), "/tmp/whatever.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seg, ok := <-ch
	if !ok {
		t.Fatal("expected one segment from the mock file stream")
	}
	if !seg.IsLast {
		t.Error("expected the sole segment to be marked IsLast")
	}

	if _, ok := <-ch; ok {
		t.Error("expected the channel to be closed after the single segment")
	}
}

func TestMockIsReadyAfterLoad(t *testing.T) {
	m := &Mock{}
	if m.IsReady() {
		t.Error("expected a freshly constructed mock to not be ready")
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.IsReady() {
		t.Error("expected the mock to be ready after Load")
	}
}
