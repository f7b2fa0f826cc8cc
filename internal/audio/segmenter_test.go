package audio

import "testing"

func silentFrame() []byte  { return make([]byte, FrameBytes) }
func loudFrame() []byte {
	frame := make([]byte, FrameBytes)
	for i := 0; i < len(frame)/2; i++ {
		frame[2*i] = 0xFF
		frame[2*i+1] = 0x7F // near int16 max
	}
	return frame
}

func newTestSegmenter() *Segmenter {
	return NewSegmenter(SegmenterConfig{
		EnergyThreshold:  0.1,
		MinSpeechFrames:  2,
		MaxSilenceFrames: 2,
	})
}

func TestSegmenterRequiresMinSpeechFramesBeforeStarting(t *testing.T) {
	s := newTestSegmenter()

	if ev := s.ProcessFrame(loudFrame()); ev != EventNone {
		t.Fatalf("expected no event on first speech frame, got %v", ev)
	}
	// Still below MinSpeechFrames=2, not yet confirmed in-speech.
	if s.inSpeech {
		t.Fatal("expected segmenter to not yet be in speech")
	}
}

func TestSegmenterEmitsSegmentAfterTrailingSilence(t *testing.T) {
	s := newTestSegmenter()

	s.ProcessFrame(loudFrame())
	s.ProcessFrame(loudFrame()) // confirms in-speech at MinSpeechFrames=2

	if !s.inSpeech {
		t.Fatal("expected segmenter to be in speech after MinSpeechFrames consecutive loud frames")
	}

	s.ProcessFrame(silentFrame())
	ev := s.ProcessFrame(silentFrame()) // MaxSilenceFrames=2 reached
	if ev != EventSegmentReady {
		t.Fatalf("expected EventSegmentReady after MaxSilenceFrames silence, got %v", ev)
	}

	seg := s.TakeSegment()
	if len(seg) != FrameBytes*4 {
		t.Errorf("expected segment to include both speech and trailing silence frames (%d bytes), got %d", FrameBytes*4, len(seg))
	}
}

func TestSegmenterDiscardsSpeculativeBufferOnFalseStart(t *testing.T) {
	s := newTestSegmenter()

	s.ProcessFrame(loudFrame()) // speculative buffering begins
	s.ProcessFrame(silentFrame()) // drops below MinSpeechFrames before confirming

	if s.inSpeech {
		t.Fatal("expected segmenter to not be in speech after a false start")
	}
	if len(s.pending) != 0 {
		t.Errorf("expected speculative buffer cleared after false start, got %d bytes", len(s.pending))
	}
}

func TestFlushReturnsOpenSegment(t *testing.T) {
	s := newTestSegmenter()
	s.ProcessFrame(loudFrame())
	s.ProcessFrame(loudFrame())

	final := s.Flush()
	if len(final) != FrameBytes*2 {
		t.Errorf("expected flush to return the open segment (%d bytes), got %d", FrameBytes*2, len(final))
	}
	if s.inSpeech {
		t.Error("expected flush to reset in-speech state")
	}
}

func TestFlushReturnsNilWhenNothingPending(t *testing.T) {
	s := newTestSegmenter()
	s.ProcessFrame(silentFrame())

	if final := s.Flush(); final != nil {
		t.Errorf("expected nil flush with nothing pending, got %d bytes", len(final))
	}
}

func TestFlushDropsSpeculativeBufferBelowMinSpeechFrames(t *testing.T) {
	s := newTestSegmenter()
	// MinSpeechFrames=2: one loud frame only gets as far as the
	// speculative pre-confirmation buffer, never reaching in-speech.
	s.ProcessFrame(loudFrame())

	if final := s.Flush(); final != nil {
		t.Errorf("expected the sub-threshold speculative buffer to be dropped, got %d bytes", len(final))
	}
}
