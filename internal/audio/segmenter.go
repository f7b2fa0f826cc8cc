package audio

import "math"

// SegmenterConfig carries the VAD hysteresis thresholds.
type SegmenterConfig struct {
	// EnergyThreshold is the minimum RMS-normalized energy (0..1) for a
	// frame to count as speech.
	EnergyThreshold float64
	// MinSpeechFrames is the number of consecutive speech frames
	// required before a segment is considered started.
	MinSpeechFrames int
	// MaxSilenceFrames is the number of consecutive silence frames
	// allowed within a segment before it is closed.
	MaxSilenceFrames int
}

// SegmentEvent is what ProcessFrame returns after observing one frame.
type SegmentEvent int

const (
	// EventNone means no segment boundary occurred on this frame.
	EventNone SegmentEvent = iota
	// EventSegmentReady means a complete speech segment is available
	// via TakeSegment.
	EventSegmentReady
)

// Segmenter is a single-frame-per-call VAD state machine. One
// Segmenter instance is scoped to a single pipeline (a single job);
// none of its state is shared across jobs. Grounded on internal/audio/vad.go's
// speechCount/silenceCount/isSpeaking hysteresis fields and
// updateState transition logic, generalized from the WebRTC-VAD
// boolean decision to a configurable energy threshold (also grounded
// on voicetyped's internal/speech/engine/vad.go EnergyThreshold shape).
type Segmenter struct {
	cfg SegmenterConfig

	inSpeech      bool
	speechFrames  int
	silenceFrames int

	pending []byte // accumulated PCM for the in-progress segment
}

// NewSegmenter builds a Segmenter with the given thresholds.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// ProcessFrame accepts exactly one 960-byte (30ms) PCM frame and
// updates the hysteresis state machine. When it returns
// EventSegmentReady, call TakeSegment to retrieve and clear the
// accumulated speech audio.
func (s *Segmenter) ProcessFrame(frame []byte) SegmentEvent {
	isSpeechFrame := frameEnergy(frame) >= s.cfg.EnergyThreshold

	if isSpeechFrame {
		s.speechFrames++
		s.silenceFrames = 0
	} else {
		s.silenceFrames++
	}

	if !s.inSpeech {
		if isSpeechFrame && s.speechFrames >= s.cfg.MinSpeechFrames {
			s.inSpeech = true
			s.pending = append(s.pending, frame...)
		} else if isSpeechFrame {
			// Still counting up to MinSpeechFrames; buffer speculatively so
			// the segment doesn't lose its first frames once confirmed.
			s.pending = append(s.pending, frame...)
		} else {
			s.pending = nil
			s.speechFrames = 0
		}
		return EventNone
	}

	// Already in speech: keep accumulating through short silences.
	s.pending = append(s.pending, frame...)

	if !isSpeechFrame && s.silenceFrames >= s.cfg.MaxSilenceFrames {
		s.inSpeech = false
		s.speechFrames = 0
		s.silenceFrames = 0
		return EventSegmentReady
	}

	return EventNone
}

// TakeSegment returns the accumulated PCM for the just-closed segment
// and resets the accumulator.
func (s *Segmenter) TakeSegment() []byte {
	seg := s.pending
	s.pending = nil
	return seg
}

// Flush is called once at end-of-stream. A confirmed open segment
// (already past MinSpeechFrames) is returned as a final segment; a
// speculative buffer that never reached MinSpeechFrames is dropped,
// matching ProcessFrame's own confirmation threshold.
func (s *Segmenter) Flush() []byte {
	wasOpen := s.inSpeech
	speechFrames := s.speechFrames
	seg := s.pending
	s.pending = nil
	s.inSpeech = false
	s.speechFrames = 0
	s.silenceFrames = 0

	if !wasOpen && speechFrames < s.cfg.MinSpeechFrames {
		return nil
	}
	return seg
}

// frameEnergy computes a normalized RMS energy (0..1) for a 16-bit PCM
// frame, the same measure voicetyped's VAD uses (rmsEnergy).
func frameEnergy(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sumSquares float64
	n := len(frame) / 2
	for i := 0; i < n; i++ {
		s := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		v := float64(s) / 32768.0
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(n))
}
