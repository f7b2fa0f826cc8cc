// Package audio implements the Audio Converter (C1) and VAD Segmenter
// (C2) stages. The converter turns tagged input packets into a steady
// stream of 960-byte (30ms @ 16kHz mono 16-bit) PCM frames; the
// segmenter (segmenter.go) turns those frames into speech segments.
//
// Grounded on internal/audio/vad.go's stereo-downmix and windowed-sinc
// downsample routines, generalized from the fixed 48kHz Discord input
// to the converter's three format-tag strategies, and on
// layeh.com/gopus for the streaming-codec (opus/webm) path.
package audio

import (
	"fmt"
	"sync"

	"github.com/fankserver/curemate-stt/internal/apperrors"
	"github.com/sirupsen/logrus"
	"layeh.com/gopus"
)

// FrameBytes is the fixed output frame size: 30ms of 16kHz mono 16-bit
// PCM (16000 * 0.03 * 2 bytes/sample = 960 bytes).
const FrameBytes = 960

// FrameSamples is FrameBytes expressed in int16 samples.
const FrameSamples = FrameBytes / 2

// FormatTag selects the Converter's decode strategy for a job.
type FormatTag string

const (
	FormatPCM  FormatTag = "pcm"  // raw interleaved 16-bit PCM at the declared rate/channels
	FormatOpus FormatTag = "opus" // streaming codec, decoded packet by packet
	FormatWebM FormatTag = "webm" // streaming codec, decoded packet by packet
	FormatMP3  FormatTag = "mp3"  // whole-file codec, handled by Recognizer directly
	FormatAAC  FormatTag = "aac"  // whole-file codec, handled by Recognizer directly
)

// IsWholeFile reports whether this format tag is handled by feeding
// the whole file to the batch recognizer rather than framed by the
// Converter (C5 bypasses C1/C2 for these formats).
func (f FormatTag) IsWholeFile() bool {
	return f == FormatMP3 || f == FormatAAC
}

// Converter turns packets of a given input format into 960-byte PCM
// frames. One Converter instance is scoped to a single pipeline (a
// single job); it is not safe to share across jobs.
type Converter struct {
	format       FormatTag
	inputRate    int
	inputChannels int

	decoder *gopus.Decoder // only set for FormatOpus and FormatWebM

	carry []byte // bytes left over from the last ConvertPacket call

	mu               sync.Mutex
	packetsConverted int64
	framesEmitted    int64
	decodeFailures   int64
}

// ConverterConfig describes the input stream's native layout.
type ConverterConfig struct {
	Format        FormatTag
	InputRateHz   int // e.g. 48000 for Discord-style Opus, 16000 for raw PCM already at target rate
	InputChannels int // 1 or 2
}

// NewConverter builds a Converter for one pipeline.
func NewConverter(cfg ConverterConfig) (*Converter, error) {
	c := &Converter{
		format:        cfg.Format,
		inputRate:     cfg.InputRateHz,
		inputChannels: cfg.InputChannels,
	}
	if cfg.Format == FormatOpus || cfg.Format == FormatWebM {
		dec, err := gopus.NewDecoder(cfg.InputRateHz, cfg.InputChannels)
		if err != nil {
			return nil, fmt.Errorf("opus decoder init: %w", err)
		}
		c.decoder = dec
	}
	return c, nil
}

// ConvertPacket decodes one input packet and returns zero or more
// complete 960-byte frames. Bytes that don't fill a whole frame are
// retained in the carry buffer for the next call. A single packet's
// decode failure is logged at debug and swallowed (returns no frames,
// no error) so one bad packet doesn't tear down the pipeline. A
// Converter built for a whole-file format (mp3/aac) does not decode
// packets: every call returns an AudioFormatError.
func (c *Converter) ConvertPacket(packet []byte) ([][]byte, error) {
	var pcm []byte
	var err error

	switch c.format {
	case FormatPCM:
		pcm = packet
	case FormatOpus:
		pcm, err = c.decodeOpus(packet)
	case FormatWebM:
		// WebM-contained Opus: the container framing is assumed already
		// stripped by the upload layer; the payload reaching here is raw
		// Opus packets, same decode path.
		pcm, err = c.decodeOpus(packet)
	default:
		return nil, &apperrors.AudioFormatError{Format: string(c.format), Cause: fmt.Errorf("whole-file format %q is not frame-converted", c.format)}
	}

	if err != nil {
		c.mu.Lock()
		c.decodeFailures++
		c.mu.Unlock()
		logrus.WithError(err).WithField("format", c.format).Debug("dropping undecodable packet")
		return nil, nil
	}

	pcm = c.normalize(pcm)

	c.mu.Lock()
	c.packetsConverted++
	c.mu.Unlock()

	return c.frame(pcm), nil
}

func (c *Converter) decodeOpus(packet []byte) ([]byte, error) {
	samples, err := c.decoder.Decode(packet, FrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}

// normalize downmixes to mono and resamples to 16kHz if the input
// layout differs from the target, reusing the stereo-averaging and
// linear-interpolation decimation technique of internal/audio/vad.go's
// downsampler.
func (c *Converter) normalize(pcm []byte) []byte {
	if c.inputChannels == 2 {
		pcm = downmixStereoToMono(pcm)
	}
	if c.inputRate != 16000 && c.inputRate > 0 {
		pcm = resampleLinear(pcm, c.inputRate, 16000)
	}
	return pcm
}

// frame splits pcm into FrameBytes chunks, carrying any remainder
// forward to the next call.
func (c *Converter) frame(pcm []byte) [][]byte {
	buf := append(c.carry, pcm...)

	var frames [][]byte
	n := len(buf) / FrameBytes
	for i := 0; i < n; i++ {
		frame := make([]byte, FrameBytes)
		copy(frame, buf[i*FrameBytes:(i+1)*FrameBytes])
		frames = append(frames, frame)
	}

	c.carry = append([]byte{}, buf[n*FrameBytes:]...)

	c.mu.Lock()
	c.framesEmitted += int64(len(frames))
	c.mu.Unlock()

	return frames
}

// Flush returns a final, zero-padded frame if a partial frame remains
// in the carry buffer, and clears it.
func (c *Converter) Flush() []byte {
	if len(c.carry) == 0 {
		return nil
	}
	last := make([]byte, FrameBytes)
	copy(last, c.carry)
	c.carry = nil
	return last
}

// Stats reports cumulative counters for diagnostics.
type ConverterStats struct {
	PacketsConverted int64
	FramesEmitted    int64
	DecodeFailures   int64
}

func (c *Converter) Stats() ConverterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConverterStats{
		PacketsConverted: c.packetsConverted,
		FramesEmitted:    c.framesEmitted,
		DecodeFailures:   c.decodeFailures,
	}
}

// downmixStereoToMono averages interleaved stereo int16 PCM into mono,
// using int32 accumulation to avoid overflow, matching
// internal/audio/vad.go's convertToMonoInPlace.
func downmixStereoToMono(pcm []byte) []byte {
	samples := len(pcm) / 2
	if samples%2 != 0 {
		samples--
	}
	frames := samples / 2
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(uint16(pcm[4*i]) | uint16(pcm[4*i+1])<<8))
		r := int32(int16(uint16(pcm[4*i+2]) | uint16(pcm[4*i+3])<<8))
		avg := int16((l + r) / 2)
		out[2*i] = byte(avg)
		out[2*i+1] = byte(avg >> 8)
	}
	return out
}

// resampleLinear performs simple linear-interpolation resampling
// between arbitrary PCM sample rates. Anti-aliasing is intentionally
// minimal; callers needing broadcast-quality filtering for a fixed
// ratio should reach for a dedicated windowed-sinc resampler instead.
func resampleLinear(pcm []byte, fromHz, toHz int) []byte {
	if fromHz == toHz || len(pcm) < 2 {
		return pcm
	}
	in := make([]int16, len(pcm)/2)
	for i := range in {
		in[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}

	ratio := float64(fromHz) / float64(toHz)
	outLen := int(float64(len(in)) / ratio)
	out := make([]byte, outLen*2)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		var s int16
		if idx+1 < len(in) {
			s = int16(float64(in[idx])*(1-frac) + float64(in[idx+1])*frac)
		} else if idx < len(in) {
			s = in[idx]
		}
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
