package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// WhisperSubprocess shells out to a faster-whisper one-liner per
// segment, the same technique as pkg/transcriber/faster_whisper.go,
// generalized to also drive the file-streaming contract.
type WhisperSubprocess struct {
	modelName   string
	device      string
	computeType string
	language    string
	beamSize    int
	pythonPath  string
}

type whisperSegmentResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type whisperFileSegment struct {
	Text    string  `json:"text"`
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
}

// NewWhisperSubprocess locates a python3 (or python) executable and
// returns a recognizer bound to the given model; whether faster-whisper
// is importable is checked later, by Load.
func NewWhisperSubprocess(modelName string) (*WhisperSubprocess, error) {
	if modelName == "" {
		modelName = "base.en"
	}

	pythonPath, err := exec.LookPath("python3")
	if err != nil {
		pythonPath, err = exec.LookPath("python")
		if err != nil {
			return nil, fmt.Errorf("python executable not found in PATH: %w", err)
		}
	}

	device := envOr("STT_WHISPER_DEVICE", "auto")
	computeType := envOr("STT_WHISPER_COMPUTE_TYPE", "float16")
	language := envOr("STT_WHISPER_LANGUAGE", "auto")

	return &WhisperSubprocess{
		modelName:   modelName,
		device:      device,
		computeType: computeType,
		language:    language,
		beamSize:    1,
		pythonPath:  pythonPath,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load checks that the faster_whisper module importable, matching the
// construction-time check in faster_whisper.go's constructor.
func (w *WhisperSubprocess) Load(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.pythonPath, "-c", "import faster_whisper")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("faster-whisper not installed: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"model":  w.modelName,
		"device": w.device,
	}).Info("whisper subprocess recognizer loaded")
	return nil
}

func (w *WhisperSubprocess) TranscribeSegment(ctx context.Context, pcm []byte, promptContext string) (Result, error) {
	script := w.segmentScript(promptContext)

	cmd := exec.CommandContext(ctx, w.pythonPath, "-c", script)
	cmd.Stdin = bytes.NewReader(pcm)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		logrus.WithError(err).WithField("stderr", errBuf.String()).Error("whisper segment transcription failed")
		return Result{}, fmt.Errorf("whisper subprocess failed: %w", err)
	}

	var resp whisperSegmentResponse
	if err := json.Unmarshal(outBuf.Bytes(), &resp); err != nil {
		text := string(bytes.TrimSpace(outBuf.Bytes()))
		return Result{Text: text, Confidence: 0.5}, nil
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("whisper subprocess reported error: %s", resp.Error)
	}
	return Result{Text: resp.Text, Confidence: 0.9}, nil
}

func (w *WhisperSubprocess) TranscribeFileStreaming(ctx context.Context, path string) (<-chan FileSegment, error) {
	script := w.fileScript(path)
	cmd := exec.CommandContext(ctx, w.pythonPath, "-c", script)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("whisper subprocess stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("whisper subprocess start: %w", err)
	}

	out := make(chan FileSegment, 8)
	go func() {
		defer close(out)
		defer func() { _ = cmd.Wait() }()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var seg whisperFileSegment
			if err := json.Unmarshal(scanner.Bytes(), &seg); err != nil {
				logrus.WithError(err).Warn("discarding malformed whisper file segment line")
				continue
			}
			select {
			case out <- FileSegment{Text: seg.Text, StartMs: seg.StartMs, EndMs: seg.EndMs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (w *WhisperSubprocess) IsReady() bool { return w.pythonPath != "" }
func (w *WhisperSubprocess) Close() error  { return nil }

func (w *WhisperSubprocess) segmentScript(promptContext string) string {
	return fmt.Sprintf(`
import sys, json, numpy as np, warnings
warnings.filterwarnings("ignore")
from faster_whisper import WhisperModel
try:
    audio_data = sys.stdin.buffer.read()
    samples = np.frombuffer(audio_data, dtype=np.int16).astype(np.float32) / 32768.0
    model = WhisperModel(%q, device=%q, compute_type=%q)
    segments, info = model.transcribe(samples, beam_size=%d, initial_prompt=%s)
    text = "".join(s.text for s in segments)
    print(json.dumps({"text": text.strip()}))
except Exception as e:
    print(json.dumps({"text": "", "error": str(e)}))
    sys.exit(1)
`, w.modelName, w.device, w.computeType, w.beamSize, pyStringOrNone(promptContext))
}

func (w *WhisperSubprocess) fileScript(path string) string {
	return fmt.Sprintf(`
import json, warnings
warnings.filterwarnings("ignore")
from faster_whisper import WhisperModel
model = WhisperModel(%q, device=%q, compute_type=%q)
segments, info = model.transcribe(%q, beam_size=%d)
for s in segments:
    print(json.dumps({"text": s.text.strip(), "start_ms": int(s.start * 1000), "end_ms": int(s.end * 1000)}))
`, w.modelName, w.device, w.computeType, path, w.beamSize)
}

func pyStringOrNone(s string) string {
	if s == "" {
		return "None"
	}
	b, _ := json.Marshal(s)
	return string(b)
}
