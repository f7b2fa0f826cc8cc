// Package config loads service configuration from the environment,
// with defaults matching the component contracts. Grounded on
// nupi-ai-plugin-vad-local-silero's injectable-Lookup loader and on
// cmd/discord-voice-mcp/main.go's godotenv + flag + os.Getenv style.
package config

import "time"

const (
	DefaultListenAddr = ":8080"
	DefaultLogLevel   = "info"

	// VAD Segmenter (C2) defaults.
	DefaultVADThreshold        = 0.5
	DefaultMinSpeechFrames     = 3
	DefaultMaxSilenceFrames    = 10
	DefaultFrameDurationMs     = 30
	DefaultSampleRateHz        = 16000

	// Recognition Worker Pool (C3) defaults.
	DefaultWorkerCount  = 3
	DefaultInQueueSize  = 64
	DefaultOutQueueSize = 64

	// Stream Pipeline (C4) finalize deadlines.
	DefaultDrainDeadline = 180 * time.Second
	DefaultJoinDeadline  = 10 * time.Second

	// Room aggregation task defaults.
	DefaultRoomAggMaxRetries = 5
	DefaultRoomAggRetryDelay = 10 * time.Second

	// Hallucination guard defaults.
	DefaultMinUniqueCharRatio = 0.15
)

// Config is the fully-resolved set of tunables for one process.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`

	VADThreshold     float64 `json:"vad_threshold"`
	MinSpeechFrames  int     `json:"min_speech_frames"`
	MaxSilenceFrames int     `json:"max_silence_frames"`
	FrameDurationMs  int     `json:"frame_duration_ms"`
	SampleRateHz     int     `json:"sample_rate_hz"`

	WorkerCount  int `json:"worker_count"`
	InQueueSize  int `json:"in_queue_size"`
	OutQueueSize int `json:"out_queue_size"`

	DrainDeadline time.Duration `json:"drain_deadline"`
	JoinDeadline  time.Duration `json:"join_deadline"`

	RoomAggMaxRetries int           `json:"room_agg_max_retries"`
	RoomAggRetryDelay time.Duration `json:"room_agg_retry_delay"`

	MinUniqueCharRatio float64  `json:"min_unique_char_ratio"`
	BanPhrases         []string `json:"ban_phrases"`

	RecognizerBackend string `json:"recognizer_backend"` // "mock" | "whisper-subprocess"
	SummarizerBackend string `json:"summarizer_backend"` // "mock" | "http"
	SummarizerURL      string `json:"summarizer_url"`
}

// Default returns the baseline configuration before any environment
// overrides are applied.
func Default() Config {
	return Config{
		ListenAddr:         DefaultListenAddr,
		LogLevel:           DefaultLogLevel,
		VADThreshold:       DefaultVADThreshold,
		MinSpeechFrames:    DefaultMinSpeechFrames,
		MaxSilenceFrames:   DefaultMaxSilenceFrames,
		FrameDurationMs:    DefaultFrameDurationMs,
		SampleRateHz:       DefaultSampleRateHz,
		WorkerCount:        DefaultWorkerCount,
		InQueueSize:        DefaultInQueueSize,
		OutQueueSize:       DefaultOutQueueSize,
		DrainDeadline:      DefaultDrainDeadline,
		JoinDeadline:       DefaultJoinDeadline,
		RoomAggMaxRetries:  DefaultRoomAggMaxRetries,
		RoomAggRetryDelay:  DefaultRoomAggRetryDelay,
		MinUniqueCharRatio: DefaultMinUniqueCharRatio,
		BanPhrases: []string{
			"thank you for watching",
			"thanks for watching",
			"subscribe",
		},
		RecognizerBackend: "mock",
		SummarizerBackend: "mock",
	}
}
