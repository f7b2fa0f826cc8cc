package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Loader applies environment-variable overrides on top of Default().
// Lookup defaults to os.LookupEnv but is injectable for tests, mirroring
// nupi-ai-plugin-vad-local-silero's internal/config/loader.go.
type Loader struct {
	Lookup func(string) (string, bool)
}

// NewLoader returns a Loader wired to the real environment, after
// loading a local .env file if one is present (ignored if absent).
func NewLoader() *Loader {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Debug("no .env file loaded")
	}
	return &Loader{Lookup: os.LookupEnv}
}

// Load builds a Config from defaults and environment overrides.
func (l *Loader) Load() Config {
	cfg := Default()

	l.overrideString("STT_LISTEN_ADDR", &cfg.ListenAddr)
	l.overrideString("STT_LOG_LEVEL", &cfg.LogLevel)
	l.overrideFloat("STT_VAD_THRESHOLD", &cfg.VADThreshold)
	l.overrideInt("STT_MIN_SPEECH_FRAMES", &cfg.MinSpeechFrames)
	l.overrideInt("STT_MAX_SILENCE_FRAMES", &cfg.MaxSilenceFrames)
	l.overrideInt("STT_FRAME_DURATION_MS", &cfg.FrameDurationMs)
	l.overrideInt("STT_SAMPLE_RATE_HZ", &cfg.SampleRateHz)
	l.overrideInt("STT_WORKER_COUNT", &cfg.WorkerCount)
	l.overrideInt("STT_IN_QUEUE_SIZE", &cfg.InQueueSize)
	l.overrideInt("STT_OUT_QUEUE_SIZE", &cfg.OutQueueSize)
	l.overrideDuration("STT_DRAIN_DEADLINE", &cfg.DrainDeadline)
	l.overrideDuration("STT_JOIN_DEADLINE", &cfg.JoinDeadline)
	l.overrideInt("STT_ROOM_AGG_MAX_RETRIES", &cfg.RoomAggMaxRetries)
	l.overrideDuration("STT_ROOM_AGG_RETRY_DELAY", &cfg.RoomAggRetryDelay)
	l.overrideFloat("STT_MIN_UNIQUE_CHAR_RATIO", &cfg.MinUniqueCharRatio)
	l.overrideStringSlice("STT_BAN_PHRASES", &cfg.BanPhrases)
	l.overrideString("STT_RECOGNIZER_BACKEND", &cfg.RecognizerBackend)
	l.overrideString("STT_SUMMARIZER_BACKEND", &cfg.SummarizerBackend)
	l.overrideString("STT_SUMMARIZER_URL", &cfg.SummarizerURL)

	return cfg
}

func (l *Loader) overrideString(key string, dst *string) {
	if v, ok := l.Lookup(key); ok && v != "" {
		*dst = v
	}
}

func (l *Loader) overrideStringSlice(key string, dst *[]string) {
	if v, ok := l.Lookup(key); ok && v != "" {
		*dst = strings.Split(v, ",")
	}
}

func (l *Loader) overrideInt(key string, dst *int) {
	if v, ok := l.Lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			logrus.WithField("key", key).WithError(err).Warn("ignoring invalid int env override")
		}
	}
}

func (l *Loader) overrideFloat(key string, dst *float64) {
	if v, ok := l.Lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			logrus.WithField("key", key).WithError(err).Warn("ignoring invalid float env override")
		}
	}
}

func (l *Loader) overrideDuration(key string, dst *time.Duration) {
	if v, ok := l.Lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			logrus.WithField("key", key).WithError(err).Warn("ignoring invalid duration env override")
		}
	}
}
