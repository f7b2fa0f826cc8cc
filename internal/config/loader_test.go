package config

import (
	"testing"
	"time"
)

func fakeLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoaderAppliesOverrides(t *testing.T) {
	l := &Loader{Lookup: fakeLookup(map[string]string{
		"STT_LISTEN_ADDR":     ":9090",
		"STT_VAD_THRESHOLD":   "0.3",
		"STT_WORKER_COUNT":    "5",
		"STT_DRAIN_DEADLINE":  "30s",
		"STT_BAN_PHRASES":     "foo,bar",
		"STT_RECOGNIZER_BACKEND": "whisper-subprocess",
	})}

	cfg := l.Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected overridden listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.VADThreshold != 0.3 {
		t.Errorf("expected overridden VAD threshold, got %f", cfg.VADThreshold)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("expected overridden worker count, got %d", cfg.WorkerCount)
	}
	if cfg.DrainDeadline != 30*time.Second {
		t.Errorf("expected overridden drain deadline, got %s", cfg.DrainDeadline)
	}
	if len(cfg.BanPhrases) != 2 || cfg.BanPhrases[0] != "foo" || cfg.BanPhrases[1] != "bar" {
		t.Errorf("expected overridden ban phrases, got %v", cfg.BanPhrases)
	}
	if cfg.RecognizerBackend != "whisper-subprocess" {
		t.Errorf("expected overridden recognizer backend, got %s", cfg.RecognizerBackend)
	}
}

func TestLoaderIgnoresInvalidOverrides(t *testing.T) {
	l := &Loader{Lookup: fakeLookup(map[string]string{
		"STT_VAD_THRESHOLD": "not-a-number",
		"STT_WORKER_COUNT":  "nope",
	})}

	cfg := l.Load()
	def := Default()

	if cfg.VADThreshold != def.VADThreshold {
		t.Errorf("expected default VAD threshold preserved on invalid override, got %f", cfg.VADThreshold)
	}
	if cfg.WorkerCount != def.WorkerCount {
		t.Errorf("expected default worker count preserved on invalid override, got %d", cfg.WorkerCount)
	}
}

func TestLoaderKeepsDefaultsWhenUnset(t *testing.T) {
	l := &Loader{Lookup: fakeLookup(map[string]string{})}
	cfg := l.Load()
	def := Default()

	if cfg.ListenAddr != def.ListenAddr || cfg.WorkerCount != def.WorkerCount || cfg.VADThreshold != def.VADThreshold {
		t.Errorf("expected defaults when no env vars set, got %+v", cfg)
	}
}
