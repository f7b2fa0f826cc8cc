package config

import (
	"strings"

	"github.com/fankserver/curemate-stt/internal/audio"
	"github.com/fankserver/curemate-stt/internal/recognition"
	"github.com/fankserver/curemate-stt/internal/stream"
)

// DefaultConverterConfig is the Audio Converter config used when a
// realtime job declares no input format: raw PCM already at the
// process's target sample rate, mono.
func (c Config) DefaultConverterConfig() audio.ConverterConfig {
	return audio.ConverterConfig{
		Format:        audio.FormatPCM,
		InputRateHz:   c.SampleRateHz,
		InputChannels: 1,
	}
}

// ConverterConfigFromMetadata builds a ConverterConfig from a job's
// declared audio_format/sample_rate/channels metadata (captured by the
// Dispatcher at stream-create time from the request body), falling
// back to DefaultConverterConfig for any field the caller didn't
// declare — e.g. a 48kHz stereo job produces InputRateHz:48000,
// InputChannels:2, which the Converter then downmixes and resamples
// down to the 16kHz mono frame format every other stage expects.
func (c Config) ConverterConfigFromMetadata(meta map[string]interface{}) audio.ConverterConfig {
	cfg := c.DefaultConverterConfig()

	if format, ok := meta["audio_format"].(string); ok && format != "" {
		cfg.Format = normalizeFormatTag(format)
	}
	if rate, ok := numericMetadataField(meta["sample_rate"]); ok && rate > 0 {
		cfg.InputRateHz = rate
	}
	if channels, ok := numericMetadataField(meta["channels"]); ok && channels > 0 {
		cfg.InputChannels = channels
	}
	return cfg
}

// numericMetadataField reads an int out of a metadata value that may
// have round-tripped through encoding/json (decoding numbers as
// float64) or been set directly as an int by an in-process caller.
func numericMetadataField(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// normalizeFormatTag maps the wire-level audio_format aliases onto the
// Converter's FormatTag values, defaulting unrecognized tags to PCM.
func normalizeFormatTag(s string) audio.FormatTag {
	switch strings.ToLower(s) {
	case "pcm", "pcm_s16le", "raw":
		return audio.FormatPCM
	case "opus":
		return audio.FormatOpus
	case "webm":
		return audio.FormatWebM
	case "mp3":
		return audio.FormatMP3
	case "aac":
		return audio.FormatAAC
	default:
		return audio.FormatPCM
	}
}

func (c Config) segmenterConfig() audio.SegmenterConfig {
	return audio.SegmenterConfig{
		EnergyThreshold:  c.VADThreshold,
		MinSpeechFrames:  c.MinSpeechFrames,
		MaxSilenceFrames: c.MaxSilenceFrames,
	}
}

// PoolConfig builds the Recognition Worker Pool config shared by every
// realtime job; hallucination guard thresholds come from the process
// config so an operator can tune them without a redeploy.
func (c Config) PoolConfig() recognition.PoolConfig {
	return recognition.PoolConfig{
		WorkerCount: c.WorkerCount,
		QueueSize:   c.InQueueSize,
		GuardConfig: recognition.HallucinationGuardConfig{
			MinUniqueCharRatio: c.MinUniqueCharRatio,
			BanPhrases:         c.BanPhrases,
		},
	}
}

// PipelineConfig builds the Stream Pipeline config for a realtime job,
// given the Converter configuration declared for that job's input
// stream (see DefaultConverterConfig for the fallback).
func (c Config) PipelineConfig(conv audio.ConverterConfig) stream.Config {
	return stream.Config{
		Converter:     conv,
		Segmenter:     c.segmenterConfig(),
		Pool:          c.PoolConfig(),
		DrainDeadline: c.DrainDeadline,
		JoinDeadline:  c.JoinDeadline,
	}
}
