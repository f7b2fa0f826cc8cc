package recognition

import (
	"strings"
	"unicode"
)

// HallucinationGuardConfig tunes the text-level rejection heuristics
// applied to recognizer output before it is appended to a transcript.
type HallucinationGuardConfig struct {
	// MinUniqueCharRatio rejects text whose ratio of distinct
	// (lower-cased, letter/digit) runes to total such runes falls below
	// this threshold — catches degenerate repeats like
	// "hahahahahahahahahahaha" (2 distinct of 22, about 0.09).
	MinUniqueCharRatio float64
	// BanPhrases rejects text where a configured (case-insensitive) known
	// filler phrase occurs more than once, e.g. "subscribe subscribe" —
	// the repetition is what marks it as a recognizer hallucination on
	// silence or noise, rather than a legitimate single mention.
	BanPhrases []string
}

// DefaultHallucinationGuardConfig matches internal/config.Default's
// ban-phrase list.
func DefaultHallucinationGuardConfig() HallucinationGuardConfig {
	return HallucinationGuardConfig{
		MinUniqueCharRatio: 0.15,
		BanPhrases: []string{
			"thank you for watching",
			"thanks for watching",
			"subscribe",
		},
	}
}

// HallucinationGuard applies the configured heuristics. Unlike the
// recognizer's own errors, a guard rejection is not an error: the
// segment is kept in sequence but contributes empty text instead of
// being dropped.
type HallucinationGuard struct {
	cfg HallucinationGuardConfig
}

func NewHallucinationGuard(cfg HallucinationGuardConfig) *HallucinationGuard {
	return &HallucinationGuard{cfg: cfg}
}

// IsHallucination reports whether text should be suppressed.
func (g *HallucinationGuard) IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range g.cfg.BanPhrases {
		if strings.Count(lower, strings.ToLower(phrase)) > 1 {
			return true
		}
	}

	return uniqueCharRatio(lower) < g.cfg.MinUniqueCharRatio
}

// uniqueCharRatio computes the ratio of distinct letter/digit runes to
// total letter/digit runes in s, ignoring whitespace and punctuation.
func uniqueCharRatio(s string) float64 {
	seen := make(map[rune]struct{})
	total := 0
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		total++
		seen[r] = struct{}{}
	}
	if total == 0 {
		return 1 // no content to judge; let it through
	}
	return float64(len(seen)) / float64(total)
}
