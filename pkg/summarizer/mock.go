package summarizer

import (
	"context"
	"fmt"
)

// Mock is a deterministic Summarizer for tests and for the default
// configuration when no real backend is configured.
type Mock struct {
	// NextSummary, if set, is returned verbatim for every call.
	NextSummary string
	// FailWith, if set, is returned as the error on every call.
	FailWith error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) CheckConnection(ctx context.Context) error { return m.FailWith }

func (m *Mock) GetSummary(ctx context.Context, transcript string) (string, error) {
	if m.FailWith != nil {
		return "", m.FailWith
	}
	if m.NextSummary != "" {
		return m.NextSummary, nil
	}
	return fmt.Sprintf("summary of %d characters of transcript", len(transcript)), nil
}
