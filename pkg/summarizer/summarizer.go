// Package summarizer declares the consumed summarization interface
// (the LLM itself is an external collaborator, out of scope), grounded
// on original_source/patient_api/services/llm's connection-check +
// get-summary method pair.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fankserver/curemate-stt/internal/apperrors"
)

// Summarizer is the narrow interface the pipelines and the room
// aggregation task depend on.
type Summarizer interface {
	CheckConnection(ctx context.Context) error
	GetSummary(ctx context.Context, transcript string) (string, error)
}

// HTTPSummarizer calls a JSON HTTP endpoint. No LLM SDK appears
// anywhere in the example pack for a provider-neutral summarizer, so
// this concern is implemented directly against net/http + encoding/json
// rather than adopting a provider-specific client library.
type HTTPSummarizer struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSummarizer returns a summarizer client pointed at baseURL.
func NewHTTPSummarizer(baseURL string) *HTTPSummarizer {
	return &HTTPSummarizer{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPSummarizer) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLLMConnection, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLLMConnection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return apperrors.ErrLLMConnection
	}
	return nil
}

func (s *HTTPSummarizer) GetSummary(ctx context.Context, transcript string) (string, error) {
	body, _ := json.Marshal(map[string]string{"transcript": transcript})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrLLMConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.ErrLLMTimeout
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrLLMConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.ErrLLMResponse
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrLLMResponse, err)
	}
	return out.Summary, nil
}
