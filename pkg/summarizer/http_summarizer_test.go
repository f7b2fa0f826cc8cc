package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fankserver/curemate-stt/internal/apperrors"
)

func TestHTTPSummarizerGetSummaryParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summarize" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Transcript string `json:"transcript"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Transcript != "hello world" {
			t.Errorf("expected transcript in body, got %q", body.Transcript)
		}
		json.NewEncoder(w).Encode(map[string]string{"summary": "a short summary"})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL)
	got, err := s.GetSummary(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a short summary" {
		t.Errorf("expected parsed summary, got %q", got)
	}
}

func TestHTTPSummarizerGetSummaryNonOKStatusReturnsLLMResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL)
	_, err := s.GetSummary(context.Background(), "hello")
	if !errors.Is(err, apperrors.ErrLLMResponse) {
		t.Errorf("expected ErrLLMResponse, got %v", err)
	}
}

func TestHTTPSummarizerCheckConnectionOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL)
	if err := s.CheckConnection(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPSummarizerCheckConnectionServerErrorReturnsLLMConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL)
	if err := s.CheckConnection(context.Background()); !errors.Is(err, apperrors.ErrLLMConnection) {
		t.Errorf("expected ErrLLMConnection, got %v", err)
	}
}
