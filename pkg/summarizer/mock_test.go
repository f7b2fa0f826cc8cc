package summarizer

import (
	"context"
	"errors"
	"testing"
)

func TestMockGetSummaryReturnsCannedSummaryByLength(t *testing.T) {
	m := NewMock()
	got, err := m.GetSummary(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "summary of 5 characters of transcript"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMockGetSummaryPrefersNextSummary(t *testing.T) {
	m := &Mock{NextSummary: "fixed summary"}
	got, err := m.GetSummary(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fixed summary" {
		t.Errorf("expected fixed summary, got %q", got)
	}
}

func TestMockGetSummaryReturnsFailWith(t *testing.T) {
	wantErr := errors.New("boom")
	m := &Mock{FailWith: wantErr}
	if _, err := m.GetSummary(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("expected configured failure, got %v", err)
	}
}

func TestMockCheckConnectionReturnsFailWith(t *testing.T) {
	wantErr := errors.New("down")
	m := &Mock{FailWith: wantErr}
	if err := m.CheckConnection(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected configured connection failure, got %v", err)
	}
}
