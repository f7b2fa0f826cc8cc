package batch

import (
	"context"
	"os"
	"testing"

	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/jobmanager"
	"github.com/fankserver/curemate-stt/internal/model"
	"github.com/fankserver/curemate-stt/internal/store"
	"github.com/fankserver/curemate-stt/pkg/recognizer"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
)

func tempUploadFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "batch-test-upload-*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestRunMarksJobCompletedOnSuccess(t *testing.T) {
	jm := jobmanager.New(store.NewMemory(), eventbus.New(), nil, nil)
	ctx := context.Background()
	job, _ := jm.CreateJob(ctx, model.KindBatch, nil)

	path := tempUploadFile(t)
	rec := recognizer.NewMock()
	sum := summarizer.NewMock()

	Run(ctx, job.ID, path, jm, rec, sum)

	final, err := jm.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != model.StatusCompleted {
		t.Errorf("expected COMPLETED status, got %s", final.Status)
	}
	if final.Transcript == "" {
		t.Error("expected a non-empty transcript")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected the upload temp file to be removed after Run")
	}
}

func TestRunMarksJobFailedOnRecognizerError(t *testing.T) {
	jm := jobmanager.New(store.NewMemory(), eventbus.New(), nil, nil)
	ctx := context.Background()
	job, _ := jm.CreateJob(ctx, model.KindBatch, nil)

	path := tempUploadFile(t)
	rec := &failingFileRecognizer{}
	sum := summarizer.NewMock()

	Run(ctx, job.ID, path, jm, rec, sum)

	final, err := jm.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != model.StatusFailed {
		t.Errorf("expected FAILED status, got %s", final.Status)
	}

	errs, _ := jm.GetErrors(ctx, job.ID)
	if len(errs) == 0 {
		t.Error("expected an error log entry on recognizer failure")
	}
}

type failingFileRecognizer struct{}

func (r *failingFileRecognizer) Load(ctx context.Context) error { return nil }
func (r *failingFileRecognizer) TranscribeSegment(ctx context.Context, pcm []byte, promptContext string) (recognizer.Result, error) {
	return recognizer.Result{}, nil
}
func (r *failingFileRecognizer) TranscribeFileStreaming(ctx context.Context, path string) (<-chan recognizer.FileSegment, error) {
	return nil, os.ErrNotExist
}
func (r *failingFileRecognizer) IsReady() bool { return true }
func (r *failingFileRecognizer) Close() error  { return nil }

func TestDrainWithLookaheadTagsLastSegment(t *testing.T) {
	jm := jobmanager.New(store.NewMemory(), eventbus.New(), nil, nil)
	ctx := context.Background()
	job, _ := jm.CreateJob(ctx, model.KindBatch, nil)

	ch := make(chan recognizer.FileSegment, 2)
	ch <- recognizer.FileSegment{Text: "first", StartMs: 0, EndMs: 500}
	ch <- recognizer.FileSegment{Text: "second", StartMs: 500, EndMs: 1000}
	close(ch)

	transcript, count := drainWithLookahead(ctx, job.ID, jm, ch)
	if count != 2 {
		t.Errorf("expected 2 segments, got %d", count)
	}
	if transcript != "first second" {
		t.Errorf("expected joined transcript, got %q", transcript)
	}

	segs, err := jm.GetSegments(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 persisted segments, got %d", len(segs))
	}
	if segs[0].Status != "PROCESSING" {
		t.Errorf("expected the non-last segment tagged PROCESSING, got %q", segs[0].Status)
	}
	if segs[1].Status != "TRANSCRIBED" {
		t.Errorf("expected the last segment tagged TRANSCRIBED, got %q", segs[1].Status)
	}
}

func TestRunPublishesFinalSummaryOnSuccess(t *testing.T) {
	jm := jobmanager.New(store.NewMemory(), eventbus.New(), nil, nil)
	ctx := context.Background()
	job, _ := jm.CreateJob(ctx, model.KindBatch, nil)

	events, unsubscribe := jm.SubscribeEvents(job.ID, "test-subscriber")
	defer unsubscribe()

	path := tempUploadFile(t)
	rec := recognizer.NewMock()
	sum := summarizer.NewMock()

	Run(ctx, job.ID, path, jm, rec, sum)

	sawFinalSummary := false
	for {
		select {
		case ev := <-events:
			if ev.Type == eventbus.EventFinalSummary {
				sawFinalSummary = true
			}
			continue
		default:
		}
		break
	}
	if !sawFinalSummary {
		t.Error("expected a final_summary event to be published on successful completion")
	}
}
