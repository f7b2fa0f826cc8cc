package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fankserver/curemate-stt/internal/config"
	"github.com/fankserver/curemate-stt/internal/dispatcher"
	"github.com/fankserver/curemate-stt/internal/eventbus"
	"github.com/fankserver/curemate-stt/internal/jobmanager"
	"github.com/fankserver/curemate-stt/internal/store"
	"github.com/fankserver/curemate-stt/internal/tasks"
	"github.com/fankserver/curemate-stt/pkg/recognizer"
	"github.com/fankserver/curemate-stt/pkg/summarizer"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.NewLoader().Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	st := store.NewMemory()
	bus := eventbus.New()
	executor := tasks.NewExecutor(cfg.WorkerCount * 2)
	jm := jobmanager.New(st, bus, nil, executor)

	sum := newSummarizer(cfg)
	aggregator := tasks.NewRoomAggregator(sum, cfg.RoomAggMaxRetries, cfg.RoomAggRetryDelay)
	newRec := newRecognizerFactory(cfg)

	disp := dispatcher.New(jm, cfg, newRec, sum, executor, aggregator)

	mux := http.NewServeMux()
	disp.Routes(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logrus.WithField("addr", cfg.ListenAddr).Info("conversation summarization service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("server shutdown did not complete cleanly")
	}
	executor.Wait()
}

// newRecognizerFactory returns a constructor invoked once per job (the
// Recognition Worker Pool owns one Recognizer instance per pipeline);
// the backend selector mirrors cfg.SummarizerBackend's mock/real split.
func newRecognizerFactory(cfg config.Config) func() recognizer.Recognizer {
	switch cfg.RecognizerBackend {
	case "whisper-subprocess":
		return func() recognizer.Recognizer {
			rec, err := recognizer.NewWhisperSubprocess(os.Getenv("STT_WHISPER_MODEL"))
			if err != nil {
				logrus.WithError(err).Fatal("could not construct whisper subprocess recognizer")
			}
			return rec
		}
	default:
		return func() recognizer.Recognizer { return recognizer.NewMock() }
	}
}

func newSummarizer(cfg config.Config) summarizer.Summarizer {
	switch cfg.SummarizerBackend {
	case "http":
		return summarizer.NewHTTPSummarizer(cfg.SummarizerURL)
	default:
		return summarizer.NewMock()
	}
}
