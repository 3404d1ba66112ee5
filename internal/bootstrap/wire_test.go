package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"interviewlive/internal/config"
	"interviewlive/internal/domain"
	"interviewlive/internal/ports"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv("INTERVIEW_CONFIG_FILE", "")
	t.Setenv("INTERVIEW_METRICS_ADDR", "")

	services, err := Build(noopEventSink{}, noopSynth{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil || services.Logger == nil || services.Metrics == nil {
		t.Fatalf("expected controller, logger and metrics")
	}
	if services.MetricsAddr() != "" {
		t.Fatalf("metrics endpoint should be disabled, got %q", services.MetricsAddr())
	}
	if err := services.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	snapshot := services.Controller.Snapshot()
	if snapshot.State != domain.SessionStateIdle || !snapshot.CanStart {
		t.Fatalf("unexpected initial snapshot: %+v", snapshot)
	}
}

func TestBuildFailsOnInvalidConfigFile(t *testing.T) {
	t.Setenv("INTERVIEW_CONFIG_FILE", "/nonexistent/interview.yaml")

	if _, err := Build(noopEventSink{}, noopSynth{}); err == nil {
		t.Fatalf("expected build error due to missing config file")
	}
}

func TestBuildServesMetrics(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Metrics.Addr = "127.0.0.1:0"

	services, err := buildWith(cfg, noopEventSink{}, noopSynth{}, io.Discard)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = services.Shutdown(context.Background()) })

	services.Metrics.RecordChunkSent(160000)

	resp, err := http.Get("http://" + services.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(body), "interview_audio_chunks_sent_total 1") {
		t.Fatalf("expected chunk counter in metrics output, got:\n%s", body)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if record["msg"] != "shown" || record["key"] != "value" {
		t.Fatalf("unexpected record: %+v", record)
	}

	buf.Reset()
	text := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	text.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(domain.SessionState, string) {}
func (noopEventSink) TranscriptChanged([]domain.TranscriptEntry)      {}
func (noopEventSink) QuestionChanged(domain.CurrentQuestion)          {}
func (noopEventSink) PreviewChanged(bool)                             {}
func (noopEventSink) SessionError(domain.ErrorCode, string)           {}

type noopSynth struct{}

func (noopSynth) Voices() []domain.Voice                       { return nil }
func (noopSynth) Speak(context.Context, ports.Utterance) error { return nil }
func (noopSynth) Cancel() error                                { return nil }
