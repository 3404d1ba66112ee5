package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"interviewlive/internal/audio"
	"interviewlive/internal/config"
	"interviewlive/internal/metrics"
	"interviewlive/internal/ports"
	"interviewlive/internal/providers/panelws"
	"interviewlive/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	metricsServer *http.Server
	metricsAddr   string
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, speech ports.SpeechSynthesizer) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return buildWith(cfg, eventSink, speech, os.Stderr)
}

func buildWith(cfg config.Config, eventSink ports.EventSink, speech ports.SpeechSynthesizer, logOutput io.Writer) (Services, error) {
	logger := newLogger(cfg.Logging, logOutput)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	controller := usecase.NewSessionController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger),
		panelws.NewDialer(panelws.Config{
			HandshakeTimeout: cfg.Backend.DialTimeout(),
			Logger:           logger.With(slog.String("component", "transport")),
		}),
		speech,
		eventSink,
		usecase.Config{
			BaseURL: cfg.Backend.BaseURL,
			Capture: ports.CaptureConfig{
				SampleRate:       cfg.Audio.SampleRate,
				Channels:         1,
				FrameSamples:     cfg.Audio.FrameSamples,
				EchoCancellation: cfg.Audio.EchoCancellation,
				NoiseSuppression: cfg.Audio.NoiseSuppression,
				VideoPreview:     cfg.Audio.VideoPreview,
				InputFormat:      cfg.Audio.InputFormat,
				InputDevice:      cfg.Audio.InputDevice,
			},
			ChunkSeconds:   cfg.Session.ChunkSeconds,
			AnalyzingDelay: cfg.Session.AnalyzingDelay(),
			Speech: usecase.SpeechConfig{
				PreferredVoice: cfg.Speech.PreferredVoice,
				Language:       cfg.Speech.Language,
				Rate:           cfg.Speech.Rate,
			},
		},
		logger,
		m,
	)

	services := Services{Controller: controller, Config: cfg, Logger: logger, Metrics: m}
	if cfg.Metrics.Addr != "" {
		if err := services.serveMetrics(registry, cfg.Metrics.Addr); err != nil {
			return Services{}, err
		}
	}

	logger.Info("interview client ready",
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("input_device", cfg.Audio.InputDevice),
		slog.Int("chunk_seconds", cfg.Session.ChunkSeconds),
	)
	return services, nil
}

// MetricsAddr returns the bound address of the metrics endpoint, or "" when disabled.
func (s Services) MetricsAddr() string {
	return s.metricsAddr
}

// Shutdown stops the metrics endpoint.
func (s Services) Shutdown(ctx context.Context) error {
	if s.metricsServer == nil {
		return nil
	}
	return s.metricsServer.Shutdown(ctx)
}

func (s *Services) serveMetrics(registry *prometheus.Registry, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := s.Logger
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", slog.String("error", err.Error()))
		}
	}()

	s.metricsServer = server
	s.metricsAddr = listener.Addr().String()
	return nil
}

func newLogger(cfg config.LoggingConfig, output io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}
