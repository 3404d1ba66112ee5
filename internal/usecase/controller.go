package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"interviewlive/internal/audio"
	"interviewlive/internal/domain"
	"interviewlive/internal/metrics"
	"interviewlive/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active interview session")
	ErrAlreadyActive   = errors.New("interview session is already active")
	ErrSessionFinished = errors.New("interview has finished; start a new interview")
	ErrSessionStopped  = errors.New("interview session was stopped")
	ErrTransport       = errors.New("interview transport failed")
)

const deviceErrorMessage = "Failed to access microphone/camera. Please check permissions."

// Config controls the live interview session.
type Config struct {
	BaseURL        string
	Capture        ports.CaptureConfig
	ChunkSeconds   int
	FlushInterval  time.Duration
	AnalyzingDelay time.Duration
	Speech         SpeechConfig
}

func (cfg Config) withDefaults() Config {
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Duration(cfg.ChunkSeconds) * time.Second
	}
	if cfg.AnalyzingDelay <= 0 {
		cfg.AnalyzingDelay = 2 * time.Second
	}
	if cfg.Speech.Rate <= 0 {
		cfg.Speech.Rate = 1.2
	}
	if cfg.Speech.Pitch <= 0 {
		cfg.Speech.Pitch = 1
	}
	if cfg.Speech.Volume <= 0 {
		cfg.Speech.Volume = 1
	}
	return cfg
}

// SessionController drives one live interview: transport, capture pipeline,
// transcript, analyzing status and speech playback. Every mutation of session
// state happens under mu; device and network handles are released outside it.
type SessionController struct {
	capture  ports.CaptureDevice
	dialer   ports.Dialer
	events   ports.EventSink
	playback *playbackController
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time

	mu      sync.Mutex
	session *interviewSession
	runSeq  uint64
}

func NewSessionController(
	capture ports.CaptureDevice,
	dialer ports.Dialer,
	speech ports.SpeechSynthesizer,
	events ports.EventSink,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *SessionController {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = noopEventSink{}
	}
	cfg = cfg.withDefaults()
	logger = logger.With(slog.String("component", "session"))

	return &SessionController{
		capture:  capture,
		dialer:   dialer,
		events:   events,
		playback: newPlaybackController(speech, cfg.Speech, logger, m),
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
		session:  newInterviewSession(),
	}
}

// Start connects to the interview backend and begins recording. From
// Connected (after a failed device acquisition) it only retries acquisition.
func (c *SessionController) Start(ctx context.Context, token string) error {
	c.mu.Lock()
	s := c.session
	switch {
	case s.state.Terminal():
		c.mu.Unlock()
		return ErrSessionFinished
	case s.state == domain.SessionStateConnected && s.run != nil && s.run.pipeline == nil && !s.run.acquiring:
		run := s.run
		run.acquiring = true
		channel := run.channel
		c.mu.Unlock()
		return c.startRecording(run, channel)
	case s.state != domain.SessionStateIdle && s.state != domain.SessionStateStopped:
		c.mu.Unlock()
		return ErrAlreadyActive
	}

	c.runSeq++
	runCtx, cancel := context.WithCancel(ctx)
	run := &interviewRun{
		id:        c.runSeq,
		ctx:       runCtx,
		cancel:    cancel,
		analyzing: newAnalyzingTimer(c.cfg.AnalyzingDelay),
	}
	s.run = run
	s.state = domain.SessionStateConnecting
	s.status = domain.StatusConnecting
	s.errText = ""
	s.analyzing = false
	c.emitStateLocked()
	c.mu.Unlock()

	channel, err := c.dialer.Dial(runCtx, c.cfg.BaseURL, token)

	c.mu.Lock()
	if run.closed {
		c.mu.Unlock()
		if channel != nil {
			_ = channel.Close()
		}
		return ErrSessionStopped
	}
	if err != nil {
		s.errText = fmt.Sprintf("Failed to connect to interview: %v", err)
		release := c.teardownLocked(s, domain.SessionStateError, domain.StatusError)
		c.events.SessionError(domain.ErrorCodeTransport, s.errText)
		c.mu.Unlock()
		release()
		c.logger.Warn("interview connection failed", slog.Uint64("run", run.id), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	run.channel = channel
	run.connected = c.now()
	run.acquiring = true
	if s.startedAt.IsZero() {
		s.startedAt = run.connected
	}
	s.state = domain.SessionStateConnected
	s.status = domain.StatusConnected
	c.metrics.RecordSessionStarted()
	c.emitStateLocked()
	c.mu.Unlock()

	c.logger.Info("interview connected", slog.Uint64("run", run.id))
	go c.consume(run, channel)
	return c.startRecording(run, channel)
}

func (c *SessionController) startRecording(run *interviewRun, channel ports.Channel) error {
	pipeline := newAudioPipeline(c.capture, channel, pipelineConfig{
		Capture:       c.cfg.Capture,
		ChunkSamples:  audio.SamplesForDuration(c.cfg.Capture.SampleRate, c.cfg.ChunkSeconds),
		FlushInterval: c.cfg.FlushInterval,
	}, c.logger, c.metrics, nil)
	pipeline.onFailure = func(err error) {
		c.handleCaptureFailure(run, pipeline, err)
	}
	err := pipeline.Start(run.ctx)

	c.mu.Lock()
	run.acquiring = false
	if run.closed {
		c.mu.Unlock()
		_ = pipeline.Release()
		return ErrSessionStopped
	}

	s := c.session
	if err != nil {
		s.status = domain.StatusError
		s.errText = deviceErrorMessage
		c.emitStateLocked()
		c.events.SessionError(domain.ErrorCodeDevice, err.Error())
		c.mu.Unlock()
		c.logger.Warn("capture device unavailable", slog.Uint64("run", run.id), slog.Any("error", err))
		return err
	}

	run.pipeline = pipeline
	s.errText = ""
	if s.analyzing {
		s.state = domain.SessionStateAnalyzing
	} else {
		s.state = domain.SessionStateRecording
		s.status = domain.StatusRecording
	}
	c.emitStateLocked()
	if c.cfg.Capture.VideoPreview {
		c.events.PreviewChanged(true)
	}
	c.mu.Unlock()
	return nil
}

// Stop ends the active run and keeps the transcript. It may race an
// in-flight flush or inbound handler.
func (c *SessionController) Stop() error {
	c.mu.Lock()
	s := c.session
	if s.run == nil || !s.state.Live() {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	release := c.teardownLocked(s, domain.SessionStateStopped, domain.StatusStopped)
	c.mu.Unlock()

	release()
	c.logger.Info("interview stopped")
	return nil
}

// NewInterview discards the current session, tearing it down if needed, and
// starts over from Idle with an empty transcript.
func (c *SessionController) NewInterview() {
	c.mu.Lock()
	release := func() {}
	if s := c.session; s.run != nil && s.state.Live() {
		release = c.teardownLocked(s, domain.SessionStateStopped, domain.StatusStopped)
	}
	c.session = newInterviewSession()
	c.emitStateLocked()
	c.events.TranscriptChanged(c.session.transcript.Entries())
	c.events.QuestionChanged(c.session.question)
	c.mu.Unlock()

	release()
}

// Snapshot returns the session as the UI renders it.
func (c *SessionController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	canRetry := s.state == domain.SessionStateConnected && s.run != nil && s.run.pipeline == nil && !s.run.acquiring
	return domain.Snapshot{
		State:             s.state,
		Status:            s.status,
		Error:             s.errText,
		Connected:         s.state == domain.SessionStateConnected || s.state == domain.SessionStateRecording || s.state == domain.SessionStateAnalyzing,
		Recording:         s.state == domain.SessionStateRecording || s.state == domain.SessionStateAnalyzing,
		Analyzing:         s.analyzing,
		Completed:         s.state == domain.SessionStateCompleted,
		CanStart:          s.state == domain.SessionStateIdle || s.state == domain.SessionStateStopped || canRetry,
		StartedAt:         s.startedAt,
		CurrentQuestion:   s.question,
		CompletionMessage: s.completionMessage,
		Transcript:        s.transcript.Entries(),
	}
}

// teardownLocked moves the session into a final state for this run and
// returns the release step, which must run after mu is dropped. Handles are
// released transport first, then the pipeline, then timers.
func (c *SessionController) teardownLocked(s *interviewSession, state domain.SessionState, status string) func() {
	run := s.run
	s.run = nil
	s.state = state
	s.status = status
	s.analyzing = false
	c.emitStateLocked()

	if run == nil {
		return func() {}
	}
	channel, pipeline, ok := run.detach()
	if !ok {
		return func() {}
	}
	if pipeline != nil {
		c.events.PreviewChanged(false)
	}
	if !run.connected.IsZero() {
		c.metrics.RecordSessionEnded(string(state), c.now().Sub(run.connected).Seconds())
	}

	return func() {
		c.release(run, channel, pipeline)
	}
}

func (c *SessionController) release(run *interviewRun, channel ports.Channel, pipeline *audioPipeline) {
	if channel != nil {
		if err := channel.Close(); err != nil {
			c.logger.Warn("failed to close interview channel", slog.Uint64("run", run.id), slog.Any("error", err))
		}
	}
	if pipeline != nil {
		if err := pipeline.Release(); err != nil {
			c.logger.Warn("failed to release capture device", slog.Uint64("run", run.id), slog.Any("error", err))
		}
	}
	run.analyzing.Cancel()
	c.playback.Cancel()
	run.cancel()
}

func (c *SessionController) handleCaptureFailure(run *interviewRun, pipeline *audioPipeline, err error) {
	c.mu.Lock()
	if run.closed || run.pipeline != pipeline {
		c.mu.Unlock()
		return
	}
	run.pipeline = nil
	s := c.session
	s.state = domain.SessionStateConnected
	s.status = domain.StatusError
	s.errText = deviceErrorMessage
	c.emitStateLocked()
	c.events.SessionError(domain.ErrorCodeDevice, err.Error())
	c.events.PreviewChanged(false)
	c.mu.Unlock()

	c.logger.Warn("capture stopped unexpectedly", slog.Uint64("run", run.id), slog.Any("error", err))
	if releaseErr := pipeline.Release(); releaseErr != nil {
		c.logger.Warn("failed to release capture device", slog.Uint64("run", run.id), slog.Any("error", releaseErr))
	}
}

func (c *SessionController) emitStateLocked() {
	c.events.SessionStateChanged(c.session.state, c.session.status)
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(domain.SessionState, string) {}
func (noopEventSink) TranscriptChanged([]domain.TranscriptEntry)      {}
func (noopEventSink) QuestionChanged(domain.CurrentQuestion)          {}
func (noopEventSink) PreviewChanged(bool)                             {}
func (noopEventSink) SessionError(domain.ErrorCode, string)           {}
