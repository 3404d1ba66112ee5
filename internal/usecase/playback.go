package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"interviewlive/internal/domain"
	"interviewlive/internal/metrics"
	"interviewlive/internal/ports"
)

var ErrPlayback = errors.New("speech playback failed")

// SpeechConfig controls text-to-speech of interviewer turns.
type SpeechConfig struct {
	PreferredVoice string
	Language       string
	Rate           float64
	Pitch          float64
	Volume         float64
}

// playbackController owns the one-slot "current utterance": every Speak
// cancels whatever is playing before submitting new text.
type playbackController struct {
	synth   ports.SpeechSynthesizer
	cfg     SpeechConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

func newPlaybackController(synth ports.SpeechSynthesizer, cfg SpeechConfig, logger *slog.Logger, m *metrics.Metrics) *playbackController {
	return &playbackController{
		synth:   synth,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// Speak never returns an error; failures are logged and counted.
func (p *playbackController) Speak(ctx context.Context, text string) {
	if p.synth == nil || strings.TrimSpace(text) == "" {
		return
	}

	if err := p.synth.Cancel(); err != nil {
		p.fail(fmt.Errorf("%w: cancel: %w", ErrPlayback, err))
	}

	utterance := ports.Utterance{
		ID:     p.newID(),
		Text:   text,
		Voice:  selectVoice(p.synth.Voices(), p.cfg.PreferredVoice, p.cfg.Language),
		Rate:   p.cfg.Rate,
		Pitch:  p.cfg.Pitch,
		Volume: p.cfg.Volume,
	}
	if err := p.synth.Speak(ctx, utterance); err != nil {
		p.fail(fmt.Errorf("%w: %w", ErrPlayback, err))
	}
}

// Cancel stops any in-flight utterance.
func (p *playbackController) Cancel() {
	if p.synth == nil {
		return
	}
	if err := p.synth.Cancel(); err != nil {
		p.fail(fmt.Errorf("%w: cancel: %w", ErrPlayback, err))
	}
}

func (p *playbackController) fail(err error) {
	p.metrics.RecordPlaybackFailure()
	p.logger.Warn("speech playback failed", slog.Any("error", err))
}

// selectVoice prefers a voice whose name contains preferred, then the first
// voice for language. An empty result means the engine default.
func selectVoice(voices []domain.Voice, preferred string, language string) string {
	if preferred != "" {
		if v, ok := lo.Find(voices, func(v domain.Voice) bool {
			return strings.Contains(v.Name, preferred)
		}); ok {
			return v.Name
		}
	}
	if language != "" {
		lang := strings.ToLower(language)
		if v, ok := lo.Find(voices, func(v domain.Voice) bool {
			return strings.HasPrefix(strings.ToLower(v.Language), lang)
		}); ok {
			return v.Name
		}
	}
	return ""
}
