package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewlive/internal/bootstrap"
	"interviewlive/internal/domain"
	"interviewlive/internal/ports"
	"interviewlive/internal/usecase"
)

const (
	eventState        = "interview:state"
	eventTranscript   = "interview:transcript"
	eventQuestion     = "interview:question"
	eventPreview      = "interview:preview"
	eventError        = "interview:error"
	eventSpeak        = "interview:speak"
	eventSpeechCancel = "interview:speech-cancel"
)

// App is the Wails application root. It forwards session events to the
// webview and bridges text-to-speech to the browser speech engine.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	bootErr    error

	voiceMu sync.RWMutex
	voices  []domain.Voice
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.StatusDisconnected)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.NewInterview()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.services.Shutdown(ctx); err != nil && a.services.Logger != nil {
		a.services.Logger.Warn("metrics endpoint shutdown failed", slog.String("error", err.Error()))
	}
}

// StartInterview joins the interview identified by token and starts recording.
func (a *App) StartInterview(token string) (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.controller.Start(a.ctx, token); err != nil {
		if !errors.Is(err, usecase.ErrTransport) && !errors.Is(err, usecase.ErrDeviceUnavailable) {
			a.SessionError(domain.ErrorCodeStartup, err.Error())
		}
		return a.controller.Snapshot(), err
	}
	return a.controller.Snapshot(), nil
}

// StopInterview ends the active session and keeps the transcript.
func (a *App) StopInterview() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Stop(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// NewInterview discards the current session and returns to Idle.
func (a *App) NewInterview() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.NewInterview()
	return nil
}

// GetSnapshot returns the current session for rendering.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Snapshot{State: domain.SessionStateError, Status: domain.StatusError, Error: a.bootErr.Error()}
		}
		return domain.Snapshot{State: domain.SessionStateIdle, Status: domain.StatusDisconnected}
	}
	return a.controller.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":          cfg.Backend.BaseURL,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"preferredVoice":   cfg.Speech.PreferredVoice,
		"speechLanguage":   cfg.Speech.Language,
		"metrics":          a.services.MetricsAddr(),
	}
}

// SetVoices records the voices reported by the webview speech engine.
func (a *App) SetVoices(voices []domain.Voice) {
	voices = lo.Filter(voices, func(v domain.Voice, _ int) bool { return v.Name != "" })
	a.voiceMu.Lock()
	a.voices = voices
	a.voiceMu.Unlock()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, status string) {
	a.emit(eventState, map[string]string{
		"state":  string(state),
		"status": status,
	})
}

// TranscriptChanged emits the full ordered transcript.
func (a *App) TranscriptChanged(entries []domain.TranscriptEntry) {
	a.emit(eventTranscript, entries)
}

// QuestionChanged emits the current question and its metadata.
func (a *App) QuestionChanged(question domain.CurrentQuestion) {
	a.emit(eventQuestion, question)
}

// PreviewChanged toggles the local camera preview in the webview.
func (a *App) PreviewChanged(active bool) {
	a.emit(eventPreview, map[string]bool{"active": active})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Voices returns the voices last reported by the webview.
func (a *App) Voices() []domain.Voice {
	a.voiceMu.RLock()
	defer a.voiceMu.RUnlock()
	out := make([]domain.Voice, len(a.voices))
	copy(out, a.voices)
	return out
}

// Speak hands the utterance to the webview speech engine.
func (a *App) Speak(_ context.Context, utterance ports.Utterance) error {
	if a.ctx == nil {
		return errors.New("speech engine is not ready")
	}
	runtime.EventsEmit(a.ctx, eventSpeak, speakPayload(utterance))
	return nil
}

// Cancel stops the utterance currently playing in the webview.
func (a *App) Cancel() error {
	if a.ctx == nil {
		return nil
	}
	runtime.EventsEmit(a.ctx, eventSpeechCancel)
	return nil
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func speakPayload(u ports.Utterance) map[string]any {
	return map[string]any{
		"id":     u.ID,
		"text":   u.Text,
		"voice":  u.Voice,
		"rate":   u.Rate,
		"pitch":  u.Pitch,
		"volume": u.Volume,
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Failed to access microphone/camera. Please check permissions."
	case domain.ErrorCodeTransport:
		return "Connection to the interview failed"
	case domain.ErrorCodeDecode:
		return "Error processing message"
	case domain.ErrorCodeProtocol:
		return "Unexpected message from the interview"
	case domain.ErrorCodeServer:
		return "The interview reported an error"
	case domain.ErrorCodePlayback:
		return "Speech playback failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
