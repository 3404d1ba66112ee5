package ports

import (
	"context"

	"interviewlive/internal/domain"
)

// CaptureConfig describes the requested microphone (and preview camera) stream.
type CaptureConfig struct {
	SampleRate       int
	Channels         int
	FrameSamples     int
	EchoCancellation bool
	NoiseSuppression bool
	VideoPreview     bool
	InputFormat      string
	InputDevice      string
}

// CaptureStream is a live capture device stream.
// Frames delivers device-sized slices of float samples in [-1, 1] and is
// closed when the device stops producing.
type CaptureStream interface {
	Frames() <-chan []float32
	Err() error
	Stop() error
}

// CaptureDevice acquires capture streams.
type CaptureDevice interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)
}

// InboundMessage is one frame received from the interview backend.
type InboundMessage struct {
	Binary bool
	Data   []byte
}

// Channel is the single bidirectional connection owned by a session.
type Channel interface {
	// Send transmits one binary frame without waiting for acknowledgement.
	Send(frame []byte) error
	// Open reports whether frames can currently be sent.
	Open() bool
	// Messages is closed when the connection ends.
	Messages() <-chan InboundMessage
	// Err returns the cause of an unexpected close, if any.
	Err() error
	Close() error
}

// Dialer opens interview backend channels.
type Dialer interface {
	Dial(ctx context.Context, baseURL string, token string) (Channel, error)
}

// Utterance is one text-to-speech request.
type Utterance struct {
	ID     string
	Text   string
	Voice  string
	Rate   float64
	Pitch  float64
	Volume float64
}

// SpeechSynthesizer speaks text through the platform speech engine.
// Speak submits the utterance and returns without waiting for it to finish.
type SpeechSynthesizer interface {
	Voices() []domain.Voice
	Speak(ctx context.Context, utterance Utterance) error
	Cancel() error
}

// EventSink emits session state and data to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, status string)
	TranscriptChanged(entries []domain.TranscriptEntry)
	QuestionChanged(question domain.CurrentQuestion)
	PreviewChanged(active bool)
	SessionError(code domain.ErrorCode, detail string)
}
