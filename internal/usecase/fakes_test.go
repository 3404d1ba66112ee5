package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interviewlive/internal/domain"
	"interviewlive/internal/ports"
)

type fakeCapture struct {
	mu      sync.Mutex
	streams []*fakeStream
	errs    []error
	calls   int
	configs []ports.CaptureConfig
}

func (f *fakeCapture) Start(_ context.Context, cfg ports.CaptureConfig) (ports.CaptureStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.configs = append(f.configs, cfg)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx >= len(f.streams) {
		return nil, errors.New("no capture stream configured")
	}
	return f.streams[idx], nil
}

func (f *fakeCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	frames chan []float32

	mu        sync.Mutex
	closed    bool
	stopCalls int
	err       error
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []float32, 64)}
}

func (f *fakeStream) Frames() <-chan []float32 { return f.frames }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

// fail ends the stream as if the device disappeared.
func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
}

func (f *fakeStream) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeChannel struct {
	inbound chan ports.InboundMessage

	mu         sync.Mutex
	open       bool
	closed     bool
	sent       [][]byte
	sendErr    error
	closeCalls int
	err        error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan ports.InboundMessage, 64), open: true}
}

func (f *fakeChannel) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.open {
		return errors.New("channel closed")
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeChannel) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeChannel) Messages() <-chan ports.InboundMessage { return f.inbound }

func (f *fakeChannel) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.open = false
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeChannel) deliver(text string) {
	f.inbound <- ports.InboundMessage{Data: []byte(text)}
}

func inboundBinary(data []byte) ports.InboundMessage {
	return ports.InboundMessage{Binary: true, Data: data}
}

// serverClose ends the connection from the backend side.
func (f *fakeChannel) serverClose(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.open = false
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
}

func (f *fakeChannel) setOpen(open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = open
}

func (f *fakeChannel) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeChannel) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeDialer struct {
	mu       sync.Mutex
	channels []*fakeChannel
	err      error
	gate     chan struct{}
	calls    int
	tokens   []string
}

func (f *fakeDialer) Dial(ctx context.Context, _ string, token string) (ports.Channel, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.tokens = append(f.tokens, token)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if idx >= len(f.channels) {
		return nil, errors.New("no channel configured")
	}
	return f.channels[idx], nil
}

func (f *fakeDialer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynth struct {
	mu        sync.Mutex
	voices    []domain.Voice
	spoken    []ports.Utterance
	cancels   int
	speakErr  error
	cancelErr error
}

func (f *fakeSynth) Voices() []domain.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voices
}

func (f *fakeSynth) Speak(_ context.Context, utterance ports.Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, utterance)
	return f.speakErr
}

func (f *fakeSynth) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeSynth) utterances() []ports.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.Utterance, len(f.spoken))
	copy(out, f.spoken)
	return out
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts [][]domain.TranscriptEntry
	questions   []domain.CurrentQuestion
	previews    []bool
	errors      []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	status string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, status: status})
}

func (f *fakeEventSink) TranscriptChanged(entries []domain.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, entries)
}

func (f *fakeEventSink) QuestionChanged(question domain.CurrentQuestion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
}

func (f *fakeEventSink) PreviewChanged(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, active)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotPreviews() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.previews))
	copy(out, f.previews)
	return out
}

func (f *fakeEventSink) sawStatus(status string) bool {
	for _, s := range f.snapshotStates() {
		if s.status == status {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
