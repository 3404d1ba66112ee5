package usecase

import (
	"context"
	"time"

	"interviewlive/internal/domain"
	"interviewlive/internal/ports"
)

// interviewSession is the state the UI renders. It outlives individual runs
// so a stopped interview can be resumed with its transcript intact.
type interviewSession struct {
	state             domain.SessionState
	status            string
	errText           string
	analyzing         bool
	startedAt         time.Time
	question          domain.CurrentQuestion
	completionMessage string
	transcript        *transcriptAssembler

	run *interviewRun
}

func newInterviewSession() *interviewSession {
	return &interviewSession{
		state:      domain.SessionStateIdle,
		status:     domain.StatusDisconnected,
		transcript: newTranscriptAssembler(),
	}
}

// interviewRun owns the handles of one connect-to-teardown cycle. All fields
// are guarded by the controller lock.
type interviewRun struct {
	id        uint64
	ctx       context.Context
	cancel    context.CancelFunc
	connected time.Time

	channel   ports.Channel
	pipeline  *audioPipeline
	acquiring bool
	analyzing *analyzingTimer

	closed bool
}

// detach marks the run closed and hands back its handles for release. Only
// the first call returns anything, which keeps teardown idempotent.
func (r *interviewRun) detach() (ports.Channel, *audioPipeline, bool) {
	if r.closed {
		return nil, nil, false
	}
	r.closed = true
	ch, pl := r.channel, r.pipeline
	r.channel, r.pipeline = nil, nil
	return ch, pl, true
}
