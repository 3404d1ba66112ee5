package usecase

import (
	"errors"
	"log/slog"

	"interviewlive/internal/domain"
	"interviewlive/internal/ports"
	"interviewlive/internal/protocol"
)

const (
	defaultPanelName     = "Interview Panel"
	questionReceivedText = "Question received"
	serverErrorFallback  = "An error occurred"
)

// consume handles inbound frames strictly in delivery order until the
// channel closes.
func (c *SessionController) consume(run *interviewRun, channel ports.Channel) {
	for msg := range channel.Messages() {
		if release := c.handleInbound(run, msg); release != nil {
			release()
		}
	}
	c.handleChannelClosed(run, channel)
}

func (c *SessionController) handleInbound(run *interviewRun, msg ports.InboundMessage) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run.closed {
		return nil
	}
	if msg.Binary {
		c.metrics.RecordBinaryDiscarded()
		c.logger.Warn("discarding binary frame from interview backend", slog.Int("bytes", len(msg.Data)))
		return nil
	}

	event, err := protocol.Decode(msg.Data)
	var protoErr *protocol.ProtocolError
	if errors.As(err, &protoErr) {
		c.metrics.RecordInbound(protocol.TypeUnrecognized)
		c.reportProtocolErrorLocked("", protoErr)
		return nil
	}
	if err != nil {
		s := c.session
		c.metrics.RecordDecodeError()
		c.logger.Warn("failed to decode inbound frame", slog.Any("error", err))
		s.status = domain.StatusError
		s.errText = "Error processing message: " + err.Error()
		c.emitStateLocked()
		c.events.SessionError(domain.ErrorCodeDecode, err.Error())
		return nil
	}
	return c.dispatchLocked(run, event)
}

// dispatchLocked applies one event to the session. A non-nil result is the
// teardown step to run once mu is released.
func (c *SessionController) dispatchLocked(run *interviewRun, event protocol.Event) func() {
	s := c.session
	if _, fallback := event.(protocol.Unrecognized); !fallback {
		c.metrics.RecordInbound(event.EventType())
	}

	switch ev := event.(type) {
	case protocol.ConnectionEstablished:
		s.status = domain.StatusConnectionEstablished
		s.errText = ""
		c.emitStateLocked()

	case protocol.Greeting:
		c.appendFinalLocked(run, domain.ParseSpeaker(ev.Character), ev.Message)
		panel := ev.PanelName
		if panel == "" {
			panel = defaultPanelName
		}
		if ev.PanelDescription != "" {
			c.logger.Debug("panel description", slog.String("panel", panel), slog.String("description", ev.PanelDescription))
		}
		s.status = "Connected to: " + panel
		c.emitStateLocked()

	case protocol.TranscriptionUpdate:
		if ev.Message == "" {
			return nil
		}
		s.transcript.MergeCandidateUpdate(ev.Message)
		c.events.TranscriptChanged(s.transcript.Entries())

	case protocol.ScoringUpdate:
		c.logger.Debug("scoring update", slog.Float64("score", ev.Score), slog.String("feedback", ev.Feedback))
		s.analyzing = true
		if s.state == domain.SessionStateRecording {
			s.state = domain.SessionStateAnalyzing
		}
		s.status = domain.StatusAnalyzing
		run.analyzing.Arm(func(generation uint64) {
			c.analyzingElapsed(run, generation)
		})
		c.emitStateLocked()

	case protocol.NextQuestion:
		c.nextQuestionLocked(run, ev)

	case protocol.InterviewCompleted:
		s.completionMessage = ev.Message
		c.logger.Info("interview completed")
		return c.teardownLocked(s, domain.SessionStateCompleted, domain.StatusCompleted)

	case protocol.ServerError:
		message := ev.Message
		if message == "" {
			message = serverErrorFallback
		}
		s.status = domain.StatusError
		s.errText = message
		c.emitStateLocked()
		c.events.SessionError(domain.ErrorCodeServer, message)

	case protocol.Announcement:
		c.appendFinalLocked(run, domain.ParseSpeaker(ev.Character), ev.Message)

	case protocol.Unrecognized:
		classified, err := protocol.Classify(ev)
		if err != nil {
			c.metrics.RecordInbound(protocol.TypeUnrecognized)
			c.reportProtocolErrorLocked(ev.Type, err)
			return nil
		}
		return c.dispatchLocked(run, classified)

	default:
		c.logger.Warn("unhandled inbound event", slog.String("type", event.EventType()))
	}
	return nil
}

// reportProtocolErrorLocked surfaces a frame no rule can interpret. The
// session keeps running.
func (c *SessionController) reportProtocolErrorLocked(eventType string, err error) {
	s := c.session
	c.metrics.RecordProtocolError()
	c.logger.Warn("ignoring unsupported frame", slog.String("type", eventType), slog.Any("error", err))
	s.status = domain.StatusError
	s.errText = err.Error()
	c.emitStateLocked()
	c.events.SessionError(domain.ErrorCodeProtocol, err.Error())
}

func (c *SessionController) nextQuestionLocked(run *interviewRun, ev protocol.NextQuestion) {
	s := c.session
	run.analyzing.Cancel()
	wasAnalyzing := s.analyzing
	s.analyzing = false
	if s.state == domain.SessionStateAnalyzing {
		s.state = domain.SessionStateRecording
	}
	if wasAnalyzing {
		s.status = restingStatus(s.state)
	}

	question := domain.CurrentQuestion{
		QuestionUUID:          ev.QuestionUUID,
		QuestionName:          ev.QuestionName,
		RoundNumber:           int(ev.RoundNumber),
		Difficulty:            ev.Difficulty,
		ExpectedTimeInSeconds: int(ev.ExpectedTimeInSeconds),
	}
	if ev.Message != "" {
		entry := c.appendFinalLocked(run, domain.ParseSpeaker(ev.Character), ev.Message)
		question.Text = entry.Text
	} else {
		c.logger.Warn("question received without message", slog.String("question_uuid", ev.QuestionUUID))
		question.Text = questionReceivedText
	}
	s.question = question

	c.events.QuestionChanged(question)
	c.emitStateLocked()
}

func (c *SessionController) appendFinalLocked(run *interviewRun, speaker domain.Speaker, text string) domain.TranscriptEntry {
	s := c.session
	entry := s.transcript.AppendFinal(speaker, text)
	c.events.TranscriptChanged(s.transcript.Entries())
	if speaker == domain.SpeakerAI {
		c.playback.Speak(run.ctx, entry.Text)
	}
	return entry
}

func (c *SessionController) analyzingElapsed(run *interviewRun, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run.closed || !run.analyzing.Current(generation) {
		return
	}
	s := c.session
	s.analyzing = true
	s.status = domain.StatusPleaseWait
	c.emitStateLocked()
}

// handleChannelClosed treats a close the session did not ask for as fatal.
func (c *SessionController) handleChannelClosed(run *interviewRun, channel ports.Channel) {
	c.mu.Lock()
	if run.closed {
		c.mu.Unlock()
		return
	}
	err := channel.Err()
	if err == nil {
		err = errors.New("interview connection closed")
	}
	s := c.session
	s.errText = err.Error()
	release := c.teardownLocked(s, domain.SessionStateError, domain.StatusError)
	c.events.SessionError(domain.ErrorCodeTransport, s.errText)
	c.mu.Unlock()

	c.logger.Warn("interview connection lost", slog.Uint64("run", run.id), slog.Any("error", err))
	release()
}

func restingStatus(state domain.SessionState) string {
	if state == domain.SessionStateRecording {
		return domain.StatusRecording
	}
	return domain.StatusConnected
}
