package domain

import "time"

// SessionState models the live interview lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateConnected  SessionState = "connected"
	SessionStateRecording  SessionState = "recording"
	SessionStateAnalyzing  SessionState = "analyzing"
	SessionStateCompleted  SessionState = "completed"
	SessionStateError      SessionState = "error"
	SessionStateStopped    SessionState = "stopped"
)

// Terminal reports whether no further transitions are possible without a new session.
func (s SessionState) Terminal() bool {
	return s == SessionStateCompleted || s == SessionStateError
}

// Live reports whether the session currently owns a transport.
func (s SessionState) Live() bool {
	switch s {
	case SessionStateConnecting, SessionStateConnected, SessionStateRecording, SessionStateAnalyzing:
		return true
	default:
		return false
	}
}

// User-facing status lines.
const (
	StatusDisconnected          = "Disconnected"
	StatusConnecting            = "Connecting..."
	StatusConnected             = "Connected"
	StatusConnectionEstablished = "Connection Established"
	StatusRecording             = "Recording"
	StatusAnalyzing             = "Analyzing your response..."
	StatusPleaseWait            = "Please wait while analysing your response..."
	StatusCompleted             = "Interview Completed"
	StatusStopped               = "Stopped"
	StatusError                 = "Error"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAI        Speaker = "ai"
	SpeakerCandidate Speaker = "candidate"
	SpeakerSystem    Speaker = "system"
)

// ParseSpeaker maps a wire "character" value onto a known speaker.
// Empty and unknown characters are attributed to the AI interviewer.
func ParseSpeaker(character string) Speaker {
	switch character {
	case "candidate", "you":
		return SpeakerCandidate
	case "system":
		return SpeakerSystem
	default:
		return SpeakerAI
	}
}

// TranscriptEntry is one turn in the interview conversation log.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CurrentQuestion is the most recent question and its metadata.
type CurrentQuestion struct {
	Text                  string `json:"text"`
	QuestionUUID          string `json:"questionUuid,omitempty"`
	QuestionName          string `json:"questionName,omitempty"`
	RoundNumber           int    `json:"roundNumber,omitempty"`
	Difficulty            string `json:"difficulty,omitempty"`
	ExpectedTimeInSeconds int    `json:"expectedTimeInSeconds,omitempty"`
}

// ErrorCode identifies non-fatal and fatal session errors.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeDevice    ErrorCode = "device"
	ErrorCodeTransport ErrorCode = "transport"
	ErrorCodeDecode    ErrorCode = "decode"
	ErrorCodeProtocol  ErrorCode = "protocol"
	ErrorCodeServer    ErrorCode = "server"
	ErrorCodePlayback  ErrorCode = "playback"
)

// Voice is one text-to-speech voice offered by the playback engine.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"lang"`
	Default  bool   `json:"default,omitempty"`
}

// Snapshot summarizes everything the UI layer renders for a session.
type Snapshot struct {
	State             SessionState      `json:"state"`
	Status            string            `json:"status"`
	Error             string            `json:"error,omitempty"`
	Connected         bool              `json:"connected"`
	Recording         bool              `json:"recording"`
	Analyzing         bool              `json:"analyzing"`
	Completed         bool              `json:"completed"`
	CanStart          bool              `json:"canStart"`
	StartedAt         time.Time         `json:"startedAt,omitempty"`
	CurrentQuestion   CurrentQuestion   `json:"currentQuestion"`
	CompletionMessage string            `json:"completionMessage,omitempty"`
	Transcript        []TranscriptEntry `json:"transcript"`
}
