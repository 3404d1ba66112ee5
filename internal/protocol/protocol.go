package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound message tags.
const (
	TypeConnectionEstablished = "connection_established"
	TypeGreeting              = "greeting"
	TypeTranscriptionUpdate   = "transcription_update"
	TypeScoringUpdate         = "scoring_update"
	TypeNextQuestion          = "next_question"
	TypeInterviewCompleted    = "interview_completed"
	TypeError                 = "error"

	// TypeAnnouncement labels untagged or unknown frames that carried a message.
	TypeAnnouncement = "announcement"
	// TypeUnrecognized labels frames whose tag is missing or outside the closed set.
	TypeUnrecognized = "unrecognized"
)

type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func badFrame(format string, args ...any) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a well-formed frame that no rule can interpret.
type ProtocolError struct {
	Type   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Type == "" {
		return "unsupported message: " + e.Reason
	}
	return fmt.Sprintf("unsupported %q message: %s", e.Type, e.Reason)
}

// Event is one decoded inbound message.
type Event interface {
	EventType() string
}

type ConnectionEstablished struct {
	Message string `json:"message"`
}

type Greeting struct {
	Character        string `json:"character,omitempty"`
	Message          string `json:"message"`
	PanelName        string `json:"panel_name,omitempty"`
	PanelDescription string `json:"panel_description,omitempty"`
}

type TranscriptionUpdate struct {
	Character  string `json:"character,omitempty"`
	Message    string `json:"message"`
	AnswerUUID string `json:"answer_uuid,omitempty"`
}

type ScoringUpdate struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type NextQuestion struct {
	Character             string  `json:"character,omitempty"`
	Message               string  `json:"message"`
	QuestionUUID          string  `json:"question_uuid,omitempty"`
	RoundNumber           float64 `json:"round_number,omitempty"`
	Difficulty            string  `json:"difficulty,omitempty"`
	QuestionName          string  `json:"question_name,omitempty"`
	ExpectedTimeInSeconds float64 `json:"expected_time_in_seconds,omitempty"`
}

type InterviewCompleted struct {
	Message string `json:"message"`
}

type ServerError struct {
	Message string `json:"message"`
}

// Announcement is a generic AI-side message recovered from an untyped frame.
type Announcement struct {
	Character string
	Message   string
}

// Unrecognized carries a frame whose tag is missing or unknown.
type Unrecognized struct {
	Type string
	Raw  map[string]any
}

func (ConnectionEstablished) EventType() string { return TypeConnectionEstablished }
func (Greeting) EventType() string              { return TypeGreeting }
func (TranscriptionUpdate) EventType() string   { return TypeTranscriptionUpdate }
func (ScoringUpdate) EventType() string         { return TypeScoringUpdate }
func (NextQuestion) EventType() string          { return TypeNextQuestion }
func (InterviewCompleted) EventType() string    { return TypeInterviewCompleted }
func (ServerError) EventType() string           { return TypeError }
func (Announcement) EventType() string          { return TypeAnnouncement }
func (Unrecognized) EventType() string          { return TypeUnrecognized }

// Decode parses one inbound text frame. Frames with a missing or unknown tag
// decode to Unrecognized; use Classify to interpret them. Valid JSON that is
// not an object yields a *ProtocolError.
func Decode(data []byte) (Event, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, badFrame("invalid json frame: %v", err)
	}
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, &ProtocolError{Reason: "frame is not a json object"}
	}

	// A null tag counts as missing; any other non-string tag is unknown.
	typ := ""
	switch tag := raw["type"].(type) {
	case nil:
	case string:
		typ = strings.TrimSpace(tag)
	default:
		typ = fmt.Sprint(tag)
	}

	switch typ {
	case TypeConnectionEstablished:
		return decodeAs[ConnectionEstablished](data, typ)
	case TypeGreeting:
		return decodeAs[Greeting](data, typ)
	case TypeTranscriptionUpdate:
		return decodeAs[TranscriptionUpdate](data, typ)
	case TypeScoringUpdate:
		return decodeAs[ScoringUpdate](data, typ)
	case TypeNextQuestion:
		return decodeAs[NextQuestion](data, typ)
	case TypeInterviewCompleted:
		return decodeAs[InterviewCompleted](data, typ)
	case TypeError:
		return decodeAs[ServerError](data, typ)
	default:
		return Unrecognized{Type: typ, Raw: raw}, nil
	}
}

func decodeAs[T Event](data []byte, typ string) (Event, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badFrame("invalid %s frame: %v", typ, err)
	}
	return msg, nil
}

// Classify applies the fallback rules for frames outside the closed set.
//
// Untagged frames with a question become NextQuestion before the message rule
// is consulted; frames with an unknown tag check the message rule first.
// Question-bank objects (uuid and name, no question) are treated as questions.
func Classify(u Unrecognized) (Event, error) {
	character := stringField(u.Raw, "character")
	message := stringField(u.Raw, "message")

	if u.Type == "" {
		if q, ok := questionFromRaw(u.Raw, message); ok {
			return q, nil
		}
	}
	if message != "" {
		return Announcement{Character: character, Message: message}, nil
	}
	if q, ok := questionFromRaw(u.Raw, message); ok {
		return q, nil
	}
	if u.Type == "" {
		return nil, &ProtocolError{Reason: "frame has no type, question or message"}
	}
	return nil, &ProtocolError{Type: u.Type, Reason: "frame has no question or message"}
}

func questionFromRaw(raw map[string]any, message string) (NextQuestion, bool) {
	question := stringField(raw, "question")
	uuid := stringField(raw, "uuid")
	name := stringField(raw, "name")
	if question == "" && (uuid == "" || name == "") {
		return NextQuestion{}, false
	}

	text := message
	if text == "" {
		text = question
	}
	if text == "" {
		text = name
	}
	return NextQuestion{
		Character:             stringField(raw, "character"),
		Message:               text,
		QuestionUUID:          firstNonEmpty(stringField(raw, "question_uuid"), uuid),
		QuestionName:          firstNonEmpty(stringField(raw, "question_name"), name),
		Difficulty:            firstNonEmpty(stringField(raw, "difficulty"), stringField(raw, "difficulty_level")),
		ExpectedTimeInSeconds: numberField(raw, "expected_time_in_seconds"),
		RoundNumber:           numberField(raw, "round_number"),
	}, true
}

func stringField(raw map[string]any, key string) string {
	value, ok := raw[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func numberField(raw map[string]any, key string) float64 {
	value, ok := raw[key].(float64)
	if !ok {
		return 0
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// EncodePCM16 lays samples out as consecutive little-endian int16 values with
// no header, the outbound audio frame format.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
