package protocol

import (
	"errors"
	"testing"
)

func TestDecodeGreeting(t *testing.T) {
	t.Parallel()

	ev, err := Decode([]byte(`{"type":"greeting","character":"ai","message":"Hello!","panel_name":"Backend"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	greeting, ok := ev.(Greeting)
	if !ok {
		t.Fatalf("decoded type = %T, want Greeting", ev)
	}
	if greeting.Message != "Hello!" || greeting.PanelName != "Backend" || greeting.Character != "ai" {
		t.Fatalf("unexpected greeting: %+v", greeting)
	}
}

func TestDecodeTaggedTypes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{raw: `{"type":"connection_established","message":"hi"}`, want: TypeConnectionEstablished},
		{raw: `{"type":"transcription_update","message":"\"I am\""}`, want: TypeTranscriptionUpdate},
		{raw: `{"type":"scoring_update","score":7,"feedback":"ok"}`, want: TypeScoringUpdate},
		{raw: `{"type":"next_question","message":"Next?","round_number":2}`, want: TypeNextQuestion},
		{raw: `{"type":"interview_completed","message":"bye"}`, want: TypeInterviewCompleted},
		{raw: `{"type":"error","message":"boom"}`, want: TypeError},
		{raw: `{"type":"  greeting ","message":"padded tag"}`, want: TypeGreeting},
		{raw: `{"type":"surprise","message":"unknown tag"}`, want: TypeUnrecognized},
		{raw: `{"message":"untagged"}`, want: TypeUnrecognized},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.want, func(t *testing.T) {
			t.Parallel()
			ev, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got := ev.EventType(); got != tc.want {
				t.Fatalf("EventType() = %q, want %q for %s", got, tc.want, tc.raw)
			}
		})
	}
}

func TestDecodeScoringUpdateFields(t *testing.T) {
	t.Parallel()

	ev, err := Decode([]byte(`{"type":"scoring_update","score":7.5,"feedback":"ok"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	scoring := ev.(ScoringUpdate)
	if scoring.Score != 7.5 || scoring.Feedback != "ok" {
		t.Fatalf("unexpected scoring: %+v", scoring)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{not json`, ``, `{"type":"scoring_update","score":"high"}`} {
		_, err := Decode([]byte(raw))
		if err == nil {
			t.Fatalf("expected decode error for %s", raw)
		}
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("err type = %T, want *DecodeError", err)
		}
		if decErr.Code != "bad_frame" || decErr.Message == "" {
			t.Fatalf("unexpected decode error: %+v", decErr)
		}
	}
}

func TestDecodeNonObjectIsProtocolError(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`[1,2,3]`, `null`, `"x"`, `42`} {
		_, err := Decode([]byte(raw))
		var protoErr *ProtocolError
		if !errors.As(err, &protoErr) {
			t.Fatalf("Decode(%s) err = %v, want *ProtocolError", raw, err)
		}
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			t.Fatalf("Decode(%s) should not report a decode error", raw)
		}
	}
}

func TestDecodeNonStringTagFallsBack(t *testing.T) {
	t.Parallel()

	ev, err := Decode([]byte(`{"type":null,"question":"Q?"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	u, ok := ev.(Unrecognized)
	if !ok || u.Type != "" {
		t.Fatalf("null tag should decode as untagged, got %#v", ev)
	}
	got, err := Classify(u)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if q, ok := got.(NextQuestion); !ok || q.Message != "Q?" {
		t.Fatalf("expected next question, got %#v", got)
	}

	ev, err = Decode([]byte(`{"type":5,"message":"hi"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	u, ok = ev.(Unrecognized)
	if !ok || u.Type != "5" {
		t.Fatalf("numeric tag should decode as unknown tag, got %#v", ev)
	}
	got, err = Classify(u)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if a, ok := got.(Announcement); !ok || a.Message != "hi" {
		t.Fatalf("expected announcement, got %#v", got)
	}
}

func TestClassifyUntaggedQuestion(t *testing.T) {
	t.Parallel()

	ev, err := Decode([]byte(`{"question":"What is a goroutine?","message":"Here is the next one","difficulty_level":"easy","expected_time_in_seconds":90}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, err := Classify(ev.(Unrecognized))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	q, ok := got.(NextQuestion)
	if !ok {
		t.Fatalf("classified type = %T, want NextQuestion", got)
	}
	if q.Message != "Here is the next one" {
		t.Fatalf("expected message to take precedence as question text, got %q", q.Message)
	}
	if q.Difficulty != "easy" || q.ExpectedTimeInSeconds != 90 {
		t.Fatalf("unexpected metadata: %+v", q)
	}
}

func TestClassifyUntaggedQuestionWithoutMessage(t *testing.T) {
	t.Parallel()

	got, err := Classify(Unrecognized{Raw: map[string]any{"question": "Explain channels"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if q := got.(NextQuestion); q.Message != "Explain channels" {
		t.Fatalf("unexpected question text: %q", q.Message)
	}
}

func TestClassifyQuestionBankObject(t *testing.T) {
	t.Parallel()

	got, err := Classify(Unrecognized{Raw: map[string]any{"uuid": "q-1", "name": "Closures"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	q := got.(NextQuestion)
	if q.Message != "Closures" || q.QuestionUUID != "q-1" || q.QuestionName != "Closures" {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestClassifyMessageAnnouncement(t *testing.T) {
	t.Parallel()

	got, err := Classify(Unrecognized{Raw: map[string]any{"message": "Please hold", "character": "system"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	a, ok := got.(Announcement)
	if !ok {
		t.Fatalf("classified type = %T, want Announcement", got)
	}
	if a.Message != "Please hold" || a.Character != "system" {
		t.Fatalf("unexpected announcement: %+v", a)
	}
}

func TestClassifyUnknownTagPrefersMessage(t *testing.T) {
	t.Parallel()

	got, err := Classify(Unrecognized{Type: "hint", Raw: map[string]any{"type": "hint", "message": "Take your time", "question": "Q?"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if _, ok := got.(Announcement); !ok {
		t.Fatalf("classified type = %T, want Announcement", got)
	}
}

func TestClassifyUnsalvageable(t *testing.T) {
	t.Parallel()

	_, err := Classify(Unrecognized{Type: "ping", Raw: map[string]any{"type": "ping"}})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("err type = %T, want *ProtocolError", err)
	}
	if protoErr.Type != "ping" {
		t.Fatalf("unexpected protocol error: %+v", protoErr)
	}

	_, err = Classify(Unrecognized{Raw: map[string]any{"score": 3.0}})
	if !errors.As(err, &protoErr) || protoErr.Type != "" {
		t.Fatalf("expected untyped protocol error, got %v", err)
	}
}

func TestEncodePCM16LittleEndian(t *testing.T) {
	t.Parallel()

	got := EncodePCM16([]int16{0, 1, -1, 32767, -32768})
	want := []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
