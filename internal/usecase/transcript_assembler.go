package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewlive/internal/domain"
)

// transcriptAssembler keeps the ordered conversation log. Only the last
// entry may be rewritten, and only while it is a candidate turn.
// Callers serialize access through the session lock.
type transcriptAssembler struct {
	entries []domain.TranscriptEntry
	now     func() time.Time
	newID   func() string
}

func newTranscriptAssembler() *transcriptAssembler {
	return &transcriptAssembler{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// AppendFinal always adds a new entry and returns it.
func (a *transcriptAssembler) AppendFinal(speaker domain.Speaker, text string) domain.TranscriptEntry {
	entry := domain.TranscriptEntry{
		ID:        a.newID(),
		Speaker:   speaker,
		Text:      unescapeTranscriptText(text),
		Timestamp: a.now(),
	}
	a.entries = append(a.entries, entry)
	return entry
}

// MergeCandidateUpdate rewrites the open candidate turn, or opens one when
// the log is empty or the last turn belongs to someone else. It reports
// whether a new entry was appended.
func (a *transcriptAssembler) MergeCandidateUpdate(text string) (domain.TranscriptEntry, bool) {
	clean := unescapeTranscriptText(text)
	if n := len(a.entries); n > 0 && a.entries[n-1].Speaker == domain.SpeakerCandidate {
		a.entries[n-1].Text = clean
		return a.entries[n-1], false
	}

	entry := domain.TranscriptEntry{
		ID:        a.newID(),
		Speaker:   domain.SpeakerCandidate,
		Text:      clean,
		Timestamp: a.now(),
	}
	a.entries = append(a.entries, entry)
	return entry, true
}

func (a *transcriptAssembler) Len() int {
	return len(a.entries)
}

// Entries returns a copy safe to hand to other goroutines.
func (a *transcriptAssembler) Entries() []domain.TranscriptEntry {
	out := make([]domain.TranscriptEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// unescapeTranscriptText strips one surrounding quote at each end and
// unescapes embedded quotes. Server text often arrives JSON-quoted twice.
// A trailing escaped quote is content, not a wrapper.
func unescapeTranscriptText(text string) string {
	text = strings.TrimPrefix(text, `"`)
	if strings.HasSuffix(text, `"`) && !strings.HasSuffix(text, `\"`) {
		text = text[:len(text)-1]
	}
	return strings.ReplaceAll(text, `\"`, `"`)
}
