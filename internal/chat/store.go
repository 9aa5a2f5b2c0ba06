package chat

import (
	"time"

	"github.com/google/uuid"

	"krishi-mitra/internal/locale"
)

// Flag names one of the boolean session indicators.
type Flag int

const (
	FlagListening Flag = iota
	FlagSpeaking
	FlagAwaitingReply
	FlagMinimized
	FlagConnectionError
)

func (f Flag) String() string {
	switch f {
	case FlagListening:
		return "listening"
	case FlagSpeaking:
		return "speaking"
	case FlagAwaitingReply:
		return "awaiting_reply"
	case FlagMinimized:
		return "minimized"
	case FlagConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// Store is the single writer of the transcript and the session flags.
// It is not safe for concurrent use; a Session confines it to its event loop.
type Store struct {
	catalog locale.Catalog
	now     func() time.Time
	newID   func() string

	transcript   []Message
	language     Language
	pendingInput string
	flags        map[Flag]bool
}

func NewStore(catalog locale.Catalog, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		catalog: catalog,
		now:     now,
		newID:   uuid.NewString,
		flags:   make(map[Flag]bool),
	}
}

// Initialize discards the transcript and seeds it with the greeting for lang.
func (s *Store) Initialize(lang Language) {
	s.language = lang
	s.transcript = []Message{s.newMessage(s.catalog.For(lang.Code()).Greeting, SenderAssistant, lang, KindGreeting)}
}

// SetLanguage applies an explicit language choice. While the conversation
// has not started the greeting is re-seeded in the new language; afterwards
// only the mode used for new traffic changes.
func (s *Store) SetLanguage(lang Language) {
	if s.IsPristine() {
		s.Initialize(lang)
		return
	}
	s.language = lang
}

// IsPristine reports whether the transcript still holds only the greeting.
func (s *Store) IsPristine() bool {
	return len(s.transcript) == 1 && s.transcript[0].IsGreeting()
}

// AppendUserMessage records user text tagged with its detected language,
// which also becomes the session language.
func (s *Store) AppendUserMessage(text string) Message {
	lang := Detect(text)
	s.language = lang
	msg := s.newMessage(text, SenderUser, lang, "")
	s.transcript = append(s.transcript, msg)
	return msg
}

func (s *Store) AppendAssistantMessage(text string, lang Language, kind Kind) Message {
	msg := s.newMessage(text, SenderAssistant, lang, kind)
	s.transcript = append(s.transcript, msg)
	return msg
}

// SetFlag sets one indicator. Listening and speaking exclude each other:
// raising one lowers the other.
func (s *Store) SetFlag(f Flag, v bool) {
	s.flags[f] = v
	if !v {
		return
	}
	switch f {
	case FlagListening:
		s.flags[FlagSpeaking] = false
	case FlagSpeaking:
		s.flags[FlagListening] = false
	}
}

func (s *Store) Flag(f Flag) bool {
	return s.flags[f]
}

// SetPendingInput stores draft text and updates the language from it.
// Empty text clears the draft without touching the language.
func (s *Store) SetPendingInput(text string) {
	s.pendingInput = text
	if text != "" {
		s.language = Detect(text)
	}
}

func (s *Store) PendingInput() string {
	return s.pendingInput
}

func (s *Store) Language() Language {
	return s.language
}

func (s *Store) Strings() locale.Strings {
	return s.catalog.For(s.language.Code())
}

// Transcript returns a copy of every message in order.
func (s *Store) Transcript() []Message {
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// History returns the transcript without greeting messages, in order.
func (s *Store) History() []Message {
	out := make([]Message, 0, len(s.transcript))
	for _, m := range s.transcript {
		if m.IsGreeting() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// LastMessage returns the newest transcript entry.
func (s *Store) LastMessage() (Message, bool) {
	if len(s.transcript) == 0 {
		return Message{}, false
	}
	return s.transcript[len(s.transcript)-1], true
}

func (s *Store) newMessage(text string, sender Sender, lang Language, kind Kind) Message {
	return Message{
		ID:        s.newID(),
		Text:      text,
		Sender:    sender,
		Language:  lang,
		Timestamp: s.now(),
		Kind:      kind,
	}
}
