package chat

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Kind tags messages that need special treatment.
type Kind string

const (
	KindGreeting Kind = "greeting"
)

// Message is one transcript entry. It is never modified after creation.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Language  Language
	Timestamp time.Time
	Kind      Kind
}

// WireSender is the sender name the backend expects in history entries.
func (m Message) WireSender() string {
	if m.Sender == SenderAssistant {
		return "bot"
	}
	return "user"
}

func (m Message) IsGreeting() bool {
	return m.Kind == KindGreeting
}
