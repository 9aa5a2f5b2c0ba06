package provider

import "krishi-mitra/internal/chat"

// ISpeechProvider is a synthesizer the terminal chat can read replies with.
type ISpeechProvider interface {
	chat.SpeechOutputPort
	Name() string
}
