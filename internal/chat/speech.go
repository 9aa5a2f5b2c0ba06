package chat

// RecognitionHandlers receive the outcome of one capture. Implementations may
// invoke them from any goroutine; each capture ends with OnEnd or OnError.
type RecognitionHandlers struct {
	OnResult func(transcript string)
	OnError  func(err error)
	OnEnd    func()
}

// SpeechInputPort is a platform voice-to-text capability.
type SpeechInputPort interface {
	// Available reports whether the platform can capture speech at all.
	Available() bool
	// Start begins a single, non-continuous capture tagged with locale.
	Start(locale string, h RecognitionHandlers) error
	// Stop aborts the current capture.
	Stop()
}

type Voice struct {
	Name string
	Lang string
}

type Utterance struct {
	Text   string
	Locale string
	Voice  *Voice
	Rate   float64
	Pitch  float64
}

// SynthesisHandlers receive the end of one utterance. Exactly one of them is
// called per started utterance unless it was cancelled.
type SynthesisHandlers struct {
	OnEnd   func()
	OnError func(err error)
}

// SpeechOutputPort is a platform text-to-speech capability.
type SpeechOutputPort interface {
	Available() bool
	Voices() []Voice
	Speak(u Utterance, h SynthesisHandlers) error
	Cancel()
}

// NoSpeechInput is the port for runtimes without speech recognition.
type NoSpeechInput struct{}

func (NoSpeechInput) Available() bool                         { return false }
func (NoSpeechInput) Start(string, RecognitionHandlers) error { return ErrUnsupported }
func (NoSpeechInput) Stop()                                   {}

// NoSpeechOutput is the port for runtimes without speech synthesis.
type NoSpeechOutput struct{}

func (NoSpeechOutput) Available() bool                          { return false }
func (NoSpeechOutput) Voices() []Voice                          { return nil }
func (NoSpeechOutput) Speak(Utterance, SynthesisHandlers) error { return ErrUnsupported }
func (NoSpeechOutput) Cancel()                                  {}

// pickVoice returns the first voice that suits lang, or nil to let the
// platform choose.
func pickVoice(voices []Voice, lang Language) *Voice {
	for i := range voices {
		if lang.prefersVoice(voices[i].Lang) {
			v := voices[i]
			return &v
		}
	}
	return nil
}
