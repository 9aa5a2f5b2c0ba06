package chat

import (
	"github.com/sirupsen/logrus"

	"krishi-mitra/internal/infra/logger"
)

// DefaultSpeechRate is slightly below natural pace for clarity.
const DefaultSpeechRate = 0.8

// OutputController drives a SpeechOutputPort on behalf of a Store.
//
// At most one utterance plays at a time. Speak is a no-op while speaking;
// when it does start, any residual platform utterance is cancelled first, so
// a new utterance replaces rather than queues behind an old one.
type OutputController struct {
	port    SpeechOutputPort
	store   *Store
	log     *logger.Logger
	deliver func(event)
	rate    float64

	gen uint64
}

func NewOutputController(port SpeechOutputPort, store *Store, log *logger.Logger, rate float64, deliver func(event)) *OutputController {
	if port == nil {
		port = NoSpeechOutput{}
	}
	if rate <= 0 {
		rate = DefaultSpeechRate
	}
	return &OutputController{port: port, store: store, log: log, rate: rate, deliver: deliver}
}

// Speak starts reading text aloud in lang and reports whether it started.
func (c *OutputController) Speak(text string, lang Language) bool {
	if text == "" || c.store.Flag(FlagSpeaking) {
		return false
	}
	if !c.port.Available() {
		return false
	}

	c.port.Cancel()
	c.gen++
	gen := c.gen

	u := Utterance{
		Text:   text,
		Locale: lang.SynthesisLocale(),
		Voice:  pickVoice(c.port.Voices(), lang),
		Rate:   c.rate,
		Pitch:  1.0,
	}

	c.store.SetFlag(FlagSpeaking, true)
	err := c.port.Speak(u, SynthesisHandlers{
		OnEnd:   func() { c.deliver(synthesisEnded{gen: gen}) },
		OnError: func(err error) { c.deliver(synthesisEnded{gen: gen, err: err}) },
	})
	if err != nil {
		c.log.Warn("speech synthesis failed to start", logrus.Fields{"error": err.Error(), "locale": u.Locale})
		c.store.SetFlag(FlagSpeaking, false)
		return false
	}
	return true
}

// Stop cancels the current utterance. Calling it while silent changes nothing.
func (c *OutputController) Stop() {
	if !c.store.Flag(FlagSpeaking) {
		return
	}
	c.gen++
	c.port.Cancel()
	c.store.SetFlag(FlagSpeaking, false)
}

// HandleEnded releases the speaking state on both completion and error.
func (c *OutputController) HandleEnded(gen uint64, err error) {
	if gen != c.gen {
		return
	}
	if err != nil {
		c.log.Warn("speech synthesis error", logrus.Fields{"error": err.Error()})
	}
	c.store.SetFlag(FlagSpeaking, false)
}
