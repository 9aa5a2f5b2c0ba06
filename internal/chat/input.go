package chat

import (
	"github.com/sirupsen/logrus"

	"krishi-mitra/internal/infra/logger"
)

// InputController drives a SpeechInputPort on behalf of a Store. Platform
// callbacks are not applied directly: they are handed to deliver, which must
// route them back into the owner's event loop, where the Handle methods run.
type InputController struct {
	port    SpeechInputPort
	store   *Store
	log     *logger.Logger
	deliver func(event)

	// gen identifies the current capture; callbacks from older captures are
	// ignored.
	gen uint64
}

func NewInputController(port SpeechInputPort, store *Store, log *logger.Logger, deliver func(event)) *InputController {
	if port == nil {
		port = NoSpeechInput{}
	}
	return &InputController{port: port, store: store, log: log, deliver: deliver}
}

// Start begins a capture in lang. Without a capability it puts the localized
// "microphone not supported" text into pending input and reports false.
func (c *InputController) Start(lang Language) bool {
	if !c.port.Available() {
		c.store.SetPendingInput(c.store.catalog.For(lang.Code()).MicrophoneUnsupported)
		return false
	}
	if c.store.Flag(FlagListening) {
		return true
	}

	c.gen++
	gen := c.gen
	err := c.port.Start(lang.RecognitionLocale(), RecognitionHandlers{
		OnResult: func(transcript string) { c.deliver(recognitionResult{gen: gen, text: transcript}) },
		OnError:  func(err error) { c.deliver(recognitionFailed{gen: gen, err: err}) },
		OnEnd:    func() { c.deliver(recognitionEnded{gen: gen}) },
	})
	if err != nil {
		c.log.Warn("speech recognition failed to start", logrus.Fields{"error": err.Error(), "locale": lang.RecognitionLocale()})
		c.store.SetFlag(FlagListening, false)
		return false
	}

	c.store.SetFlag(FlagListening, true)
	return true
}

// Stop aborts an active capture. Calling it while idle changes nothing.
func (c *InputController) Stop() {
	if !c.store.Flag(FlagListening) {
		return
	}
	c.gen++
	c.port.Stop()
	c.store.SetFlag(FlagListening, false)
}

func (c *InputController) HandleResult(gen uint64, transcript string) {
	if gen != c.gen {
		return
	}
	c.store.SetPendingInput(transcript)
	c.store.SetFlag(FlagListening, false)
}

func (c *InputController) HandleError(gen uint64, err error) {
	if gen != c.gen {
		return
	}
	if err != nil {
		c.log.Warn("speech recognition error", logrus.Fields{"error": err.Error()})
	}
	c.store.SetFlag(FlagListening, false)
}

func (c *InputController) HandleEnd(gen uint64) {
	if gen != c.gen {
		return
	}
	c.store.SetFlag(FlagListening, false)
}
