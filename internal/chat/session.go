package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	Iservices "krishi-mitra/internal/domain/interfaces/services"
	"krishi-mitra/internal/infra/logger"
	"krishi-mitra/internal/locale"
)

// DefaultAutoSpeakDelay lets the UI settle before a reply is read aloud.
const DefaultAutoSpeakDelay = 500 * time.Millisecond

type TurnState string

const (
	StateIdle      TurnState = "idle"
	StateComposing TurnState = "composing"
	StateSending   TurnState = "sending"
)

// Outcome is how the most recent turn ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Snapshot is an immutable view of a session, published after every event.
type Snapshot struct {
	SessionID         string
	ClientID          string
	Transcript        []Message
	Language          Language
	PendingInput      string
	State             TurnState
	LastOutcome       Outcome
	Listening         bool
	Speaking          bool
	AwaitingReply     bool
	Minimized         bool
	ConnectionError   bool
	Banner            string
	Status            string
	Placeholder       string
	QuickActions      []string
	QuickActionsTitle string
	Closed            bool
}

type Options struct {
	ID       string
	ClientID string
	Language Language

	Catalog      locale.Catalog
	Chatbot      Iservices.IChatbotService
	SpeechInput  SpeechInputPort
	SpeechOutput SpeechOutputPort
	Clock        Clock
	Now          func() time.Time
	Logger       *logger.Logger

	AutoSpeakDelay   time.Duration
	DisableAutoSpeak bool
	SpeechRate       float64
	// ReplyTimeout bounds a single backend call. Zero leaves it to the client.
	ReplyTimeout time.Duration

	// OnClose receives the final snapshot once the session is torn down.
	OnClose func(Snapshot)
}

type event interface{}

type command struct {
	run  func() error
	done chan error
}

type recognitionResult struct {
	gen  uint64
	text string
}

type recognitionFailed struct {
	gen uint64
	err error
}

type recognitionEnded struct {
	gen uint64
}

type synthesisEnded struct {
	gen uint64
	err error
}

type replyArrived struct {
	turn  uint64
	lang  Language
	reply Reply
}

type autoSpeakDue struct {
	turn uint64
	text string
	lang Language
}

type closeRequest struct{}

// Session is one conversation with the assistant.
//
// Every operation and every platform callback becomes an event handled one
// at a time by the session's own goroutine, which is the only writer of the
// Store. Only one reply may be outstanding: Send while awaiting a reply
// returns ErrReplyPending and changes nothing.
type Session struct {
	id       string
	clientID string

	store   *Store
	input   *InputController
	output  *OutputController
	fetcher *ReplyFetcher
	catalog locale.Catalog
	clock   Clock
	log     *logger.Logger
	onClose func(Snapshot)

	autoSpeakDelay   time.Duration
	disableAutoSpeak bool
	replyTimeout     time.Duration

	box  *mailbox
	done chan struct{}

	// owned by the loop goroutine
	turn      uint64
	outcome   Outcome
	autoSpeak Timer
	closed    bool

	snapshot atomic.Pointer[Snapshot]

	subMu      sync.Mutex
	subs       map[int]chan Snapshot
	nextSub    int
	subsClosed bool
}

func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Catalog == nil {
		opts.Catalog = locale.Default()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscardLogger()
	}
	if opts.Language == "" {
		opts.Language = Primary
	}
	if opts.AutoSpeakDelay < 0 {
		opts.AutoSpeakDelay = 0
	}

	log := opts.Logger.With(logrus.Fields{"session_id": opts.ID, "client_id": opts.ClientID})

	s := &Session{
		id:               opts.ID,
		clientID:         opts.ClientID,
		catalog:          opts.Catalog,
		clock:            opts.Clock,
		log:              log,
		onClose:          opts.OnClose,
		autoSpeakDelay:   opts.AutoSpeakDelay,
		disableAutoSpeak: opts.DisableAutoSpeak,
		replyTimeout:     opts.ReplyTimeout,
		box:              newMailbox(),
		done:             make(chan struct{}),
		subs:             make(map[int]chan Snapshot),
	}

	s.store = NewStore(opts.Catalog, opts.Now)
	s.store.Initialize(opts.Language)
	deliver := func(e event) { s.box.post(e) }
	s.input = NewInputController(opts.SpeechInput, s.store, log, deliver)
	s.output = NewOutputController(opts.SpeechOutput, s.store, log, opts.SpeechRate, deliver)
	s.fetcher = NewReplyFetcher(opts.Chatbot, opts.Catalog, log)

	s.publish()
	go s.loop()

	log.Info("chat session opened", logrus.Fields{"language": opts.Language.Code()})
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) ClientID() string { return s.clientID }

// Snapshot returns the latest published state.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Subscribe returns a channel that receives the current snapshot and then
// every later one. A slow reader only misses intermediate snapshots, never
// the latest. The channel is closed when the session closes or cancel runs.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch <- *s.snapshot.Load()
	if s.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// SetInput replaces the draft text. Non-empty text also updates the
// language from its script.
func (s *Session) SetInput(text string) error {
	return s.do(func() error {
		s.store.SetPendingInput(text)
		return nil
	})
}

// UseQuickAction copies one of the starter questions into the draft.
func (s *Session) UseQuickAction(index int) error {
	return s.do(func() error {
		if !s.store.IsPristine() {
			return ErrConversationStarted
		}
		actions := s.store.Strings().QuickActions
		if index < 0 || index >= len(actions) {
			return fmt.Errorf("%w: %d", ErrQuickActionRange, index)
		}
		s.store.SetPendingInput(actions[index])
		return nil
	})
}

// Send appends text as a user message and asks the backend for a reply.
// It returns as soon as the request is in flight.
func (s *Session) Send(text string) error {
	return s.do(func() error { return s.send(text) })
}

// Submit sends the current draft.
func (s *Session) Submit() error {
	return s.do(func() error { return s.send(s.store.PendingInput()) })
}

// SetLanguage applies an explicit language choice.
func (s *Session) SetLanguage(lang Language) error {
	return s.do(func() error {
		s.store.SetLanguage(lang)
		return nil
	})
}

func (s *Session) SetMinimized(minimized bool) error {
	return s.do(func() error {
		s.store.SetFlag(FlagMinimized, minimized)
		return nil
	})
}

// StartListening stops any speech output and begins a voice capture. Without
// a recognition capability the draft receives a localized notice instead.
func (s *Session) StartListening() error {
	return s.do(func() error {
		s.startListening()
		return nil
	})
}

func (s *Session) StopListening() error {
	return s.do(func() error {
		s.input.Stop()
		return nil
	})
}

func (s *Session) ToggleListening() error {
	return s.do(func() error {
		if s.store.Flag(FlagListening) {
			s.input.Stop()
			return nil
		}
		s.startListening()
		return nil
	})
}

// Speak reads text aloud in the session language. Empty text means the last
// transcript message, in its own language.
func (s *Session) Speak(text string) error {
	return s.do(func() error {
		s.speak(text)
		return nil
	})
}

func (s *Session) StopSpeaking() error {
	return s.do(func() error {
		s.output.Stop()
		return nil
	})
}

// ToggleSpeech stops speech if speaking and otherwise reads the last message.
func (s *Session) ToggleSpeech() error {
	return s.do(func() error {
		if s.store.Flag(FlagSpeaking) {
			s.output.Stop()
			return nil
		}
		s.speak("")
		return nil
	})
}

// Close stops any capture and speech, then discards the session. A reply
// still in flight is not cancelled; it is dropped when it arrives. Close is
// idempotent.
func (s *Session) Close() error {
	s.box.post(closeRequest{})
	<-s.done
	return nil
}

func (s *Session) do(fn func() error) error {
	cmd := command{run: fn, done: make(chan error, 1)}
	if !s.box.post(cmd) {
		return ErrSessionClosed
	}
	return <-cmd.done
}

func (s *Session) loop() {
	defer close(s.done)

	for range s.box.signal {
		batch := s.box.drain()
		for i, e := range batch {
			if s.handle(e) {
				s.shutdown(batch[i+1:])
				return
			}
		}
	}
}

// handle applies one event, publishes the resulting state and reports
// whether the session must stop. Commands are answered only after the
// publish, so a caller always observes its own effect.
func (s *Session) handle(e event) bool {
	switch e := e.(type) {
	case command:
		err := s.run(e.run)
		s.publish()
		e.done <- err
		return false
	case recognitionResult:
		s.input.HandleResult(e.gen, e.text)
	case recognitionFailed:
		s.input.HandleError(e.gen, e.err)
	case recognitionEnded:
		s.input.HandleEnd(e.gen)
	case synthesisEnded:
		s.output.HandleEnded(e.gen, e.err)
	case replyArrived:
		s.completeTurn(e)
	case autoSpeakDue:
		s.speakReply(e)
	case closeRequest:
		s.teardown()
		return true
	default:
		s.log.Warn("unknown session event", logrus.Fields{"event": fmt.Sprintf("%T", e)})
	}
	s.publish()
	return false
}

// run executes a command, turning a panic into an error so one bad call
// cannot take the session down.
func (s *Session) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Sprintf("Recovered from panic: %v", r))
			err = fmt.Errorf("chat: internal error: %v", r)
		}
	}()
	return fn()
}

func (s *Session) send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	if s.store.Flag(FlagAwaitingReply) {
		return ErrReplyPending
	}

	history := s.store.History()
	s.store.AppendUserMessage(text)
	lang := s.store.Language()

	s.store.SetPendingInput("")
	s.store.SetFlag(FlagAwaitingReply, true)
	s.outcome = OutcomeNone
	s.turn++
	turn := s.turn

	s.log.Info("sending message", logrus.Fields{"turn": turn, "language": lang.Code(), "history": len(history)})
	go s.fetch(turn, text, lang, history)
	return nil
}

func (s *Session) fetch(turn uint64, text string, lang Language, history []Message) {
	var reply Reply
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Sprintf("Recovered from panic: %v", r))
			reply = Reply{Text: s.catalog.For(lang.Code()).ConnectionFallback, Failed: true}
		}
		if !s.box.post(replyArrived{turn: turn, lang: lang, reply: reply}) {
			s.log.Debug("reply arrived after close, discarded", logrus.Fields{"turn": turn})
		}
	}()

	ctx := context.Background()
	if s.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.replyTimeout)
		defer cancel()
	}
	reply = s.fetcher.GetReply(ctx, text, lang, history)
}

func (s *Session) completeTurn(e replyArrived) {
	if e.turn != s.turn || !s.store.Flag(FlagAwaitingReply) {
		return
	}

	s.store.AppendAssistantMessage(e.reply.Text, e.lang, "")
	s.store.SetFlag(FlagAwaitingReply, false)
	s.store.SetFlag(FlagConnectionError, e.reply.Failed)

	if e.reply.Failed {
		s.outcome = OutcomeFailed
		s.log.Warn("turn failed", logrus.Fields{"turn": e.turn})
		return
	}

	s.outcome = OutcomeSucceeded
	s.log.Info("turn completed", logrus.Fields{"turn": e.turn})

	if s.disableAutoSpeak || s.store.Flag(FlagSpeaking) {
		return
	}
	due := autoSpeakDue{turn: e.turn, text: e.reply.Text, lang: e.lang}
	if s.autoSpeakDelay == 0 {
		s.speakReply(due)
		return
	}
	s.autoSpeak = s.clock.AfterFunc(s.autoSpeakDelay, func() { s.box.post(due) })
}

// speakReply reads a reply aloud unless the user moved on in the meantime.
func (s *Session) speakReply(e autoSpeakDue) {
	s.autoSpeak = nil
	if e.turn != s.turn || s.store.Flag(FlagListening) || s.store.Flag(FlagSpeaking) {
		return
	}
	s.output.Speak(e.text, e.lang)
}

func (s *Session) startListening() {
	s.output.Stop()
	s.input.Start(s.store.Language())
}

func (s *Session) speak(text string) {
	lang := s.store.Language()
	if text == "" {
		last, ok := s.store.LastMessage()
		if !ok {
			return
		}
		text, lang = last.Text, last.Language
	}
	s.input.Stop()
	s.output.Speak(text, lang)
}

func (s *Session) teardown() {
	if s.autoSpeak != nil {
		s.autoSpeak.Stop()
		s.autoSpeak = nil
	}
	s.input.Stop()
	s.output.Stop()
	s.closed = true
}

// shutdown answers every command that can no longer run, publishes the
// final snapshot and releases subscribers.
func (s *Session) shutdown(rest []event) {
	rest = append(rest, s.box.close()...)
	for _, e := range rest {
		if cmd, ok := e.(command); ok {
			cmd.done <- ErrSessionClosed
		}
	}

	s.publish()
	final := s.Snapshot()

	s.subMu.Lock()
	s.subsClosed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()

	s.log.Info("chat session closed", logrus.Fields{"messages": len(final.Transcript)})
	if s.onClose != nil {
		s.onClose(final)
	}
}

func (s *Session) publish() {
	snap := s.buildSnapshot()
	s.snapshot.Store(&snap)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) buildSnapshot() Snapshot {
	str := s.store.Strings()
	snap := Snapshot{
		SessionID:       s.id,
		ClientID:        s.clientID,
		Transcript:      s.store.Transcript(),
		Language:        s.store.Language(),
		PendingInput:    s.store.PendingInput(),
		LastOutcome:     s.outcome,
		Listening:       s.store.Flag(FlagListening),
		Speaking:        s.store.Flag(FlagSpeaking),
		AwaitingReply:   s.store.Flag(FlagAwaitingReply),
		Minimized:       s.store.Flag(FlagMinimized),
		ConnectionError: s.store.Flag(FlagConnectionError),
		Placeholder:     str.Placeholder,
		Closed:          s.closed,
	}

	switch {
	case snap.AwaitingReply:
		snap.State = StateSending
	case snap.PendingInput != "":
		snap.State = StateComposing
	default:
		snap.State = StateIdle
	}

	switch {
	case snap.Listening:
		snap.Status = str.Status.Listening
	case snap.Speaking:
		snap.Status = str.Status.Speaking
	case snap.AwaitingReply:
		snap.Status = str.Status.Responding
	default:
		snap.Status = str.Status.Idle
	}

	if snap.ConnectionError {
		snap.Banner = str.ConnectionBanner
	}
	if s.store.IsPristine() {
		snap.QuickActions = append([]string(nil), str.QuickActions...)
		snap.QuickActionsTitle = str.QuickActionsTitle
	}
	return snap
}
