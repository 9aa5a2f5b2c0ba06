package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-mitra/internal/locale"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	session *Session
	bot     *fakeChatbot
	input   *fakeInput
	output  *fakeOutput
	clock   *fakeClock
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{
		bot:    &fakeChatbot{},
		input:  &fakeInput{available: true},
		output: &fakeOutput{available: true},
		clock:  &fakeClock{},
	}
	opts := Options{
		ClientID:       "client-1",
		Chatbot:        h.bot,
		SpeechInput:    h.input,
		SpeechOutput:   h.output,
		Clock:          h.clock,
		Now:            fixedNow,
		AutoSpeakDelay: DefaultAutoSpeakDelay,
	}
	if configure != nil {
		configure(&opts)
	}
	h.session = NewSession(opts)
	t.Cleanup(func() { h.session.Close() })
	return h
}

func (h *harness) waitTranscript(t *testing.T, n int) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.session.Snapshot().Transcript) == n
	}, waitFor, tick)
	return h.session.Snapshot()
}

func TestSessionStartsWithGreeting(t *testing.T) {
	h := newHarness(t, nil)

	snap := h.session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, locale.Default().For("en").Greeting, snap.Transcript[0].Text)
	assert.Equal(t, Primary, snap.Language)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, locale.Default().For("en").Status.Idle, snap.Status)
	assert.Len(t, snap.QuickActions, 4)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, "client-1", snap.ClientID)
}

func TestSessionSecondaryGreeting(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Language = Secondary })

	snap := h.session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, locale.Default().For("te").Greeting, snap.Transcript[0].Text)
	assert.Equal(t, locale.Default().For("te").Placeholder, snap.Placeholder)
}

func TestSessionRoundTrip(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })
	h.bot.gate = make(chan struct{})
	h.bot.reply = replyWith("Use neem oil spray.")

	require.NoError(t, h.session.Send("How to control pests in paddy?"))

	snap := h.session.Snapshot()
	assert.True(t, snap.AwaitingReply)
	assert.Equal(t, StateSending, snap.State)
	assert.Equal(t, locale.Default().For("en").Status.Responding, snap.Status)
	require.Len(t, snap.Transcript, 2)
	assert.Equal(t, SenderUser, snap.Transcript[1].Sender)
	assert.Equal(t, Primary, snap.Transcript[1].Language)

	close(h.bot.gate)
	snap = h.waitTranscript(t, 3)

	last := snap.Transcript[2]
	assert.Equal(t, "Use neem oil spray.", last.Text)
	assert.Equal(t, SenderAssistant, last.Sender)
	assert.Equal(t, Primary, last.Language)
	assert.False(t, snap.AwaitingReply)
	assert.False(t, snap.ConnectionError)
	assert.Empty(t, snap.Banner)
	assert.Equal(t, OutcomeSucceeded, snap.LastOutcome)
	assert.Equal(t, StateIdle, snap.State)

	reqs := h.bot.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "How to control pests in paddy?", reqs[0].Message)
	assert.Equal(t, "en", reqs[0].Language)
	assert.Empty(t, reqs[0].History)

	h.bot.mu.Lock()
	h.bot.gate = nil
	h.bot.mu.Unlock()
	require.NoError(t, h.session.Send("And for cotton?"))
	h.waitTranscript(t, 5)

	reqs = h.bot.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].History, 2)
	assert.Equal(t, "user", reqs[1].History[0].Sender)
	assert.Equal(t, "How to control pests in paddy?", reqs[1].History[0].Text)
	assert.Equal(t, "bot", reqs[1].History[1].Sender)
	assert.Equal(t, "Use neem oil spray.", reqs[1].History[1].Text)
}

func TestSessionSecondaryTurn(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })
	h.bot.reply = replyWith("వేప నూనె పిచికారీ చేయండి.")

	require.NoError(t, h.session.Send("వరిలో పురుగులు ఎలా నియంత్రించాలి?"))
	snap := h.waitTranscript(t, 3)

	assert.Equal(t, Secondary, snap.Language)
	assert.Equal(t, Secondary, snap.Transcript[1].Language)
	assert.Equal(t, Secondary, snap.Transcript[2].Language)
	assert.Equal(t, "te", h.bot.Requests()[0].Language)
}

func TestSessionFailureFallsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.bot.reply = failWith("dial tcp: connection refused")

	require.NoError(t, h.session.Send("Best crops for sandy soil?"))
	snap := h.waitTranscript(t, 3)

	en := locale.Default().For("en")
	assert.Equal(t, en.ConnectionFallback, snap.Transcript[2].Text)
	assert.Equal(t, SenderAssistant, snap.Transcript[2].Sender)
	assert.True(t, snap.ConnectionError)
	assert.Equal(t, en.ConnectionBanner, snap.Banner)
	assert.Equal(t, OutcomeFailed, snap.LastOutcome)
	assert.False(t, snap.AwaitingReply)
	assert.Zero(t, h.clock.Pending(), "failed turns are not read aloud")

	// the indicator survives a resend and clears on the next success
	h.bot.mu.Lock()
	h.bot.reply = replyWith("Groundnut and millets.")
	h.bot.gate = make(chan struct{})
	h.bot.mu.Unlock()

	require.NoError(t, h.session.Send("Best crops for sandy soil?"))
	assert.True(t, h.session.Snapshot().ConnectionError)

	close(h.bot.gate)
	snap = h.waitTranscript(t, 5)
	assert.False(t, snap.ConnectionError)
	assert.Empty(t, snap.Banner)
}

func TestSessionRejectsSendWhilePending(t *testing.T) {
	h := newHarness(t, nil)
	h.bot.gate = make(chan struct{})
	defer close(h.bot.gate)

	require.NoError(t, h.session.Send("first"))
	assert.ErrorIs(t, h.session.Send("second"), ErrReplyPending)

	snap := h.session.Snapshot()
	assert.Len(t, snap.Transcript, 2)
	assert.Len(t, h.bot.Requests(), 1)
}

func TestSessionRejectsEmptyInput(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorIs(t, h.session.Send(""), ErrEmptyInput)
	assert.ErrorIs(t, h.session.Send("   \n\t"), ErrEmptyInput)
	assert.ErrorIs(t, h.session.Submit(), ErrEmptyInput)
	assert.Len(t, h.session.Snapshot().Transcript, 1)
	assert.Empty(t, h.bot.Requests())
}

func TestSessionTrimsInput(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })

	require.NoError(t, h.session.Send("  drip irrigation  "))
	snap := h.waitTranscript(t, 3)
	assert.Equal(t, "drip irrigation", snap.Transcript[1].Text)
}

func TestSessionAutoSpeak(t *testing.T) {
	h := newHarness(t, nil)
	h.bot.reply = replyWith("Use neem oil spray.")

	require.NoError(t, h.session.Send("How to control pests in paddy?"))
	h.waitTranscript(t, 3)

	require.Equal(t, 1, h.clock.Pending())
	assert.Equal(t, []time.Duration{DefaultAutoSpeakDelay}, h.clock.Delays())
	assert.Empty(t, h.output.Utterances())

	h.clock.FireAll()
	require.Eventually(t, func() bool { return h.session.Snapshot().Speaking }, waitFor, tick)

	us := h.output.Utterances()
	require.Len(t, us, 1)
	assert.Equal(t, "Use neem oil spray.", us[0].Text)
	assert.Equal(t, "en-US", us[0].Locale)
	assert.Equal(t, locale.Default().For("en").Status.Speaking, h.session.Snapshot().Status)

	h.output.Handlers().OnEnd()
	require.Eventually(t, func() bool { return !h.session.Snapshot().Speaking }, waitFor, tick)
}

func TestSessionAutoSpeakWithoutDelay(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AutoSpeakDelay = 0 })
	h.bot.reply = replyWith("Apply compost.")

	require.NoError(t, h.session.Send("Organic fertilizer preparation"))
	snap := h.waitTranscript(t, 3)

	assert.True(t, snap.Speaking)
	assert.Zero(t, h.clock.Pending())
	require.Len(t, h.output.Utterances(), 1)
}

func TestSessionAutoSpeakSkippedWhileListening(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Send("paddy"))
	h.waitTranscript(t, 3)
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.session.StartListening())
	h.clock.FireAll()

	// the due event is handled before this command answers
	require.NoError(t, h.session.SetMinimized(false))
	snap := h.session.Snapshot()
	assert.True(t, snap.Listening)
	assert.False(t, snap.Speaking)
	assert.Empty(t, h.output.Utterances())
}

func TestSessionAutoSpeakDisabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })

	require.NoError(t, h.session.Send("paddy"))
	h.waitTranscript(t, 3)
	assert.Zero(t, h.clock.Pending())
}

func TestSessionListeningAndSpeakingExclusive(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.StartListening())
	snap := h.session.Snapshot()
	assert.True(t, snap.Listening)
	assert.Equal(t, locale.Default().For("en").Status.Listening, snap.Status)
	assert.Equal(t, []string{"en-IN"}, h.input.Locales())

	require.NoError(t, h.session.Speak("hello"))
	snap = h.session.Snapshot()
	assert.False(t, snap.Listening)
	assert.True(t, snap.Speaking)
	assert.Equal(t, 1, h.input.Stops())

	cancels := h.output.Cancels()
	require.NoError(t, h.session.StartListening())
	snap = h.session.Snapshot()
	assert.True(t, snap.Listening)
	assert.False(t, snap.Speaking)
	assert.Equal(t, cancels+1, h.output.Cancels())
}

func TestSessionStopsAreIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.StopListening())
	require.NoError(t, h.session.StopSpeaking())
	require.NoError(t, h.session.StopListening())
	assert.Zero(t, h.input.Stops())
	assert.Zero(t, h.output.Cancels())

	snap := h.session.Snapshot()
	assert.False(t, snap.Listening)
	assert.False(t, snap.Speaking)
}

func TestSessionRecognitionFillsDraft(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.StartListening())
	hs := h.input.Handlers()
	hs.OnResult("వరిలో పురుగులు")
	hs.OnEnd()

	require.Eventually(t, func() bool {
		snap := h.session.Snapshot()
		return snap.PendingInput == "వరిలో పురుగులు" && !snap.Listening
	}, waitFor, tick)

	snap := h.session.Snapshot()
	assert.Equal(t, Secondary, snap.Language)
	assert.Equal(t, StateComposing, snap.State)

	require.NoError(t, h.session.Submit())
	snap = h.session.Snapshot()
	assert.Empty(t, snap.PendingInput)
	assert.Equal(t, "వరిలో పురుగులు", snap.Transcript[1].Text)
}

func TestSessionMicrophoneUnsupported(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Language = Secondary
		o.SpeechInput = nil
	})

	require.NoError(t, h.session.StartListening())
	snap := h.session.Snapshot()
	assert.False(t, snap.Listening)
	assert.Equal(t, locale.Default().For("te").MicrophoneUnsupported, snap.PendingInput)
}

func TestSessionToggles(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.ToggleListening())
	assert.True(t, h.session.Snapshot().Listening)
	require.NoError(t, h.session.ToggleListening())
	assert.False(t, h.session.Snapshot().Listening)

	require.NoError(t, h.session.ToggleSpeech())
	assert.True(t, h.session.Snapshot().Speaking)
	us := h.output.Utterances()
	require.Len(t, us, 1)
	assert.Equal(t, locale.Default().For("en").Greeting, us[0].Text)

	require.NoError(t, h.session.ToggleSpeech())
	assert.False(t, h.session.Snapshot().Speaking)
}

func TestSessionSpeakLastUsesMessageLanguage(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })
	h.bot.reply = replyWith("వేప నూనె")

	require.NoError(t, h.session.Send("వరి"))
	h.waitTranscript(t, 3)
	require.NoError(t, h.session.SetLanguage(Primary))

	require.NoError(t, h.session.Speak(""))
	us := h.output.Utterances()
	require.Len(t, us, 1)
	assert.Equal(t, "వేప నూనె", us[0].Text)
	assert.Equal(t, "te-IN", us[0].Locale)
}

func TestSessionQuickActions(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })

	require.NoError(t, h.session.UseQuickAction(1))
	snap := h.session.Snapshot()
	assert.Equal(t, "How to control pests in paddy?", snap.PendingInput)
	assert.Equal(t, StateComposing, snap.State)

	assert.ErrorIs(t, h.session.UseQuickAction(9), ErrQuickActionRange)
	assert.ErrorIs(t, h.session.UseQuickAction(-1), ErrQuickActionRange)

	require.NoError(t, h.session.Submit())
	snap = h.waitTranscript(t, 3)
	assert.Nil(t, snap.QuickActions)
	assert.ErrorIs(t, h.session.UseQuickAction(0), ErrConversationStarted)
}

func TestSessionSetLanguage(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableAutoSpeak = true })

	require.NoError(t, h.session.SetLanguage(Secondary))
	snap := h.session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, locale.Default().For("te").Greeting, snap.Transcript[0].Text)
	assert.Equal(t, locale.Default().For("te").QuickActions, snap.QuickActions)

	require.NoError(t, h.session.Send("hello"))
	h.waitTranscript(t, 3)
	require.NoError(t, h.session.SetLanguage(Secondary))
	snap = h.session.Snapshot()
	assert.Equal(t, Secondary, snap.Language)
	assert.Len(t, snap.Transcript, 3)
}

func TestSessionMinimized(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.SetMinimized(true))
	assert.True(t, h.session.Snapshot().Minimized)
	require.NoError(t, h.session.SetMinimized(false))
	assert.False(t, h.session.Snapshot().Minimized)
}

func TestSessionCloseStopsCapture(t *testing.T) {
	var final Snapshot
	h := newHarness(t, func(o *Options) { o.OnClose = func(s Snapshot) { final = s } })

	require.NoError(t, h.session.StartListening())
	require.NoError(t, h.session.Close())

	assert.Equal(t, 1, h.input.Stops())
	assert.True(t, final.Closed)
	assert.False(t, final.Listening)
	assert.True(t, h.session.Snapshot().Closed)

	select {
	case <-h.session.Done():
	default:
		t.Fatal("session not done after Close")
	}

	assert.ErrorIs(t, h.session.Send("late"), ErrSessionClosed)
	assert.ErrorIs(t, h.session.StartListening(), ErrSessionClosed)
	require.NoError(t, h.session.Close())
}

func TestSessionCloseStopsSpeech(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Speak("hello"))
	cancels := h.output.Cancels()
	require.NoError(t, h.session.Close())

	assert.Equal(t, cancels+1, h.output.Cancels())
	assert.False(t, h.session.Snapshot().Speaking)
}

func TestSessionCloseDiscardsLateReply(t *testing.T) {
	closed := make(chan Snapshot, 1)
	h := newHarness(t, func(o *Options) { o.OnClose = func(s Snapshot) { closed <- s } })
	h.bot.gate = make(chan struct{})

	require.NoError(t, h.session.Send("paddy"))
	require.NoError(t, h.session.Close())
	close(h.bot.gate)

	final := <-closed
	assert.Len(t, final.Transcript, 2)
	assert.True(t, final.AwaitingReply)
	assert.Len(t, h.session.Snapshot().Transcript, 2)
}

func TestSessionCloseCancelsAutoSpeak(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Send("paddy"))
	h.waitTranscript(t, 3)
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.session.Close())
	assert.Zero(t, h.clock.Pending())
	assert.Empty(t, h.output.Utterances())
}

func TestSessionSubscribe(t *testing.T) {
	h := newHarness(t, nil)

	ch, cancel := h.session.Subscribe()
	defer cancel()

	first := <-ch
	assert.Len(t, first.Transcript, 1)

	require.NoError(t, h.session.SetInput("Drip irrigation benefits"))

	var got Snapshot
	require.Eventually(t, func() bool {
		select {
		case got = <-ch:
		default:
		}
		return got.PendingInput == "Drip irrigation benefits"
	}, waitFor, tick)

	require.NoError(t, h.session.Close())
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)

	late, lateCancel := h.session.Subscribe()
	defer lateCancel()
	snap, ok := <-late
	assert.True(t, ok)
	assert.True(t, snap.Closed)
	_, ok = <-late
	assert.False(t, ok)
}

func TestSessionSubscribeCancel(t *testing.T) {
	h := newHarness(t, nil)

	ch, cancel := h.session.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, h.session.SetInput("x"))
}

func TestSessionReplyTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ReplyTimeout = 20 * time.Millisecond })
	h.bot.gate = make(chan struct{})
	defer close(h.bot.gate)

	require.NoError(t, h.session.Send("paddy"))
	snap := h.waitTranscript(t, 3)
	assert.True(t, snap.ConnectionError)
	assert.Equal(t, locale.Default().For("en").ConnectionFallback, snap.Transcript[2].Text)
}
