package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"krishi-mitra/internal/chat"
)

const helpText = `Commands:
  /en, /te      switch language
  /mic          start or stop listening
  /speak        read the last message aloud, or stop
  /stop         stop listening and speaking
  /quick N      put starter question N into the draft
  /help         show this help
  /quit         leave
An empty line sends the draft.`

// Terminal renders a session as a line-oriented conversation.
type Terminal struct {
	Session *chat.Session
	Out     io.Writer
	// ReplyWait bounds how long end of input waits for a pending reply.
	ReplyWait time.Duration

	mu         sync.Mutex
	lastID     string
	lastDraft  string
	lastBanner string
}

func NewTerminal(session *chat.Session, out io.Writer) *Terminal {
	return &Terminal{Session: session, Out: out, ReplyWait: 30 * time.Second}
}

// Run reads commands and messages from in until /quit or end of input.
func (t *Terminal) Run(ctx context.Context, in io.Reader) error {
	snapshots, cancel := t.Session.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for snap := range snapshots {
			t.render(snap)
		}
	}()
	defer func() {
		cancel()
		<-printed
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := t.handleLine(strings.TrimSpace(scanner.Text()))
		if err != nil {
			t.println(fmt.Sprintf("! %v", err))
		}
		if quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return t.waitIdle(ctx)
}

func (t *Terminal) handleLine(line string) (bool, error) {
	s := t.Session
	switch {
	case line == "":
		err := s.Submit()
		if errors.Is(err, chat.ErrEmptyInput) {
			return false, nil
		}
		return false, err
	case line == "/quit" || line == "/exit":
		return true, nil
	case line == "/help":
		t.println(helpText)
		return false, nil
	case line == "/en":
		return false, s.SetLanguage(chat.Primary)
	case line == "/te":
		return false, s.SetLanguage(chat.Secondary)
	case line == "/mic":
		return false, s.ToggleListening()
	case line == "/speak":
		return false, s.ToggleSpeech()
	case line == "/stop":
		if err := s.StopListening(); err != nil {
			return false, err
		}
		return false, s.StopSpeaking()
	case strings.HasPrefix(line, "/quick"):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/quick")))
		if err != nil {
			return false, fmt.Errorf("usage: /quick N")
		}
		return false, s.UseQuickAction(n - 1)
	case strings.HasPrefix(line, "/"):
		return false, fmt.Errorf("unknown command %s, try /help", line)
	default:
		err := s.Send(line)
		if errors.Is(err, chat.ErrReplyPending) {
			return false, errors.New("still waiting for the previous answer")
		}
		return false, err
	}
}

// waitIdle lets a reply already in flight reach the screen.
func (t *Terminal) waitIdle(ctx context.Context) error {
	if !t.Session.Snapshot().AwaitingReply {
		return nil
	}
	snapshots, cancel := t.Session.Subscribe()
	defer cancel()

	timeout := time.NewTimer(t.ReplyWait)
	defer timeout.Stop()
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok || !snap.AwaitingReply {
				return nil
			}
		case <-timeout.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *Terminal) render(snap chat.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	for i, m := range snap.Transcript {
		if m.ID == t.lastID {
			start = i + 1
		}
	}
	for _, m := range snap.Transcript[start:] {
		if m.Sender == chat.SenderUser {
			fmt.Fprintf(t.Out, "You: %s\n", m.Text)
		} else {
			fmt.Fprintf(t.Out, "Krishi Mitra: %s\n", m.Text)
		}
		t.lastID = m.ID
	}
	if start == 0 && len(snap.QuickActions) > 0 {
		fmt.Fprintln(t.Out, snap.QuickActionsTitle)
		for i, q := range snap.QuickActions {
			fmt.Fprintf(t.Out, "  %d. %s\n", i+1, q)
		}
	}

	if snap.Banner != t.lastBanner {
		if snap.Banner != "" {
			fmt.Fprintf(t.Out, "[%s]\n", snap.Banner)
		}
		t.lastBanner = snap.Banner
	}
	if snap.PendingInput != t.lastDraft {
		if snap.PendingInput != "" {
			fmt.Fprintf(t.Out, "Draft: %s\n", snap.PendingInput)
		}
		t.lastDraft = snap.PendingInput
	}
}

func (t *Terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.Out, s)
}
