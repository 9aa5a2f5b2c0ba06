package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(func(clientID string, lang Language) *Session {
		return NewSession(Options{
			ClientID:         clientID,
			Language:         lang,
			Chatbot:          &fakeChatbot{},
			DisableAutoSpeak: true,
		})
	}, nil)
}

func TestManagerOpenReplacesClientSession(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	first := m.Open("farmer-1", Primary)
	other := m.Open("farmer-2", Secondary)
	second := m.Open("farmer-1", Secondary)

	select {
	case <-first.Done():
	default:
		t.Fatal("replaced session still open")
	}
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, m.Len())

	_, ok := m.Get(first.ID())
	assert.False(t, ok)

	got, ok := m.Get(second.ID())
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, Secondary, got.Snapshot().Language)

	got, ok = m.Get(other.ID())
	require.True(t, ok)
	assert.Equal(t, "farmer-2", got.ClientID())
}

func TestManagerClose(t *testing.T) {
	m := newTestManager()

	s := m.Open("farmer-1", Primary)
	assert.True(t, m.Close(s.ID()))
	assert.False(t, m.Close(s.ID()))
	assert.Zero(t, m.Len())
	assert.True(t, s.Snapshot().Closed)

	// the client can open again after an explicit close
	again := m.Open("farmer-1", Primary)
	assert.Equal(t, 1, m.Len())
	m.CloseAll()
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, again.Send("hi"), ErrSessionClosed)
}

func TestManagerConcurrentOpenKeepsOneSessionPerClient(t *testing.T) {
	m := NewManager(func(clientID string, lang Language) *Session {
		time.Sleep(time.Millisecond)
		return NewSession(Options{
			ClientID:         clientID,
			Language:         lang,
			Chatbot:          &fakeChatbot{},
			DisableAutoSpeak: true,
		})
	}, nil)
	defer m.CloseAll()

	const opens = 8
	opened := make([]*Session, opens)
	var wg sync.WaitGroup
	for i := 0; i < opens; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opened[i] = m.Open("farmer-1", Primary)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, m.Len())

	live := 0
	for _, s := range opened {
		if _, ok := m.Get(s.ID()); ok {
			live++
			continue
		}
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s is neither hosted nor closed", s.ID())
		}
	}
	assert.Equal(t, 1, live)
}
