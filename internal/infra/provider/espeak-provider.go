package provider

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"krishi-mitra/internal/chat"
	"krishi-mitra/internal/infra/logger"
)

const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
)

// EspeakProvider speaks through an espeak-ng compatible binary. One process
// runs per utterance; cancelling kills it.
type EspeakProvider struct {
	Command string
	Logger  *logger.Logger

	voicesOnce sync.Once
	voices     []chat.Voice

	mu      sync.Mutex
	current *exec.Cmd
}

func NewEspeakProvider(command string, logger *logger.Logger) *EspeakProvider {
	return &EspeakProvider{Command: command, Logger: logger}
}

func (th *EspeakProvider) Name() string {
	return th.Command
}

// Available reports whether the synthesizer binary can be found.
func (th *EspeakProvider) Available() bool {
	if th.Command == "" {
		return false
	}
	_, err := exec.LookPath(th.Command)
	return err == nil
}

// Voices lists the installed voices once and caches the result.
func (th *EspeakProvider) Voices() []chat.Voice {
	th.voicesOnce.Do(func() {
		out, err := exec.Command(th.Command, "--voices").Output()
		if err != nil {
			th.Logger.Warn(fmt.Sprintf("Failed to list voices: %s", err.Error()))
			return
		}
		th.voices = ParseVoices(out)
	})
	return th.voices
}

// Speak starts one synthesizer process for u and reports its end through h.
// Text is passed on stdin so it is never read as a flag.
func (th *EspeakProvider) Speak(u chat.Utterance, h chat.SynthesisHandlers) error {
	cmd := exec.Command(th.Command, Args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)

	th.mu.Lock()
	if err := cmd.Start(); err != nil {
		th.mu.Unlock()
		th.Logger.Error(fmt.Sprintf("Failed to start synthesizer: %s", err.Error()))
		return err
	}
	th.current = cmd
	th.mu.Unlock()

	go th.wait(cmd, h)
	return nil
}

func (th *EspeakProvider) wait(cmd *exec.Cmd, h chat.SynthesisHandlers) {
	defer func() {
		if r := recover(); r != nil {
			th.Logger.Error(fmt.Sprintf("Recovered from panic: %v", r))
		}
	}()

	err := cmd.Wait()

	th.mu.Lock()
	cancelled := th.current != cmd
	if !cancelled {
		th.current = nil
	}
	th.mu.Unlock()

	// a cancelled utterance reports nothing
	if cancelled {
		return
	}
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
		return
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// Cancel kills the running utterance, if any.
func (th *EspeakProvider) Cancel() {
	th.mu.Lock()
	cmd := th.current
	th.current = nil
	th.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Args builds the synthesizer command line for u.
func Args(u chat.Utterance) []string {
	voice := strings.ToLower(strings.SplitN(u.Locale, "-", 2)[0])
	if u.Voice != nil && u.Voice.Lang != "" {
		voice = u.Voice.Lang
	}
	if voice == "" {
		voice = "en"
	}

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}

	return []string{
		"-v", voice,
		"-s", strconv.Itoa(int(espeakBaseWPM * rate)),
		"-p", strconv.Itoa(min(99, int(espeakBasePitch*pitch))),
		"--stdin",
	}
}

// ParseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  te              --/M      Telugu             dra/te
func ParseVoices(out []byte) []chat.Voice {
	var voices []chat.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, chat.Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}
