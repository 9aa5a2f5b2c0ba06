package dto

import "time"

type OpenSessionRequest struct {
	ClientID string `json:"client_id"`
	Language string `json:"language"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type LanguageRequest struct {
	Language string `json:"language"`
}

type MinimizedRequest struct {
	Minimized bool `json:"minimized"`
}

// SessionResponse is the JSON form of a session snapshot.
type SessionResponse struct {
	SessionID       string            `json:"session_id"`
	ClientID        string            `json:"client_id"`
	Language        string            `json:"language"`
	Messages        []MessageResponse `json:"messages"`
	PendingInput    string            `json:"pending_input"`
	State           string            `json:"state"`
	LastOutcome     string            `json:"last_outcome,omitempty"`
	Listening       bool              `json:"listening"`
	Speaking        bool              `json:"speaking"`
	AwaitingReply   bool              `json:"awaiting_reply"`
	Minimized       bool              `json:"minimized"`
	ConnectionError bool              `json:"connection_error"`
	Banner          string            `json:"banner,omitempty"`
	Status          string            `json:"status"`
	Placeholder     string            `json:"placeholder"`
	QuickActions    []string          `json:"quick_actions,omitempty"`
	QuickTitle      string            `json:"quick_actions_title,omitempty"`
	Closed          bool              `json:"closed"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Language  string    `json:"language"`
	Greeting  bool      `json:"greeting,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
