package chat

import "errors"

var (
	// ErrReplyPending rejects a send while the previous turn awaits its reply.
	ErrReplyPending = errors.New("chat: a reply is still pending")
	// ErrEmptyInput rejects sends of empty or whitespace-only text.
	ErrEmptyInput = errors.New("chat: input is empty")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("chat: session closed")
	// ErrUnsupported is returned by the no-op speech ports.
	ErrUnsupported = errors.New("chat: speech capability not available")
	// ErrQuickActionRange is returned for an unknown quick action index.
	ErrQuickActionRange = errors.New("chat: quick action index out of range")
	// ErrConversationStarted is returned when quick actions are used after
	// the first turn.
	ErrConversationStarted = errors.New("chat: quick actions are only offered before the first message")
)
