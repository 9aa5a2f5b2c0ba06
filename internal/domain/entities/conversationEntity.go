package entities

import "time"

// ConversationRecord is the archived transcript of one closed session.
type ConversationRecord struct {
	SessionID string          `json:"session_id" bson:"session_id"`
	ClientID  string          `json:"client_id" bson:"client_id"`
	Language  string          `json:"language" bson:"language"`
	Messages  []ArchivedEntry `json:"messages" bson:"messages"`
	Failed    bool            `json:"connection_error" bson:"connection_error"`
	ClosedAt  time.Time       `json:"closedAt" bson:"closed_at"`
}

type ArchivedEntry struct {
	ID        string    `json:"id" bson:"id"`
	Sender    string    `json:"sender" bson:"sender"`
	Text      string    `json:"text" bson:"text"`
	Language  string    `json:"language" bson:"language"`
	Greeting  bool      `json:"greeting" bson:"greeting,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
