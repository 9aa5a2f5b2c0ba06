package dto

// ChatRequest is the body of POST {base}/api/chatbot/chat.
type ChatRequest struct {
	Message  string         `json:"message"`
	Language string         `json:"language"`
	History  []HistoryEntry `json:"history"`
}

// HistoryEntry is one prior transcript message reduced to sender and text.
// Sender is "user" or "bot".
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatResponse is returned by the backend for both success and failure.
// Success is a pointer so a payload without the flag can be told apart from
// an explicit false.
type ChatResponse struct {
	Success  *bool  `json:"success"`
	Response string `json:"response"`
}
