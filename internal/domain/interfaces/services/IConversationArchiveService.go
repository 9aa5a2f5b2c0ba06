package Iservices

import "krishi-mitra/internal/domain/entities"

// IConversationArchiveService stores the transcripts of closed sessions.
type IConversationArchiveService interface {
	Archive(record entities.ConversationRecord) error
	Find(sessionID string) (entities.ConversationRecord, error)
}
