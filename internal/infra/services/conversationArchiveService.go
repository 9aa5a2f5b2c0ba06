package services

import (
	"context"
	"fmt"
	"time"

	"krishi-mitra/internal/chat"
	"krishi-mitra/internal/domain/entities"
	"krishi-mitra/internal/domain/interfaces/repository"
	"krishi-mitra/internal/infra/logger"
)

// ConversationArchiveService is the service responsible for storing closed
// session transcripts.
type ConversationArchiveService struct {
	ConversationRepository repository.Repository[entities.ConversationRecord]
	Ctx                    context.Context
	Timeout                time.Duration
	Logger                 *logger.Logger
}

// NewConversationArchiveService creates a new instance of the service.
func NewConversationArchiveService(conversationRepository repository.Repository[entities.ConversationRecord], ctx context.Context, logger *logger.Logger) *ConversationArchiveService {
	return &ConversationArchiveService{
		ConversationRepository: conversationRepository,
		Ctx:                    ctx,
		Timeout:                5 * time.Second,
		Logger:                 logger,
	}
}

// Archive stores record, replacing any earlier copy of the same session.
func (cs *ConversationArchiveService) Archive(record entities.ConversationRecord) error {
	ctx, cancel := context.WithTimeout(cs.Ctx, cs.Timeout)
	defer cancel()

	_, err := cs.ConversationRepository.Upsert(ctx, repository.CONVERSATIONS_COLLECTION, record.SessionID, record)
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to archive conversation '%s': %v", record.SessionID, err))
		return err
	}
	return nil
}

// Find retrieves the archived transcript of a session.
func (cs *ConversationArchiveService) Find(sessionID string) (entities.ConversationRecord, error) {
	ctx, cancel := context.WithTimeout(cs.Ctx, cs.Timeout)
	defer cancel()

	result, err := cs.ConversationRepository.FindBySessionID(ctx, repository.CONVERSATIONS_COLLECTION, sessionID)
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to find conversation with sessionID '%s': %v", sessionID, err))
		return entities.ConversationRecord{}, err
	}
	return result, nil
}

// ArchiveSnapshot is a chat.Options OnClose hook. Failures are logged only.
func (cs *ConversationArchiveService) ArchiveSnapshot(snap chat.Snapshot) {
	_ = cs.Archive(NewConversationRecord(snap, time.Now()))
}

// NewConversationRecord converts the final state of a session.
func NewConversationRecord(snap chat.Snapshot, closedAt time.Time) entities.ConversationRecord {
	record := entities.ConversationRecord{
		SessionID: snap.SessionID,
		ClientID:  snap.ClientID,
		Language:  snap.Language.Code(),
		Messages:  make([]entities.ArchivedEntry, 0, len(snap.Transcript)),
		Failed:    snap.ConnectionError,
		ClosedAt:  closedAt,
	}
	for _, m := range snap.Transcript {
		record.Messages = append(record.Messages, entities.ArchivedEntry{
			ID:        m.ID,
			Sender:    m.WireSender(),
			Text:      m.Text,
			Language:  m.Language.Code(),
			Greeting:  m.IsGreeting(),
			Timestamp: m.Timestamp,
		})
	}
	return record
}
