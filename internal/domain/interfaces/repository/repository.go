package repository

import "context"

// CONVERSATIONS_COLLECTION holds archived session transcripts.
const CONVERSATIONS_COLLECTION = "conversations"

type Repository[T any] interface {
	Upsert(ctx context.Context, collectionName string, sessionID string, entity T) (T, error)
	FindBySessionID(ctx context.Context, collectionName string, sessionID string) (T, error)
}
