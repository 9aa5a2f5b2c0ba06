package Iservices

import (
	"context"
	"krishi-mitra/internal/domain/dto"
)

// IChatbotService sends one chat turn to the assistant backend.
type IChatbotService interface {
	Chat(ctx context.Context, request dto.ChatRequest) (string, error)
}
