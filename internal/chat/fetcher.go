package chat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"krishi-mitra/internal/domain/dto"
	Iservices "krishi-mitra/internal/domain/interfaces/services"
	"krishi-mitra/internal/infra/logger"
	"krishi-mitra/internal/locale"
)

// Reply is the outcome of one turn. Text is always renderable: on failure it
// holds the localized apology.
type Reply struct {
	Text   string
	Failed bool
}

// ReplyFetcher makes the single backend call of a user turn. It never
// retries; a failed turn is final and the user may resend.
type ReplyFetcher struct {
	client  Iservices.IChatbotService
	catalog locale.Catalog
	log     *logger.Logger
}

func NewReplyFetcher(client Iservices.IChatbotService, catalog locale.Catalog, log *logger.Logger) *ReplyFetcher {
	return &ReplyFetcher{client: client, catalog: catalog, log: log}
}

// GetReply asks the backend to answer text given the prior history, which
// must already exclude the greeting.
func (f *ReplyFetcher) GetReply(ctx context.Context, text string, lang Language, history []Message) Reply {
	req := dto.ChatRequest{
		Message:  text,
		Language: lang.Code(),
		History:  make([]dto.HistoryEntry, 0, len(history)),
	}
	for _, m := range history {
		req.History = append(req.History, dto.HistoryEntry{Sender: m.WireSender(), Text: m.Text})
	}

	start := time.Now()
	reply, err := f.client.Chat(ctx, req)
	if err != nil {
		f.log.Error("chatbot request failed", logrus.Fields{
			"error":      err.Error(),
			"language":   req.Language,
			"history":    len(req.History),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return Reply{Text: f.catalog.For(lang.Code()).ConnectionFallback, Failed: true}
	}

	f.log.Debug("chatbot reply received", logrus.Fields{
		"language":   req.Language,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return Reply{Text: reply}
}
