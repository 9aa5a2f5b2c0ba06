package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"krishi-mitra/internal/domain/dto"
	"krishi-mitra/internal/infra/logger"
)

// ChatPath is the backend route that answers one chat turn.
const ChatPath = "/api/chatbot/chat"

var ErrChatbotUnsuccessful = errors.New("chatbot reported an unsuccessful reply")

type ChatbotService struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// NewChatbotService creates a client for the assistant backend at baseURL.
// A zero timeout leaves requests bounded only by their context.
func NewChatbotService(baseURL string, timeout time.Duration, logger *logger.Logger) *ChatbotService {
	return &ChatbotService{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Chat sends one user turn to the backend and returns the reply text.
//
// Parameters:
// - ctx (context.Context): Bounds the request; cancelling it aborts the call.
// - request (dto.ChatRequest): The user message, its language code and the prior history.
//
// Returns:
//   - string: The reply text produced by the backend.
//   - error: Returned on transport failures, non-2xx statuses, undecodable bodies
//     and bodies whose success flag is missing or false. The call is never retried.
func (th *ChatbotService) Chat(ctx context.Context, request dto.ChatRequest) (string, error) {
	if request.History == nil {
		request.History = []dto.HistoryEntry{}
	}

	payloadBytes, err := json.Marshal(request)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to marshal payload: %s", err.Error()))
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, th.BaseURL+ChatPath, bytes.NewReader(payloadBytes))
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to build request: %s", err.Error()))
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := th.HTTPClient.Do(req)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to send POST request: %s", err.Error()))
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read response body: %s", err.Error()))
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		th.Logger.Error(fmt.Sprintf("Chatbot responded with status %d", resp.StatusCode))
		return "", fmt.Errorf("chatbot responded with status %d", resp.StatusCode)
	}

	var chatResponse dto.ChatResponse
	if err := json.Unmarshal(body, &chatResponse); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to unmarshal response body: %s", err.Error()))
		return "", fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	if chatResponse.Success == nil || !*chatResponse.Success {
		th.Logger.Warn("Chatbot returned an unsuccessful reply")
		return "", ErrChatbotUnsuccessful
	}

	return chatResponse.Response, nil
}
