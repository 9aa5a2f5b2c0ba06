package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"krishi-mitra/internal/chat"
	"krishi-mitra/internal/domain/dto"
	Iservices "krishi-mitra/internal/domain/interfaces/services"
	"krishi-mitra/internal/infra/logger"
)

type HttpHandlers struct {
	Logger         *logger.Logger
	Manager        *chat.Manager
	ArchiveService Iservices.IConversationArchiveService
}

// NewHttpHandlers wires the session API. archiveService may be nil when no
// archive is configured.
func NewHttpHandlers(logger *logger.Logger, manager *chat.Manager, archiveService Iservices.IConversationArchiveService) *HttpHandlers {
	return &HttpHandlers{Logger: logger, Manager: manager, ArchiveService: archiveService}
}

// OpenSession starts a session for a client, replacing the client's
// previous one.
//
// Request body: {"client_id": "...", "language": "en" | "te"}. The language
// is optional and defaults to English.
//
// HTTP Status Codes:
// - 201 Created: The new session snapshot.
// - 400 Bad Request: Malformed JSON, missing client_id or unknown language.
func (th *HttpHandlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenSessionRequest
	if err := decodeBody(r, &req); err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}
	if req.ClientID == "" {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "client_id is required"})
		return
	}

	lang := chat.Primary
	if req.Language != "" {
		parsed, ok := chat.ParseLanguage(req.Language)
		if !ok {
			th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: fmt.Sprintf("unknown language %q", req.Language)})
			return
		}
		lang = parsed
	}

	s := th.Manager.Open(req.ClientID, lang)
	th.writeJSON(w, http.StatusCreated, NewSessionResponse(s.Snapshot()))
}

func (th *HttpHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	th.writeJSON(w, http.StatusOK, NewSessionResponse(s.Snapshot()))
}

func (th *HttpHandlers) SetInput(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	var req dto.TextRequest
	if err := decodeBody(r, &req); err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}
	th.respond(w, s, http.StatusOK, s.SetInput(req.Text))
}

// SendMessage sends a user turn. An empty body text submits the draft.
//
// HTTP Status Codes:
// - 202 Accepted: The message is in the transcript and the reply is pending.
// - 400 Bad Request: Nothing to send.
// - 409 Conflict: A previous reply is still pending.
func (th *HttpHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	var req dto.TextRequest
	if err := decodeBody(r, &req); err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}

	var err error
	if req.Text == "" {
		err = s.Submit()
	} else {
		err = s.Send(req.Text)
	}
	th.respond(w, s, http.StatusAccepted, err)
}

func (th *HttpHandlers) SetLanguage(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	var req dto.LanguageRequest
	if err := decodeBody(r, &req); err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}
	lang, ok := chat.ParseLanguage(req.Language)
	if !ok {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: fmt.Sprintf("unknown language %q", req.Language)})
		return
	}
	th.respond(w, s, http.StatusOK, s.SetLanguage(lang))
}

func (th *HttpHandlers) SetMinimized(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	var req dto.MinimizedRequest
	if err := decodeBody(r, &req); err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}
	th.respond(w, s, http.StatusOK, s.SetMinimized(req.Minimized))
}

func (th *HttpHandlers) UseQuickAction(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "index must be a number"})
		return
	}
	th.respond(w, s, http.StatusOK, s.UseQuickAction(index))
}

func (th *HttpHandlers) StartListening(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	th.respond(w, s, http.StatusOK, s.StartListening())
}

func (th *HttpHandlers) StopListening(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	th.respond(w, s, http.StatusOK, s.StopListening())
}

// Speak reads the body text aloud, or the last message when the body is
// empty or carries no text.
func (th *HttpHandlers) Speak(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	var req dto.TextRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		th.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Error to process JSON"})
		return
	}
	th.respond(w, s, http.StatusOK, s.Speak(req.Text))
}

func (th *HttpHandlers) StopSpeaking(w http.ResponseWriter, r *http.Request) {
	s, ok := th.session(w, r)
	if !ok {
		return
	}
	th.respond(w, s, http.StatusOK, s.StopSpeaking())
}

func (th *HttpHandlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !th.Manager.Close(id) {
		th.writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArchive returns the stored transcript of a closed session.
func (th *HttpHandlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	if th.ArchiveService == nil {
		th.writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "archive not configured"})
		return
	}
	record, err := th.ArchiveService.Find(mux.Vars(r)["id"])
	if err != nil {
		th.writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "conversation not found"})
		return
	}
	th.writeJSON(w, http.StatusOK, record)
}

func (th *HttpHandlers) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	s, ok := th.Manager.Get(mux.Vars(r)["id"])
	if !ok {
		th.writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
		return nil, false
	}
	return s, true
}

// respond writes the session snapshot on success, or maps err to a status.
func (th *HttpHandlers) respond(w http.ResponseWriter, s *chat.Session, status int, err error) {
	if err != nil {
		code := StatusFor(err)
		if code >= http.StatusInternalServerError {
			th.Logger.Error(fmt.Sprintf("Session %s operation failed: %v", s.ID(), err))
		}
		th.writeJSON(w, code, dto.ErrorResponse{Error: err.Error()})
		return
	}
	th.writeJSON(w, status, NewSessionResponse(s.Snapshot()))
}

// StatusFor maps chat errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrReplyPending), errors.Is(err, chat.ErrConversationStarted):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrQuickActionRange):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (th *HttpHandlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		th.Logger.Debug(fmt.Sprintf("Failed to write response body: %s", err.Error()), logrus.Fields{"status": status})
	}
}

// NewSessionResponse converts a snapshot to its JSON form.
func NewSessionResponse(snap chat.Snapshot) dto.SessionResponse {
	resp := dto.SessionResponse{
		SessionID:       snap.SessionID,
		ClientID:        snap.ClientID,
		Language:        snap.Language.Code(),
		Messages:        make([]dto.MessageResponse, 0, len(snap.Transcript)),
		PendingInput:    snap.PendingInput,
		State:           string(snap.State),
		LastOutcome:     string(snap.LastOutcome),
		Listening:       snap.Listening,
		Speaking:        snap.Speaking,
		AwaitingReply:   snap.AwaitingReply,
		Minimized:       snap.Minimized,
		ConnectionError: snap.ConnectionError,
		Banner:          snap.Banner,
		Status:          snap.Status,
		Placeholder:     snap.Placeholder,
		QuickActions:    snap.QuickActions,
		QuickTitle:      snap.QuickActionsTitle,
		Closed:          snap.Closed,
	}
	for _, m := range snap.Transcript {
		resp.Messages = append(resp.Messages, dto.MessageResponse{
			ID:        m.ID,
			Text:      m.Text,
			Sender:    string(m.Sender),
			Language:  m.Language.Code(),
			Greeting:  m.IsGreeting(),
			Timestamp: m.Timestamp,
		})
	}
	return resp
}
