package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"krishi-mitra/internal/domain/dto"
	"krishi-mitra/internal/infra/logger"
)

const eventsWriteTimeout = 10 * time.Second

type EventsHandler struct {
	Logger   *logger.Logger
	Handlers *HttpHandlers
	upgrader websocket.Upgrader
}

// NewEventsHandler streams session snapshots over websocket. checkOrigin may
// be nil to accept any origin.
func NewEventsHandler(logger *logger.Logger, handlers *HttpHandlers, checkOrigin func(r *http.Request) bool) *EventsHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &EventsHandler{
		Logger:   logger,
		Handlers: handlers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Events sends the current snapshot and then one JSON snapshot per state
// change until the session closes or the client goes away.
func (th *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, ok := th.Handlers.Manager.Get(id)
	if !ok {
		th.Handlers.writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
		return
	}

	conn, err := th.upgrader.Upgrade(w, r, nil)
	if err != nil {
		th.Logger.Warn(fmt.Sprintf("WebSocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	snapshots, cancel := s.Subscribe()
	defer cancel()

	// the client never sends anything; reading only detects its departure
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(eventsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
			if err := conn.WriteJSON(NewSessionResponse(snap)); err != nil {
				th.Logger.Debug(fmt.Sprintf("Events stream for session %s ended: %v", id, err))
				return
			}
		case <-gone:
			return
		}
	}
}
