package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"krishi-mitra/internal/infra/handlers"
)

type Routes struct {
	Mux           *mux.Router
	HttpHandler   *handlers.HttpHandlers
	EventsHandler *handlers.EventsHandler
}

func NewRoutes(mux *mux.Router, httpHandler *handlers.HttpHandlers, eventsHandler *handlers.EventsHandler) *Routes {
	return &Routes{mux, httpHandler, eventsHandler}
}

func (r *Routes) Init() {
	s := r.Mux.PathPrefix("/sessions").Subrouter()
	s.HandleFunc("", r.HttpHandler.OpenSession).Methods(http.MethodPost)
	s.HandleFunc("/{id}", r.HttpHandler.GetSession).Methods(http.MethodGet)
	s.HandleFunc("/{id}", r.HttpHandler.CloseSession).Methods(http.MethodDelete)
	s.HandleFunc("/{id}/input", r.HttpHandler.SetInput).Methods(http.MethodPut)
	s.HandleFunc("/{id}/messages", r.HttpHandler.SendMessage).Methods(http.MethodPost)
	s.HandleFunc("/{id}/language", r.HttpHandler.SetLanguage).Methods(http.MethodPut)
	s.HandleFunc("/{id}/minimized", r.HttpHandler.SetMinimized).Methods(http.MethodPut)
	s.HandleFunc("/{id}/quick-actions/{index}", r.HttpHandler.UseQuickAction).Methods(http.MethodPost)
	s.HandleFunc("/{id}/speech/listen", r.HttpHandler.StartListening).Methods(http.MethodPost)
	s.HandleFunc("/{id}/speech/stop-listening", r.HttpHandler.StopListening).Methods(http.MethodPost)
	s.HandleFunc("/{id}/speech/speak", r.HttpHandler.Speak).Methods(http.MethodPost)
	s.HandleFunc("/{id}/speech/stop-speaking", r.HttpHandler.StopSpeaking).Methods(http.MethodPost)
	s.HandleFunc("/{id}/events", r.EventsHandler.Events).Methods(http.MethodGet)

	r.Mux.HandleFunc("/archive/{id}", r.HttpHandler.GetArchive).Methods(http.MethodGet)

	manager := r.HttpHandler.Manager
	r.Mux.HandleFunc("/healthCheck", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{"status": "healthy", "sessions": manager.Len()}
		json.NewEncoder(w).Encode(response)
	}).Methods(http.MethodGet)
}
