package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin is enforced by the token check below, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProjectEvents handles GET /ws/projects/{id}: upgrades to a WebSocket and
// relays the project's Redis event channel until the client disconnects.
// Browsers cannot set Authorization on WebSocket requests, so the session
// token rides in the ?token= query parameter instead.
func (h *Handler) ProjectEvents(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	userID, err := parseUserToken(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if _, err := h.db.GetProjectForUser(r.Context(), projectID, userID); err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed for project %s: %v", projectID, err)
		return
	}
	defer conn.Close()

	sub := h.notifier.Subscribe(r.Context(), projectID)
	defer sub.Close()

	// Reader goroutine: we never expect client messages, but reading is what
	// surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
