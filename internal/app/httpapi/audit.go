package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

type wsUpgrader = websocket.Upgrader

func newUpgrader() wsUpgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Callers are trusted operators; the API itself has no browser surface.
		CheckOrigin: func(*http.Request) bool { return true },
	}
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = n
	}
	events, err := h.app.Audit.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// streamAudit upgrades the connection and forwards live audit events until the
// client disconnects.
func (h *handler) streamAudit(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.app.Audit.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is the
	// only way to observe the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}
