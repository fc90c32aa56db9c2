package api

import (
	"net/http"
	"sync"
	"time"

	"Go2NetProfile/internal/notification"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// streamHandler pushes a notice to the client every time a new report is ready.
func (h *Handler) streamHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "report streaming is disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket upgrade failed.")
		return
	}
	defer conn.Close()
	h.log.WithField("remote", r.RemoteAddr).Debug("WebSocket connection established.")

	notices, unsubscribe := h.hub.Subscribe(4)
	defer unsubscribe()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"type": "connected"}); err != nil {
		return
	}
	if report := h.analyzer.Latest(); report != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(notification.NewNotice(report)); err != nil {
			return
		}
	}

	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	// Read in the background to notice the client going away.
	go func() {
		defer closeDone()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case notice, ok := <-notices:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(notice); err != nil {
				h.log.WithError(err).Debug("WebSocket write failed.")
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.log.WithField("remote", r.RemoteAddr).Debug("WebSocket connection closed.")
			return
		case <-r.Context().Done():
			return
		}
	}
}
