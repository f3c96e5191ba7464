package api

import (
	"net/http"
	"sync"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/gorilla/websocket"
)

// OSDHub forwards OSD region payloads to websocket clients, typically a
// browser or remote compositor drawing the region over its own video.
// It implements osd.Sink.
type OSDHub struct {
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
}

// NewOSDHub creates an empty hub
func NewOSDHub() *OSDHub {
	return &OSDHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[chan []byte]struct{}),
	}
}

// ChangeRegion implements osd.Sink. Slow clients miss updates.
func (h *OSDHub) ChangeRegion(payload []byte) error {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Clients returns the number of connected clients
func (h *OSDHub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams binary region payloads
func (h *OSDHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("OSD websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 4)
	h.clientsMu.Lock()
	h.clients[ch] = struct{}{}
	h.clientsMu.Unlock()
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, ch)
		h.clientsMu.Unlock()
	}()

	// Reader goroutine only notices the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				log.Debug().Err(err).Msg("OSD websocket write failed")
				return
			}
		}
	}
}
