// Package broadcast implements the Event Broadcaster (EB): a fan-out hub
// adapted from hub.go's websocket Hub, generalized from "registered
// *websocket.Conn" to "registered buffered channel" since the socket
// transport itself is out of scope here — only the publish side is
// implemented (§4.9). See DESIGN.md for why gorilla/websocket itself isn't
// wired here.
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/pantheonelite/counciltrader/internal/logx"
)

var log = logx.New("EB")

// Hub maintains the set of registered consumers and fans out JSON envelopes
// to each of them, mirroring hub.go's clients map + clientsMu mutex +
// Broadcast method shape.
type Hub struct {
	consumers   map[chan []byte]bool
	consumersMu sync.Mutex
	bufferSize  int
}

func NewHub() *Hub {
	return &Hub{
		consumers:  make(map[chan []byte]bool),
		bufferSize: 64,
	}
}

// Register returns a new buffered channel that will receive every
// subsequent Broadcast payload. Call Unregister when done consuming.
func (h *Hub) Register() chan []byte {
	ch := make(chan []byte, h.bufferSize)
	h.consumersMu.Lock()
	h.consumers[ch] = true
	h.consumersMu.Unlock()
	return ch
}

func (h *Hub) Unregister(ch chan []byte) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()
	if _, ok := h.consumers[ch]; ok {
		delete(h.consumers, ch)
		close(ch)
	}
}

// Broadcast marshals msg and fans it out to every registered consumer.
// A consumer whose buffer is full is dropped rather than blocking the
// publisher, since EB failures must never hold up the trading path.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Warnf("broadcast marshal error: %v", err)
		return
	}

	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()
	for ch := range h.consumers {
		select {
		case ch <- data:
		default:
			log.Warnf("consumer buffer full, dropping envelope")
		}
	}
}
