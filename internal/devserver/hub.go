/*
Package devserver embeds a self-contained companion backend for development builds.

It serves the same HTTP and WebSocket surface the production backend exposes (login,
registration, profile, chat channel with polling fallback, and the content catalog) from
in-memory state, so the client can be exercised end to end without external services.

This file defines the Hub struct, the single chat channel all connected clients share.
It tracks presence, broadcasts frames, and retains the recent message history that the
HTTP polling endpoints serve.
*/
package devserver

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/proedition/mucompanion/internal/app/chat"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

// historyCapacity bounds the retained message history served to polling clients.
const historyCapacity = 500

// Hub is the single shared chat channel. It owns the connected client set, the
// aggregate statistics, and the bounded message history.
type Hub struct {
	mu sync.RWMutex

	// clients maps the connection ID to its client.
	clients map[string]*client

	// history retains the most recent messages, oldest first.
	history []chat.Message

	// totalMessages counts every user message ever accepted on the channel.
	totalMessages int

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	hubLogger := logx.Logger().With().Str("component", "devserver.hub").Logger()

	return &Hub{
		clients: make(map[string]*client),
		history: make([]chat.Message, 0, historyCapacity),
		logger:  hubLogger,
	}
}

// register adds a freshly authenticated client and announces its presence.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("connection_id", c.id).
		Str("username", c.username).
		Int("online", total).
		Msg("Client joined the chat channel.")

	h.broadcast(frame{Type: frameTypeUserJoined, Username: c.username})
	h.broadcastStats()
}

// unregister removes a client and announces its departure. It is a no-op for
// connections that never completed authentication.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, known := h.clients[c.id]
	if known {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !known {
		return
	}

	h.logger.Info().
		Str("connection_id", c.id).
		Str("username", c.username).
		Int("online", total).
		Msg("Client left the chat channel.")

	h.broadcast(frame{Type: frameTypeUserLeft, Username: c.username})
	h.broadcastStats()
}

// Submit accepts a user message: it is appended to the history, counted, and
// broadcast to every connected client.
func (h *Hub) Submit(msg chat.Message) {
	h.mu.Lock()
	h.appendLocked(msg)
	h.totalMessages++
	h.mu.Unlock()

	h.broadcast(frame{Type: frameTypeMessage, Message: &msg})
}

// History returns the most recent messages for the region (newest last) along
// with the current statistics aggregate. A non-positive limit returns all
// retained messages.
func (h *Hub) History(region string, limit int) ([]chat.Message, chat.Stats) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := make([]chat.Message, 0, len(h.history))
	for _, msg := range h.history {
		if region != "" && msg.Region != "" && msg.Region != region {
			continue
		}
		matched = append(matched, msg)
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	return matched, h.statsLocked()
}

// Stats returns the current statistics aggregate.
func (h *Hub) Stats() chat.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statsLocked()
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}

	h.logger.Info().Int("disconnected", len(clients)).Msg("Hub shut down.")
}

// broadcastStats pushes the current statistics aggregate to every client.
func (h *Hub) broadcastStats() {
	stats := h.Stats()
	h.broadcast(frame{Type: frameTypeStats, Stats: &stats})
}

// broadcast marshals the frame once and queues it on every connected client.
// Clients whose send queue is full are dropped from the channel.
func (h *Hub) broadcast(f frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		h.logger.Error().Err(err).Str("frame_type", f.Type).Msg("Failed to marshal broadcast frame.")
		return
	}

	h.mu.RLock()
	var stalled []*client
	for _, c := range h.clients {
		select {
		case c.send <- raw:
		default:
			h.logger.Warn().
				Str("connection_id", c.id).
				Msg("Client send channel full, unregistering.")
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.unregister(c)
		c.closeSend()
	}
}

// statsLocked computes the statistics aggregate. Callers must hold h.mu.
func (h *Hub) statsLocked() chat.Stats {
	regions := make(map[string]int, 4)
	for _, c := range h.clients {
		regions[c.currentRegion()]++
	}

	return chat.Stats{
		TotalMessages: h.totalMessages,
		OnlineUsers:   len(h.clients),
		Regions:       regions,
	}
}

// appendLocked inserts msg at the history tail, evicting the oldest entry when
// at capacity. Callers must hold h.mu.
func (h *Hub) appendLocked(msg chat.Message) {
	if len(h.history) == historyCapacity {
		copy(h.history, h.history[1:])
		h.history[len(h.history)-1] = msg
		return
	}

	h.history = append(h.history, msg)
}
