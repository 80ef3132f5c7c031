/*
Package devserver embeds a self-contained companion backend for development builds.

This file defines the client struct, representing one active WebSocket connection on the
chat channel. It manages the connection lifecycle, the read and write pumps, and the
per-connection region and language selection.
*/
package devserver

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/proedition/mucompanion/internal/app/chat"
	"github.com/proedition/mucompanion/internal/pkg/errs"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// sendChannelBuffer sizes the per-client outbound queue.
	sendChannelBuffer = 256
)

// Frame types exchanged on the chat channel.
const (
	frameTypeAuth           = "auth"
	frameTypeMessage        = "message"
	frameTypeChangeRegion   = "change_region"
	frameTypeChangeLanguage = "change_language"
	frameTypeStats          = "stats"
	frameTypeUserJoined     = "user_joined"
	frameTypeUserLeft       = "user_left"
	frameTypeError          = "error"
)

// frame is the envelope for every frame the server transmits.
type frame struct {
	Type     string      `json:"type"`
	Message  any         `json:"message,omitempty"`
	Stats    *chat.Stats `json:"stats,omitempty"`
	Username string      `json:"username,omitempty"`
}

// inboundFrame is the envelope for every frame a client transmits.
type inboundFrame struct {
	Type     string          `json:"type"`
	UserID   int64           `json:"userId,omitempty"`
	Username string          `json:"username,omitempty"`
	Region   string          `json:"region,omitempty"`
	Language string          `json:"language,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
}

// client represents one active WebSocket connection on the chat channel.
type client struct {
	hub  *Hub
	conn *websocket.Conn

	// id is the unique connection identifier, distinct from the account ID so
	// the same account may hold several connections.
	id string

	// maxMessageLength bounds accepted message text.
	maxMessageLength int

	mu       sync.Mutex
	authed   bool
	userID   int64
	username string
	region   string
	language string

	// send queues outbound frames for the write pump.
	send     chan []byte
	sendOnce sync.Once

	logger zerolog.Logger
}

// newClient constructs a client for a freshly upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn, maxMessageLength int) *client {
	id := uuid.NewString()

	clientLogger := logx.Logger().With().
		Str("component", "devserver.client").
		Str("connection_id", id).
		Logger()

	return &client{
		hub:              hub,
		conn:             conn,
		id:               id,
		maxMessageLength: maxMessageLength,
		region:           "global",
		language:         "auto",
		send:             make(chan []byte, sendChannelBuffer),
		logger:           clientLogger,
	}
}

// currentRegion returns the client's selected region.
func (c *client) currentRegion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// closeSend closes the outbound queue, terminating the write pump.
func (c *client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads frames from the connection until it closes or errors.
// It handles heartbeats (Pong) and performs cleanup on termination.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.closeSend()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error.")
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline.")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection read error.")
			}
			return
		}

		c.processInboundFrame(raw)
	}
}

// processInboundFrame dispatches a single frame received from the client.
// The first frame on a connection must be the auth frame; everything else is
// discarded until authentication completes.
func (c *client) processInboundFrame(raw []byte) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON.")
		return
	}

	c.mu.Lock()
	authed := c.authed
	c.mu.Unlock()

	if !authed {
		if in.Type != frameTypeAuth {
			c.logger.Warn().Str("frame_type", in.Type).Msg("Frame received before auth. Discarding.")
			return
		}

		c.handleAuth(in)
		return
	}

	switch in.Type {
	case frameTypeMessage:
		c.handleMessage(in.Message)

	case frameTypeChangeRegion:
		c.mu.Lock()
		c.region = in.Region
		c.mu.Unlock()
		c.hub.broadcastStats()

	case frameTypeChangeLanguage:
		c.mu.Lock()
		c.language = in.Language
		c.mu.Unlock()

	case frameTypeAuth:
		c.logger.Warn().Msg("Duplicate auth frame. Ignoring.")

	default:
		c.logger.Warn().Str("frame_type", in.Type).Msg("Client sent unsupported frame type.")
	}
}

// handleAuth completes the connection handshake and joins the channel.
func (c *client) handleAuth(in inboundFrame) {
	if in.Username == "" {
		c.sendError(errs.NewError(errs.ErrUnauthorized))
		return
	}

	c.mu.Lock()
	c.authed = true
	c.userID = in.UserID
	c.username = in.Username
	if in.Region != "" {
		c.region = in.Region
	}
	if in.Language != "" {
		c.language = in.Language
	}
	c.mu.Unlock()

	c.hub.register(c)
}

// handleMessage validates an incoming chat message and submits it to the hub.
// The author fields are stamped from the authenticated connection, not trusted
// from the payload.
func (c *client) handleMessage(raw json.RawMessage) {
	var msg chat.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid message payload.")
		return
	}

	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		c.sendError(errs.NewError(errs.ErrMessageEmpty))
		return
	}
	if utf8.RuneCountInString(msg.Text) > c.maxMessageLength {
		c.sendError(errs.NewError(errs.ErrMessageTooLong, c.maxMessageLength))
		return
	}

	c.mu.Lock()
	msg.Kind = chat.KindUser
	msg.UserID = c.userID
	msg.Username = c.username
	msg.Region = c.region
	msg.Language = c.language
	c.mu.Unlock()

	now := time.Now()
	if msg.ID == 0 {
		msg.ID = now.UnixMilli()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = now.UTC().Format(time.RFC3339)
	}

	c.hub.Submit(msg)
}

// sendError queues an error frame carrying the user-visible message.
func (c *client) sendError(customErr *errs.CustomError) {
	c.queueFrame(frame{Type: frameTypeError, Message: customErr.Message})
}

// queueFrame marshals and queues a frame for the write pump.
func (c *client) queueFrame(f frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", f.Type).Msg("Failed to marshal frame.")
		return
	}

	select {
	case c.send <- raw:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame.")
	}
}

// writePump writes queued frames to the connection and maintains the heartbeat.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in write pump.")
		}
	}()

	for {
		select {
		case raw, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline.")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message.")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame.")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping.")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping.")
				return
			}
		}
	}
}
