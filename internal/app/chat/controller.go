/*
Package chat contains the client-side real-time chat connectivity core.

This file defines the Controller struct, which owns the single logical connection to the
live chat channel. It manages transport selection (WebSocket with an HTTP polling
fallback), the reconnect schedule, region/language preference propagation, and the
bounded message buffer, and emits a stream of chat events to its consumers.
*/
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/proedition/mucompanion/internal/app/user"
	"github.com/proedition/mucompanion/internal/pkg/apix"
	"github.com/proedition/mucompanion/internal/pkg/errs"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

// State identifies the connection state of the Controller.
type State int

const (
	// StateDisconnected means no transport is active and none is scheduled.
	StateDisconnected State = iota

	// StateConnecting means a WebSocket dial is in flight.
	StateConnecting

	// StateConnectedSocket means the push-based WebSocket transport is live.
	StateConnectedSocket

	// StateConnectedPolling means the pull-based HTTP polling transport is live.
	StateConnectedPolling

	// StateReconnectScheduled means the socket was lost and a reconnect timer is pending.
	StateReconnectScheduled
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedSocket:
		return "connected_socket"
	case StateConnectedPolling:
		return "connected_polling"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	default:
		return "unknown"
	}
}

// eventChannelBuffer sizes the Controller's outbound event queue.
const eventChannelBuffer = 256

// Conn is the subset of the WebSocket connection the Controller uses.
// *websocket.Conn satisfies it directly; tests substitute their own.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer abstracts the WebSocket dial so tests can inject failures.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// wsDialer is the production Dialer backed by gorilla/websocket.
type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, wsURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config carries the Controller's tunables. Zero values fall back to the
// defaults the backend contract assumes.
type Config struct {
	// WebSocketURL is the chat channel endpoint (ws:// or wss://).
	WebSocketURL string

	// ServerURL is the backend base URL for the HTTP fallback endpoints.
	ServerURL string

	// MaxMessageLength bounds outgoing message text (default 200).
	MaxMessageLength int

	// ReconnectDelay is the fixed delay before a reconnect attempt (default 5s).
	ReconnectDelay time.Duration

	// PollInterval is the HTTP fallback pull cycle (default 2s).
	PollInterval time.Duration

	// MaxRetries bounds consecutive socket reconnect attempts before the
	// Controller falls back to polling. Zero or negative disables the bound.
	MaxRetries int

	// FloodInterval is the minimum spacing between outgoing messages.
	// Zero or negative disables flood protection.
	FloodInterval time.Duration

	// HistoryLimit is the message count requested per poll (default 50).
	HistoryLimit int

	// BufferCapacity bounds the in-memory message buffer (default 100).
	BufferCapacity int

	// Dialer overrides the WebSocket dialer (tests). Nil selects gorilla/websocket.
	Dialer Dialer

	// HTTPClient overrides the HTTP client for the polling fallback (tests).
	HTTPClient *http.Client
}

// withDefaults fills unset Config fields with the contract defaults.
func (c Config) withDefaults() Config {
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 200
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.Dialer == nil {
		c.Dialer = wsDialer{}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

// Controller owns one logical connection to the live chat channel for an
// authenticated user. All state mutation happens inside the Controller in
// response to its own events; consumers observe it via Events and the
// snapshot accessors.
type Controller struct {
	cfg Config

	mu             sync.Mutex
	state          State
	conn           Conn
	connGen        int
	connecting     bool
	reconnectTimer *time.Timer
	retries        int
	pollCancel     context.CancelFunc
	identity       *user.Identity
	region         string
	language       string
	stats          Stats
	buffer         *messageBuffer
	flood          *rate.Limiter

	events chan Event
	logger zerolog.Logger
}

// NewController constructs a Controller for the given authenticated identity.
// The channel is only ever opened while a user is present; callers disconnect
// and drop the Controller on logout.
func NewController(cfg Config, identity *user.Identity) *Controller {
	cfg = cfg.withDefaults()

	var flood *rate.Limiter
	if cfg.FloodInterval > 0 {
		flood = rate.NewLimiter(rate.Every(cfg.FloodInterval), 1)
	}

	ctrlLogger := logx.Logger().With().Str("component", "chat").Logger()

	return &Controller{
		cfg:      cfg,
		state:    StateDisconnected,
		identity: identity,
		region:   "global",
		language: "auto",
		stats:    Stats{Regions: map[string]int{}},
		buffer:   newMessageBuffer(cfg.BufferCapacity),
		flood:    flood,
		events:   make(chan Event, eventChannelBuffer),
		logger:   ctrlLogger,
	}
}

// Events returns the Controller's event stream. Events are dropped (and logged)
// when the consumer falls more than eventChannelBuffer entries behind.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Connect attempts to open the persistent chat channel. On a successful open it
// immediately transmits the authentication frame. If the dial fails, the
// Controller falls back to the repeating HTTP pull cycle instead of failing
// the caller. Connect never blocks on the transport beyond the dial itself.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return errs.NewError(errs.ErrUnauthorized)
	}
	if c.connecting {
		c.mu.Unlock()
		return nil
	}

	c.connecting = true
	c.stopReconnectTimerLocked()
	c.stopPollingLocked()
	c.closeConnLocked()
	// Invalidate the old read loop so its close event cannot race the dial.
	c.connGen++
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, dialErr := c.cfg.Dialer.Dial(ctx, c.cfg.WebSocketURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false

	// Disconnect was requested while the dial was in flight.
	if c.state == StateDisconnected {
		if conn != nil {
			conn.Close()
		}
		return nil
	}

	if dialErr != nil {
		c.logger.Warn().Err(dialErr).Msg("WebSocket dial failed. Falling back to HTTP polling.")
		c.startPollingLocked()
		return nil
	}

	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.setStateLocked(StateConnectedSocket)

	authFrame := outboundFrame{
		Type:     frameAuth,
		UserID:   c.identity.ID,
		Username: c.identity.Username,
		Region:   c.region,
		Language: c.language,
	}
	if err := c.writeFrameLocked(authFrame); err != nil {
		c.logger.Error().Err(err).Msg("Failed to transmit auth frame.")
	}

	go c.readLoop(conn, gen)

	c.logger.Info().Str("endpoint", c.cfg.WebSocketURL).Msg("Chat connected via WebSocket.")
	return nil
}

// Disconnect closes any live socket, cancels any pending reconnect timer, stops
// the polling cycle, and transitions to Disconnected. It is idempotent.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopReconnectTimerLocked()
	c.stopPollingLocked()
	c.closeConnLocked()
	c.connGen++

	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected)
		c.logger.Info().Msg("Chat disconnected.")
	}
}

// SendMessage validates and transmits a chat message. Validation rejects empty
// or whitespace-only text, a disconnected controller, and over-length text
// before any transmission attempt. On the socket path the message is appended
// to the local buffer optimistically; on the polling path it is POSTed and
// appended only on HTTP success.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errs.NewError(errs.ErrMessageEmpty)
	}

	c.mu.Lock()

	if c.state != StateConnectedSocket && c.state != StateConnectedPolling {
		c.mu.Unlock()
		return errs.NewError(errs.ErrChatNotConnected)
	}

	if utf8.RuneCountInString(trimmed) > c.cfg.MaxMessageLength {
		c.mu.Unlock()
		return errs.NewError(errs.ErrMessageTooLong, c.cfg.MaxMessageLength)
	}

	if c.flood != nil && !c.flood.Allow() {
		c.mu.Unlock()
		return errs.NewError(errs.ErrFloodProtection)
	}

	now := time.Now()
	msg := Message{
		ID:        now.UnixMilli(),
		Kind:      KindUser,
		Text:      trimmed,
		UserID:    c.identity.ID,
		Username:  c.identity.Username,
		Region:    c.region,
		Language:  c.language,
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	if c.state == StateConnectedSocket && c.conn != nil {
		if err := c.writeFrameLocked(outboundFrame{Type: frameMessage, Message: &msg}); err != nil {
			c.mu.Unlock()
			c.logger.Error().Err(err).Msg("Failed to transmit chat message.")
			return errs.NewError(errs.ErrConnectionFailed)
		}

		c.buffer.Append(msg)
		c.mu.Unlock()

		c.emit(Event{Type: EventMessage, Message: &msg})
		return nil
	}
	c.mu.Unlock()

	// Polling mode: deliver over the HTTP send endpoint instead.
	apiErr := apix.Do(ctx, c.cfg.HTTPClient, apix.Request{
		Method: http.MethodPost,
		URL:    c.cfg.ServerURL + "/api/chat/send",
		Body:   msg,
	}, nil)

	if apiErr != nil {
		if apiErr.Code == errs.ErrServerRejected {
			return apiErr
		}
		return errs.NewError(errs.ErrConnectionFailed)
	}

	c.mu.Lock()
	c.buffer.Append(msg)
	c.mu.Unlock()

	c.emit(Event{Type: EventMessage, Message: &msg})
	return nil
}

// ChangeRegion updates the selected region immediately and, when the socket is
// live, transmits a change notification frame. Polling mode picks the new
// region up on its next fetch via the query parameters.
func (c *Controller) ChangeRegion(region string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = region

	if c.state == StateConnectedSocket && c.conn != nil {
		if err := c.writeFrameLocked(outboundFrame{Type: frameChangeRegion, Region: region}); err != nil {
			c.logger.Error().Err(err).Msg("Failed to transmit region change frame.")
		}
	}
}

// ChangeLanguage updates the selected language immediately and, when the socket
// is live, transmits a change notification frame.
func (c *Controller) ChangeLanguage(language string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.language = language

	if c.state == StateConnectedSocket && c.conn != nil {
		if err := c.writeFrameLocked(outboundFrame{Type: frameChangeLanguage, Language: language}); err != nil {
			c.logger.Error().Err(err).Msg("Failed to transmit language change frame.")
		}
	}
}

// ClearMessages discards the buffered messages.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer.Clear()
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of the bounded message buffer in insertion order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Snapshot()
}

// ChatStats returns the most recent statistics aggregate.
func (c *Controller) ChatStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Regions = make(map[string]int, len(c.stats.Regions))
	for region, count := range c.stats.Regions {
		stats.Regions[region] = count
	}
	return stats
}

// Region returns the currently selected region.
func (c *Controller) Region() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// Language returns the currently selected language.
func (c *Controller) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// readLoop consumes frames from the live socket until it closes or errors.
func (c *Controller) readLoop(conn Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleSocketClosed(gen, err)
			return
		}

		c.handleInbound(gen, data)
	}
}

// handleSocketClosed reacts to a socket close or error by scheduling a
// reconnect, unless the connection generation is stale or the Controller was
// explicitly disconnected in the meantime.
func (c *Controller) handleSocketClosed(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.connGen || c.state == StateDisconnected {
		return
	}

	c.logger.Warn().Err(err).Msg("WebSocket connection lost.")
	c.closeConnLocked()
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the single reconnect timer, replacing any
// pending one. Once the consecutive retry budget is exhausted the Controller
// falls back to HTTP polling instead of rescheduling. Callers must hold c.mu.
func (c *Controller) scheduleReconnectLocked() {
	c.retries++
	if c.cfg.MaxRetries > 0 && c.retries > c.cfg.MaxRetries {
		c.logger.Warn().
			Int("attempts", c.retries-1).
			Msg("Reconnect attempts exhausted. Falling back to HTTP polling.")
		c.retries = 0
		c.startPollingLocked()
		return
	}

	c.stopReconnectTimerLocked()
	c.setStateLocked(StateReconnectScheduled)
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.reconnectNow)

	c.logger.Info().
		Dur("delay", c.cfg.ReconnectDelay).
		Int("attempt", c.retries).
		Msg("Reconnect scheduled.")
}

// reconnectNow fires when the reconnect delay elapses. The attempt is dropped
// when the Controller left the Reconnect-Scheduled state in the meantime.
func (c *Controller) reconnectNow() {
	c.mu.Lock()
	if c.state != StateReconnectScheduled || c.identity == nil {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	if err := c.Connect(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("Reconnect attempt failed.")
	}
}

// handleInbound dispatches a single frame received from the socket.
func (c *Controller) handleInbound(gen int, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed chat frame.")
		return
	}

	c.mu.Lock()

	if gen != c.connGen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}

	// A delivered frame proves the connection is healthy again.
	c.retries = 0

	switch frame.Type {
	case frameMessage:
		var msg Message
		if err := json.Unmarshal(frame.Message, &msg); err != nil {
			c.mu.Unlock()
			c.logger.Warn().Err(err).Msg("Discarding malformed message payload.")
			return
		}

		c.buffer.Append(msg)
		c.mu.Unlock()
		c.emit(Event{Type: EventMessage, Message: &msg})

	case frameStats:
		if frame.Stats != nil {
			c.stats = *frame.Stats
		}
		stats := c.stats
		c.mu.Unlock()
		c.emit(Event{Type: EventStats, Stats: &stats})

	case frameUserJoined:
		msg := newSystemMessage(fmt.Sprintf("%s joined the chat", frame.Username))
		c.buffer.Append(msg)
		c.mu.Unlock()
		c.emit(Event{Type: EventMessage, Message: &msg})

	case frameUserLeft:
		msg := newSystemMessage(fmt.Sprintf("%s left the chat", frame.Username))
		c.buffer.Append(msg)
		c.mu.Unlock()
		c.emit(Event{Type: EventMessage, Message: &msg})

	case frameError:
		c.mu.Unlock()

		var text string
		if err := json.Unmarshal(frame.Message, &text); err != nil || text == "" {
			text = errs.NewError(errs.ErrUnknown).Message
		}
		c.emit(Event{Type: EventError, Text: text})

	default:
		c.mu.Unlock()
		c.logger.Debug().Str("frame_type", frame.Type).Msg("Ignoring unknown chat frame type.")
	}
}

// startPollingLocked activates the repeating HTTP pull cycle. Callers must hold c.mu.
func (c *Controller) startPollingLocked() {
	if c.pollCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	c.setStateLocked(StateConnectedPolling)

	go c.pollLoop(ctx)

	c.logger.Info().Dur("interval", c.cfg.PollInterval).Msg("HTTP polling started.")
}

// stopPollingLocked cancels the polling cycle if one is active. Callers must hold c.mu.
func (c *Controller) stopPollingLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// pollLoop fetches messages once immediately and then on every tick until cancelled.
func (c *Controller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.fetchMessages(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetchMessages(ctx)
		}
	}
}

// fetchMessages pulls the recent message window and statistics over HTTP and
// replaces the local buffer wholesale. Fetch errors are logged and the cycle
// continues.
func (c *Controller) fetchMessages(ctx context.Context) {
	c.mu.Lock()
	region := c.region
	c.mu.Unlock()

	endpoint := fmt.Sprintf(
		"%s/api/chat/messages?region=%s&limit=%d",
		c.cfg.ServerURL, url.QueryEscape(region), c.cfg.HistoryLimit,
	)

	var result historyResponse
	if apiErr := apix.Do(ctx, c.cfg.HTTPClient, apix.Request{Method: http.MethodGet, URL: endpoint}, &result); apiErr != nil {
		c.logger.Warn().Str("reason", apiErr.Message).Msg("Chat poll failed.")
		return
	}

	c.mu.Lock()

	if c.state != StateConnectedPolling {
		c.mu.Unlock()
		return
	}

	c.buffer.Replace(result.Messages)

	statsReplaced := false
	if result.Stats != nil {
		c.stats = *result.Stats
		statsReplaced = true
	}
	stats := c.stats
	c.mu.Unlock()

	c.emit(Event{Type: EventSync})
	if statsReplaced {
		c.emit(Event{Type: EventStats, Stats: &stats})
	}
}

// writeFrameLocked marshals and transmits an outbound frame. Callers must hold c.mu.
func (c *Controller) writeFrameLocked(frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// closeConnLocked closes and clears the live socket if one exists. Callers must hold c.mu.
func (c *Controller) closeConnLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Socket close error.")
		}
		c.conn = nil
	}
}

// stopReconnectTimerLocked cancels the pending reconnect timer if one exists.
// Callers must hold c.mu.
func (c *Controller) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// setStateLocked records a state transition and emits an EventState. Callers must hold c.mu.
func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}

	c.state = state
	c.emit(Event{Type: EventState, State: state})
}

// emit queues an event for consumers, dropping it when the queue is full.
func (c *Controller) emit(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Event queue full, dropping event.")
	}
}
