/*
Package chat contains the client-side real-time chat connectivity core.

This file defines the chat message model, the aggregate channel statistics, the JSON
frames exchanged with the chat endpoint, and the events the Controller emits to its
consumers (the presentation layers).
*/
package chat

import (
	"encoding/json"
	"time"
)

// Message kinds as carried on the wire.
const (
	// KindUser marks a message authored by a user.
	KindUser = "user_message"

	// KindSystem marks a message synthesized by the system (presence announcements).
	KindSystem = "system"
)

// SystemUsername is the author name attached to synthesized system messages.
const SystemUsername = "System"

// Outbound frame types.
const (
	frameAuth           = "auth"
	frameMessage        = "message"
	frameChangeRegion   = "change_region"
	frameChangeLanguage = "change_language"
)

// Inbound frame types.
const (
	frameStats      = "stats"
	frameUserJoined = "user_joined"
	frameUserLeft   = "user_left"
	frameError      = "error"
)

// Message represents a single chat message held in the bounded buffer.
type Message struct {
	// ID is a monotonic, timestamp-derived identifier (Unix milliseconds).
	ID int64 `json:"id"`

	// Kind is KindUser or KindSystem.
	Kind string `json:"type"`

	// Text is the message body.
	Text string `json:"text"`

	// UserID identifies the author (zero for system messages).
	UserID int64 `json:"userId,omitempty"`

	// Username is the author's display name.
	Username string `json:"username"`

	// Region is the chat region the message was sent to.
	Region string `json:"region,omitempty"`

	// Language is the author's selected language.
	Language string `json:"language,omitempty"`

	// Timestamp is the RFC3339 creation time.
	Timestamp string `json:"timestamp"`

	// Translations optionally maps language codes to translated text.
	Translations map[string]string `json:"translations,omitempty"`
}

// newSystemMessage synthesizes a system message announcing a presence change.
func newSystemMessage(text string) Message {
	now := time.Now()

	return Message{
		ID:        now.UnixMilli(),
		Kind:      KindSystem,
		Text:      text,
		Username:  SystemUsername,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// Stats is the aggregate channel statistics as delivered by the backend.
type Stats struct {
	// TotalMessages is the all-time message count on the channel.
	TotalMessages int `json:"totalMessages"`

	// OnlineUsers is the current connected-user count.
	OnlineUsers int `json:"onlineUsers"`

	// Regions breaks the online users down per region.
	Regions map[string]int `json:"regions"`
}

// outboundFrame is the envelope for every frame the client transmits.
type outboundFrame struct {
	Type     string   `json:"type"`
	UserID   int64    `json:"userId,omitempty"`
	Username string   `json:"username,omitempty"`
	Region   string   `json:"region,omitempty"`
	Language string   `json:"language,omitempty"`
	Message  *Message `json:"message,omitempty"`
}

// inboundFrame is the envelope for every frame the client receives.
// The message field is an object for frameMessage and a plain string for
// frameError, so it is decoded lazily.
type inboundFrame struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message,omitempty"`
	Stats    *Stats          `json:"stats,omitempty"`
	Username string          `json:"username,omitempty"`
}

// historyResponse mirrors the HTTP polling endpoint's body.
type historyResponse struct {
	Messages []Message `json:"messages"`
	Stats    *Stats    `json:"stats,omitempty"`
}

// EventType discriminates the events the Controller emits.
type EventType string

const (
	// EventMessage signals a message appended to the buffer (user or system).
	EventMessage EventType = "message"

	// EventStats signals a replaced statistics aggregate.
	EventStats EventType = "stats"

	// EventError surfaces a user-visible chat error from the backend.
	EventError EventType = "error"

	// EventState signals a connection state transition.
	EventState EventType = "state"

	// EventSync signals that a polling cycle refreshed the buffer wholesale.
	EventSync EventType = "sync"
)

// Event is a single notification delivered on the Controller's event stream.
type Event struct {
	// Type discriminates which of the remaining fields are meaningful.
	Type EventType

	// Message is set for EventMessage.
	Message *Message

	// Stats is set for EventStats.
	Stats *Stats

	// State is set for EventState.
	State State

	// Text carries the error message for EventError.
	Text string
}
