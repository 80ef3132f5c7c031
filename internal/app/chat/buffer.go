/*
Package chat contains the client-side real-time chat connectivity core.

This file defines the bounded message buffer: an insertion-ordered FIFO that
retains only the most recent messages, evicting oldest-first beyond capacity.
*/
package chat

// DefaultBufferCapacity is the number of messages retained in the chat buffer.
const DefaultBufferCapacity = 100

// messageBuffer is a capacity-bounded FIFO of chat messages.
// It is not safe for concurrent use; the Controller serializes access.
type messageBuffer struct {
	capacity int
	messages []Message
}

// newMessageBuffer returns an empty buffer bounded at capacity.
// A non-positive capacity falls back to DefaultBufferCapacity.
func newMessageBuffer(capacity int) *messageBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &messageBuffer{
		capacity: capacity,
		messages: make([]Message, 0, capacity),
	}
}

// Append inserts msg at the tail, evicting the oldest message when full.
func (b *messageBuffer) Append(msg Message) {
	if len(b.messages) == b.capacity {
		copy(b.messages, b.messages[1:])
		b.messages[len(b.messages)-1] = msg
		return
	}

	b.messages = append(b.messages, msg)
}

// Replace swaps the buffer contents wholesale, keeping only the newest
// capacity entries of msgs in their original relative order.
func (b *messageBuffer) Replace(msgs []Message) {
	if len(msgs) > b.capacity {
		msgs = msgs[len(msgs)-b.capacity:]
	}

	b.messages = b.messages[:0]
	b.messages = append(b.messages, msgs...)
}

// Snapshot returns a copy of the buffered messages in insertion order.
func (b *messageBuffer) Snapshot() []Message {
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Len returns the number of buffered messages.
func (b *messageBuffer) Len() int {
	return len(b.messages)
}

// Clear discards all buffered messages.
func (b *messageBuffer) Clear() {
	b.messages = b.messages[:0]
}
