package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedition/mucompanion/internal/app/user"
	"github.com/proedition/mucompanion/internal/pkg/errs"
)

// fakeConn is an in-memory Conn that records written frames and serves reads
// from a channel. Closing it fails all pending and future operations.
type fakeConn struct {
	mu     sync.Mutex
	writes []outboundFrame

	reads chan []byte
	done  chan struct{}
	once  sync.Once

	// failReads makes ReadMessage error immediately, simulating a connection
	// that drops as soon as it is established.
	failReads bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads: make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if c.failReads {
		return 0, nil, errors.New("connection dropped")
	}

	select {
	case data := <-c.reads:
		return websocket.TextMessage, data, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}

	var f outboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	c.mu.Lock()
	c.writes = append(c.writes, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) frames() []outboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outboundFrame(nil), c.writes...)
}

// deliver queues an inbound frame for the read loop.
func (c *fakeConn) deliver(t *testing.T, frame any) {
	t.Helper()

	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	c.reads <- raw
}

// fakeDialer hands out queued connections, erroring once the queue runs dry.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no connection available")
	}

	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// failingTransport fails the test on any HTTP request.
type failingTransport struct{ t *testing.T }

func (ft failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ft.t.Errorf("unexpected HTTP request to %s", r.URL)
	return nil, errors.New("unexpected HTTP request")
}

func testIdentity() *user.Identity {
	return &user.Identity{ID: 7, Username: "tester"}
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: failingTransport{t}}
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 10 * time.Millisecond
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	c := NewController(cfg, testIdentity())
	t.Cleanup(c.Disconnect)
	return c
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.State() == want
	}, 2*time.Second, 2*time.Millisecond, "expected state %s, last seen %s", want, c.State())
}

// waitForEvent drains the event stream until an event of the wanted type arrives.
func waitForEvent(t *testing.T, c *Controller, want EventType) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-c.Events():
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func TestConnectRequiresIdentity(t *testing.T) {
	c := NewController(Config{Dialer: &fakeDialer{}}, nil)

	err := c.Connect(context.Background())

	require.Error(t, err)
	assert.Equal(t, errs.ErrUnauthorized, errs.CodeOf(err))
}

func TestConnectTransmitsAuthFrame(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	frames := conn.frames()
	require.NotEmpty(t, frames)

	auth := frames[0]
	assert.Equal(t, "auth", auth.Type)
	assert.Equal(t, int64(7), auth.UserID)
	assert.Equal(t, "tester", auth.Username)
	assert.Equal(t, "global", auth.Region)
	assert.Equal(t, "auto", auth.Language)
}

func TestSendMessageRequiresConnection(t *testing.T) {
	c := newTestController(t, Config{Dialer: &fakeDialer{}})

	err := c.SendMessage(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, errs.ErrChatNotConnected, errs.CodeOf(err))
}

func TestSendMessageValidation(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{
		Dialer:           &fakeDialer{conns: []*fakeConn{conn}},
		MaxMessageLength: 200,
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	err := c.SendMessage(context.Background(), "   ")
	assert.Equal(t, errs.ErrMessageEmpty, errs.CodeOf(err))

	err = c.SendMessage(context.Background(), strings.Repeat("a", 201))
	assert.Equal(t, errs.ErrMessageTooLong, errs.CodeOf(err))

	// Exactly at the limit is accepted.
	err = c.SendMessage(context.Background(), strings.Repeat("a", 200))
	assert.NoError(t, err)
}

func TestSendMessageFloodProtection(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{
		Dialer:        &fakeDialer{conns: []*fakeConn{conn}},
		FloodInterval: time.Hour,
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	require.NoError(t, c.SendMessage(context.Background(), "first"))

	err := c.SendMessage(context.Background(), "second")
	assert.Equal(t, errs.ErrFloodProtection, errs.CodeOf(err))
}

func TestSocketSendAppendsOptimistically(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	require.NoError(t, c.SendMessage(context.Background(), "hello world"))

	frames := conn.frames()
	require.Len(t, frames, 2, "auth frame plus message frame")
	assert.Equal(t, "message", frames[1].Type)
	require.NotNil(t, frames[1].Message)
	assert.Equal(t, "hello world", frames[1].Message.Text)
	assert.Equal(t, "tester", frames[1].Message.Username)

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "hello world", messages[0].Text)
	assert.Equal(t, KindUser, messages[0].Kind)

	event := waitForEvent(t, c, EventMessage)
	assert.Equal(t, "hello world", event.Message.Text)
}

func TestInboundMessageFrame(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn.deliver(t, map[string]any{
		"type": "message",
		"message": map[string]any{
			"id":       123,
			"type":     KindUser,
			"text":     "hi there",
			"username": "player2",
		},
	})

	event := waitForEvent(t, c, EventMessage)
	assert.Equal(t, "hi there", event.Message.Text)
	assert.Equal(t, "player2", event.Message.Username)

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, int64(123), messages[0].ID)
}

func TestInboundStatsFrame(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn.deliver(t, map[string]any{
		"type": "stats",
		"stats": map[string]any{
			"totalMessages": 42,
			"onlineUsers":   9,
			"regions":       map[string]int{"global": 9},
		},
	})

	event := waitForEvent(t, c, EventStats)
	assert.Equal(t, 42, event.Stats.TotalMessages)
	assert.Equal(t, 9, event.Stats.OnlineUsers)

	stats := c.ChatStats()
	assert.Equal(t, 9, stats.Regions["global"])
}

func TestInboundPresenceFrames(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn.deliver(t, map[string]any{"type": "user_joined", "username": "player2"})
	event := waitForEvent(t, c, EventMessage)
	assert.Equal(t, KindSystem, event.Message.Kind)
	assert.Equal(t, SystemUsername, event.Message.Username)
	assert.Equal(t, "player2 joined the chat", event.Message.Text)

	conn.deliver(t, map[string]any{"type": "user_left", "username": "player2"})
	event = waitForEvent(t, c, EventMessage)
	assert.Equal(t, "player2 left the chat", event.Message.Text)
}

func TestInboundErrorFrame(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn.deliver(t, map[string]any{"type": "error", "message": "You are muted."})

	event := waitForEvent(t, c, EventError)
	assert.Equal(t, "You are muted.", event.Text)
}

func TestChangeRegionAndLanguage(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	c.ChangeRegion("br")
	c.ChangeLanguage("pt")

	assert.Equal(t, "br", c.Region())
	assert.Equal(t, "pt", c.Language())

	frames := conn.frames()
	require.Len(t, frames, 3)
	assert.Equal(t, "change_region", frames[1].Type)
	assert.Equal(t, "br", frames[1].Region)
	assert.Equal(t, "change_language", frames[2].Type)
	assert.Equal(t, "pt", frames[2].Language)
}

func TestDialFailureFallsBackToPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "global", r.URL.Query().Get("region"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"id": 1, "type": KindUser, "text": "one", "username": "player2"},
				{"id": 2, "type": KindUser, "text": "two", "username": "player3"},
			},
			"stats": map[string]any{"totalMessages": 2, "onlineUsers": 3, "regions": map[string]int{"global": 3}},
		})
	}))
	defer srv.Close()

	c := newTestController(t, Config{
		Dialer:     &fakeDialer{err: errors.New("dial refused")},
		ServerURL:  srv.URL,
		HTTPClient: srv.Client(),
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedPolling)

	require.Eventually(t, func() bool {
		return len(c.Messages()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	waitForEvent(t, c, EventSync)

	messages := c.Messages()
	assert.Equal(t, "one", messages[0].Text)
	assert.Equal(t, "two", messages[1].Text)
	assert.Equal(t, 3, c.ChatStats().OnlineUsers)
}

func TestPollingSendUsesHTTP(t *testing.T) {
	var (
		mu    sync.Mutex
		sends []Message
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodPost {
			var msg Message
			require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))

			mu.Lock()
			sends = append(sends, msg)
			mu.Unlock()

			json.NewEncoder(w).Encode(msg)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{"messages": []Message{}})
	}))
	defer srv.Close()

	c := newTestController(t, Config{
		Dialer:       &fakeDialer{err: errors.New("dial refused")},
		ServerURL:    srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: time.Hour, // keep the poll loop quiet after the initial fetch
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedPolling)

	// Let the initial fetch settle so it cannot race the optimistic append.
	waitForEvent(t, c, EventSync)

	require.NoError(t, c.SendMessage(context.Background(), "over http"))

	mu.Lock()
	require.Len(t, sends, 1)
	assert.Equal(t, "over http", sends[0].Text)
	assert.Equal(t, "tester", sends[0].Username)
	mu.Unlock()

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "over http", messages[0].Text)
}

func TestSocketLossSchedulesReconnect(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn1, conn2}}

	c := newTestController(t, Config{
		Dialer:         dialer,
		ReconnectDelay: 15 * time.Millisecond,
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn1.Close()

	require.Eventually(t, func() bool {
		return dialer.callCount() == 2
	}, 2*time.Second, 2*time.Millisecond)
	waitForState(t, c, StateConnectedSocket)

	require.Eventually(t, func() bool {
		return len(conn2.frames()) > 0
	}, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, "auth", conn2.frames()[0].Type, "reconnected socket must re-authenticate")
}

func TestReconnectBudgetExhaustedFallsBackToPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"messages": []Message{}})
	}))
	defer srv.Close()

	// Every dialed connection drops immediately, burning one retry each time.
	conns := make([]*fakeConn, 0, 3)
	for i := 0; i < 3; i++ {
		conn := newFakeConn()
		conn.failReads = true
		conns = append(conns, conn)
	}

	dialer := &fakeDialer{conns: conns}
	c := newTestController(t, Config{
		Dialer:         dialer,
		ServerURL:      srv.URL,
		HTTPClient:     srv.Client(),
		MaxRetries:     2,
		ReconnectDelay: 5 * time.Millisecond,
	})

	require.NoError(t, c.Connect(context.Background()))

	waitForState(t, c, StateConnectedPolling)
	assert.Equal(t, 3, dialer.callCount(), "initial dial plus two retries")
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	c := newTestController(t, Config{
		Dialer:         dialer,
		ReconnectDelay: 30 * time.Millisecond,
	})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	conn.Close()
	waitForState(t, c, StateReconnectScheduled)

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, dialer.callCount(), "reconnect timer must be cancelled")
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	c := newTestController(t, Config{Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateConnectedSocket)

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, StateDisconnected, c.State())
}
