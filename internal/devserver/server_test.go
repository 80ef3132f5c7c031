package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedition/mucompanion/internal/app/catalog"
	"github.com/proedition/mucompanion/internal/app/chat"
	"github.com/proedition/mucompanion/internal/app/user"
	"github.com/proedition/mucompanion/internal/configs"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:      "development",
		JWTSecret:        "test-secret",
		MaxMessageLength: 200,
	}

	s := NewServer(cfg)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return s, srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()

	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

func TestLoginWithSeededAccount(t *testing.T) {
	_, srv := newTestServer(t)

	res := postJSON(t, srv, "/api/login", map[string]string{
		"username": "test",
		"password": "test",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Token string        `json:"token"`
		User  user.Identity `json:"user"`
	}
	decodeBody(t, res, &body)

	assert.NotEmpty(t, body.Token)
	assert.Equal(t, int64(1), body.User.ID)
	assert.Equal(t, "test", body.User.Username)
	assert.Equal(t, 1, body.User.VIPLevel)
	require.Len(t, body.User.Characters, 2)
	assert.Equal(t, user.ClassDarkKnight, body.User.Characters[0].Class)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, srv := newTestServer(t)

	res := postJSON(t, srv, "/api/login", map[string]string{
		"username": "test",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	decodeBody(t, res, &body)
	assert.Equal(t, "Incorrect username or password.", body.Message)
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	_, srv := newTestServer(t)

	res := postJSON(t, srv, "/api/register", map[string]string{
		"username": "newplayer",
		"email":    "newplayer@proedition.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var reg struct {
		Message string `json:"message"`
	}
	decodeBody(t, res, &reg)
	assert.Equal(t, "Account created successfully.", reg.Message)

	// Duplicate username is rejected.
	res = postJSON(t, srv, "/api/register", map[string]string{
		"username": "newplayer",
		"email":    "other@proedition.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusConflict, res.StatusCode)
	res.Body.Close()

	// Log in with the fresh account.
	res = postJSON(t, srv, "/api/login", map[string]string{
		"username": "newplayer",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var login struct {
		Token string        `json:"token"`
		User  user.Identity `json:"user"`
	}
	decodeBody(t, res, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "newplayer@proedition.com", login.User.Email)
	require.Len(t, login.User.Characters, 1)
	assert.Equal(t, 1, login.User.Characters[0].Level)

	// The token authorizes the profile endpoint.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/user/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)

	res, err = srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var profile user.Identity
	decodeBody(t, res, &profile)
	assert.Equal(t, login.User.ID, profile.ID)
	assert.Equal(t, "newplayer", profile.Username)
}

func TestProfileRequiresToken(t *testing.T) {
	_, srv := newTestServer(t)

	res, err := srv.Client().Get(srv.URL + "/api/user/profile")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	_, srv := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "a@b.com", "password": "secret"}},
		{"bad username chars", map[string]string{"username": "bad name!", "email": "a@b.com", "password": "secret"}},
		{"short password", map[string]string{"username": "player", "email": "a@b.com", "password": "abc"}},
		{"bad email", map[string]string{"username": "player", "email": "nope", "password": "secret"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := postJSON(t, srv, "/api/register", tc.body)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestChatSendAndHistory(t *testing.T) {
	_, srv := newTestServer(t)

	for i := 1; i <= 3; i++ {
		res := postJSON(t, srv, "/api/chat/send", chat.Message{
			Text:     fmt.Sprintf("message %d", i),
			UserID:   1,
			Username: "test",
			Region:   "global",
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		res.Body.Close()
	}

	res, err := srv.Client().Get(srv.URL + "/api/chat/messages?region=global&limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var history struct {
		Messages []chat.Message `json:"messages"`
		Stats    chat.Stats     `json:"stats"`
	}
	decodeBody(t, res, &history)

	require.Len(t, history.Messages, 2, "limit caps the window")
	assert.Equal(t, "message 2", history.Messages[0].Text)
	assert.Equal(t, "message 3", history.Messages[1].Text)
	assert.Equal(t, 3, history.Stats.TotalMessages)
}

func TestChatSendValidation(t *testing.T) {
	_, srv := newTestServer(t)

	res := postJSON(t, srv, "/api/chat/send", chat.Message{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()

	res = postJSON(t, srv, "/api/chat/send", chat.Message{Text: strings.Repeat("a", 201)})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, res, &body)
	assert.Equal(t, "Message is too long (max: 200).", body.Message)
}

func TestCatalogEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	client := catalog.NewClient(srv.Client(), srv.URL)

	items, err := client.ShopItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 7)
	assert.Equal(t, "Sword of Destruction +15", items[0].Name)
	assert.Equal(t, "+1500", items[0].Stats["attack"])

	tiers, err := client.VIPTiers(context.Background())
	require.NoError(t, err)
	require.Len(t, tiers, 4)
	assert.Equal(t, "VIP Bronze", tiers[0].Name)
	assert.Equal(t, 9.99, tiers[0].Price)
	assert.Equal(t, "VIP Diamante", tiers[3].Name)

	status, err := client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	assert.GreaterOrEqual(t, status.OnlinePlayers, basePlayerCount)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat"
}

func TestWebSocketAuthAndBroadcast(t *testing.T) {
	_, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "auth",
		"userId":   1,
		"username": "test",
		"region":   "global",
		"language": "auto",
	}))

	// The join announcement and a stats frame come back to the joining client.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	types := make(map[string]bool)
	for i := 0; i < 2; i++ {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		types[f.Type] = true
	}
	assert.True(t, types["user_joined"])
	assert.True(t, types["stats"])

	// A second participant's message is broadcast to the first.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn2.Close()

	require.NoError(t, conn2.WriteJSON(map[string]any{
		"type":     "auth",
		"userId":   2,
		"username": "other",
	}))

	require.NoError(t, conn2.WriteJSON(map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "hello from other"},
	}))

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))

		var raw struct {
			Type    string       `json:"type"`
			Message chat.Message `json:"message"`
		}
		require.NoError(t, conn.ReadJSON(&raw))

		if raw.Type == "message" {
			assert.Equal(t, "hello from other", raw.Message.Text)
			assert.Equal(t, "other", raw.Message.Username, "author is stamped from the connection")
			assert.Equal(t, int64(2), raw.Message.UserID)
			return
		}
	}
}

func TestWebSocketRejectsFramesBeforeAuth(t *testing.T) {
	s, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "sneaky"},
	}))

	// The unauthenticated frame never reaches the channel.
	time.Sleep(50 * time.Millisecond)
	messages, stats := s.hub.History("", 0)
	assert.Empty(t, messages)
	assert.Equal(t, 0, stats.TotalMessages)
}

// TestControllerAgainstDevServer runs the real connectivity controller against
// the embedded backend end to end over WebSocket.
func TestControllerAgainstDevServer(t *testing.T) {
	_, srv := newTestServer(t)

	controller := chat.NewController(chat.Config{
		WebSocketURL: wsURL(srv),
		ServerURL:    srv.URL,
		HTTPClient:   srv.Client(),
	}, &user.Identity{ID: 1, Username: "test"})
	defer controller.Disconnect()

	require.NoError(t, controller.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return controller.State() == chat.StateConnectedSocket
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, controller.SendMessage(context.Background(), "end to end"))

	// The hub receives the message and serves it back over the polling endpoint.
	require.Eventually(t, func() bool {
		res, err := srv.Client().Get(srv.URL + "/api/chat/messages?limit=10")
		if err != nil {
			return false
		}
		defer res.Body.Close()

		var history struct {
			Messages []chat.Message `json:"messages"`
		}
		if err := json.NewDecoder(res.Body).Decode(&history); err != nil {
			return false
		}

		return len(history.Messages) == 1 && history.Messages[0].Text == "end to end"
	}, 2*time.Second, 10*time.Millisecond)
}
