package server_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelchat/kestrel/internal/server"
)

func setupTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_FORMAT", "text")

	s, err := server.New()
	require.NoError(t, err)
	s.RegisterRoutes()

	ts := httptest.NewServer(s.E)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = s.PubSub.Close() })
	return s, ts
}

func createAccount(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	resp, err := http.Post(ts.URL+"/api/create-account", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	return string(raw)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]string) {
	t.Helper()
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readOutbound(t *testing.T, conn *websocket.Conn) map[string]string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]string
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestRelay_EndToEnd(t *testing.T) {
	s, ts := setupTestServer(t)

	tokenString := createAccount(t, ts, "alice", "correcthorse")

	sender := dialWS(t, ts)
	listener := dialWS(t, ts)

	// Both sessions must be subscribed before alice posts.
	require.Eventually(t, func() bool { return s.Hub.Subscribers() == 2 },
		2*time.Second, 10*time.Millisecond)

	sendFrame(t, sender, map[string]string{"type": "authorization", "token": tokenString})
	sendFrame(t, sender, map[string]string{"type": "message", "text": "hello"})

	want := map[string]string{"author": "alice", "message": "hello"}
	assert.Equal(t, want, readOutbound(t, sender), "sender receives its own broadcast")
	assert.Equal(t, want, readOutbound(t, listener), "listener receives it too, without authenticating")
}

func TestRelay_PostWithoutAuthClosesConnection(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := dialWS(t, ts)
	sendFrame(t, conn, map[string]string{"type": "message", "text": "sneaky"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed by the server")
}

func TestRelay_InvalidTokenClosesConnection(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := dialWS(t, ts)
	sendFrame(t, conn, map[string]string{"type": "authorization", "token": "garbage"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed by the server")
}

func TestRelay_LoginIssuesWorkingToken(t *testing.T) {
	s, ts := setupTestServer(t)

	createAccount(t, ts, "bob", "correcthorse")

	resp, err := http.Post(ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"username":"bob","password":"correcthorse"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return s.Hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	sendFrame(t, conn, map[string]string{"type": "authorization", "token": string(raw)})
	sendFrame(t, conn, map[string]string{"type": "message", "text": "logged in"})

	assert.Equal(t, map[string]string{"author": "bob", "message": "logged in"}, readOutbound(t, conn))
}

func TestRelay_OnlineEndpointRequiresToken(t *testing.T) {
	s, ts := setupTestServer(t)

	tokenString := createAccount(t, ts, "carol", "correcthorse")

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return s.Hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)
	sendFrame(t, conn, map[string]string{"type": "authorization", "token": tokenString})

	require.Eventually(t, func() bool {
		online := s.Presence.Online()
		return len(online) == 1 && online[0] == "carol"
	}, 2*time.Second, 10*time.Millisecond)

	// Without a token the roster is off limits.
	resp, err := http.Get(ts.URL + "/api/online")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/online", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var roster struct {
		Sessions int      `json:"sessions"`
		Online   []string `json:"online"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roster))
	assert.Equal(t, 1, roster.Sessions)
	assert.Equal(t, []string{"carol"}, roster.Online)
}

func TestRelay_PresenceTracksConnections(t *testing.T) {
	s, ts := setupTestServer(t)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return s.Presence.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.Presence.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}
