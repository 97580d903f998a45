package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startManager(t *testing.T, origins []string) (*WebSocketManager, *httptest.Server) {
	t.Helper()
	m := NewWebSocketManager(origins, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.ServeClient(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-m.done
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, user string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSendToUser_DeliversOnlyToOwner(t *testing.T) {
	m, srv := startManager(t, nil)
	alice := dial(t, srv, "alice", nil)
	bob := dial(t, srv, "bob", nil)
	require.Eventually(t, func() bool { return m.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	m.SendToUser("alice", "generation_update", map[string]string{"status": "queued"})

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "generation_update", got.Type)
	assert.Equal(t, "queued", got.Payload["status"])

	_ = bob.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	m, srv := startManager(t, nil)
	conn := dial(t, srv, "alice", nil)
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	_, srv := startManager(t, []string{"https://cuentee.app"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=alice"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, "alice", http.Header{"Origin": {"https://cuentee.app"}})
}
