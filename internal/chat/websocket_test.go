package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readResult struct {
	data []byte
	err  error
}

func TestWebsocketSession_IdleClientStaysConnected(t *testing.T) {
	const wait = 300 * time.Millisecond
	upgrader := NewUpgrader(nil)
	reads := make(chan readResult, 1)
	sessions := make(chan *wsSession, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess := newWebsocketSession(conn, wait)
		sessions <- sess
		data, err := sess.ReadMessage()
		reads <- readResult{data: data, err: err}
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	// 客户端读循环负责自动回复 pong
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case res := <-reads:
		t.Fatalf("idle session ended early: %v", res.err)
	case <-time.After(4 * wait):
	}

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("still here")))
	select {
	case res := <-reads:
		require.NoError(t, res.err)
		assert.Equal(t, "still here", string(res.data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
	}

	sess := <-sessions
	require.NoError(t, sess.Close())
	assert.NotPanics(t, func() { _ = sess.Close() })
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, NewUpgrader(nil).CheckOrigin(req))
	assert.False(t, NewUpgrader([]string{"https://app.example"}).CheckOrigin(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, NewUpgrader([]string{"https://app.example"}).CheckOrigin(req))
}
