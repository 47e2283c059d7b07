package chat

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8 * 1024
)

// NewUpgrader origins 为空时允许所有来源
func NewUpgrader(origins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 || allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// wsSession gorilla 连接适配，定时发送 ping 维持空闲连接
type wsSession struct {
	conn     *websocket.Conn
	wmu      sync.Mutex
	pongWait time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewWebsocketSession 包装已升级的连接
func NewWebsocketSession(conn *websocket.Conn) Session {
	return newWebsocketSession(conn, pongWait)
}

// newWebsocketSession ping 间隔为 wait 的 9/10
func newWebsocketSession(conn *websocket.Conn, wait time.Duration) *wsSession {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	s := &wsSession{conn: conn, pongWait: wait, done: make(chan struct{})}
	go s.keepalive(wait * 9 / 10)
	return s
}

func (s *wsSession) keepalive(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsSession) WriteMessage(data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wmu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.wmu.Unlock()
	return s.conn.Close()
}
