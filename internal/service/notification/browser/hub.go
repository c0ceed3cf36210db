package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// ErrNoSession 订阅者当前没有打开的浏览器连接
var ErrNoSession = fmt.Errorf("%w: no browser session", notification.ErrNotConfigured)

type message struct {
	Type string               `json:"type"`
	Data notification.Payload `json:"data"`
}

type client struct {
	hub          *Hub
	conn         *websocket.Conn
	subscriberId string
	send         chan []byte
}

// Hub 按订阅者维护 websocket 会话, 同时实现 notification.Sender
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigins ...string) *Hub {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Hub{
		sessions: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func (h *Hub) Channel() notification.Channel {
	return notification.ChannelBrowser
}

// Send 推送到订阅者所有会话, 缓冲已满的会话被丢弃
func (h *Hub) Send(ctx context.Context, to notification.Recipient, payload notification.Payload) error {
	data, err := json.Marshal(message{Type: "notification", Data: payload})
	if err != nil {
		return err
	}

	// 持读锁写入, 避免与 unregister 关闭 channel 并发
	h.mu.RLock()
	clients := h.sessions[to.SubscriberId]
	total := len(clients)
	delivered := 0
	var congested []*client
	for c := range clients {
		select {
		case c.send <- data:
			delivered++
		default:
			congested = append(congested, c)
		}
	}
	h.mu.RUnlock()

	if total == 0 {
		return ErrNoSession
	}
	for _, c := range congested {
		slog.Warn("browser session buffer full, dropping session", "subscriber", to.SubscriberId)
		h.unregister(c)
	}
	if delivered == 0 {
		return fmt.Errorf("all %d browser sessions of %s are congested", total, to.SubscriberId)
	}
	return nil
}

func (h *Hub) SessionCount(subscriberId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[subscriberId])
}

// ServeWS GET /ws?subscriber=<id>
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	subscriberId := r.URL.Query().Get("subscriber")
	if subscriberId == "" {
		http.Error(w, "missing subscriber", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "subscriber", subscriberId, "error", err)
		return
	}

	c := &client{
		hub:          h,
		conn:         conn,
		subscriberId: subscriberId,
		send:         make(chan []byte, sendBufferSize),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

// Close 断开所有会话
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.sessions {
		for c := range clients {
			close(c.send)
		}
		delete(h.sessions, id)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.subscriberId]
	if !ok {
		clients = make(map[*client]struct{})
		h.sessions[c.subscriberId] = clients
	}
	clients[c] = struct{}{}
	slog.Debug("browser session opened", "subscriber", c.subscriberId, "sessions", len(clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.subscriberId]
	if !ok {
		return
	}
	if _, ok = clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.sessions, c.subscriberId)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// 只推送, 客户端消息忽略
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("browser session closed unexpectedly", "subscriber", c.subscriberId, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
