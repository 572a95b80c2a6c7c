package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arb-scanner/infrastructure/logger"
	"arb-scanner/internal/scanner"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024

	// sendBufferSize 每个客户端待发送报告数；扫描间隔至少 10 秒，少量缓冲即可。
	sendBufferSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// envelope 推送给浏览器的消息。
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub 把每个周期的扫描报告推送给所有已连接的看板客户端。
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	log        *logger.Logger
	reports    ReportSource
	onClients  func(n int)
}

// NewHub 创建 Hub；onClients 在连接数变化时回调，可为空。
func NewHub(reports ReportSource, log *logger.Logger, onClients func(n int)) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log,
		reports:    reports,
		onClients:  onClients,
	}
}

// Run 事件循环：注册、注销、广播。ctx 取消时断开所有客户端。
func (h *Hub) Run(ctx context.Context, feed <-chan scanner.Report) error {
	go h.forward(ctx, feed)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.clientsChanged()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.clientsChanged()
			h.log.Debug("ws client connected", zap.Int("total_clients", h.ClientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.clientsChanged()
			h.log.Debug("ws client disconnected", zap.Int("total_clients", h.ClientCount()))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("ws dropping report for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward 把扫描报告编码后送入广播通道。
func (h *Hub) forward(ctx context.Context, feed <-chan scanner.Report) {
	if feed == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-feed:
			if !ok {
				return
			}
			msg, err := encodeReport(r)
			if err != nil {
				h.log.LogError(err, map[string]interface{}{"component": "dashboard_hub"})
				continue
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func encodeReport(r scanner.Report) ([]byte, error) {
	return json.Marshal(envelope{Type: "scan_report", Payload: r})
}

// HandleWS 升级连接并注册客户端，连接建立后立即推送最近一份报告。
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if h.reports != nil {
		if latest, ok := h.reports.Latest(); ok {
			if msg, err := encodeReport(latest); err == nil {
				c.send <- msg
			}
		}
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// ClientCount 当前连接数。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) clientsChanged() {
	if h.onClients != nil {
		h.onClients(h.ClientCount())
	}
}

// readPump 只处理控制帧；看板不接受客户端消息。
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("ws unexpected close", zap.Error(err))
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
