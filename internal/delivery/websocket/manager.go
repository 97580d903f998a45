// Package websocket рассылает обновления задач генерации подключённым клиентам.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cuentee/internal/interfaces"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBufferSize = 256
)

// Message представляет сообщение для отправки через WebSocket
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	target  string
}

// Client представляет WebSocket-клиента
type Client struct {
	ID      uuid.UUID
	UserID  string
	conn    *websocket.Conn
	manager *WebSocketManager
	send    chan []byte
}

// WebSocketManager управляет WebSocket-соединениями
type WebSocketManager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	done       chan struct{}
}

var _ interfaces.ClientNotifier = (*WebSocketManager)(nil)

// NewWebSocketManager создает новый экземпляр WebSocketManager.
// Пустой allowedOrigins разрешает любой Origin.
func NewWebSocketManager(allowedOrigins []string, logger *zap.Logger) *WebSocketManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" && o != "*" {
			origins[o] = struct{}{}
		}
	}
	return &WebSocketManager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		logger:     logger.Named("WebSocketManager"),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Run обрабатывает регистрацию клиентов и рассылку, пока ctx не отменён.
func (m *WebSocketManager) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for id, client := range m.clients {
				close(client.send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Debug("Client connected", zap.String("clientID", client.ID.String()), zap.String("userID", client.UserID))

		case client := <-m.unregister:
			m.remove(client)

		case message := <-m.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				m.logger.Error("Failed to marshal message", zap.String("type", message.Type), zap.Error(err))
				continue
			}
			m.deliver(message.target, data)
		}
	}
}

func (m *WebSocketManager) remove(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; ok {
		close(client.send)
		delete(m.clients, client.ID)
		m.logger.Debug("Client disconnected", zap.String("clientID", client.ID.String()))
	}
}

func (m *WebSocketManager) deliver(userID string, data []byte) {
	var slow []*Client
	m.mu.RLock()
	for _, client := range m.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range slow {
		m.logger.Warn("Dropping slow client", zap.String("clientID", client.ID.String()))
		m.remove(client)
	}
}

// ClientCount возвращает число подключённых клиентов.
func (m *WebSocketManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// ServeClient переводит соединение в WebSocket и регистрирует клиента userID.
// Аутентификация выполняется до вызова.
func (m *WebSocketManager) ServeClient(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		ID:      uuid.New(),
		UserID:  userID,
		conn:    conn,
		manager: m,
		send:    make(chan []byte, sendBufferSize),
	}

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return context.Canceled
	}

	go client.readPump()
	go client.writePump()
	return nil
}

// SendToUser отправляет сообщение всем соединениям пользователя.
// Не блокирует: при переполненной очереди сообщение отбрасывается.
func (m *WebSocketManager) SendToUser(userID, messageType string, payload interface{}) {
	msg := Message{Type: messageType, Payload: payload, target: userID}
	select {
	case m.broadcast <- msg:
	case <-m.done:
	default:
		m.logger.Warn("Broadcast queue full, message dropped", zap.String("userID", userID), zap.String("type", messageType))
	}
}

// readPump читает входящие кадры, чтобы обрабатывать pong и закрытие соединения.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
