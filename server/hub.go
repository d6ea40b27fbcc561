package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Decibel/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeSync  MessageType = "sync"  // 连接时的完整状态

	// 播放器事件 (服务端 -> 客户端)
	MsgTypeNewTrack        MessageType = "newTrack"
	MsgTypeNewTracklist    MessageType = "newTracklist"
	MsgTypeTrackMoved      MessageType = "trackMoved"
	MsgTypeStopped         MessageType = "stopped"
	MsgTypePaused          MessageType = "paused"
	MsgTypeUnpaused        MessageType = "unpaused"
	MsgTypePosition        MessageType = "position"
	MsgTypeVolume          MessageType = "volume"
	MsgTypeExplorerChanged MessageType = "explorerChanged"

	// 播放控制 (客户端 -> 服务端)
	MsgTypePlay        MessageType = "play"
	MsgTypeStop        MessageType = "stop"
	MsgTypeNext        MessageType = "next"
	MsgTypePrevious    MessageType = "previous"
	MsgTypeTogglePause MessageType = "togglePause"
	MsgTypeSeek        MessageType = "seek"
	MsgTypeSetVolume   MessageType = "setVolume"
	MsgTypeShuffle     MessageType = "shuffle"
	MsgTypeRevert      MessageType = "revert"
	MsgTypeClear       MessageType = "clear"
	MsgTypeRemove      MessageType = "remove"
	MsgTypeRepeat      MessageType = "repeat"
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	ClientID  string          `json:"clientId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ErrorData 错误消息数据
type ErrorData struct {
	Message string `json:"message"`
}

// Client WebSocket 客户端
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	ID   string
}

// NewClient 创建客户端, 分配随机 ID
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		ID:   uuid.NewString(),
	}
}

// Hub WebSocket 管理中心, 所有客户端收到相同的事件
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info("client registered", logger.String("client", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.done)
	})
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	logger.Info("client unregistered", logger.String("client", client.ID))
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			// 发送缓冲区满，移除客户端
			h.removeClient(client)
		}
	}
}

// cleanup 清理所有连接
func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 广播消息到所有客户端
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastWSMessage 广播 WSMessage
func (h *Hub) BroadcastWSMessage(msg *WSMessage) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encodeMessage(msg *WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UnixMilli()
	return json.Marshal(msg)
}

// NewWSMessage 创建带数据的消息
func NewWSMessage(t MessageType, data any) (*WSMessage, error) {
	msg := &WSMessage{Type: t}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.String("client", c.ID))
			continue
		}
		msg.ClientID = c.ID

		// 处理心跳
		if msg.Type == MsgTypePing {
			c.SendMessage(&WSMessage{Type: MsgTypePong})
			continue
		}

		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端, 缓冲区满时丢弃
func (c *Client) SendMessage(msg *WSMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		logger.Warn("failed to encode message", logger.ErrorField(err))
		return
	}

	defer func() {
		// Send 可能已被 Hub 关闭
		_ = recover()
	}()
	select {
	case c.Send <- data:
	default:
	}
}
