package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"merrimates/middleware"
	"merrimates/model"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client WebSocket 客户端
type Client struct {
	ID       uuid.UUID
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	mu       sync.Mutex
	closed   bool // Send channel 是否已关闭
}

// Hub WebSocket 连接管理中心
type Hub struct {
	// 在线用户 map[小写用户名]map[clientID]*Client（支持多设备）
	Clients map[string]map[uuid.UUID]*Client
	mu      sync.RWMutex

	// 最大连接数限制（每个用户）
	MaxConnectionsPerUser int

	msgSvc  *service.MessageService
	convSvc *service.ConversationService
	logger  *zap.Logger

	// 可选：多实例部署时通过 Redis Pub/Sub 转发
	rdb        *redis.Client
	podID      string
	stopPubSub chan struct{}
}

// Redis Pub/Sub channel 名称
const redisBroadcastChannel = "merrimates:ws:broadcast"

// BroadcastMessage 跨实例广播消息格式
type BroadcastMessage struct {
	Username string `json:"username"`
	PodID    string `json:"pod_id"` // 发送方实例 ID，用于去重
	Payload  []byte `json:"payload"`
}

// NewHub 创建 Hub，rdb 为 nil 时只在本实例内推送
func NewHub(msgSvc *service.MessageService, convSvc *service.ConversationService, rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		Clients:               make(map[string]map[uuid.UUID]*Client),
		MaxConnectionsPerUser: 8,
		msgSvc:                msgSvc,
		convSvc:               convSvc,
		logger:                logger,
		rdb:                   rdb,
		podID:                 uuid.New().String(),
		stopPubSub:            make(chan struct{}),
	}
}

func hubKey(username string) string {
	return strings.ToLower(username)
}

// Register 注册客户端（限制最大连接数）
func (h *Hub) Register(client *Client) bool {
	key := hubKey(client.Username)

	h.mu.Lock()
	if h.Clients[key] == nil {
		h.Clients[key] = make(map[uuid.UUID]*Client)
	}

	if len(h.Clients[key]) >= h.MaxConnectionsPerUser {
		h.mu.Unlock()

		h.logger.Warn("Too many websocket connections",
			zap.String("username", client.Username),
			zap.Int("max", h.MaxConnectionsPerUser))

		reason := fmt.Sprintf("Maximum %d devices allowed", h.MaxConnectionsPerUser)
		if msg, err := json.Marshal(gin.H{"type": "error", "data": gin.H{"code": "too_many_devices", "message": reason}}); err == nil {
			_ = client.Conn.WriteMessage(websocket.TextMessage, msg)
		}
		_ = client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
		client.Conn.Close()
		return false
	}

	h.Clients[key][client.ID] = client
	deviceCount := len(h.Clients[key])
	h.mu.Unlock()

	middleware.WebsocketConnected(1)
	h.logger.Info("User connected",
		zap.String("username", client.Username),
		zap.String("client_id", client.ID.String()),
		zap.Int("devices", deviceCount))
	return true
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	key := hubKey(client.Username)

	h.mu.Lock()
	removed := false
	if userClients, exists := h.Clients[key]; exists {
		if _, found := userClients[client.ID]; found {
			delete(userClients, client.ID)
			removed = true
			if len(userClients) == 0 {
				delete(h.Clients, key)
			}
		}
	}
	h.mu.Unlock()

	if removed {
		middleware.WebsocketConnected(-1)
		h.logger.Info("User disconnected",
			zap.String("username", client.Username),
			zap.String("client_id", client.ID.String()))
	}

	// 安全关闭 Send channel
	client.mu.Lock()
	if !client.closed {
		close(client.Send)
		client.closed = true
	}
	client.mu.Unlock()
}

// SendToUser 发送给用户在本实例上的所有设备
func (h *Hub) SendToUser(username string, message []byte) bool {
	h.mu.RLock()
	userClients, exists := h.Clients[hubKey(username)]
	if !exists || len(userClients) == 0 {
		h.mu.RUnlock()
		return false
	}

	// 复制一份 client 列表，避免在遍历时发生并发修改
	clientsCopy := make([]*Client, 0, len(userClients))
	for _, client := range userClients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	sentToAny := false
	for _, client := range clientsCopy {
		if client.trySend(message) {
			sentToAny = true
			continue
		}
		h.logger.Warn("Send channel full, closing connection",
			zap.String("username", username),
			zap.String("client_id", client.ID.String()))
		go h.Unregister(client)
	}

	return sentToAny
}

// BroadcastToUser 本地发送，配置了 Redis 时同时发布给其他实例
func (h *Hub) BroadcastToUser(username string, message []byte) bool {
	sent := h.SendToUser(username, message)
	if h.rdb == nil {
		return sent
	}

	msgBytes, err := json.Marshal(BroadcastMessage{Username: username, PodID: h.podID, Payload: message})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return sent
	}
	if err := h.rdb.Publish(context.Background(), redisBroadcastChannel, msgBytes).Err(); err != nil {
		h.logger.Error("Failed to publish to Redis", zap.Error(err))
	}
	return sent
}

// StartPubSub 订阅其他实例的广播
func (h *Hub) StartPubSub() {
	if h.rdb == nil {
		return
	}
	go func() {
		pubsub := h.rdb.Subscribe(context.Background(), redisBroadcastChannel)
		defer pubsub.Close()

		h.logger.Info("Redis Pub/Sub subscription started", zap.String("pod_id", h.podID[:8]))

		ch := pubsub.Channel()
		for {
			select {
			case <-h.stopPubSub:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg != nil {
					h.handleBroadcastMessage([]byte(msg.Payload))
				}
			}
		}
	}()
}

// StopPubSub 停止订阅
func (h *Hub) StopPubSub() {
	select {
	case <-h.stopPubSub:
	default:
		close(h.stopPubSub)
	}
}

func (h *Hub) handleBroadcastMessage(data []byte) {
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Error("Failed to unmarshal broadcast message", zap.Error(err))
		return
	}
	// 忽略自己发的消息
	if msg.PodID == h.podID {
		return
	}
	h.SendToUser(msg.Username, msg.Payload)
}

// IsOnline 用户是否至少有一个设备在线
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[hubKey(username)]) > 0
}

func (h *Hub) push(username, eventType string, data interface{}) bool {
	payload, err := json.Marshal(gin.H{"type": eventType, "data": data})
	if err != nil {
		h.logger.Error("Failed to marshal push event", zap.String("type", eventType), zap.Error(err))
		return false
	}
	return h.BroadcastToUser(username, payload)
}

// SendNewMessage 推送新消息
func (h *Hub) SendNewMessage(username string, msg *model.Message) bool {
	return h.push(username, "new_message", msg)
}

// SendReadReceipt 推送已读回执给发送者
func (h *Hub) SendReadReceipt(username string, msg *model.Message) bool {
	return h.push(username, "read_receipt", gin.H{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"read_at":         msg.ReadAt,
	})
}

// SendConversationUpdate 推送会话更新（最后一条消息和未读数）
func (h *Hub) SendConversationUpdate(username string, conv *model.Conversation, unreadCount int) bool {
	return h.push(username, "conversation_update", gin.H{
		"conversation_id":   conv.ID,
		"last_message_text": conv.LastMessageText,
		"updated_at":        conv.UpdatedAt,
		"unread_count":      unreadCount,
	})
}

// WSMessage WebSocket 消息格式
type WSMessage struct {
	Type string          `json:"type"` // 'message' | 'read' | 'read_conversation' | 'heartbeat'
	Data json.RawMessage `json:"data"`
}

// HandleWebSocket 处理 WebSocket 连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			utils.Unauthorized(c, "missing token")
			return
		}

		username, err := middleware.ValidateToken(tokenString)
		if err != nil {
			utils.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Error("WebSocket upgrade failed", zap.String("username", username), zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New(),
			Username: username,
			Conn:     conn,
			Send:     make(chan []byte, 256),
			Hub:      hub,
		}

		if !hub.Register(client) {
			return
		}

		go client.readPump()
		go client.writePump()
	}
}

// trySend 非阻塞发送，已关闭或缓冲区满时返回 false
func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// readPump 从 WebSocket 读取消息
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebSocket unexpected close", zap.String("username", c.Username), zap.Error(err))
			}
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			c.sendError("Invalid JSON format")
			continue
		}

		switch wsMsg.Type {
		case "heartbeat":
			c.trySend([]byte(`{"type":"heartbeat_ack"}`))
		case "message":
			c.handleSendMessage(wsMsg.Data)
		case "read":
			c.handleMarkAsRead(wsMsg.Data)
		case "read_conversation":
			c.handleMarkConversationRead(wsMsg.Data)
		default:
			c.sendError("Unknown message type")
		}
	}
}

// writePump 向 WebSocket 写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// handleSendMessage 处理发送消息，接收方通过 MessageNotifier 收到推送
func (c *Client) handleSendMessage(data json.RawMessage) {
	var req service.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("Invalid message format")
		return
	}

	message, err := c.Hub.msgSvc.SendMessage(context.Background(), c.Username, &req)
	middleware.RecordOperation("message_sent", err)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	if payload, err := json.Marshal(gin.H{"type": "message_sent", "data": message}); err == nil {
		c.trySend(payload)
	}
}

// handleMarkAsRead 标记单条消息已读
func (c *Client) handleMarkAsRead(data json.RawMessage) {
	var req struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == uuid.Nil {
		c.sendError("Invalid read format")
		return
	}

	if _, err := c.Hub.msgSvc.MarkRead(context.Background(), c.Username, req.MessageID); err != nil {
		c.sendError(err.Error())
	}
}

// handleMarkConversationRead 标记整个会话已读
func (c *Client) handleMarkConversationRead(data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		c.sendError("Invalid read format")
		return
	}

	if _, err := c.Hub.convSvc.MarkConversationRead(context.Background(), c.Username, req.ConversationID); err != nil {
		c.sendError(err.Error())
	}
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	responseData, _ := json.Marshal(gin.H{
		"type": "error",
		"data": gin.H{"message": errMsg},
	})
	if !c.trySend(responseData) {
		c.Hub.logger.Warn("Failed to send error message, channel full", zap.String("username", c.Username))
	}
}
