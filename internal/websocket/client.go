package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client is one WebSocket connection. A connection follows at most one
// player at a time; subscribing to a different player replaces the
// previous subscription.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	// Current player subscription. Touched only from readPump.
	playerID string
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.control(MessageTypeError, "", "invalid message format")
			continue
		}
		c.handleMessage(&msg)
	}
}

// handleMessage routes one inbound control message
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		if msg.PlayerID == "" {
			c.control(MessageTypeError, "", "player_id required for subscribe")
			return
		}
		if c.playerID != "" && c.playerID != msg.PlayerID {
			c.hub.Unsubscribe(c, c.playerID)
		}
		c.playerID = msg.PlayerID
		c.hub.Subscribe(c, msg.PlayerID)
		c.control("subscribed", msg.PlayerID, "")

	case MessageTypeUnsubscribe:
		if c.playerID == "" {
			return
		}
		c.hub.Unsubscribe(c, c.playerID)
		c.control("unsubscribed", c.playerID, "")
		c.playerID = ""

	case MessageTypePing:
		c.control(MessageTypePong, c.playerID, "")

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// control queues a protocol reply for the writer. Dropped when the
// send buffer is full; control replies are never worth blocking the
// read loop for.
func (c *Client) control(msgType, playerID, detail string) {
	msg := Message{
		Type:      msgType,
		PlayerID:  playerID,
		Timestamp: time.Now(),
	}
	if detail != "" {
		msg.Data = map[string]string{"detail": detail}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump writes queued messages and keepalive pings to the peer
func (c *Client) writePump() {
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
				// The hub closed the channel
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

// ServeWs handles WebSocket requests from peers
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id)
}
