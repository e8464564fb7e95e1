package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // terminals authenticate with a staff token and terminal cookie
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single check-in terminal connection.
type Client struct {
	ID           string
	ConventionID uuid.UUID
	UserID       uuid.UUID
	Role         string
	hub          *Hub
	conn         *websocket.Conn
	send         chan WSMessage
	logger       *zap.Logger
}

// Identify returns the staff member an upstream middleware authenticated.
type Identify func(c *gin.Context) (userID uuid.UUID, role string, ok bool)

// ServeWs handles the WebSocket upgrade for a terminal of the given convention.
// resolve maps the request to its convention (normally the current one).
func ServeWs(hub *Hub, logger *zap.Logger, identify Identify, resolve func(c *gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, role, ok := identify(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		conventionID, ok := resolve(c)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active convention"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:           uuid.New().String(),
			ConventionID: conventionID,
			UserID:       userID,
			Role:         role,
			hub:          hub,
			conn:         conn,
			send:         make(chan WSMessage, 64),
			logger:       logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only watches for disconnects and pings; terminals never push state over the socket.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		if msg.Event == "hello" {
			data, _ := json.Marshal(map[string]int{"count": c.hub.TerminalCount(c.ConventionID)})
			select {
			case c.send <- WSMessage{Event: EventTerminals, Data: data}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("terminal write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
