package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gambitchess/gambit/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Maximum inbound message size in bytes
	maxMessageSize = 4096
	// Outbound queue depth per connection
	sendBuffer = 64
)

// Client is one registered transport connection for a (session, user) pair.
// A buffered send channel drained by a single write loop gives FIFO delivery
// per destination with at most one in-flight write.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sessionID model.SessionID
	userID    model.UserID

	// Connections that miss a pong past this deadline are torn down;
	// pings go out at 90% of it
	pongWait   time.Duration
	pingPeriod time.Duration

	// mu serializes enqueue against shutdown: the hub delivers to clients
	// from a lock-released snapshot, so a disconnect or reconnect can
	// close this client at any point between lookup and delivery
	mu     sync.Mutex
	closed bool
	send   chan []byte

	logger *slog.Logger
}

// NewClient wraps an upgraded websocket connection
func NewClient(hub *Hub, conn *websocket.Conn, sessionID model.SessionID, userID model.UserID, logger *slog.Logger) *Client {
	pongWait := hub.cfg.PongWait
	if pongWait <= 0 {
		pongWait = DefaultConfig().PongWait
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		sessionID:  sessionID,
		userID:     userID,
		pongWait:   pongWait,
		pingPeriod: (pongWait * 9) / 10,
		send:       make(chan []byte, sendBuffer),
		logger: logger.With(
			slog.String("session_id", string(sessionID)),
			slog.String("user_id", string(userID)),
		),
	}
}

// SessionID returns the session this client is registered under
func (c *Client) SessionID() model.SessionID { return c.sessionID }

// UserID returns the user this client is registered for
func (c *Client) UserID() model.UserID { return c.userID }

// enqueue queues frame bytes for delivery. A frame for a closed client is
// dropped, as is a frame that finds the buffer full; the stored move log,
// not the hub, is the system of record.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("frame dropped, client buffer full")
	}
}

// shutdown closes the send channel, which makes the write loop send a close
// frame and tear the connection down. Safe to call more than once and
// concurrently with enqueue.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run pumps the connection until it drops. It blocks in the read loop;
// the write loop runs alongside. On return the client is unregistered and
// the connection closed. Only this client's loops stop on disconnect.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
		c.hub.HandleFrame(ctx, c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
