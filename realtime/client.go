package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrSocketClosed   = errors.New("socket closed")
	ErrSendBufferFull = errors.New("socket send buffer full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is a gorilla connection driven by a read pump and a write pump.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	sessions *RoomSessions
	info     Connection
	logger   *slog.Logger
}

func NewClient(conn *websocket.Conn, sessions *RoomSessions, info Connection, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		sessions: sessions,
		info:     info,
		logger:   logger.With(slog.String("socket_id", id)),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues data without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrSocketClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrSocketClosed
	default:
		return ErrSendBufferFull
	}
}

// Close asks the write pump to send a close frame and drop the connection.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Run registers the client and blocks until the connection ends. ctx should
// outlive the HTTP request that performed the upgrade.
func (c *Client) Run(ctx context.Context) {
	c.sessions.Connect(ctx, c, c.info)
	go c.WritePump()
	c.ReadPump(ctx)
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		_ = c.Close()
		c.sessions.Disconnect(ctx, c, c.info)
		c.logger.Debug("Client readPump closed", slog.String("room_id", c.info.RoomID), slog.String("lobby_id", c.info.LobbyID))
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected websocket close", slog.Any("error", err))
			}
			return
		}
		c.sessions.HandleMessage(ctx, c, c.info, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Error writing to client", slog.Any("error", err))
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Error sending ping", slog.Any("error", err))
				_ = c.Close()
				return
			}
		}
	}
}

// flush writes whatever was queued before Close, so a final notice such as
// tournament:aborted reaches the peer ahead of the close frame.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
