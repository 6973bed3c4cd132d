package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one accepted connection and its outbound queue.
type Client struct {
	id    string
	topic string
	hub   *Hub
	conn  *ws.Conn
	send  chan []byte
}

// NewClient gives the connection a fresh id. It is not joined yet.
func NewClient(hub *Hub, conn *ws.Conn, topic string) *Client {
	return &Client{
		id:    uuid.NewString(),
		topic: topic,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
	}
}

// ID returns the client's connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Enqueue queues data for this client only. It reports false if the
// buffer is full.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run joins the hub for the lifetime of the connection.
func (c *Client) Run(ctx context.Context) {
	c.hub.Join(c)
	defer c.hub.Leave(c)
	c.Serve(ctx)
}

// Serve blocks until the connection ends. Joining and leaving the hub is
// up to the caller.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// Inbound frames carry nothing; reading only notices the close.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump owns all writes, including keepalive pings.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// left the hub
				c.conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
