package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

const (
	// writeWait is the time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound message size
	maxMessageSize = 4096
)

// CloseUnauthorized is the close code sent when a connection fails
// token or membership validation
const CloseUnauthorized = 4003

// Client is one live connection to a session. All outbound events pass
// through a single buffered queue drained by one write pump, so a listener
// observes events in exactly the order they were published for its session.
// The queue's mutex orders every enqueue against the close of the queue, so
// a client dropped by the hub refuses further sends instead of panicking.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	actor     *models.Actor
	handler   *MessageHandler

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a client for an authorized connection. sendBuffer is the
// outbound queue length; a listener that falls this far behind is dropped.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID uuid.UUID, actor *models.Actor, handler *MessageHandler, sendBuffer int) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		actor:     actor,
		handler:   handler,
		send:      make(chan []byte, sendBuffer),
	}
}

// SessionID returns the session this client is connected to
func (c *Client) SessionID() uuid.UUID {
	return c.sessionID
}

// Actor returns the authenticated actor behind this connection
func (c *Client) Actor() *models.Actor {
	return c.actor
}

// Start launches the read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues an envelope for this client only. Returns false when the
// client's queue is full.
func (c *Client) Send(envelope Envelope) bool {
	data, err := json.Marshal(envelope)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("event_type", envelope.Type).
			Msg("Failed to marshal envelope for client")
		return false
	}
	return c.enqueue(data)
}

// enqueue offers raw bytes to the outbound queue without blocking. Returns
// false when the queue is full or already closed.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once; the write pump then
// sends a close frame and tears the connection down. Enqueues racing the
// close are serialized by the queue's mutex and fail cleanly afterwards.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// readPump reads inbound messages and dispatches them to the protocol
// handler. Handler errors go back to this client as an error envelope; the
// connection stays open. The pump exits on transport close, deregistering
// promptly so future broadcasts skip this listener.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug().
					Err(err).
					Str("session_id", c.sessionID.String()).
					Msg("Listener connection closed unexpectedly")
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.Send(errorEnvelope("bad_request", "Message is not a valid envelope"))
			continue
		}

		if err := c.handler.Handle(context.Background(), c, envelope); err != nil {
			c.Send(errorEnvelopeFor(err))
		}
	}
}

// writePump drains the outbound queue onto the connection and keeps the
// peer alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
