package server

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dmchat/internal/chat"
	"dmchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is a single authenticated websocket connection. One user may hold
// several clients at once (multi-device); each gets its own opaque id.
type Client struct {
	id          string
	conn        *websocket.Conn
	broadcaster *Broadcaster
	chat        *chat.Service
	log         *log.Logger
	identity    types.Identity
	send        chan *ServerMessage
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewClient(id string, identity types.Identity, conn *websocket.Conn, b *Broadcaster, svc *chat.Service, l *log.Logger) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		broadcaster: b,
		chat:        svc,
		log:         l,
		identity:    identity,
		send:        make(chan *ServerMessage, 256),
		stop:        make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %q", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for connection %q", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if msg.Send != nil {
			c.handleSend(&msg)
		} else {
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// handleSend routes a message from the live transport through the same
// durable path as the HTTP API. The broadcast only happens after the store
// succeeds; there is no transport-only delivery.
func (c *Client) handleSend(msg *ClientMessage) {
	stored, err := c.chat.Send(c.identity, msg.Send.ReceiverId, msg.Send.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyText):
			c.queueMessage(ErrBadRequest(msg.Id, err.Error()))
		default:
			c.log.Printf("send from connection %q: %v", c.id, err)
			c.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"message_id": stored.Id}))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to queue message for connection %q, channel is full", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.broadcaster.DeregisterClient(c)
	c.stopClient()
}
