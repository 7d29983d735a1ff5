package server

import (
	"context"
	"log"

	"dmchat/internal/stats"
	"dmchat/internal/types"
)

type stopReq struct {
	done chan struct{}
}

// Broadcaster fans stored messages out to every connected client. A single
// run loop owns the subscriber set, so registration, removal and delivery
// are serialized without locks.
type Broadcaster struct {
	log            *log.Logger
	stats          stats.StatsProvider
	clients        map[string]*Client
	registerChan   chan *Client
	deregisterChan chan *Client
	publishChan    chan *ServerMessage
	stop           chan stopReq
	done           chan struct{}
}

func NewBroadcaster(logger *log.Logger, su stats.StatsProvider) *Broadcaster {
	su.RegisterMetric("ActiveConnections")
	su.RegisterMetric("MessagesBroadcast")
	su.RegisterMetric("MessagesDropped")

	return &Broadcaster{
		log:            logger,
		stats:          su,
		clients:        make(map[string]*Client),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		publishChan:    make(chan *ServerMessage, 256),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}
}

func (b *Broadcaster) Run() {
	for {
		select {
		case c := <-b.registerChan:
			b.log.Printf("adding connection %q for %q", c.id, c.identity.Name)
			b.clients[c.id] = c
			b.stats.Incr("ActiveConnections")
		case c := <-b.deregisterChan:
			if _, ok := b.clients[c.id]; ok {
				b.log.Printf("removing connection %q for %q", c.id, c.identity.Name)
				delete(b.clients, c.id)
				b.stats.Decr("ActiveConnections")
			}
		case msg := <-b.publishChan:
			b.fanOut(msg)
		case req := <-b.stop:
			b.log.Println("closing all connections")
			for _, c := range b.clients {
				c.stopClient()
			}
			b.clients = make(map[string]*Client)
			close(b.done)
			close(req.done)
			return
		}
	}
}

// fanOut delivers a message to every live connection. A connection whose
// send queue is full is evicted so one slow subscriber cannot hold up the
// rest.
func (b *Broadcaster) fanOut(msg *ServerMessage) {
	for id, c := range b.clients {
		if !c.queueMessage(msg) {
			b.log.Printf("evicting connection %q: send queue full", id)
			delete(b.clients, id)
			b.stats.Decr("ActiveConnections")
			b.stats.Incr("MessagesDropped")
			c.stopClient()
		}
	}
	b.stats.Incr("MessagesBroadcast")
}

// Broadcast enqueues a stored message for delivery to all connected
// clients. Calls are delivered in the order they complete here.
func (b *Broadcaster) Broadcast(msg types.Message) {
	b.publishChan <- &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Message: &msg,
	}
}

func (b *Broadcaster) RegisterClient(c *Client) {
	select {
	case b.registerChan <- c:
	case <-b.done:
	}
}

// DeregisterClient removes a connection from the subscriber set. It returns
// immediately once the run loop has stopped, so a read pump unwinding after
// shutdown does not hang on a loop that no longer receives.
func (b *Broadcaster) DeregisterClient(c *Client) {
	select {
	case b.deregisterChan <- c:
	case <-b.done:
	}
}

func (b *Broadcaster) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case b.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
