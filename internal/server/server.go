package server

import (
	"context"
	"log"
	"sync"

	"github.com/classlink/go-classchat/internal/database"
	"github.com/classlink/go-classchat/internal/stats"
	"github.com/classlink/go-classchat/internal/types"
)

type stopReq struct {
	done chan struct{}
}

// delivery carries a persisted message record back into the event loop so
// the recipient's connection is resolved at delivery time, not at the time
// the publish was received.
type delivery struct {
	msg    *ClientMessage
	record database.Message
}

type ChatServer struct {
	log            *log.Logger
	db             database.ClassChatRepository
	stats          stats.StatsProvider
	directory      *Directory
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	attachChan     chan *Client
	deRegisterChan chan *Client
	registerChan   chan *ClientMessage
	publishChan    chan *ClientMessage
	typingChan     chan *ClientMessage
	deliveryChan   chan *delivery
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.ClassChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		directory:      NewDirectory(),
		clients:        make(map[*Client]struct{}),
		attachChan:     make(chan *Client, 64),
		deRegisterChan: make(chan *Client, 64),
		registerChan:   make(chan *ClientMessage, 256),
		publishChan:    make(chan *ClientMessage, 256),
		typingChan:     make(chan *ClientMessage, 256),
		deliveryChan:   make(chan *delivery, 256),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}

	for _, metric := range []string{
		"NumConnections",
		"NumOnlineUsers",
		"NumMessagesSent",
		"NumMessagesDelivered",
		"NumTypingEvents",
	} {
		cs.stats.RegisterMetric(metric)
	}

	return cs, nil
}

// RegisterClient attaches a freshly upgraded connection to the server. The
// connection stays presence-invisible until it sends a register event.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.attachChan <- c
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.attachChan:
			cs.log.Printf("adding connection %q for user %q", client.connId, client.user.Name)
			cs.addClient(client)
			cs.stats.Incr("NumConnections")
		case client := <-cs.deRegisterChan:
			cs.handleDisconnect(client)
		case msg := <-cs.registerChan:
			cs.handleRegister(msg)
		case msg := <-cs.publishChan:
			cs.handlePublish(msg)
		case d := <-cs.deliveryChan:
			cs.handleDelivery(d)
		case msg := <-cs.typingChan:
			cs.handleTyping(msg)
		case req := <-cs.stop:
			cs.log.Println("shutting down chat server")
			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(cs.done)
			close(req.done)
			return
		}
	}
}

// handleRegister binds the sending connection to its authenticated user.
// Registration is last-write-wins: a connection previously bound to the same
// user is notified and left connected but presence-invisible.
func (cs *ChatServer) handleRegister(msg *ClientMessage) {
	c := msg.client

	prev := cs.directory.Register(c.user.Id, c)
	if prev != nil {
		cs.log.Printf("user %d rebound from connection %q to %q", c.user.Id, prev.connId, c.connId)
		prev.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				SessionReplaced: &SessionReplaced{ConnectionId: c.connId},
			},
		})
	} else {
		cs.stats.Incr("NumOnlineUsers")
	}

	c.queueMessage(NoErrOK(msg.Id, &OnlineUsers{Users: cs.directory.OnlineUsers()}))
	cs.broadcastOnlineUsers()
}

// handleDisconnect removes a connection. The directory entry is only dropped
// if this connection still owns it, so a stale connection's disconnect never
// evicts a newer registration. A repeat disconnect is a no-op.
func (cs *ChatServer) handleDisconnect(c *Client) {
	cs.clientsLock.Lock()
	_, known := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if userId, ok := cs.directory.Unregister(c); ok {
		cs.log.Printf("user %d went offline", userId)
		cs.stats.Decr("NumOnlineUsers")
		cs.broadcastOnlineUsers()
	}

	if !known {
		// repeat disconnect of an already-removed connection
		return
	}

	cs.log.Printf("removing connection %q for user %q", c.connId, c.user.Name)
	cs.stats.Decr("NumConnections")
}

// handlePublish persists the message off the event loop and posts the stored
// record back for delivery. The sender must be the registered connection for
// its user.
func (cs *ChatServer) handlePublish(msg *ClientMessage) {
	c := msg.client
	if cur, ok := cs.directory.Lookup(c.user.Id); !ok || cur != c {
		c.queueMessage(ErrNotRegistered(msg.Id))
		return
	}

	cs.stats.Incr("NumMessagesSent")
	go cs.persistMessage(msg)
}

func (cs *ChatServer) persistMessage(msg *ClientMessage) {
	record, err := cs.db.CreateMessage(database.CreateMessageParams{
		SenderId:   msg.client.user.Id,
		ReceiverId: msg.Publish.ReceiverId,
		Body:       msg.Publish.Body,
	})
	if err != nil {
		cs.log.Println("error saving message:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	select {
	case cs.deliveryChan <- &delivery{msg: msg, record: record}:
	case <-cs.done:
	}
}

// handleDelivery fans a stored record out to the recipient's and sender's
// current connections. Both are re-resolved here because either may have
// changed while the message was being persisted. An offline recipient means
// the message stays persisted only.
func (cs *ChatServer) handleDelivery(d *delivery) {
	d.msg.client.queueMessage(NoErrAccepted(d.msg.Id))

	out := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message: &types.Message{
			Id:         d.record.Id,
			SenderId:   d.record.SenderId,
			ReceiverId: d.record.ReceiverId,
			Body:       d.record.Body,
			CreatedAt:  d.record.CreatedAt,
		},
	}

	receiver, receiverOnline := cs.directory.Lookup(d.record.ReceiverId)
	if receiverOnline {
		receiver.queueMessage(out)
		cs.stats.Incr("NumMessagesDelivered")
	} else {
		cs.log.Printf("receiver %d is offline, message %d saved only", d.record.ReceiverId, d.record.Id)
	}

	// echo to the sender's current connection so all of the sender's UIs see
	// the message arrive on the same channel as the recipient
	if sender, ok := cs.directory.Lookup(d.record.SenderId); ok && sender != receiver {
		sender.queueMessage(out)
	}
}

// handleTyping forwards a transient typing signal to the recipient's current
// connection. Nothing is persisted; an offline recipient drops the signal.
func (cs *ChatServer) handleTyping(msg *ClientMessage) {
	c := msg.client
	if cur, ok := cs.directory.Lookup(c.user.Id); !ok || cur != c {
		c.queueMessage(ErrNotRegistered(msg.Id))
		return
	}

	cs.stats.Incr("NumTypingEvents")

	receiver, ok := cs.directory.Lookup(msg.Typing.ReceiverId)
	if !ok {
		return
	}

	receiver.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Typing: &TypingNotification{
				SenderId: c.user.Id,
				IsTyping: msg.Typing.IsTyping,
			},
		},
	})
}

// broadcastOnlineUsers sends the full online set to every connection,
// registered or not.
func (cs *ChatServer) broadcastOnlineUsers() {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			OnlineUsers: &OnlineUsers{Users: cs.directory.OnlineUsers()},
		},
	}

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	for client := range cs.clients {
		client.queueMessage(msg)
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
}

// OnlineUsers exposes the current presence snapshot.
func (cs *ChatServer) OnlineUsers() []int {
	return cs.directory.OnlineUsers()
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
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
