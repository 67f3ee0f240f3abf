package partyhub

import (
	"errors"
	"sync"

	"github.com/hivegate/partyhub/metrics"
	"github.com/hivegate/partyhub/wire"
)

// ClientType says what kind of session a connection is. Party membership
// is restricted to game clients; web sessions still receive notifications.
type ClientType uint8

const (
	ClientGame ClientType = iota + 1
	ClientWeb
)

func ParseClientType(s string) ClientType {
	if s == "game" {
		return ClientGame
	}
	return ClientWeb
}

func (t ClientType) String() string {
	if t == ClientGame {
		return "game"
	}
	return "web"
}

var ErrWrite = errors.New("write closed")

// InitFactory builds the synthetic event a connection receives right after
// subscribing to a channel, before any broadcast reaches it.
type InitFactory func() (wire.ServerMessage, error)

// Conn is one addressable client session for a user. A user may hold
// several, each identified by its own client id.
type Conn struct {
	userID     string
	clientID   string
	clientType ClientType

	socket Socket
	hub    *Hub

	writeMutex sync.Mutex
	closed     bool

	subsMutex sync.Mutex
	subs      map[string]func() // channel -> onUnsubscribe hook
}

func NewConn(socket Socket, hub *Hub, userID, clientID string, clientType ClientType) *Conn {
	return &Conn{
		userID:     userID,
		clientID:   clientID,
		clientType: clientType,
		socket:     socket,
		hub:        hub,
		subs:       make(map[string]func()),
	}
}

// ID identifies the connection itself, not the user, so a broadcast can
// except a single session of a multi-session user.
func (c *Conn) ID() string {
	return c.userID + "#" + c.clientID
}

func (c *Conn) String() string { return c.ID() }

func (c *Conn) UserID() string { return c.userID }

func (c *Conn) ClientID() string { return c.clientID }

func (c *Conn) ClientType() ClientType { return c.clientType }

// Is reports whether connID addresses this connection.
func (c *Conn) Is(connID string) bool {
	return connID != "" && c.ID() == connID
}

// WriteServerMessage marshals and sends one envelope to the remote side.
// Writes are serialized, the underlying sockets allow a single writer.
func (c *Conn) WriteServerMessage(msg wire.ServerMessage) bool {
	data, err := msg.Serialize()
	if err != nil {
		return false
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if c.closed {
		return false
	}
	return c.socket.WriteMessage(data) == nil
}

// Subscribe delivers the init event to this connection alone, then joins
// the channel's fan-out set. The caller serializes against publishes on
// the same channel, so no event can slip in between the two steps.
func (c *Conn) Subscribe(channel string, init InitFactory, onUnsubscribe func()) error {
	if init != nil {
		msg, err := init()
		if err != nil {
			return err
		}
		msg.Channel = channel
		if !c.WriteServerMessage(msg) {
			return ErrWrite
		}
	}

	c.subsMutex.Lock()
	c.subs[channel] = onUnsubscribe
	c.subsMutex.Unlock()

	c.hub.subscribe(c, channel)
	metrics.RecordHubSubscription(wire.ChannelType(channel))
	return nil
}

// Unsubscribe leaves the channel and runs the teardown hook, if any.
func (c *Conn) Unsubscribe(channel string) {
	c.subsMutex.Lock()
	hook, ok := c.subs[channel]
	delete(c.subs, channel)
	c.subsMutex.Unlock()
	if !ok {
		return
	}

	c.hub.unsubscribe(c, channel)
	metrics.RecordHubUnsubscription(wire.ChannelType(channel))
	if hook != nil {
		hook()
	}
}

// Subscribed reports whether the connection is on the channel.
func (c *Conn) Subscribed(channel string) bool {
	c.subsMutex.Lock()
	defer c.subsMutex.Unlock()
	_, ok := c.subs[channel]
	return ok
}

// Close tears down every subscription and the socket. Safe to call twice.
func (c *Conn) Close() {
	c.writeMutex.Lock()
	if c.closed {
		c.writeMutex.Unlock()
		return
	}
	c.closed = true
	c.writeMutex.Unlock()

	c.subsMutex.Lock()
	channels := make([]string, 0, len(c.subs))
	for channel := range c.subs {
		channels = append(channels, channel)
	}
	c.subsMutex.Unlock()
	for _, channel := range channels {
		c.Unsubscribe(channel)
	}

	c.hub.dropConn(c)
	_ = c.socket.Close()
}

// ClientDirectory resolves a (user, client) pair to its live connection.
type ClientDirectory struct {
	mutex sync.RWMutex
	conns map[clientKey]*Conn
}

func NewClientDirectory() *ClientDirectory {
	return &ClientDirectory{conns: make(map[clientKey]*Conn)}
}

// GetByID returns the active connection, nil when the client is offline.
func (d *ClientDirectory) GetByID(userID, clientID string) *Conn {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.conns[clientKey{userID, clientID}]
}

// Register adds a connection, displacing a stale one under the same key.
func (d *ClientDirectory) Register(c *Conn) *Conn {
	key := clientKey{c.userID, c.clientID}
	d.mutex.Lock()
	old := d.conns[key]
	d.conns[key] = c
	d.mutex.Unlock()

	metrics.RecordHubClientNew()
	return old
}

// Remove drops the connection unless the slot was already retaken.
func (d *ClientDirectory) Remove(c *Conn) {
	key := clientKey{c.userID, c.clientID}
	d.mutex.Lock()
	if d.conns[key] == c {
		delete(d.conns, key)
	}
	d.mutex.Unlock()

	metrics.RecordHubClientClose()
}

// ForUser lists every live connection of a user.
func (d *ClientDirectory) ForUser(userID string) []*Conn {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	var out []*Conn
	for key, conn := range d.conns {
		if key.userID == userID {
			out = append(out, conn)
		}
	}
	return out
}
