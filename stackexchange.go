package partyhub

import "github.com/hivegate/partyhub/wire"

// StackExchange is an optional interface that changes the way the hub
// sends messages to its clients, i.e. communication between multiple
// partyhub servers. See the "stackexchange" subpackages for the redis and
// NATS implementations.
type StackExchange interface {
	// OnConnect should prepare the connection's subscriber.
	// It's called automatically on incoming client connections.
	OnConnect(c *Conn) error
	// OnDisconnect should close the connection's subscriber that
	// was created on the `OnConnect` method.
	// It's called automatically when a connection goes offline,
	// manually by server or client or by network failure.
	OnDisconnect(c *Conn)

	// Subscribe should subscribe the connection to a specific channel.
	Subscribe(c *Conn, channel string)
	// Unsubscribe should unsubscribe from a specific channel.
	Unsubscribe(c *Conn, channel string)

	// Publish should publish a message through the exchange.
	// It's called automatically on hub broadcasting.
	Publish(channel string, msg wire.ServerMessage) error

	// Close should release the exchange's resources.
	Close()
}
