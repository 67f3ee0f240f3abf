package partyhub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivegate/partyhub/metrics"
	"github.com/hivegate/partyhub/options"
	"github.com/hivegate/partyhub/wire"
)

// Publisher delivers an event to every subscriber of a channel,
// fire-and-forget.
type Publisher interface {
	Publish(channel string, msg wire.ServerMessage, opts ...options.BroadcastOption) error
}

// Hub tracks which local connections subscribe to which channels and fans
// events out to them. With a StackExchange attached, publishing and
// delivery go through the exchange instead, so every node in the
// deployment sees the event; the local table then only backs the
// subscription teardown hooks.
type Hub struct {
	mutex    sync.RWMutex
	channels map[string]map[*Conn]struct{}

	exchange StackExchange

	log zerolog.Logger
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Conn]struct{}),
		log:      logger,
	}
}

// UseStackExchange reroutes publish and delivery through exc.
func (h *Hub) UseStackExchange(exc StackExchange) {
	h.exchange = exc
}

// OnConnect prepares the connection's subscriber on the exchange, if any.
func (h *Hub) OnConnect(c *Conn) error {
	if h.exchange != nil {
		return h.exchange.OnConnect(c)
	}
	return nil
}

func (h *Hub) subscribe(c *Conn, channel string) {
	if h.exchange != nil {
		h.exchange.Subscribe(c, channel)
		return
	}

	h.mutex.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Conn]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	h.mutex.Unlock()
}

func (h *Hub) unsubscribe(c *Conn, channel string) {
	if h.exchange != nil {
		h.exchange.Unsubscribe(c, channel)
		return
	}

	h.mutex.Lock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mutex.Unlock()
}

func (h *Hub) dropConn(c *Conn) {
	if h.exchange != nil {
		h.exchange.OnDisconnect(c)
		return
	}

	h.mutex.Lock()
	for channel, subs := range h.channels {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mutex.Unlock()
}

// Publish broadcasts msg on channel.
func (h *Hub) Publish(channel string, msg wire.ServerMessage, opts ...options.BroadcastOption) error {
	start := time.Now()
	msg.Channel = channel
	if err := options.Apply(&msg, opts...); err != nil {
		return err
	}
	metrics.RecordEventPublished(msg.Event)

	if h.exchange != nil {
		err := h.exchange.Publish(channel, msg)
		metrics.RecordPublishLatency("exchange", start)
		if err != nil {
			h.log.Warn().Err(err).Str("channel", channel).Str("event", msg.Event).Msg("exchange publish failed")
		}
		return err
	}

	h.deliverLocal(channel, msg)
	metrics.RecordPublishLatency("local", start)
	return nil
}

func (h *Hub) deliverLocal(channel string, msg wire.ServerMessage) {
	h.mutex.RLock()
	subs := make([]*Conn, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		subs = append(subs, conn)
	}
	h.mutex.RUnlock()

	for _, conn := range subs {
		if conn.Is(msg.ExceptSender) {
			continue
		}
		conn.WriteServerMessage(msg)
	}
}

// NumSubscribers reports local channel membership, for tests.
func (h *Hub) NumSubscribers(channel string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.channels[channel])
}
