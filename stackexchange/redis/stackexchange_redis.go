package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	partyhub "github.com/hivegate/partyhub"
	"github.com/hivegate/partyhub/wire"
)

// Config is used on the `StackExchange` package-level function.
// Can be used to customize the redis client dialer.
type Config = redis.UniversalOptions
type Client = redis.UniversalClient

type StackExchangeCfgs struct {
	RedisConfig Config
	// Channel is the prefix for publish and subscribe. If you are using
	// one redis server for multiple partyhub servers, use a different
	// prefix for each deployment, otherwise events published by one
	// deployment reach the clients of all of them.
	Channel string
	Logger  zerolog.Logger
}

// StackExchange is a `partyhub.StackExchange` for redis.
type StackExchange struct {
	prefixChannel string

	client Client

	subscribers map[*partyhub.Conn]*subscriber

	addSubscriber chan *subscriber
	subscribe     chan subscribeAction
	unsubscribe   chan unsubscribeAction
	delSubscriber chan closeAction

	close chan struct{}

	log zerolog.Logger
}

type (
	subscriber struct {
		conn   *partyhub.Conn
		pubSub *redis.PubSub
	}

	subscribeAction struct {
		conn    *partyhub.Conn
		channel string
	}

	unsubscribeAction struct {
		conn    *partyhub.Conn
		channel string
	}

	closeAction struct {
		conn *partyhub.Conn
	}
)

var _ partyhub.StackExchange = (*StackExchange)(nil)

// NewStackExchange returns a new redis StackExchange.
func NewStackExchange(cfg StackExchangeCfgs) (*StackExchange, error) {
	rdb := redis.NewUniversalClient(&cfg.RedisConfig)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	exc := &StackExchange{
		client:        rdb,
		prefixChannel: cfg.Channel,
		log:           cfg.Logger,

		subscribers:   make(map[*partyhub.Conn]*subscriber),
		addSubscriber: make(chan *subscriber),
		delSubscriber: make(chan closeAction),
		subscribe:     make(chan subscribeAction),
		unsubscribe:   make(chan unsubscribeAction),
		close:         make(chan struct{}),
	}

	go exc.run()
	return exc, nil
}

func (exc *StackExchange) Close() {
	close(exc.close)
}

func (exc *StackExchange) run() {
	for {
		select {
		case s := <-exc.addSubscriber:
			exc.subscribers[s.conn] = s
		case m := <-exc.subscribe:
			if sub, ok := exc.subscribers[m.conn]; ok {
				ctx, cancel := exc.ctx()
				err := sub.pubSub.Subscribe(ctx, exc.getChannel(m.channel))
				cancel()
				if err != nil {
					exc.log.Warn().Err(err).Str("conn", m.conn.ID()).Str("channel", m.channel).Msg("redis subscribe failed")
					continue
				}
				exc.log.Debug().Str("conn", m.conn.ID()).Str("channel", exc.getChannel(m.channel)).Msg("subscribed")
			}
		case m := <-exc.unsubscribe:
			if sub, ok := exc.subscribers[m.conn]; ok {
				ctx, cancel := exc.ctx()
				if err := sub.pubSub.Unsubscribe(ctx, exc.getChannel(m.channel)); err != nil {
					exc.log.Warn().Err(err).Str("conn", m.conn.ID()).Str("channel", m.channel).Msg("redis unsubscribe failed")
				}
				cancel()
			}
		case m := <-exc.delSubscriber:
			if sub, ok := exc.subscribers[m.conn]; ok {
				_ = sub.pubSub.Close()
				delete(exc.subscribers, m.conn)
			}
		case <-exc.close:
			for _, sub := range exc.subscribers {
				_ = sub.pubSub.Close()
			}
			exc.client.Close()
			return
		}
	}
}

// OnConnect prepares the connection's redis subscriber.
// It's called automatically on incoming client connections.
func (exc *StackExchange) OnConnect(c *partyhub.Conn) error {
	pubSub := exc.client.Subscribe(context.Background())
	go func() {
		for msg := range pubSub.Channel() {
			exc.handleMessage(msg, c)
		}
	}()

	exc.addSubscriber <- &subscriber{
		conn:   c,
		pubSub: pubSub,
	}
	return nil
}

// OnDisconnect terminates the connection's subscriber that was created on
// the `OnConnect` method. It unsubscribes from all opened channels and
// closes the internal read messages channel.
func (exc *StackExchange) OnDisconnect(c *partyhub.Conn) {
	exc.delSubscriber <- closeAction{conn: c}
}

// Subscribe subscribes the connection to a specific channel.
func (exc *StackExchange) Subscribe(c *partyhub.Conn, channel string) {
	exc.subscribe <- subscribeAction{
		conn:    c,
		channel: channel,
	}
}

// Unsubscribe unsubscribes from a specific channel.
func (exc *StackExchange) Unsubscribe(c *partyhub.Conn, channel string) {
	exc.unsubscribe <- unsubscribeAction{
		conn:    c,
		channel: channel,
	}
}

// Publish publishes a message through redis so every node's subscribers
// of the channel receive it.
func (exc *StackExchange) Publish(channel string, msg wire.ServerMessage) error {
	if channel == "" {
		return ErrChannelEmpty
	}

	data, err := msg.Serialize()
	if err != nil {
		return err
	}

	ctx, cancel := exc.ctx()
	defer cancel()
	return exc.client.Publish(ctx, exc.getChannel(channel), data).Err()
}

// prefix.type.id
func (exc *StackExchange) getChannel(key string) string {
	return fmt.Sprintf("%s.%s", exc.prefixChannel, key)
}

func (exc *StackExchange) handleMessage(redisMsg *redis.Message, conn *partyhub.Conn) {
	if redisMsg == nil {
		return
	}

	msg, err := wire.DeserializeServerMessage([]byte(redisMsg.Payload))
	if err != nil {
		exc.log.Warn().Err(err).Str("channel", redisMsg.Channel).Msg("bad payload on redis channel")
		return
	}
	if conn.Is(msg.ExceptSender) {
		return
	}

	conn.WriteServerMessage(msg)
}

func (exc *StackExchange) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

var (
	ErrChannelEmpty = errors.New("we do not accept messages with empty channel")
)
