package options

import (
	"github.com/hivegate/partyhub/wire"
)

type Option[T any] func(*T) error

type BroadcastOption = Option[wire.ServerMessage]

func ToClient() BroadcastOption {
	return func(msg *wire.ServerMessage) error {
		msg.ToClient = true
		return nil
	}
}

func Except(except string) BroadcastOption {
	return func(msg *wire.ServerMessage) error {
		msg.ExceptSender = except
		return nil
	}
}

func From(from string) BroadcastOption {
	return func(msg *wire.ServerMessage) error {
		msg.From = from
		return nil
	}
}

// Apply runs every option over msg in order.
func Apply(msg *wire.ServerMessage, opts ...BroadcastOption) error {
	for _, opt := range opts {
		if err := opt(msg); err != nil {
			return err
		}
	}
	return nil
}
