package wire

import "strings"

// Channel prefixes. The part before the first dot is the topic type
// reported to metrics.
const (
	prefixParty  = "party."
	prefixNotify = "notify."
)

// PartyChannel returns the pub/sub channel for a party's events.
func PartyChannel(partyID string) string {
	return prefixParty + partyID
}

// NotifyChannel returns the per-user channel carrying notification pushes.
func NotifyChannel(userID string) string {
	return prefixNotify + userID
}

// ChannelType extracts the topic type from a channel name.
func ChannelType(channel string) string {
	if i := strings.IndexByte(channel, '.'); i > 0 {
		return channel[:i]
	}
	return channel
}
