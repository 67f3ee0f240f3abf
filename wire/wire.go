// Package wire holds the message envelope and event payloads exchanged
// between the party hub, its stack exchanges and connected clients.
// Everything here is JSON on the wire.
package wire

import "encoding/json"

// Party event names. Clients switch on these.
const (
	EventInit         = "init"
	EventInvite       = "invite"
	EventUninvite     = "uninvite"
	EventJoin         = "join"
	EventLeave        = "leave"
	EventKick         = "kick"
	EventLeaderChange = "leaderChange"
	EventChatMessage  = "chatMessage"
)

// Notification event names, published on a user's notify channel.
const (
	EventNotifyInvite = "notifyInvite"
)

// ServerMessage is the envelope for everything published on a channel.
// ExceptSender carries a connection ID that must not receive the message,
// so a publisher node can skip the originator after a cross-node round trip.
type ServerMessage struct {
	Channel      string          `json:"channel,omitempty"`
	Event        string          `json:"event"`
	Body         json.RawMessage `json:"body,omitempty"`
	From         string          `json:"from,omitempty"`
	ExceptSender string          `json:"exceptSender,omitempty"`
	ToClient     bool            `json:"toClient,omitempty"`
}

// Serialize encodes the envelope for a socket write or an exchange publish.
func (m ServerMessage) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

// DeserializeServerMessage decodes an envelope coming off an exchange.
func DeserializeServerMessage(data []byte) (ServerMessage, error) {
	var m ServerMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UserInfo is the display form of a user id inside event payloads.
type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PartySnapshot is the full observable state of a party.
type PartySnapshot struct {
	ID      string   `json:"id"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
	Invites []string `json:"invites"`
}

// InitPayload is delivered to a connection right after it subscribes to a
// party channel, so a client joining mid-session needs no separate query.
type InitPayload struct {
	Party     PartySnapshot `json:"party"`
	UserInfos []UserInfo    `json:"userInfos"`
	Time      int64         `json:"time"`
}

type InvitePayload struct {
	InvitedUser string   `json:"invitedUser"`
	UserInfo    UserInfo `json:"userInfo"`
	Time        int64    `json:"time"`
}

type UninvitePayload struct {
	Target string `json:"target"`
	Time   int64  `json:"time"`
}

type JoinPayload struct {
	User     string   `json:"user"`
	UserInfo UserInfo `json:"userInfo"`
	Time     int64    `json:"time"`
}

type LeavePayload struct {
	User string `json:"user"`
	Time int64  `json:"time"`
}

type KickPayload struct {
	Target string `json:"target"`
	Time   int64  `json:"time"`
}

type LeaderChangePayload struct {
	Leader string `json:"leader"`
	Time   int64  `json:"time"`
}

type ChatMessagePayload struct {
	From     string     `json:"from"`
	Time     int64      `json:"time"`
	Text     string     `json:"text"`
	Mentions []UserInfo `json:"mentions,omitempty"`
}

// NotifyInvitePayload is pushed on notify.<userID> when an invite
// notification becomes visible.
type NotifyInvitePayload struct {
	NotificationID string `json:"notificationId"`
	PartyID        string `json:"partyId"`
	From           string `json:"from"`
	Time           int64  `json:"time"`
}

// Marshal packs a payload into a ServerMessage body, panicking only on
// marshal failures which can come from programmer error alone.
func Marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
