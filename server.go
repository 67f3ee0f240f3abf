package partyhub

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/hivegate/partyhub/partyerr"
	"github.com/hivegate/partyhub/wire"
)

// clientCommand is what a connected client sends down the socket.
type clientCommand struct {
	Action  string `json:"action"`
	PartyID string `json:"partyId,omitempty"`
	User    string `json:"user,omitempty"`
	Text    string `json:"text,omitempty"`
	Seq     int64  `json:"seq,omitempty"`
}

type ackPayload struct {
	Seq     int64  `json:"seq"`
	PartyID string `json:"partyId,omitempty"`
}

type errorPayload struct {
	Seq  int64  `json:"seq"`
	Code int    `json:"code"`
	Name string `json:"name"`
}

// ServerCfgs wires the websocket front of the party service.
type ServerCfgs struct {
	Upgrader Upgrader
	Clients  *ClientDirectory
	Hub      *Hub
	Parties  *PartyService
	Logger   zerolog.Logger
}

// Server upgrades client sockets, feeds their commands to the party
// service and turns connection loss into the departure callback.
// Authentication happens upstream; the identity arrives in the request.
type Server struct {
	upgrader Upgrader
	clients  *ClientDirectory
	hub      *Hub
	parties  *PartyService

	log zerolog.Logger
}

func NewServer(cfg ServerCfgs) *Server {
	if cfg.Upgrader == nil {
		cfg.Upgrader = DefaultUpgrader
	}
	return &Server{
		upgrader: cfg.Upgrader,
		clients:  cfg.Clients,
		hub:      cfg.Hub,
		parties:  cfg.Parties,
		log:      cfg.Logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user")
	if userID == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	clientID := query.Get("client")
	if clientID == "" {
		clientID = ksuid.New().String()
	}
	clientType := ParseClientType(query.Get("type"))

	socket, err := s.upgrader(w, r)
	if err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("websocket upgrade failed")
		return
	}

	conn := NewConn(socket, s.hub, userID, clientID, clientType)
	if old := s.clients.Register(conn); old != nil {
		old.Close()
	}
	if err := s.hub.OnConnect(conn); err != nil {
		s.log.Error().Err(err).Str("conn", conn.ID()).Msg("exchange rejected connection")
		s.clients.Remove(conn)
		conn.Close()
		return
	}

	// Every session listens on its user's notify channel so invite
	// alerts reach it in real time.
	if err := conn.Subscribe(wire.NotifyChannel(userID), nil, nil); err != nil {
		s.log.Warn().Err(err).Str("conn", conn.ID()).Msg("notify subscription failed")
	}

	s.log.Info().Str("conn", conn.ID()).Str("type", clientType.String()).Msg("client connected")
	s.readLoop(r.Context(), conn)
}

func (s *Server) readLoop(ctx context.Context, conn *Conn) {
	defer func() {
		s.parties.RemoveClientFromParty(conn.UserID(), conn.ClientID())
		s.clients.Remove(conn)
		conn.Close()
		s.log.Info().Str("conn", conn.ID()).Msg("client disconnected")
	}()

	for {
		data, err := conn.socket.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(conn, cmd.Seq, partyerr.DefaultErr.Err("bad command"))
			continue
		}
		s.dispatch(ctx, conn, cmd)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *Conn, cmd clientCommand) {
	userID, clientID := conn.UserID(), conn.ClientID()

	switch cmd.Action {
	case "invite":
		party, err := s.parties.Invite(ctx, userID, clientID, cmd.User)
		if err != nil {
			s.reply(conn, cmd.Seq, err)
			return
		}
		s.ack(conn, cmd.Seq, party.ID)
	case "decline":
		s.parties.Decline(ctx, cmd.PartyID, userID)
		s.ack(conn, cmd.Seq, cmd.PartyID)
	case "uninvite":
		s.reply(conn, cmd.Seq, s.parties.RemoveInvite(ctx, cmd.PartyID, userID, cmd.User))
	case "accept":
		s.reply(conn, cmd.Seq, s.parties.AcceptInvite(ctx, cmd.PartyID, userID, clientID))
	case "leave":
		s.reply(conn, cmd.Seq, s.parties.LeaveParty(ctx, cmd.PartyID, userID, clientID))
	case "kick":
		s.reply(conn, cmd.Seq, s.parties.KickPlayer(ctx, cmd.PartyID, userID, cmd.User))
	case "changeLeader":
		s.reply(conn, cmd.Seq, s.parties.ChangeLeader(ctx, cmd.PartyID, userID, cmd.User))
	case "chat":
		s.reply(conn, cmd.Seq, s.parties.SendChatMessage(ctx, cmd.PartyID, userID, cmd.Text))
	default:
		s.reply(conn, cmd.Seq, partyerr.DefaultErr.Err("unknown action "+cmd.Action))
	}
}

// reply sends an ack for nil errors, a coded error otherwise.
func (s *Server) reply(conn *Conn, seq int64, err error) {
	if err == nil {
		s.ack(conn, seq, "")
		return
	}
	code := partyerr.CodeOf(err)
	conn.WriteServerMessage(wire.ServerMessage{
		Event: "error",
		Body:  wire.Marshal(errorPayload{Seq: seq, Code: int(code), Name: code.Name()}),
	})
}

func (s *Server) ack(conn *Conn, seq int64, partyID string) {
	conn.WriteServerMessage(wire.ServerMessage{
		Event: "ack",
		Body:  wire.Marshal(ackPayload{Seq: seq, PartyID: partyID}),
	})
}
