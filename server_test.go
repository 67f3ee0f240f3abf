package partyhub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivegate/partyhub/partyerr"
)

func newTestServer(r *rig) *Server {
	return NewServer(ServerCfgs{
		Clients: r.clients,
		Hub:     r.hub,
		Parties: r.svc,
		Logger:  zerolog.Nop(),
	})
}

func lastAck(t *testing.T, socket *fakeSocket) ackPayload {
	t.Helper()
	acks := socket.events("ack")
	require.NotEmpty(t, acks)
	var payload ackPayload
	require.NoError(t, json.Unmarshal(acks[len(acks)-1].Body, &payload))
	return payload
}

func lastError(t *testing.T, socket *fakeSocket) errorPayload {
	t.Helper()
	errs := socket.events("error")
	require.NotEmpty(t, errs)
	var payload errorPayload
	require.NoError(t, json.Unmarshal(errs[len(errs)-1].Body, &payload))
	return payload
}

func TestServeHTTPRequiresUser(t *testing.T) {
	r := newRig(t, rigOverrides{})
	srv := newTestServer(r)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, 400, rec.Code)
}

func TestDispatchInviteAcksWithPartyID(t *testing.T) {
	r := newRig(t, rigOverrides{})
	srv := newTestServer(r)
	conn, socket := r.connect(t, "alice", "c1", ClientGame)

	srv.dispatch(context.Background(), conn, clientCommand{Action: "invite", User: "bob", Seq: 7})

	ack := lastAck(t, socket)
	assert.Equal(t, int64(7), ack.Seq)
	assert.NotEmpty(t, ack.PartyID)
	_, err := r.svc.Manager().FindParty(ack.PartyID)
	assert.NoError(t, err)
}

func TestDispatchErrorCarriesCodeAndSeq(t *testing.T) {
	r := newRig(t, rigOverrides{})
	srv := newTestServer(r)
	conn, socket := r.connect(t, "alice", "c1", ClientGame)

	srv.dispatch(context.Background(), conn, clientCommand{Action: "kick", PartyID: "missing", User: "bob", Seq: 3})

	errPayload := lastError(t, socket)
	assert.Equal(t, int64(3), errPayload.Seq)
	assert.Equal(t, int(partyerr.NotFoundOrNotInParty), errPayload.Code)
	assert.Equal(t, partyerr.NotFoundOrNotInParty.Name(), errPayload.Name)
}

func TestDispatchUnknownAction(t *testing.T) {
	r := newRig(t, rigOverrides{})
	srv := newTestServer(r)
	conn, socket := r.connect(t, "alice", "c1", ClientGame)

	srv.dispatch(context.Background(), conn, clientCommand{Action: "teleport", Seq: 1})

	errPayload := lastError(t, socket)
	assert.Equal(t, int(partyerr.DefaultErr), errPayload.Code)
}

func TestDispatchLeaveAndDecline(t *testing.T) {
	r := setupTwoMemberParty(t)
	srv := newTestServer(r)
	party := r.partyOf(t, "alice", "c1")

	bob := r.clients.GetByID("bob", "c2")
	require.NotNil(t, bob)
	bobSocket := bob.socket.(*fakeSocket)

	srv.dispatch(context.Background(), bob, clientCommand{Action: "leave", PartyID: party.ID, Seq: 9})
	assert.Equal(t, int64(9), lastAck(t, bobSocket).Seq)
	assert.Equal(t, []string{"alice"}, party.Snapshot().Members)

	// decline always acks, even with nothing pending
	srv.dispatch(context.Background(), bob, clientCommand{Action: "decline", PartyID: party.ID, Seq: 10})
	assert.Equal(t, int64(10), lastAck(t, bobSocket).Seq)
}

func TestReadLoopDisconnectLeavesParty(t *testing.T) {
	r := setupTwoMemberParty(t)
	srv := newTestServer(r)
	party := r.partyOf(t, "alice", "c1")

	bob := r.clients.GetByID("bob", "c2")
	require.NotNil(t, bob)
	bobSocket := bob.socket.(*fakeSocket)

	done := make(chan struct{})
	go func() {
		srv.readLoop(context.Background(), bob)
		close(done)
	}()

	cmd, err := json.Marshal(clientCommand{Action: "chat", PartyID: party.ID, Text: "brb", Seq: 1})
	require.NoError(t, err)
	bobSocket.in <- cmd

	require.Eventually(t, func() bool {
		return len(bobSocket.events("ack")) > 0
	}, time.Second, 5*time.Millisecond)

	bobSocket.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit on socket close")
	}

	assert.Equal(t, []string{"alice"}, party.Snapshot().Members)
	assert.Nil(t, r.clients.GetByID("bob", "c2"))
}

func TestReadLoopBadPayload(t *testing.T) {
	r := newRig(t, rigOverrides{})
	srv := newTestServer(r)
	_, socket := r.connect(t, "alice", "c1", ClientGame)
	conn := r.clients.GetByID("alice", "c1")

	done := make(chan struct{})
	go func() {
		srv.readLoop(context.Background(), conn)
		close(done)
	}()

	socket.in <- []byte("{not json")
	require.Eventually(t, func() bool {
		return len(socket.events("error")) > 0
	}, time.Second, 5*time.Millisecond)

	socket.Close()
	<-done
}
