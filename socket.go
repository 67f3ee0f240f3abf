package partyhub

import (
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	gorilla "github.com/gorilla/websocket"
)

// Socket is the minimal transport a Conn needs. Two implementations ship,
// one per supported websocket library.
type Socket interface {
	// ReadMessage blocks for the next client frame.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame. Callers serialize writes.
	WriteMessage(data []byte) error
	Close() error
}

// Upgrader turns an HTTP request into a websocket Socket.
type Upgrader func(w http.ResponseWriter, r *http.Request) (Socket, error)

// GorillaUpgrader builds the default gorilla/websocket upgrader.
func GorillaUpgrader(upgrader gorilla.Upgrader) Upgrader {
	return func(w http.ResponseWriter, r *http.Request) (Socket, error) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return nil, err
		}
		return &gorillaSocket{conn: conn}, nil
	}
}

// DefaultUpgrader accepts any origin; origin checks belong to the outer
// HTTP layer.
var DefaultUpgrader = GorillaUpgrader(gorilla.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
})

type gorillaSocket struct {
	conn *gorilla.Conn
}

func (s *gorillaSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *gorillaSocket) WriteMessage(data []byte) error {
	return s.conn.WriteMessage(gorilla.TextMessage, data)
}

func (s *gorillaSocket) Close() error {
	return s.conn.Close()
}

// GobwasUpgrader upgrades through gobwas/ws, for deployments that want the
// low-allocation path.
func GobwasUpgrader() Upgrader {
	return func(w http.ResponseWriter, r *http.Request) (Socket, error) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return nil, err
		}
		return &gobwasSocket{conn: conn}, nil
	}
}

type gobwasSocket struct {
	conn net.Conn
}

func (s *gobwasSocket) ReadMessage() ([]byte, error) {
	data, _, err := wsutil.ReadClientData(s.conn)
	return data, err
}

func (s *gobwasSocket) WriteMessage(data []byte) error {
	return wsutil.WriteServerMessage(s.conn, ws.OpText, data)
}

func (s *gobwasSocket) Close() error {
	return s.conn.Close()
}
