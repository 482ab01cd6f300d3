package session

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// wireMessage is the panel console protocol's tagged message union. Every
// frame in both directions is one of these.
type wireMessage struct {
	Event string   `json:"event"`
	Args  []string `json:"args,omitempty"`
}

// Conn is one open duplex connection to an instance console. The concrete
// transport is a websocket; tests substitute an in-memory fake so the state
// machine runs without a live panel.
type Conn interface {
	// ReadMessage blocks for the next inbound frame.
	ReadMessage() ([]byte, error)
	// WriteJSON sends one frame. Callers serialize writes themselves.
	WriteJSON(v any) error
	// Close tears the connection down. Safe to call more than once and
	// from a goroutine other than the reader.
	Close() error
}

// Dialer opens console connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials real panel consoles.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
