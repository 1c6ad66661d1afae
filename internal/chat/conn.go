package chat

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds how long a single outbound frame write may take
// before the session gives up on the connection.
const writeTimeout = 10 * time.Second

// wsConn adapts a coder/websocket connection to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

// NewWebsocketConn wraps an accepted websocket connection for use by a
// Session.
func NewWebsocketConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadFrame(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) WriteFrame(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.conn.Write(ctx, websocket.MessageText, payload)
}

// Close shuts the websocket with a normal closure and no close reason; a
// client learns nothing about why it was disconnected beyond the closure
// itself. The reason argument only reaches the server logs.
func (w *wsConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
