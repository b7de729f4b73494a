package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/rankboard/internal/server"
)

const linkWriteTimeout = 5 * time.Second

// Link is the model's connection to a running dashboard.
type Link interface {
	// Receive blocks until the next server message arrives.
	Receive() (server.Message, error)
	// Send delivers one command to the server.
	Send(cmd server.Command) error
}

// WSLink is a [Link] over the dashboard WebSocket.
type WSLink struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

// Dial connects to the WebSocket endpoint at url, e.g.
// ws://localhost:8080/api/ws.
func Dial(ctx context.Context, url string) (*WSLink, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WSLink{conn: conn}, nil
}

// Receive reads the next message.
func (l *WSLink) Receive() (server.Message, error) {
	var msg server.Message
	if err := l.conn.ReadJSON(&msg); err != nil {
		return server.Message{}, err
	}
	return msg, nil
}

// Send writes cmd as JSON.
func (l *WSLink) Send(cmd server.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(linkWriteTimeout))
	return l.conn.WriteJSON(cmd)
}

// Close sends a close frame and releases the connection.
func (l *WSLink) Close() error {
	l.mu.Lock()
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	l.mu.Unlock()
	return l.conn.Close()
}
