package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/rankboard/internal/board"
	"github.com/jpalmerr/rankboard/internal/rank"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 90 * time.Second
	wsPingPeriod   = 45 * time.Second
	wsOutBuffer    = 64
	wsReadLimit    = 64 << 10
)

// Message types sent to WebSocket clients.
const (
	MessageFrame  = "frame"
	MessageStatus = "status"
	MessageError  = "error"
)

// Command types accepted from WebSocket clients.
const (
	CommandAdd    = "add"
	CommandRemove = "remove"
	CommandSet    = "set"
	CommandSeries = "series"
)

// Message is one server-to-client WebSocket message.
type Message struct {
	Type        string       `json:"type"`
	Leaderboard *Leaderboard `json:"leaderboard,omitempty"`
	Removed     []string     `json:"removed,omitempty"`
	Text        string       `json:"text,omitempty"`
}

// Command is one client-to-server WebSocket message.
//
// An add command carries the new entity in record form alongside the type:
//
//	{"type": "add", "name": "Bing", "logo": "...", "access": [0.9]}
//	{"type": "remove", "name": "Bing"}
//	{"type": "set", "name": "Bing", "value": 1.2}
//	{"type": "series", "key": "search"}
type Command struct {
	Type  string   `json:"type"`
	Name  string   `json:"name,omitempty"`
	Key   string   `json:"key,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient is one connected WebSocket peer. Only its writer goroutine
// writes to conn.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	out     chan Message
	refresh chan struct{}

	mu  sync.Mutex
	key string
}

func (c *wsClient) series() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *wsClient) setSeries(key string) {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
}

// send queues msg without blocking; a full queue drops it.
func (c *wsClient) send(msg Message) {
	select {
	case c.out <- msg:
	default:
	}
}

// handleWS upgrades to a WebSocket that pushes the leaderboard of the
// client's selected series after every frame and accepts commands.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		return
	}
	defer func() { _ = conn.Close() }()

	cl := &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		out:     make(chan Message, wsOutBuffer),
		refresh: make(chan struct{}, 1),
		key:     s.board.RankingKey(),
	}
	logger := s.logger.With("client_id", cl.id)
	logger.Debug("websocket client connected")

	frames := s.board.Subscribe()
	defer s.board.Unsubscribe(frames)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.wsWriter(ctx, cl, frames)
		// unblock the reader when the writer gives up
		_ = conn.Close()
	}()

	cl.refresh <- struct{}{}
	s.wsReader(ctx, cl)

	cancel()
	<-writerDone
	logger.Debug("websocket client disconnected")
}

// wsWriter owns every write to the connection.
func (s *Server) wsWriter(ctx context.Context, cl *wsClient, frames <-chan board.Frame) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(msg Message) error {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return cl.conn.WriteJSON(msg)
	}

	for {
		select {
		case <-ctx.Done():
			_ = cl.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = cl.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			key := cl.series()
			var lb Leaderboard
			if key == frame.Series {
				lb = s.buildLeaderboard(frame.Seq, key, rank.Result{Top: frame.Top, Ordered: frame.Ordered}, s.cfg.TopN, true)
			} else {
				var err error
				if lb, err = s.leaderboard(key, s.cfg.TopN, true); err != nil {
					continue
				}
				lb.Seq = frame.Seq
			}
			if err := write(Message{Type: MessageFrame, Leaderboard: &lb, Removed: frame.Removed}); err != nil {
				return
			}

		case <-cl.refresh:
			lb, err := s.leaderboard(cl.series(), s.cfg.TopN, true)
			if err != nil {
				continue
			}
			if err := write(Message{Type: MessageFrame, Leaderboard: &lb}); err != nil {
				return
			}

		case msg := <-cl.out:
			if err := write(msg); err != nil {
				return
			}

		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsReader reads commands until the connection fails or closes.
func (s *Server) wsReader(ctx context.Context, cl *wsClient) {
	cl.conn.SetReadLimit(wsReadLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		mt, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		// any inbound traffic proves the peer is alive
		_ = cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if mt != websocket.TextMessage {
			continue
		}
		s.handleCommand(ctx, cl, data)
	}
}

// handleCommand executes one client command and queues its outcome.
func (s *Server) handleCommand(ctx context.Context, cl *wsClient, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		cl.send(Message{Type: MessageError, Text: "invalid command: " + err.Error()})
		return
	}

	switch strings.ToLower(cmd.Type) {
	case CommandSeries:
		if _, err := s.board.Current(cmd.Key); err != nil || cmd.Key == "" {
			cl.send(Message{Type: MessageError, Text: "unknown series " + cmd.Key})
			return
		}
		cl.setSeries(cmd.Key)
		select {
		case cl.refresh <- struct{}{}:
		default:
		}
		return

	case CommandAdd, CommandRemove, CommandSet:
	default:
		cl.send(Message{Type: MessageError, Text: "unknown command " + cmd.Type})
		return
	}

	if s.cfg.Commander == nil {
		cl.send(Message{Type: MessageError, Text: "producer does not accept commands"})
		return
	}

	var err error
	switch strings.ToLower(cmd.Type) {
	case CommandAdd:
		var rec reconcile.Record
		if err = json.Unmarshal(data, &rec); err == nil {
			err = s.cfg.Commander.Add(ctx, rec)
		}
	case CommandRemove:
		err = s.cfg.Commander.Remove(ctx, cmd.Name)
	case CommandSet:
		if cmd.Value == nil {
			cl.send(Message{Type: MessageError, Text: "set requires a value"})
			return
		}
		err = s.cfg.Commander.Set(ctx, cmd.Name, *cmd.Value)
	}

	if err != nil {
		cl.send(Message{Type: MessageError, Text: err.Error()})
		return
	}
	cl.send(Message{Type: MessageStatus, Text: cmd.Type + " " + cmd.Name + " ok"})
}
