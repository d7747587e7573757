package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"afterhours/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	maxClientMessage = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The terminal client is not a browser; origin checks buy nothing.
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientMessage is what a session sends upstream.
type clientMessage struct {
	Type     string            `json:"type"` // "order" or "covert"
	Symbol   string            `json:"symbol,omitempty"`
	Side     string            `json:"side,omitempty"`
	Quantity int64             `json:"quantity,omitempty"`
	Covert   game.CovertAction `json:"covert,omitempty"`
}

// serverMessage is the envelope for everything going downstream.
type serverMessage struct {
	Type     string         `json:"type"` // "snapshot", "fill", "queued", "error"
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Fill     *game.Fill     `json:"fill,omitempty"`
	Queued   string         `json:"queued,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// handleWS upgrades the connection and runs one live session: snapshots
// stream down every tick, orders and covert actions come up as they are
// typed. Responses to requests share the write pump with snapshots so
// the connection only ever has one writer.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.loop.Join(r.Context(), player); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "player", player, "err", err)
		return
	}

	sess := s.reg.Attach(player)
	defer s.reg.Detach(sess.ID)

	// Replies from the read pump merge into the write pump here.
	replies := make(chan serverMessage, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.readPump(conn, player, replies)
	}()
	s.writePump(conn, sess.Updates(), replies, done)
}

func (s *Server) readPump(conn *websocket.Conn, player string, replies chan<- serverMessage) {
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("ws read failed", "player", player, "err", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendReply(replies, serverMessage{Type: "error", Error: "malformed message"})
			continue
		}
		sendReply(replies, s.dispatch(player, msg))
	}
}

func (s *Server) dispatch(player string, msg clientMessage) serverMessage {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "order":
		symbol := strings.ToUpper(strings.TrimSpace(msg.Symbol))
		if err := game.ValidateSymbol(symbol); err != nil {
			return serverMessage{Type: "error", Error: err.Error()}
		}
		fill, err := s.loop.SubmitOrder(ctx, game.OrderInput{
			Player:   player,
			Symbol:   symbol,
			Side:     game.Side(strings.ToLower(msg.Side)),
			Quantity: msg.Quantity,
		})
		if err != nil {
			return serverMessage{Type: "error", Error: err.Error()}
		}
		return serverMessage{Type: "fill", Fill: &fill}
	case "covert":
		action := msg.Covert
		action.Symbol = strings.ToUpper(strings.TrimSpace(action.Symbol))
		if err := s.loop.SubmitCovert(ctx, player, action); err != nil {
			return serverMessage{Type: "error", Error: err.Error()}
		}
		return serverMessage{Type: "queued", Queued: action.Describe()}
	default:
		return serverMessage{Type: "error", Error: "unknown message type"}
	}
}

func (s *Server) writePump(conn *websocket.Conn, updates <-chan game.Snapshot, replies <-chan serverMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if err := s.writeMessage(conn, serverMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case msg := <-replies:
			if err := s.writeMessage(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg serverMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// sendReply never blocks the read pump; if the write side is wedged the
// reply is dropped and the client learns the outcome from the next
// snapshot.
func sendReply(replies chan<- serverMessage, msg serverMessage) {
	select {
	case replies <- msg:
	default:
	}
}
