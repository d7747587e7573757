// Package session tracks connected clients and fans game snapshots out
// to them. Delivery is non-blocking: every session has a bounded queue
// and a slow consumer loses its oldest snapshots, never the engine's
// time.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"afterhours/internal/game"
)

const DefaultQueueSize = 16

// Session is one live connection for one player identity. A player may
// hold several sessions at once (two terminals); each gets its own
// queue.
type Session struct {
	ID     string
	Player string

	queue   chan game.Snapshot
	dropped int64
	mu      sync.Mutex
	closed  bool
}

// Updates is the channel the transport reads snapshots from.
func (s *Session) Updates() <-chan game.Snapshot { return s.queue }

// push enqueues without ever blocking. On a full queue the oldest
// snapshot is discarded so the consumer always converges on the present.
func (s *Session) push(snap game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.queue <- snap:
			return
		default:
			select {
			case <-s.queue:
				s.dropped++
			default:
			}
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

// Dropped reports how many snapshots this session has shed so far.
func (s *Session) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Registry is the set of live sessions. It is safe for concurrent use:
// transports attach and detach from their own goroutines while the game
// loop broadcasts.
type Registry struct {
	log       *slog.Logger
	queueSize int

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(queueSize int, logger *slog.Logger) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		log:       logger,
		queueSize: queueSize,
		sessions:  make(map[string]*Session),
	}
}

func (r *Registry) Attach(player string) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		Player: player,
		queue:  make(chan game.Snapshot, r.queueSize),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.log.Info("session attached", "session", s.ID, "player", player)
	return s
}

func (r *Registry) Detach(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	r.log.Info("session detached", "session", id, "player", s.Player, "dropped", s.Dropped())
}

// Players returns the distinct player names currently connected.
func (r *Registry) Players() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.sessions))
	var names []string
	for _, s := range r.sessions {
		if _, dup := seen[s.Player]; dup {
			continue
		}
		seen[s.Player] = struct{}{}
		names = append(names, s.Player)
	}
	return names
}

// Online counts distinct connected players.
func (r *Registry) Online() int {
	return len(r.Players())
}

// Broadcast builds one snapshot per distinct player and pushes it to all
// of that player's sessions. The build function runs on the caller's
// goroutine; pushes never block it.
func (r *Registry) Broadcast(build func(player string) game.Snapshot) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	byPlayer := make(map[string]game.Snapshot)
	for _, s := range sessions {
		snap, ok := byPlayer[s.Player]
		if !ok {
			snap = build(s.Player)
			byPlayer[s.Player] = snap
		}
		s.push(snap)
	}
}
