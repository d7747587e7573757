// Package loop runs the engine: a single goroutine that owns the ledger,
// sequences every mutating request first-come-first-served through one
// inbox channel, advances the clock, and broadcasts snapshots. Because
// only this goroutine touches game state, no request ever sees a
// half-applied tick.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"afterhours/internal/game"
	"afterhours/internal/session"
)

// EventSink receives the public events of each tick. Implementations
// must not block; the loop calls Record inline.
type EventSink interface {
	Record(events []game.PublicEvent)
}

// Conservation is audited on a cadence, not every tick; it walks every
// player.
const conservationEveryTicks = 64

type Config struct {
	TickInterval time.Duration
	DayTicks     int64
	NightTicks   int64
	Seed         int64
	InboxSize    int
}

type orderReq struct {
	in    game.OrderInput
	reply chan orderResp
}

type orderResp struct {
	fill game.Fill
	err  error
}

type covertReq struct {
	player string
	action game.CovertAction
	reply  chan error
}

type joinReq struct {
	player string
	reply  chan struct{}
}

type Loop struct {
	cfg    Config
	log    *slog.Logger
	ledger *game.Ledger
	sched  *game.Scheduler
	dyn    *game.Dynamics
	reg    *session.Registry
	sink   EventSink

	inbox chan any
	done  chan struct{}

	mu         sync.RWMutex
	tick       int64
	marketView game.Snapshot
	board      []game.LeaderboardRow
	gameOver   bool
	survivor   string
}

func New(cfg Config, ledger *game.Ledger, reg *session.Registry, sink EventSink, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	return &Loop{
		cfg:    cfg,
		log:    logger,
		ledger: ledger,
		sched:  game.NewScheduler(cfg.DayTicks, cfg.NightTicks),
		dyn:    game.NewDynamics(cfg.Seed, logger),
		reg:    reg,
		sink:   sink,
		inbox:  make(chan any, cfg.InboxSize),
		done:   make(chan struct{}),
	}
}

// Run drives the engine until the context is cancelled. It is the only
// goroutine allowed to mutate the ledger.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	l.log.Info("game loop started",
		"tick_interval", l.cfg.TickInterval,
		"day_ticks", l.cfg.DayTicks,
		"night_ticks", l.cfg.NightTicks)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("game loop stopped", "tick", l.tick)
			return ctx.Err()
		case req := <-l.inbox:
			l.handle(req)
		case <-ticker.C:
			l.step()
		}
	}
}

func (l *Loop) handle(req any) {
	switch r := req.(type) {
	case joinReq:
		l.ledger.EnsurePlayer(r.player)
		close(r.reply)
	case orderReq:
		fill, err := l.applyOrder(r.in)
		r.reply <- orderResp{fill: fill, err: err}
	case covertReq:
		r.reply <- l.applyCovert(r.player, r.action)
	default:
		l.log.Error("unknown request type", "req", fmt.Sprintf("%T", req))
	}
}

func (l *Loop) applyOrder(in game.OrderInput) (game.Fill, error) {
	if l.gameOver {
		return game.Fill{}, game.ErrGameOver
	}
	if err := game.CheckPhase(l.sched.Phase(), game.ActionOrder); err != nil {
		return game.Fill{}, err
	}
	return l.ledger.ApplyOrder(in, l.tick)
}

func (l *Loop) applyCovert(player string, action game.CovertAction) error {
	if l.gameOver {
		return game.ErrGameOver
	}
	if err := game.CheckPhase(l.sched.Phase(), game.ActionCovert); err != nil {
		return err
	}
	return l.ledger.EnqueueCovert(player, action)
}

// step advances game time by one tick: phase bookkeeping, night
// resolution on the dawn flip, pricing during the day, then publication.
func (l *Loop) step() {
	// Requests already queued when the tick fired belong to the closing
	// tick: apply them all before any pricing moves.
drain:
	for {
		select {
		case req := <-l.inbox:
			l.handle(req)
		default:
			break drain
		}
	}

	l.tick++

	if tr, flipped := l.sched.Advance(); flipped {
		switch tr.To {
		case game.PhaseDay:
			effects := l.ledger.ResolvePendingCovertActions(l.tick)
			l.ledger.PayDividends(l.tick)
			l.ledger.Publish(l.tick, game.EventPhase,
				fmt.Sprintf("the market opens on day %d", tr.Cycle+1))
			l.log.Info("night resolved", "tick", l.tick, "covert_actions", len(effects))
		case game.PhaseNight:
			l.ledger.Publish(l.tick, game.EventPhase, "the market closes for the night")
		}
	}

	if !l.gameOver && l.sched.Phase() == game.PhaseDay {
		out := l.dyn.Advance(l.ledger, l.tick)
		if out.GameOver {
			l.endGame(out.Survivor)
		}
	}

	if l.tick%conservationEveryTicks == 0 {
		if err := l.ledger.CheckConservation(); err != nil {
			l.log.Error("conservation audit failed, mutations halted", "tick", l.tick, "err", err)
		}
	}

	l.publish()
}

func (l *Loop) endGame(survivor string) {
	l.mu.Lock()
	l.gameOver = true
	l.survivor = survivor
	l.mu.Unlock()
	if survivor == "" {
		l.ledger.Publish(l.tick, game.EventGameEnd, "every company has collapsed; the market is no more")
	} else {
		l.ledger.Publish(l.tick, game.EventGameEnd,
			fmt.Sprintf("%s stands alone; the game is over", survivor))
	}
	l.log.Info("game over", "tick", l.tick, "survivor", survivor)
}

// publish snapshots the world for every connected player and refreshes
// the cached public views served to queries.
func (l *Loop) publish() {
	phase := l.sched.Phase()
	clock := l.sched.Clock()
	online := l.reg.Online()

	l.reg.Broadcast(func(player string) game.Snapshot {
		return l.ledger.BuildSnapshot(player, l.tick, phase, clock, online, l.gameOver, l.survivor)
	})

	market := l.ledger.BuildSnapshot("", l.tick, phase, clock, online, l.gameOver, l.survivor)
	board := l.ledger.Leaderboard(20)

	l.mu.Lock()
	l.marketView = market
	l.board = board
	l.mu.Unlock()

	if l.sink != nil {
		if events := l.ledger.DrainFresh(); len(events) > 0 {
			l.sink.Record(events)
		}
	}
}

// Join registers a player identity with the ledger, waiting for the loop
// to sequence it.
func (l *Loop) Join(ctx context.Context, player string) error {
	req := joinReq{player: player, reply: make(chan struct{})}
	select {
	case l.inbox <- req:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.reply:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitOrder sequences a day order. Requests are served strictly in
// arrival order.
func (l *Loop) SubmitOrder(ctx context.Context, in game.OrderInput) (game.Fill, error) {
	req := orderReq{in: in, reply: make(chan orderResp, 1)}
	select {
	case l.inbox <- req:
	case <-l.done:
		return game.Fill{}, ErrStopped
	case <-ctx.Done():
		return game.Fill{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.fill, resp.err
	case <-l.done:
		return game.Fill{}, ErrStopped
	case <-ctx.Done():
		return game.Fill{}, ctx.Err()
	}
}

// SubmitCovert sequences a night action.
func (l *Loop) SubmitCovert(ctx context.Context, player string, action game.CovertAction) error {
	req := covertReq{player: player, action: action, reply: make(chan error, 1)}
	select {
	case l.inbox <- req:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarketView returns the latest published anonymous snapshot. It never
// touches live game state.
func (l *Loop) MarketView() game.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.marketView
}

// Leaderboard returns the latest published standings.
func (l *Loop) Leaderboard() []game.LeaderboardRow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]game.LeaderboardRow, len(l.board))
	copy(out, l.board)
	return out
}

// GameOver reports the end-of-game latch and the surviving symbol.
func (l *Loop) GameOver() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gameOver, l.survivor
}

// ErrStopped is returned by transports when the loop has shut down.
var ErrStopped = errors.New("game loop stopped")
