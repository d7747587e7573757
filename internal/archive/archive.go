// Package archive streams the public market feed into Postgres for
// post-game reading. It is write-only and best-effort: the engine never
// reads it back and never waits on it, so a dead database costs nothing
// but the archive itself. Configured only when DATABASE_URL is set.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"afterhours/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS market_events (
    id      UUID PRIMARY KEY,
    tick    BIGINT NOT NULL,
    kind    TEXT NOT NULL,
    message TEXT NOT NULL,
    at      TIMESTAMPTZ NOT NULL
)`

type Archive struct {
	log  *slog.Logger
	pool *pgxpool.Pool

	queue chan []game.PublicEvent
}

// Open connects, ensures the table, and starts nothing: call Run to
// drain the queue.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Archive{
		log:   logger,
		pool:  pool,
		queue: make(chan []game.PublicEvent, 64),
	}, nil
}

// Record hands a batch to the writer without blocking. A full queue
// drops the batch; the live game matters more than the paper trail.
func (a *Archive) Record(events []game.PublicEvent) {
	select {
	case a.queue <- events:
	default:
		a.log.Warn("archive queue full, dropping batch", "events", len(events))
	}
}

// Run writes queued batches until the context is cancelled.
func (a *Archive) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-a.queue:
			a.write(ctx, events)
		}
	}
}

func (a *Archive) write(ctx context.Context, events []game.PublicEvent) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO market_events (id, tick, kind, message, at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			ev.ID, ev.Tick, string(ev.Kind), ev.Message, ev.At,
		)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.pool.SendBatch(ctx, batch).Close(); err != nil {
		a.log.Warn("archive write failed", "events", len(events), "err", err)
	}
}

func (a *Archive) Close() {
	a.pool.Close()
}
