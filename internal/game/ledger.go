package game

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

const eventLogSize = 32

// Ledger is the authoritative record of companies, prices, health and
// player portfolios. It is single-writer: only the game loop goroutine
// calls mutating methods, which is what makes every mutation
// linearizable without a lock. Readers get immutable Snapshots instead
// of access to the live structs.
type Ledger struct {
	log *slog.Logger

	companies []*Company
	bySymbol  map[string]*Company
	players   map[string]*Player

	// floatMicros is the market maker's cash float: buys pay in,
	// sells and dividends pay out. Together with player cash and the
	// dividend pools it must always equal injectedMicros.
	floatMicros    int64
	injectedMicros int64

	events []PublicEvent
	fresh  []PublicEvent

	halted bool
}

type seedCompany struct {
	Symbol string
	Name   string
	Sector Sector
	Price  int64
	Shares int64
}

var defaultCompanies = []seedCompany{
	{"PRIMET", "PrimeTime Press", SectorMedia, 95, 10_000},
	{"SIGNAL", "Signal & Noise", SectorMedia, 70, 12_000},
	{"ARMORY", "Armory Heavy Industries", SectorDefense, 130, 8_000},
	{"BALLST", "Ballistic Systems", SectorDefense, 150, 6_000},
	{"GRAINE", "Graine Agricole", SectorCommodity, 80, 15_000},
	{"CRUDEX", "Crudex Extraction", SectorCommodity, 110, 9_000},
	{"PURPLE", "Purple Blockchain", SectorTechnology, 165, 5_000},
	{"ROCKET", "Rocket Compute", SectorTechnology, 120, 7_000},
}

func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	ld := &Ledger{
		log:      logger,
		bySymbol: make(map[string]*Company),
		players:  make(map[string]*Player),
	}
	for i, seed := range defaultCompanies {
		params := sectorParams[seed.Sector]
		c := &Company{
			ID:               i,
			Symbol:           seed.Symbol,
			DisplayName:      seed.Name,
			Sector:           seed.Sector,
			PriceMicros:      seed.Price * MicrosPerBuck,
			ReferenceMicros:  seed.Price * MicrosPerBuck,
			IssuedShares:     seed.Shares,
			Health:           MaxHealth,
			DriftVolatility:  params.driftVol,
			Volatility:       params.vol,
			ShockProbability: params.shockP,
		}
		ld.companies = append(ld.companies, c)
		ld.bySymbol[c.Symbol] = c
	}
	return ld
}

func (ld *Ledger) Companies() []*Company { return ld.companies }

func (ld *Ledger) Company(symbol string) (*Company, bool) {
	c, ok := ld.bySymbol[symbol]
	return c, ok
}

func (ld *Ledger) Player(name string) (*Player, bool) {
	p, ok := ld.players[name]
	return p, ok
}

// EnsurePlayer creates the ledger entry on first sight of an identity and
// reattaches on every later one. Disconnects never remove entries.
func (ld *Ledger) EnsurePlayer(name string) *Player {
	if p, ok := ld.players[name]; ok {
		return p
	}
	p := &Player{
		Name:       name,
		CashMicros: StarterCashMicros,
		CreatedAt:  time.Now(),
	}
	ld.players[name] = p
	ld.injectedMicros += StarterCashMicros
	ld.log.Info("player joined the ledger", "player", name)
	return p
}

// ApplyOrder fills a buy or sell against the market maker at the current
// price, atomically: the whole order succeeds or nothing changes.
func (ld *Ledger) ApplyOrder(in OrderInput, tick int64) (Fill, error) {
	var out Fill
	if ld.halted {
		return out, ErrEngineFatal
	}
	p, ok := ld.players[in.Player]
	if !ok {
		return out, ErrUnknownPlayer
	}
	c, ok := ld.bySymbol[in.Symbol]
	if !ok {
		return out, ErrUnknownTarget
	}
	if c.Eliminated {
		return out, ErrCompanyEliminated
	}
	if in.Quantity <= 0 {
		return out, fmt.Errorf("quantity must be > 0")
	}

	notional := c.PriceMicros * in.Quantity
	fee := OrderFee(notional)

	switch in.Side {
	case SideBuy:
		if in.Quantity > c.AvailableShares() {
			return out, ErrNoSharesAvailable
		}
		if p.CashMicros < notional+fee {
			return out, ErrInsufficientFunds
		}
		p.CashMicros -= notional + fee
		p.Holdings[c.ID] += in.Quantity
		c.AllocatedShares += in.Quantity
		ld.floatMicros += notional
		c.DividendPoolMicros += fee
		c.Drift += c.Stake(in.Quantity) * tradeImpact
	case SideSell:
		if p.Holdings[c.ID] < in.Quantity {
			return out, ErrInsufficientShares
		}
		if fee >= notional {
			fee = notional
		}
		p.Holdings[c.ID] -= in.Quantity
		c.AllocatedShares -= in.Quantity
		p.CashMicros += notional - fee
		ld.floatMicros -= notional
		c.DividendPoolMicros += fee
		c.Drift -= c.Stake(in.Quantity) * tradeImpact
	default:
		return out, fmt.Errorf("side must be buy or sell")
	}

	if p.CashMicros < 0 || p.Holdings[c.ID] < 0 || c.AllocatedShares < 0 {
		ld.haltMutations("order left negative balance", in.Player, in.Symbol)
		return out, ErrEngineFatal
	}

	// Trades moving at least 1% of the float make the public feed.
	if c.Stake(in.Quantity) >= 0.01 {
		ld.publish(tick, EventTrade, fmt.Sprintf("a large %s order moves %s", in.Side, c.Symbol))
	}

	return Fill{
		Symbol:      c.Symbol,
		Side:        in.Side,
		Quantity:    in.Quantity,
		PriceMicros: c.PriceMicros,
		TotalMicros: notional,
		FeeMicros:   fee,
		CashMicros:  p.CashMicros,
		Tick:        tick,
	}, nil
}

// EnqueueCovert queues a night action for resolution at the next
// night->day boundary. One per player per night.
func (ld *Ledger) EnqueueCovert(playerName string, a CovertAction) error {
	if ld.halted {
		return ErrEngineFatal
	}
	p, ok := ld.players[playerName]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.PendingCovert != nil {
		return ErrCovertQueued
	}
	switch a.Kind {
	case CovertSabotage:
		c, ok := ld.bySymbol[a.Symbol]
		if !ok {
			return ErrUnknownTarget
		}
		if c.Eliminated {
			return ErrCompanyEliminated
		}
	case CovertSmear:
		if _, ok := ld.players[a.Target]; !ok {
			return ErrUnknownTarget
		}
	case CovertSectorHype, CovertMarketCrash, CovertInsight, CovertBribe:
	default:
		return ErrUnknownTarget
	}
	if !ld.unlocked(p, a) {
		return ErrCovertLocked
	}
	action := a
	p.PendingCovert = &action
	return nil
}

// ResolvePendingCovertActions applies every queued night action, in
// player-name order so the outcome is deterministic, and clears the
// queue. Called exactly once per night->day transition, before the first
// day tick is priced.
func (ld *Ledger) ResolvePendingCovertActions(tick int64) []Effect {
	names := make([]string, 0, len(ld.players))
	for name, p := range ld.players {
		if p.PendingCovert != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var effects []Effect
	for _, name := range names {
		p := ld.players[name]
		a := *p.PendingCovert
		p.PendingCovert = nil
		eff := ld.resolveCovert(p, a, tick)
		effects = append(effects, eff)
		if eff.PublicMsg != "" {
			ld.publish(tick, EventSabotage, eff.PublicMsg)
		}
		ld.log.Info("covert action resolved", "player", name, "kind", a.Kind)
	}
	return effects
}

// PayDividends distributes each company's accrued fee pool pro-rata to
// its shareholders. Whole micros only; the remainder stays in the pool.
func (ld *Ledger) PayDividends(tick int64) {
	for _, c := range ld.companies {
		if c.Eliminated || c.AllocatedShares <= 0 || c.DividendPoolMicros <= 0 {
			continue
		}
		perShare := c.DividendPoolMicros / c.AllocatedShares
		if perShare <= 0 {
			continue
		}
		var paid int64
		for _, p := range ld.players {
			if shares := p.Holdings[c.ID]; shares > 0 {
				amount := perShare * shares
				p.CashMicros += amount
				paid += amount
			}
		}
		c.DividendPoolMicros -= paid
		ld.publish(tick, EventDividend, fmt.Sprintf("%s pays a dividend of %.4f per share", c.Symbol, MicrosToBucks(perShare)))
	}
}

// Eliminate retires a company: price frozen, holdings zeroed with no
// refund, and the symbol removed from the order surface for good.
func (ld *Ledger) Eliminate(c *Company, tick int64) {
	if c.Eliminated {
		return
	}
	c.Eliminated = true
	c.Health = 0
	c.conditions = nil
	for _, p := range ld.players {
		if p.Holdings[c.ID] > 0 {
			ld.log.Info("holdings wiped by elimination",
				"player", p.Name, "symbol", c.Symbol, "shares", p.Holdings[c.ID])
			p.Holdings[c.ID] = 0
		}
	}
	c.AllocatedShares = 0
	ld.publish(tick, EventElimination, fmt.Sprintf("%s collapses and is delisted", c.Symbol))
}

// AliveCompanies returns the non-eliminated companies.
func (ld *Ledger) AliveCompanies() []*Company {
	var alive []*Company
	for _, c := range ld.companies {
		if !c.Eliminated {
			alive = append(alive, c)
		}
	}
	return alive
}

func (ld *Ledger) publish(tick int64, kind EventKind, msg string) {
	ev := PublicEvent{
		ID:      uuid.NewString(),
		Tick:    tick,
		Kind:    kind,
		Message: msg,
		At:      time.Now(),
	}
	ld.events = append(ld.events, ev)
	if len(ld.events) > eventLogSize {
		ld.events = ld.events[len(ld.events)-eventLogSize:]
	}
	ld.fresh = append(ld.fresh, ev)
}

// Publish records an engine-level public event (phase flips, game end).
func (ld *Ledger) Publish(tick int64, kind EventKind, msg string) {
	ld.publish(tick, kind, msg)
}

// RecentEvents returns the ring of recent public events, oldest first.
func (ld *Ledger) RecentEvents() []PublicEvent {
	out := make([]PublicEvent, len(ld.events))
	copy(out, ld.events)
	return out
}

// DrainFresh hands over the events published since the last drain; the
// loop forwards them to the archive sink.
func (ld *Ledger) DrainFresh() []PublicEvent {
	out := ld.fresh
	ld.fresh = nil
	return out
}

// CheckConservation verifies that no cash appeared or vanished: player
// cash plus the market maker float plus the dividend pools must equal
// everything ever injected (starter grants and bribes). A mismatch is a
// bug, not a game state; it halts all further mutation.
func (ld *Ledger) CheckConservation() error {
	var total int64
	for _, p := range ld.players {
		if p.CashMicros < 0 {
			ld.haltMutations("negative cash detected", p.Name, "")
			return ErrEngineFatal
		}
		total += p.CashMicros
	}
	total += ld.floatMicros
	for _, c := range ld.companies {
		total += c.DividendPoolMicros
	}
	if total != ld.injectedMicros {
		ld.haltMutations("cash conservation broken", "", "")
		return ErrEngineFatal
	}
	return nil
}

func (ld *Ledger) haltMutations(reason, player, symbol string) {
	ld.halted = true
	ld.log.Error("ENGINE HALT", "reason", reason, "player", player, "symbol", symbol)
}

// Halted reports whether the ledger refused further mutation after an
// invariant violation.
func (ld *Ledger) Halted() bool { return ld.halted }

// Leaderboard ranks every player ever seen by net worth at current
// prices.
func (ld *Ledger) Leaderboard(limit int) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(ld.players))
	for _, p := range ld.players {
		rows = append(rows, LeaderboardRow{
			Player:         p.Name,
			NetWorthMicros: ld.netWorth(p),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetWorthMicros != rows[j].NetWorthMicros {
			return rows[i].NetWorthMicros > rows[j].NetWorthMicros
		}
		return rows[i].Player < rows[j].Player
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows
}

func (ld *Ledger) netWorth(p *Player) int64 {
	total := p.CashMicros
	for _, c := range ld.companies {
		if c.Eliminated {
			continue
		}
		total += p.Holdings[c.ID] * c.PriceMicros
	}
	return total
}

type LeaderboardRow struct {
	Rank           int64  `json:"rank"`
	Player         string `json:"player"`
	NetWorthMicros int64  `json:"net_worth_micros"`
}
