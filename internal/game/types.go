package game

import "time"

type Sector string

const (
	SectorMedia      Sector = "media"
	SectorDefense    Sector = "defense"
	SectorCommodity  Sector = "commodity"
	SectorTechnology Sector = "technology"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Company is the authoritative record for one listed company. All fields
// are owned by the Ledger and the pricing tick; nothing outside this
// package mutates them.
type Company struct {
	ID          int
	Symbol      string
	DisplayName string
	Sector      Sector

	PriceMicros     int64
	ReferenceMicros int64 // anchor used for floors and health pressure
	IssuedShares    int64
	AllocatedShares int64

	Health     int
	Eliminated bool

	DividendPoolMicros int64

	// Pricing state, decaying drift plus noise and shocks.
	Drift            float64
	DriftVolatility  float64
	Volatility       float64
	ShockProbability float64

	conditions []condition
}

// condition is a temporary pressure on a company, expiring after a tick.
type condition struct {
	untilTick  int64
	bump       float64
	shockBoost bool
}

func (c *Company) AvailableShares() int64 {
	return c.IssuedShares - c.AllocatedShares
}

// Stake converts a share count into a fraction of the issued float.
func (c *Company) Stake(shares int64) float64 {
	if c.IssuedShares <= 0 {
		return 0
	}
	return float64(shares) / float64(c.IssuedShares)
}

// AddCondition queues a drift bump (and optionally a shock-probability
// boost) that stays active until the given tick.
func (c *Company) AddCondition(bump float64, shockBoost bool, untilTick int64) {
	c.conditions = append(c.conditions, condition{untilTick: untilTick, bump: bump, shockBoost: shockBoost})
}

// Player is the per-identity ledger entry. It outlives the session: a
// disconnect leaves it intact and a reconnect by the same name reattaches.
type Player struct {
	Name       string
	CashMicros int64
	Holdings   [NumberOfCompanies]int64

	PendingCovert *CovertAction

	// InsightUntil grants raw drift/health visibility through that tick.
	InsightUntil int64
	BribeTaken   bool

	CreatedAt time.Time
}

type OrderInput struct {
	Player   string
	Symbol   string
	Side     Side
	Quantity int64
}

// Fill is the receipt for an applied order.
type Fill struct {
	Symbol        string `json:"symbol"`
	Side          Side   `json:"side"`
	Quantity      int64  `json:"quantity"`
	PriceMicros   int64  `json:"price_micros"`
	TotalMicros   int64  `json:"total_micros"`
	FeeMicros     int64  `json:"fee_micros"`
	CashMicros    int64  `json:"cash_micros"`
	Tick          int64  `json:"tick"`
}

type EventKind string

const (
	EventTrade       EventKind = "trade"
	EventElimination EventKind = "elimination"
	EventDividend    EventKind = "dividend"
	EventPhase       EventKind = "phase"
	EventSabotage    EventKind = "sabotage"
	EventGameEnd     EventKind = "game_end"
)

// PublicEvent is one line of the shared market feed. Covert actions only
// surface here through their visible consequences, never their actor.
type PublicEvent struct {
	ID      string    `json:"id"`
	Tick    int64     `json:"tick"`
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// CompanyView is the per-player rendering of a company. InsightOnly is
// populated only while the viewer holds an active Insight.
type CompanyView struct {
	Symbol      string         `json:"symbol"`
	DisplayName string         `json:"display_name"`
	Sector      Sector         `json:"sector"`
	PriceMicros int64          `json:"price_micros"`
	Health      HealthCategory `json:"health"`
	Eliminated  bool           `json:"eliminated"`
	Available   int64          `json:"available_shares"`

	Insight *CompanyInsight `json:"insight,omitempty"`
}

type CompanyInsight struct {
	Health     int     `json:"health"`
	Drift      float64 `json:"drift"`
	Volatility float64 `json:"volatility"`
}

type HoldingView struct {
	Symbol      string `json:"symbol"`
	Shares      int64  `json:"shares"`
	ValueMicros int64  `json:"value_micros"`
}

type CovertOffer struct {
	Kind        CovertKind `json:"kind"`
	Symbol      string     `json:"symbol,omitempty"`
	Sector      Sector     `json:"sector,omitempty"`
	Description string     `json:"description"`
}

// Snapshot is the immutable per-player view built once per tick. Public
// fields are identical across players; Cash/Holdings/Pending/Offers are
// private to the recipient.
type Snapshot struct {
	Tick          int64       `json:"tick"`
	Phase         Phase       `json:"phase"`
	Clock         string      `json:"clock"`
	PlayersOnline int         `json:"players_online"`

	Companies []CompanyView `json:"companies"`

	Player          string        `json:"player"`
	CashMicros      int64         `json:"cash_micros"`
	NetWorthMicros  int64         `json:"net_worth_micros"`
	Holdings        []HoldingView `json:"holdings"`
	PendingCovert   *CovertAction `json:"pending_covert,omitempty"`
	Offers          []CovertOffer `json:"offers,omitempty"`

	Events []PublicEvent `json:"events"`

	GameOver bool   `json:"game_over"`
	Survivor string `json:"survivor,omitempty"`
}
