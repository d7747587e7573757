package game

import (
	"log/slog"
	"math"
	"math/rand"
)

// tradeImpact scales how hard a fill leans on a company's drift,
// proportional to the share of the float traded. It decays with the
// drift itself.
const tradeImpact = 0.05

// Health pressure is sampled every few ticks rather than every tick so a
// single bad morning does not delist anyone.
const healthEveryTicks = 8

// Price floor: an eighth-cent company is still quoted at one percent of
// its reference so it can recover.
func priceFloor(c *Company) int64 {
	floor := c.ReferenceMicros / 100
	if floor < 1 {
		floor = 1
	}
	return floor
}

// maxStep caps a single tick's relative price move.
const maxStep = 0.2

type volatilityParams struct {
	driftVol float64
	vol      float64
	shockP   float64
}

// Sectors trade in different regimes: tech and media are jumpy, defense
// and commodities plod.
var sectorParams = map[Sector]volatilityParams{
	SectorMedia:      {driftVol: 0.0015, vol: 0.008, shockP: 0.06},
	SectorDefense:    {driftVol: 0.0008, vol: 0.004, shockP: 0.02},
	SectorCommodity:  {driftVol: 0.0010, vol: 0.005, shockP: 0.03},
	SectorTechnology: {driftVol: 0.0020, vol: 0.010, shockP: 0.08},
}

// Dynamics advances prices and health each trading-day tick. It owns the
// RNG: with a fixed seed and an identical order stream the whole market
// replays deterministically.
type Dynamics struct {
	rng *rand.Rand
	log *slog.Logger
}

func NewDynamics(seed int64, logger *slog.Logger) *Dynamics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dynamics{
		rng: rand.New(rand.NewSource(seed)),
		log: logger,
	}
}

// TickOutcome reports what a pricing tick did beyond moving numbers.
type TickOutcome struct {
	Eliminated []string
	GameOver   bool
	Survivor   string
}

// Advance runs one pricing tick over every listed company, applies
// health pressure, performs eliminations, and reports whether the market
// is down to its last survivor.
func (d *Dynamics) Advance(ld *Ledger, tick int64) TickOutcome {
	var out TickOutcome
	for _, c := range ld.Companies() {
		if c.Eliminated {
			continue
		}
		d.step(c, tick)
		if tick%healthEveryTicks == 0 {
			applyHealthPressure(c)
		}
		if c.Health <= 0 {
			out.Eliminated = append(out.Eliminated, c.Symbol)
			ld.Eliminate(c, tick)
			d.log.Info("company eliminated", "symbol", c.Symbol, "tick", tick)
		}
	}

	alive := ld.AliveCompanies()
	switch len(alive) {
	case 0:
		out.GameOver = true
	case 1:
		out.GameOver = true
		out.Survivor = alive[0].Symbol
	}
	return out
}

// step evolves one company's price: decaying drift plus condition
// pressure, gaussian noise, and the occasional fat-tailed shock.
func (d *Dynamics) step(c *Company, tick int64) {
	effDrift := c.Drift
	shockP := c.ShockProbability

	kept := c.conditions[:0]
	for _, cond := range c.conditions {
		if cond.untilTick <= tick {
			continue
		}
		kept = append(kept, cond)
		effDrift += cond.bump * c.DriftVolatility
		if cond.shockBoost {
			shockP *= 2
		}
	}
	c.conditions = kept

	// Drift is a mean-reverting random walk: halve, then perturb.
	c.Drift = c.Drift/2 + normalish(d.rng)*c.DriftVolatility

	rel := effDrift + normalish(d.rng)*c.Volatility
	if d.rng.Float64() < shockP {
		rel += signedShock(d.rng) * c.Volatility * 10
	}

	// Runaway prices get leaned on rather than clipped.
	ratio := float64(c.PriceMicros) / float64(c.ReferenceMicros)
	if ratio > 5 {
		c.Drift -= c.DriftVolatility * 4
	} else if ratio < 0.25 {
		c.Drift += c.DriftVolatility * 4
	}

	if rel > maxStep {
		rel = maxStep
	} else if rel < -maxStep {
		rel = -maxStep
	}

	price := int64(float64(c.PriceMicros) * (1 + rel))
	if floor := priceFloor(c); price < floor {
		price = floor
	}
	c.PriceMicros = price
}

// applyHealthPressure nudges health toward the price picture: trading
// far below reference bleeds a point, at or above reference heals one.
func applyHealthPressure(c *Company) {
	switch {
	case c.PriceMicros < c.ReferenceMicros/4:
		if c.Health > 0 {
			c.Health--
		}
	case c.PriceMicros >= c.ReferenceMicros:
		if c.Health < MaxHealth {
			c.Health++
		}
	}
}

// normalish approximates a standard normal by summing uniforms. Good
// enough for price noise and has no tails wilder than +-6.
func normalish(rng *rand.Rand) float64 {
	var sum float64
	for i := 0; i < 12; i++ {
		sum += rng.Float64()
	}
	return sum - 6
}

// signedShock draws from a truncated Cauchy so shocks are fat-tailed in
// both directions but can never be infinite.
func signedShock(rng *rand.Rand) float64 {
	v := math.Tan(math.Pi * (rng.Float64() - 0.5))
	if v > 8 {
		v = 8
	} else if v < -8 {
		v = -8
	}
	return v
}
