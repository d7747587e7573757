package game

import "fmt"

type CovertKind string

const (
	CovertSabotage    CovertKind = "sabotage"
	CovertSectorHype  CovertKind = "sector_hype"
	CovertMarketCrash CovertKind = "market_crash"
	CovertInsight     CovertKind = "insight"
	CovertSmear       CovertKind = "smear"
	CovertBribe       CovertKind = "bribe"
)

// CovertAction is the closed set of night moves. Exactly one of the
// target fields is meaningful depending on Kind.
type CovertAction struct {
	Kind   CovertKind `json:"kind"`
	Symbol string     `json:"symbol,omitempty"` // sabotage target
	Sector Sector     `json:"sector,omitempty"` // sector hype target
	Target string     `json:"target,omitempty"` // smear target player
}

// SabotageDamage is the health hit of a standard sabotage run.
const SabotageDamage = 5

// Duration (in ticks) of drift pressure left behind by resolved covert
// actions; roughly one trading day at the default cadence.
const covertPressureTicks = int64(64)

func (a CovertAction) Describe() string {
	switch a.Kind {
	case CovertSabotage:
		return fmt.Sprintf("sabotage %s", a.Symbol)
	case CovertSectorHype:
		return fmt.Sprintf("hype the %s sector", a.Sector)
	case CovertMarketCrash:
		return "crash the whole market"
	case CovertInsight:
		return "buy tomorrow's insight"
	case CovertSmear:
		return fmt.Sprintf("smear %s", a.Target)
	case CovertBribe:
		return "accept a bribe you cannot refuse"
	default:
		return string(a.Kind)
	}
}

// Effect is the resolved, post-hoc record of a covert action. PublicMsg
// is what the market feed shows ("" keeps the consequence silent); the
// actor is never published.
type Effect struct {
	Actor     string
	Kind      CovertKind
	PublicMsg string
}

// unlocked reports whether a player currently meets the conditions for a
// covert action. Conditions are checked again at resolution so a player
// cannot queue an action and then trade out of its requirements for free.
func (ld *Ledger) unlocked(p *Player, a CovertAction) bool {
	switch a.Kind {
	case CovertSabotage:
		c, ok := ld.bySymbol[a.Symbol]
		return ok && !c.Eliminated
	case CovertSectorHype:
		return ld.avgSectorStake(p, a.Sector) >= 0.01
	case CovertMarketCrash:
		return p.CashMicros >= CrashUnlockCashMicros
	case CovertInsight:
		for _, c := range ld.companies {
			if !c.Eliminated && c.Stake(p.Holdings[c.ID]) >= 0.10 {
				return true
			}
		}
		return false
	case CovertSmear:
		target, ok := ld.players[a.Target]
		return ok && target.Name != p.Name
	case CovertBribe:
		return !p.BribeTaken && p.CashMicros < BribeUnlockCashMicros
	default:
		return false
	}
}

func (ld *Ledger) avgSectorStake(p *Player, sector Sector) float64 {
	var sum float64
	var n int
	for _, c := range ld.companies {
		if c.Sector != sector || c.Eliminated {
			continue
		}
		sum += c.Stake(p.Holdings[c.ID])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Offers lists the covert actions currently unlocked for a player. The
// night snapshot carries these as the player's menu.
func (ld *Ledger) Offers(playerName string) []CovertOffer {
	p, ok := ld.players[playerName]
	if !ok {
		return nil
	}
	var offers []CovertOffer
	for _, c := range ld.companies {
		if c.Eliminated {
			continue
		}
		a := CovertAction{Kind: CovertSabotage, Symbol: c.Symbol}
		offers = append(offers, CovertOffer{
			Kind:        CovertSabotage,
			Symbol:      c.Symbol,
			Description: a.Describe(),
		})
	}
	for _, sector := range []Sector{SectorMedia, SectorDefense, SectorCommodity, SectorTechnology} {
		a := CovertAction{Kind: CovertSectorHype, Sector: sector}
		if ld.unlocked(p, a) {
			offers = append(offers, CovertOffer{Kind: CovertSectorHype, Sector: sector, Description: a.Describe()})
		}
	}
	for _, kind := range []CovertKind{CovertMarketCrash, CovertInsight, CovertBribe} {
		a := CovertAction{Kind: kind}
		if ld.unlocked(p, a) {
			offers = append(offers, CovertOffer{Kind: kind, Description: a.Describe()})
		}
	}
	return offers
}

// resolveCovert applies one queued action against the market. Called only
// from ResolvePendingCovertActions on the night->day boundary.
func (ld *Ledger) resolveCovert(p *Player, a CovertAction, tick int64) Effect {
	eff := Effect{Actor: p.Name, Kind: a.Kind}
	if !ld.unlocked(p, a) {
		return eff
	}
	until := tick + covertPressureTicks
	switch a.Kind {
	case CovertSabotage:
		c := ld.bySymbol[a.Symbol]
		c.Health -= SabotageDamage
		if c.Health < 0 {
			c.Health = 0
		}
		c.AddCondition(-1.0, true, until)
		eff.PublicMsg = fmt.Sprintf("an incident at %s shakes investor confidence", c.Symbol)
	case CovertSectorHype:
		for _, c := range ld.companies {
			if c.Sector == a.Sector && !c.Eliminated {
				c.AddCondition(5.0, false, until)
			}
		}
		eff.PublicMsg = fmt.Sprintf("overnight rumors light up the %s sector", a.Sector)
	case CovertMarketCrash:
		for _, c := range ld.companies {
			if !c.Eliminated {
				c.AddCondition(-5.0, true, until)
			}
		}
		eff.PublicMsg = "panic grips the market at the open"
	case CovertInsight:
		p.InsightUntil = tick + covertPressureTicks
	case CovertSmear:
		target := ld.players[a.Target]
		for _, c := range ld.companies {
			if c.Eliminated || target.Holdings[c.ID] <= 0 {
				continue
			}
			c.AddCondition(-c.Stake(target.Holdings[c.ID])*10, true, until)
		}
	case CovertBribe:
		p.BribeTaken = true
		p.CashMicros += BribeCashMicros
		ld.injectedMicros += BribeCashMicros
	}
	return eff
}
