package game

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

const (
	MicrosPerBuck = int64(1_000_000)

	StarterCashMicros = int64(10_000) * MicrosPerBuck
	BribeCashMicros   = int64(10_000) * MicrosPerBuck

	// Bribe is only on the table for players who are nearly broke.
	BribeUnlockCashMicros = int64(1_000) * MicrosPerBuck
	// MarketCrash requires serious capital.
	CrashUnlockCashMicros = int64(100_000) * MicrosPerBuck

	// Order fee in basis points of notional; fees fund the traded
	// company's dividend pool.
	OrderFeeBps = int64(15)

	MaxHealth = 100

	NumberOfCompanies = 8
)

var (
	ErrInvalidSymbol      = errors.New("symbol must be exactly 6 uppercase letters")
	ErrUnknownTarget      = errors.New("unknown target")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrWrongPhase         = errors.New("action not allowed in current phase")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSharesAvailable  = errors.New("not enough shares available on the market")
	ErrCompanyEliminated  = errors.New("company is eliminated")
	ErrCovertQueued       = errors.New("a covert action is already queued for tonight")
	ErrCovertLocked       = errors.New("covert action conditions not met")
	ErrGameOver           = errors.New("the game has ended")
	ErrEngineFatal        = errors.New("engine halted: invariant violation")
)

var symbolRE = regexp.MustCompile(`^[A-Z]{6}$`)

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(strings.TrimSpace(symbol)) {
		return ErrInvalidSymbol
	}
	return nil
}

func BucksToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerBuck)))
}

func MicrosToBucks(v int64) float64 {
	return float64(v) / float64(MicrosPerBuck)
}

// OrderFee returns the fee charged on a fill of the given notional,
// rounded half-up.
func OrderFee(notionalMicros int64) int64 {
	return (notionalMicros*OrderFeeBps + 5_000) / 10_000
}

// HealthCategory buckets raw health so snapshots never leak the exact
// number to players without Insight.
type HealthCategory string

const (
	HealthStrong   HealthCategory = "strong"
	HealthStable   HealthCategory = "stable"
	HealthWeak     HealthCategory = "weak"
	HealthCritical HealthCategory = "critical"
	HealthDead     HealthCategory = "dead"
)

func CategorizeHealth(health int, eliminated bool) HealthCategory {
	switch {
	case eliminated:
		return HealthDead
	case health >= 75:
		return HealthStrong
	case health >= 40:
		return HealthStable
	case health >= 15:
		return HealthWeak
	default:
		return HealthCritical
	}
}
