package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnqueueCovertOnePerNight(t *testing.T) {
	ld := testLedger(t)
	ld.EnsurePlayer("ada")

	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertSabotage, Symbol: "SIGNAL"}); err != nil {
		t.Fatalf("first queue failed: %v", err)
	}
	err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertSabotage, Symbol: "PURPLE"})
	if !errors.Is(err, ErrCovertQueued) {
		t.Fatalf("got %v want ErrCovertQueued", err)
	}
}

func TestEnqueueCovertValidatesTargets(t *testing.T) {
	ld := testLedger(t)
	ld.EnsurePlayer("ada")
	dead, _ := ld.Company("GRAINE")
	ld.Eliminate(dead, 1)

	tests := []struct {
		name string
		a    CovertAction
		want error
	}{
		{"unknown symbol", CovertAction{Kind: CovertSabotage, Symbol: "NOSUCH"}, ErrUnknownTarget},
		{"eliminated symbol", CovertAction{Kind: CovertSabotage, Symbol: "GRAINE"}, ErrCompanyEliminated},
		{"unknown smear target", CovertAction{Kind: CovertSmear, Target: "ghost"}, ErrUnknownTarget},
		{"crash without capital", CovertAction{Kind: CovertMarketCrash}, ErrCovertLocked},
		{"self smear", CovertAction{Kind: CovertSmear, Target: "ada"}, ErrCovertLocked},
	}
	for _, tc := range tests {
		if err := ld.EnqueueCovert("ada", tc.a); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestResolveSabotageClampsHealthAtZero(t *testing.T) {
	ld := testLedger(t)
	ld.EnsurePlayer("ada")
	c, _ := ld.Company("SIGNAL")
	c.Health = 1

	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertSabotage, Symbol: "SIGNAL"}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	effects := ld.ResolvePendingCovertActions(10)
	if len(effects) != 1 || effects[0].Kind != CovertSabotage {
		t.Fatalf("unexpected effects: %+v", effects)
	}
	if c.Health != 0 {
		t.Fatalf("health got %d want 0 (clamped, damage exceeds remaining)", c.Health)
	}
	if p, _ := ld.Player("ada"); p.PendingCovert != nil {
		t.Fatalf("queue must be cleared after resolution")
	}
}

func TestSabotageDamageIsFixed(t *testing.T) {
	ld := testLedger(t)
	ld.EnsurePlayer("ada")
	c, _ := ld.Company("ARMORY")

	// A crafted request cannot pick its own magnitude; unknown wire
	// fields are discarded and only the engine constant applies.
	var a CovertAction
	if err := json.Unmarshal([]byte(`{"kind":"sabotage","symbol":"ARMORY","damage":100}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := ld.EnqueueCovert("ada", a); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	ld.ResolvePendingCovertActions(10)
	if c.Health != MaxHealth-SabotageDamage {
		t.Fatalf("health got %d want %d", c.Health, MaxHealth-SabotageDamage)
	}
}

func TestResolveSmearPressuresTargetHoldings(t *testing.T) {
	ld := testLedger(t)
	ld.EnsurePlayer("ada")
	bob := ld.EnsurePlayer("bob")
	bob.CashMicros = 1 << 60
	if _, err := ld.ApplyOrder(OrderInput{Player: "bob", Symbol: "SIGNAL", Side: SideBuy, Quantity: 50}, 1); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertSmear, Target: "bob"}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	ld.ResolvePendingCovertActions(10)

	for _, c := range ld.Companies() {
		want := 0
		if c.Symbol == "SIGNAL" {
			want = 1
		}
		if len(c.conditions) != want {
			t.Fatalf("%s: got %d conditions want %d", c.Symbol, len(c.conditions), want)
		}
		if want == 1 && c.conditions[0].bump >= 0 {
			t.Fatalf("smear pressure on %s must be negative, got %v", c.Symbol, c.conditions[0].bump)
		}
	}
}

func TestResolveSectorHypeBumpsTargetSector(t *testing.T) {
	ld := testLedger(t)
	p := ld.EnsurePlayer("ada")
	p.CashMicros = 1 << 60

	// Hype unlocks at a 1% average stake across the sector.
	for _, sym := range []string{"PRIMET", "SIGNAL"} {
		c, _ := ld.Company(sym)
		if _, err := ld.ApplyOrder(OrderInput{Player: "ada", Symbol: sym, Side: SideBuy, Quantity: c.IssuedShares / 50}, 1); err != nil {
			t.Fatalf("buy %s failed: %v", sym, err)
		}
	}
	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertSectorHype, Sector: SectorMedia}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	ld.ResolvePendingCovertActions(10)

	for _, c := range ld.Companies() {
		want := 0
		if c.Sector == SectorMedia {
			want = 1
		}
		if len(c.conditions) != want {
			t.Fatalf("%s: got %d conditions want %d", c.Symbol, len(c.conditions), want)
		}
		if want == 1 && c.conditions[0].bump <= 0 {
			t.Fatalf("hype on %s must push upward, got %v", c.Symbol, c.conditions[0].bump)
		}
	}
}

func TestResolveOrderIsDeterministicByName(t *testing.T) {
	ld := testLedger(t)
	for _, name := range []string{"zoe", "ada", "mel"} {
		ld.EnsurePlayer(name)
		if err := ld.EnqueueCovert(name, CovertAction{Kind: CovertSabotage, Symbol: "SIGNAL"}); err != nil {
			t.Fatalf("queue failed for %s: %v", name, err)
		}
	}
	effects := ld.ResolvePendingCovertActions(10)
	want := []string{"ada", "mel", "zoe"}
	if len(effects) != len(want) {
		t.Fatalf("got %d effects want %d", len(effects), len(want))
	}
	for i, eff := range effects {
		if eff.Actor != want[i] {
			t.Fatalf("position %d got %s want %s", i, eff.Actor, want[i])
		}
	}
}

func TestResolveRechecksUnlockConditions(t *testing.T) {
	ld := testLedger(t)
	p := ld.EnsurePlayer("ada")
	p.CashMicros = CrashUnlockCashMicros
	ld.injectedMicros += CrashUnlockCashMicros - StarterCashMicros

	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertMarketCrash}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}

	// Capital drops below the unlock bar before resolution; the
	// action fizzles instead of firing at a discount.
	p.CashMicros = StarterCashMicros
	ld.injectedMicros -= CrashUnlockCashMicros - StarterCashMicros

	effects := ld.ResolvePendingCovertActions(10)
	if len(effects) != 1 || effects[0].PublicMsg != "" {
		t.Fatalf("expected a silent fizzle, got %+v", effects)
	}
	for _, c := range ld.Companies() {
		if len(c.conditions) != 0 {
			t.Fatalf("fizzled crash must leave no pressure on %s", c.Symbol)
		}
	}
}

func TestBribePaysOnceAndStaysConserved(t *testing.T) {
	ld := testLedger(t)
	p := ld.EnsurePlayer("ada")
	p.CashMicros = 0
	ld.injectedMicros -= StarterCashMicros

	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertBribe}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	ld.ResolvePendingCovertActions(10)
	if p.CashMicros != BribeCashMicros {
		t.Fatalf("bribe got %d want %d", p.CashMicros, BribeCashMicros)
	}
	if err := ld.CheckConservation(); err != nil {
		t.Fatalf("conservation broken: %v", err)
	}
	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertBribe}); !errors.Is(err, ErrCovertLocked) {
		t.Fatalf("second bribe must be locked, got %v", err)
	}
}

func TestInsightUnlockAndExpiry(t *testing.T) {
	ld := testLedger(t)
	p := ld.EnsurePlayer("ada")
	c, _ := ld.Company("PURPLE")
	p.CashMicros = 1 << 60

	// Insight unlocks at a 10% stake in any one company.
	qty := c.IssuedShares / 10
	if _, err := ld.ApplyOrder(OrderInput{Player: "ada", Symbol: "PURPLE", Side: SideBuy, Quantity: qty}, 1); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if err := ld.EnqueueCovert("ada", CovertAction{Kind: CovertInsight}); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	ld.ResolvePendingCovertActions(100)

	snap := ld.BuildSnapshot("ada", 101, PhaseDay, "day 2 06:00", 1, false, "")
	if snap.Companies[0].Insight == nil {
		t.Fatalf("insight should expose raw company state")
	}
	expired := ld.BuildSnapshot("ada", 100+covertPressureTicks, PhaseDay, "", 1, false, "")
	if expired.Companies[0].Insight != nil {
		t.Fatalf("insight must expire")
	}
}

func TestOffersFollowUnlockState(t *testing.T) {
	ld := testLedger(t)
	p := ld.EnsurePlayer("ada")

	offers := ld.Offers("ada")
	for _, o := range offers {
		if o.Kind == CovertMarketCrash {
			t.Fatalf("crash must not be offered without capital")
		}
	}

	p.CashMicros = CrashUnlockCashMicros
	ld.injectedMicros += CrashUnlockCashMicros - StarterCashMicros
	var found bool
	for _, o := range ld.Offers("ada") {
		if o.Kind == CovertMarketCrash {
			found = true
		}
	}
	if !found {
		t.Fatalf("crash should be offered at %d cash", CrashUnlockCashMicros)
	}
}
