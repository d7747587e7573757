package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AFTERHOURS_ADDR", "")
	t.Setenv("AFTERHOURS_TICK_EVERY", "")
	t.Setenv("AFTERHOURS_DAY_TICKS", "")

	cfg := LoadServerFromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr got %q", cfg.Addr)
	}
	if cfg.TickEvery != time.Second {
		t.Fatalf("tick got %v", cfg.TickEvery)
	}
	if cfg.DayTicks != 64 || cfg.NightTicks != 32 {
		t.Fatalf("phase ticks got %d/%d", cfg.DayTicks, cfg.NightTicks)
	}
}

func TestLoadServerPortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg := LoadServerFromEnv()
	if cfg.Addr != ":9090" {
		t.Fatalf("addr got %q", cfg.Addr)
	}
}

func TestEnvParsingFallsBackOnGarbage(t *testing.T) {
	t.Setenv("AFTERHOURS_TICK_EVERY", "soon")
	t.Setenv("AFTERHOURS_DAY_TICKS", "many")
	cfg := LoadServerFromEnv()
	if cfg.TickEvery != time.Second || cfg.DayTicks != 64 {
		t.Fatalf("garbage env must fall back to defaults: %+v", cfg)
	}
}
