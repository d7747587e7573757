package session

import (
	"testing"

	"afterhours/internal/game"
)

func snapAt(tick int64) game.Snapshot {
	return game.Snapshot{Tick: tick}
}

func TestPushDropsOldestWhenFull(t *testing.T) {
	r := NewRegistry(3, nil)
	s := r.Attach("ada")

	for tick := int64(1); tick <= 10; tick++ {
		s.push(snapAt(tick))
	}
	// Queue of 3 after 10 pushes keeps the newest 3, in order.
	want := []int64{8, 9, 10}
	for _, w := range want {
		got := <-s.Updates()
		if got.Tick != w {
			t.Fatalf("got tick %d want %d", got.Tick, w)
		}
	}
	if s.Dropped() != 7 {
		t.Fatalf("dropped got %d want 7", s.Dropped())
	}
}

func TestBroadcastBuildsOncePerPlayer(t *testing.T) {
	r := NewRegistry(4, nil)
	a1 := r.Attach("ada")
	a2 := r.Attach("ada")
	b := r.Attach("bob")

	builds := 0
	r.Broadcast(func(player string) game.Snapshot {
		builds++
		return game.Snapshot{Player: player, Tick: 1}
	})
	if builds != 2 {
		t.Fatalf("expected one build per distinct player, got %d", builds)
	}
	for _, s := range []*Session{a1, a2} {
		if snap := <-s.Updates(); snap.Player != "ada" {
			t.Fatalf("ada session got snapshot for %q", snap.Player)
		}
	}
	if snap := <-b.Updates(); snap.Player != "bob" {
		t.Fatalf("bob session got snapshot for %q", snap.Player)
	}
}

func TestDetachClosesQueue(t *testing.T) {
	r := NewRegistry(2, nil)
	s := r.Attach("ada")
	r.Detach(s.ID)
	if _, open := <-s.Updates(); open {
		t.Fatalf("detached session channel must be closed")
	}
	// Late pushes against a closed session are no-ops.
	s.push(snapAt(1))
	if r.Online() != 0 {
		t.Fatalf("online got %d want 0", r.Online())
	}
}

func TestOnlineCountsDistinctPlayers(t *testing.T) {
	r := NewRegistry(2, nil)
	r.Attach("ada")
	r.Attach("ada")
	r.Attach("bob")
	if got := r.Online(); got != 2 {
		t.Fatalf("online got %d want 2", got)
	}
}
