package remotes

import (
	"testing"
	"time"

	"somfy-rts/internal/somfy"
)

func frame(id uint32, ctrl somfy.Control, counter uint16, retrans bool) somfy.Frame {
	return somfy.Frame{
		Model:          somfy.Model,
		ID:             id,
		Control:        ctrl.String(),
		ControlCode:    ctrl,
		Counter:        counter,
		Retransmission: retrans,
	}
}

func TestStoreObserveTracksPresses(t *testing.T) {
	store := NewStore(StoreConfig{})
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	obs := store.Observe(now, frame(0x010203, somfy.ControlUp, 10, false))
	if !obs.New || obs.Duplicate || obs.CounterRegressed {
		t.Fatalf("unexpected first observation: %+v", obs)
	}

	obs = store.Observe(now.Add(30*time.Millisecond), frame(0x010203, somfy.ControlUp, 10, true))
	if obs.New || !obs.Duplicate || obs.CounterRegressed {
		t.Fatalf("expected duplicate retransmission: %+v", obs)
	}

	obs = store.Observe(now.Add(time.Second), frame(0x010203, somfy.ControlDown, 11, false))
	if obs.Duplicate || obs.CounterRegressed {
		t.Fatalf("unexpected observation for advanced counter: %+v", obs)
	}
	if obs.Remote.Frames != 3 || obs.Remote.Repeats != 1 || obs.Remote.Control != "Down (4)" {
		t.Fatalf("unexpected remote state: %+v", obs.Remote)
	}
}

func TestStoreObserveFlagsCounterRegression(t *testing.T) {
	store := NewStore(StoreConfig{})
	now := time.Now()
	store.Observe(now, frame(7, somfy.ControlMy, 100, false))

	// A replayed first frame carries the same counter.
	obs := store.Observe(now.Add(time.Second), frame(7, somfy.ControlMy, 100, false))
	if !obs.CounterRegressed {
		t.Fatalf("expected regression for repeated first frame: %+v", obs)
	}
	obs = store.Observe(now.Add(2*time.Second), frame(7, somfy.ControlUp, 50, false))
	if !obs.CounterRegressed || obs.Remote.Regressions != 2 {
		t.Fatalf("expected regression for lower counter: %+v", obs)
	}
}

func TestStoreExpiresAfterTTL(t *testing.T) {
	store := NewStore(StoreConfig{TTL: time.Minute})
	now := time.Now()
	store.Observe(now, frame(7, somfy.ControlMy, 100, false))

	obs := store.Observe(now.Add(2*time.Minute), frame(7, somfy.ControlMy, 100, false))
	if !obs.New || obs.CounterRegressed {
		t.Fatalf("expected expired remote to start over: %+v", obs)
	}
	if got := len(store.Snapshot(now.Add(5 * time.Minute))); got != 0 {
		t.Fatalf("expected snapshot to purge expired remotes, got %d", got)
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	store := NewStore(StoreConfig{MaxRemotes: 2})
	now := time.Now()
	store.Observe(now, frame(3, somfy.ControlUp, 1, false))
	store.Observe(now.Add(time.Second), frame(1, somfy.ControlUp, 1, false))
	store.Observe(now.Add(2*time.Second), frame(2, somfy.ControlUp, 1, false))

	snap := store.Snapshot(now.Add(2 * time.Second))
	if len(snap) != 2 {
		t.Fatalf("expected 2 remotes, got %d", len(snap))
	}
	if snap[0].ID != 1 || snap[1].ID != 2 {
		t.Fatalf("expected sorted ids [1 2], got [%d %d]", snap[0].ID, snap[1].ID)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if obs := s.Observe(time.Now(), frame(1, somfy.ControlUp, 1, false)); obs.New {
		t.Fatalf("nil store should not record")
	}
	if s.Snapshot(time.Now()) != nil || s.Len() != 0 {
		t.Fatalf("nil store should be empty")
	}
}
