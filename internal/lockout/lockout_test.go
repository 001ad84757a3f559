package lockout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T, threshold int, window time.Duration) *Tracker {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTracker(client, Config{
		Threshold: threshold,
		Window:    window,
		Prefix:    "alo",
	})
}

func TestStatusMissingRecordIsClear(t *testing.T) {
	tracker := newTestTracker(t, 5, 15*time.Minute)

	state, err := tracker.Status(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if state.Fails != 0 || !state.LockedUntil.IsZero() {
		t.Fatalf("expected clear state, got %+v", state)
	}
}

func TestRecordFailureAccumulatesThenLocks(t *testing.T) {
	tracker := newTestTracker(t, 5, 15*time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		state, err := tracker.RecordFailure(ctx, "alice", now)
		if err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i, err)
		}
		if state.Fails != i {
			t.Fatalf("expected %d fails, got %d", i, state.Fails)
		}
		if !state.LockedUntil.IsZero() {
			t.Fatalf("expected no lock below threshold, got %+v", state)
		}
	}

	state, err := tracker.RecordFailure(ctx, "alice", now)
	if err != nil {
		t.Fatalf("RecordFailure at threshold failed: %v", err)
	}
	if state.Fails != 5 {
		t.Fatalf("expected 5 fails, got %d", state.Fails)
	}
	want := now.Add(15 * time.Minute)
	if !state.LockedUntil.Equal(want) {
		t.Fatalf("expected lock until %v, got %v", want, state.LockedUntil)
	}
	if !state.Locked(now.Add(10 * time.Minute)) {
		t.Fatal("expected lock active inside window")
	}
	if !state.Expired(now.Add(16 * time.Minute)) {
		t.Fatal("expected lock lapsed past window")
	}
}

func TestClearResetsState(t *testing.T) {
	tracker := newTestTracker(t, 3, time.Minute)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := tracker.RecordFailure(ctx, "alice", now); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	if err := tracker.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	state, err := tracker.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if state.Fails != 0 || !state.LockedUntil.IsZero() {
		t.Fatalf("expected clear state, got %+v", state)
	}
}

func TestTrackersAreIndependentPerUsername(t *testing.T) {
	tracker := newTestTracker(t, 2, time.Minute)
	ctx := context.Background()
	now := time.Now()

	if _, err := tracker.RecordFailure(ctx, "alice", now); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := tracker.RecordFailure(ctx, "alice", now); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	state, err := tracker.Status(ctx, "bob")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if state.Fails != 0 {
		t.Fatalf("expected bob untouched, got %+v", state)
	}
}

func TestConcurrentFailuresNeverMissTheLock(t *testing.T) {
	tracker := newTestTracker(t, 5, 15*time.Minute)
	ctx := context.Background()
	now := time.Now()

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]State, attempts)

	// Racing failures must observe every count exactly once: the increment
	// and the threshold comparison are one atomic script.
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			state, err := tracker.RecordFailure(ctx, "alice", now)
			if err != nil {
				t.Errorf("RecordFailure failed: %v", err)
				return
			}
			results[slot] = state
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, attempts)
	for _, state := range results {
		if seen[state.Fails] {
			t.Fatalf("count %d observed twice: lost increment", state.Fails)
		}
		seen[state.Fails] = true
		if state.Fails >= 5 && state.LockedUntil.IsZero() {
			t.Fatalf("count %d at or past threshold without lock", state.Fails)
		}
		if state.Fails < 5 && !state.LockedUntil.IsZero() {
			t.Fatalf("count %d below threshold carries lock", state.Fails)
		}
	}
	for i := 1; i <= attempts; i++ {
		if !seen[i] {
			t.Fatalf("count %d never observed", i)
		}
	}

	final, err := tracker.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if final.Fails != attempts || !final.Locked(now) {
		t.Fatalf("unexpected final state: %+v", final)
	}
}
