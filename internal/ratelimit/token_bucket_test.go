package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTokenBucket_StartsFull(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clk, 3, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow(1) {
			t.Fatalf("Allow #%d = false, want true", i)
		}
	}
	if b.Allow(1) {
		t.Fatalf("Allow after exhaustion = true, want false")
	}
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clk, 10, 2)

	if !b.Allow(10) {
		t.Fatalf("initial Allow(10) failed")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) on empty bucket succeeded")
	}

	clk.Advance(500 * time.Millisecond) // +1 token
	if !b.Allow(1) {
		t.Fatalf("Allow(1) after partial refill failed")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) exceeded refilled amount")
	}
}

func TestTokenBucket_ClampsToCapacity(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clk, 2, 100)

	clk.Advance(time.Hour)
	if !b.Allow(2) {
		t.Fatalf("Allow(2) after long idle failed")
	}
	if b.Allow(1) {
		t.Fatalf("bucket exceeded capacity after long idle")
	}
}

func TestTokenBucket_ClockGoesBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clk, 1, 1)

	if !b.Allow(1) {
		t.Fatalf("initial Allow(1) failed")
	}

	clk.Advance(-time.Minute)
	if b.Allow(1) {
		t.Fatalf("Allow(1) granted tokens after clock regression")
	}

	clk.Advance(time.Minute + time.Second)
	if !b.Allow(1) {
		t.Fatalf("Allow(1) after recovery failed")
	}
}

func TestTokenBucket_NonPositiveCost(t *testing.T) {
	b := NewTokenBucket(nil, 0, 0)
	if !b.Allow(0) {
		t.Fatalf("Allow(0) = false, want true")
	}
	if !b.Allow(-5) {
		t.Fatalf("Allow(-5) = false, want true")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) on zero-capacity bucket = true, want false")
	}
}
