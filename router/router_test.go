package router_test

import (
	"math"
	"testing"

	"github.com/xraph/taskchan/router"
)

type sessionID string

type shard uint16

// ---------------------------------------------------------------------------
// Hash
// ---------------------------------------------------------------------------

func TestHash_Stable(t *testing.T) {
	if router.Hash(42) != router.Hash(42) {
		t.Fatal("equal ints should hash equally")
	}
	if router.Hash("conn-7") != router.Hash("conn-7") {
		t.Fatal("equal strings should hash equally")
	}
	if router.Hash(sessionID("abc")) != router.Hash("abc") {
		t.Fatal("named string type should hash like its underlying value")
	}
	if router.Hash(shard(9)) != router.Hash(uint64(9)) {
		t.Fatal("named unsigned type should hash like its widened value")
	}
	if router.Hash(0.0) != router.Hash(math.Copysign(0, -1)) {
		t.Fatal("+0 and -0 should hash equally")
	}
}

func TestHash_Spreads(t *testing.T) {
	seen := make(map[uint64]struct{})
	for i := range 1000 {
		seen[router.Hash(i)] = struct{}{}
	}
	if len(seen) != 1000 {
		t.Fatalf("expected 1000 distinct hashes, got %d", len(seen))
	}
}

// ---------------------------------------------------------------------------
// Fixed
// ---------------------------------------------------------------------------

func TestNewFixed_RejectsNonPowerOfTwo(t *testing.T) {
	for _, n := range []int{0, -4, 3, 12, 33} {
		if _, err := router.NewFixed[int, int](n); err == nil {
			t.Errorf("NewFixed(%d) should fail", n)
		}
	}
	for _, n := range []int{1, 2, 32, 1024} {
		if _, err := router.NewFixed[int, int](n); err != nil {
			t.Errorf("NewFixed(%d) unexpected error: %v", n, err)
		}
	}
}

func TestFixed_RoutesSameChannelToSameBucket(t *testing.T) {
	f, err := router.NewFixed[int, string](32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Len() != 32 {
		t.Fatalf("Len() = %d, want 32", f.Len())
	}
	for c := 1; c < 200; c++ {
		b := f.Bucket(c)
		if b < 0 || b >= 32 {
			t.Fatalf("Bucket(%d) = %d out of range", c, b)
		}
		if f.Lookup(c) != f.At(b) {
			t.Fatalf("Lookup(%d) does not match At(Bucket)", c)
		}
		q, created := f.Ensure(c)
		if created || q != f.Lookup(c) {
			t.Fatalf("Ensure(%d) should return the existing bucket", c)
		}
	}
	if !f.Static() || f.Compact() != 0 || f.Strategy() != router.StrategyFixed {
		t.Fatal("fixed router should be static and never compact")
	}
}

// ---------------------------------------------------------------------------
// Dynamic
// ---------------------------------------------------------------------------

func TestDynamic_EnsureCreatesOnce(t *testing.T) {
	d := router.NewDynamic[string, int]()
	if d.Lookup("a") != nil {
		t.Fatal("Lookup on empty router should return nil")
	}

	qa, created := d.Ensure("a")
	if !created {
		t.Fatal("first Ensure should create")
	}
	again, created := d.Ensure("a")
	if created || again != qa {
		t.Fatal("second Ensure should return the existing queue")
	}
	d.Ensure("b")

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if d.ChannelAt(0) != "a" || d.ChannelAt(1) != "b" {
		t.Fatal("queues should keep insertion order")
	}
	if d.Static() || d.Strategy() != router.StrategyDynamic {
		t.Fatal("dynamic router should not be static")
	}
}

func TestDynamic_CompactEvictsIdleOnly(t *testing.T) {
	d := router.NewDynamic[int, string]()

	idle, _ := d.Ensure(1)
	busy, _ := d.Ensure(2)
	owned, _ := d.Ensure(3)
	inflight, _ := d.Ensure(4)

	busy.PushBack("x")
	owned.Claim(7)
	inflight.PushBack("y")
	inflight.Take()

	if removed := d.Compact(); removed != 1 {
		t.Fatalf("Compact() removed %d, want 1", removed)
	}
	if d.Lookup(1) != nil {
		t.Fatal("idle queue should be evicted")
	}
	if d.Lookup(2) != busy || d.Lookup(3) != owned || d.Lookup(4) != inflight {
		t.Fatal("non-idle queues should survive with the same identity")
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	for i := range d.Len() {
		if d.Lookup(d.ChannelAt(i)) != d.At(i) {
			t.Fatalf("index out of sync at %d", i)
		}
	}

	// An evicted channel gets a fresh queue on demand.
	fresh, created := d.Ensure(1)
	if !created || fresh == idle {
		t.Fatal("evicted channel should be recreated")
	}
}
