package engine

import (
	"fmt"
	"testing"
)

func TestDedupSeenAfterMark(t *testing.T) {
	d := NewDedup(100)

	if d.Seen("k1") {
		t.Fatal("fresh key should not be seen")
	}
	d.Mark("k1")
	if !d.Seen("k1") {
		t.Fatal("marked key should be seen")
	}

	// Marking again is a no-op.
	d.Mark("k1")
	if d.Len() != 1 {
		t.Fatalf("Len() = %d after double mark, want 1", d.Len())
	}
}

func TestDedupEvictsOldestHalf(t *testing.T) {
	d := NewDedup(10)

	for i := 0; i < 11; i++ {
		d.Mark(fmt.Sprintf("k%d", i))
	}

	// Crossing the limit sweeps the oldest half in one go.
	if d.Len() != 6 {
		t.Fatalf("Len() = %d after eviction, want 6", d.Len())
	}
	for i := 0; i < 5; i++ {
		if d.Seen(fmt.Sprintf("k%d", i)) {
			t.Errorf("k%d should have been evicted", i)
		}
	}
	for i := 5; i < 11; i++ {
		if !d.Seen(fmt.Sprintf("k%d", i)) {
			t.Errorf("k%d should have survived", i)
		}
	}
}

func TestDedupDefaultLimit(t *testing.T) {
	d := NewDedup(0)
	// The fallback limit is large; a small burst must not evict anything.
	for i := 0; i < 100; i++ {
		d.Mark(fmt.Sprintf("k%d", i))
	}
	if d.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", d.Len())
	}
}
