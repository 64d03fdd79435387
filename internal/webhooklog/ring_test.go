package webhooklog

import (
	"fmt"
	"testing"
)

func TestRingDropsOldestOnOverflow(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(Entry{Outcome: fmt.Sprintf("entry-%d", i)})
	}

	if r.Len() != 3 {
		t.Fatalf("Len()=%d, want 3", r.Len())
	}
	snap := r.Snapshot()
	want := []string{"entry-4", "entry-3", "entry-2"}
	for i, w := range want {
		if snap[i].Outcome != w {
			t.Fatalf("Snapshot()[%d]=%q, want %q", i, snap[i].Outcome, w)
		}
	}
}

func TestRingSnapshotNewestFirst(t *testing.T) {
	r := NewRing(10)
	r.Add(Entry{Outcome: "first"})
	r.Add(Entry{Outcome: "second"})

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Outcome != "second" || snap[1].Outcome != "first" {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(2)
	r.Add(Entry{Outcome: "x"})
	r.Clear()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Fatal("Clear did not empty the ring")
	}
	// Reusable after clear.
	r.Add(Entry{Outcome: "y"})
	if r.Len() != 1 {
		t.Fatalf("Len()=%d after re-add, want 1", r.Len())
	}
}

func TestRingZeroCapacityFallsBackToDefault(t *testing.T) {
	r := NewRing(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		r.Add(Entry{})
	}
	if r.Len() != DefaultCapacity {
		t.Fatalf("Len()=%d, want %d", r.Len(), DefaultCapacity)
	}
}
