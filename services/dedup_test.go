package services

import (
	"testing"
	"time"
)

func TestDedup_FirstDeliveryWins(t *testing.T) {
	d := NewMessageDeduplicator(100, time.Minute)

	if d.Seen("m1") {
		t.Error("first delivery reported as duplicate")
	}
	if !d.Seen("m1") {
		t.Error("second delivery not reported as duplicate")
	}
	if d.Seen("m2") {
		t.Error("unrelated id reported as duplicate")
	}
}

func TestDedup_EmptyIDNeverDuplicate(t *testing.T) {
	d := NewMessageDeduplicator(100, time.Minute)

	if d.Seen("") || d.Seen("") {
		t.Error("empty ids must never be treated as duplicates")
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0 after empty ids", d.Len())
	}
}

func TestDedup_TTLExpiry(t *testing.T) {
	d := NewMessageDeduplicator(100, 30*time.Millisecond)

	d.Seen("m1")
	if !d.Seen("m1") {
		t.Fatal("id forgotten before the TTL")
	}

	time.Sleep(50 * time.Millisecond)

	if d.Seen("m1") {
		t.Error("id remembered past the TTL")
	}
}

// A duplicate hit must not refresh the entry's slot; the original arrival
// time decides expiry.
func TestDedup_DuplicateDoesNotRefresh(t *testing.T) {
	d := NewMessageDeduplicator(100, 60*time.Millisecond)

	d.Seen("m1")
	time.Sleep(40 * time.Millisecond)
	if !d.Seen("m1") {
		t.Fatal("id forgotten before the TTL")
	}
	time.Sleep(40 * time.Millisecond)

	// 80ms after first arrival the entry is gone even though a duplicate
	// arrived at 40ms
	if d.Seen("m1") {
		t.Error("duplicate hit extended the TTL")
	}
}

func TestDedup_CapacityEvictsOldest(t *testing.T) {
	d := NewMessageDeduplicator(2, time.Minute)

	d.Seen("a")
	d.Seen("b")
	d.Seen("c")

	if d.Len() != 2 {
		t.Errorf("Len = %d, want capacity 2", d.Len())
	}
	if d.Seen("a") {
		t.Error("oldest id should have been evicted")
	}
	if !d.Seen("c") {
		t.Error("newest id should still be remembered")
	}
}
