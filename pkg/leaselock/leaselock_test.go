package leaselock

import "testing"

func TestDocumentKey(t *testing.T) {
	got := DocumentKey("wikipedia", "https://en.wikipedia.org/wiki/Napoleon")
	want := "ingest:wikipedia:https://en.wikipedia.org/wiki/Napoleon"
	if got != want {
		t.Fatalf("DocumentKey = %q, want %q", got, want)
	}
}

func TestAcquireRejectsEmptyKey(t *testing.T) {
	locker := &Locker{}
	if _, err := locker.Acquire(t.Context(), "", Options{}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
