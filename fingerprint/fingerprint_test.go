package fingerprint

import "testing"

func TestHashIsStableAndHex(t *testing.T) {
	a := Hash("203.0.113.7")
	b := Hash("203.0.113.7")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if Hash("203.0.113.8") == a {
		t.Fatal("distinct inputs produced the same hash")
	}
}

func TestVisitorCombinesRawValues(t *testing.T) {
	visitor := Visitor("203.0.113.7", "test-agent/1.0")
	if visitor != Hash("203.0.113.7"+"test-agent/1.0") {
		t.Fatal("visitor hash must digest the raw concatenation")
	}
	if visitor == Hash("203.0.113.7") {
		t.Fatal("visitor hash must depend on the user agent")
	}
}
