package object

import (
	"strings"
	"testing"
	"time"
)

func TestBuildKeyNamespacesByOwner(t *testing.T) {
	at := time.Date(2026, time.May, 4, 9, 30, 0, 0, time.UTC)
	a, err := BuildKey("alice", "Ada_Lovelace_CV.pdf", at)
	if err != nil {
		t.Fatalf("BuildKey: %v", err)
	}
	b, _ := BuildKey("bob", "Ada_Lovelace_CV.pdf", at)
	if a == b {
		t.Fatalf("expected distinct keys per owner")
	}
	if !strings.HasPrefix(a, "exports/") || !strings.HasSuffix(a, "20260504T093000.000Z_Ada_Lovelace_CV.pdf") {
		t.Fatalf("unexpected key %q", a)
	}
	if strings.Contains(a, "alice") {
		t.Fatalf("owner id leaked into key %q", a)
	}
}

func TestBuildKeyRejectsTraversal(t *testing.T) {
	if _, err := BuildKey("alice", "../etc/passwd", time.Now()); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := BuildKey("", "cv.pdf", time.Now()); err == nil {
		t.Fatalf("expected empty owner to be rejected")
	}
}
