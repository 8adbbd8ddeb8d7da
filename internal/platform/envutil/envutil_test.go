package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("OM_TEST_DUR", "45")
	if got := Duration("OM_TEST_DUR", time.Second); got != 45*time.Second {
		t.Fatalf("bare seconds: got=%s", got)
	}
	t.Setenv("OM_TEST_DUR", "1m30s")
	if got := Duration("OM_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("go syntax: got=%s", got)
	}
	t.Setenv("OM_TEST_DUR", "soon")
	if got := Duration("OM_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("invalid value should fall back: got=%s", got)
	}
}

func TestStringPicksFirstSetName(t *testing.T) {
	t.Setenv("OM_TEST_A", "")
	t.Setenv("OM_TEST_B", " gpt-4o ")
	if got := String("fallback", "OM_TEST_A", "OM_TEST_B"); got != "gpt-4o" {
		t.Fatalf("got=%q", got)
	}
	if got := String("fallback", "OM_TEST_MISSING"); got != "fallback" {
		t.Fatalf("got=%q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("OM_TEST_BOOL", "off")
	if Bool("OM_TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("OM_TEST_BOOL", "maybe")
	if !Bool("OM_TEST_BOOL", true) {
		t.Fatal("expected default")
	}
}
