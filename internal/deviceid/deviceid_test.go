package deviceid

import (
	"strings"
	"testing"
)

func TestSafeStripsInvalidCharacters(t *testing.T) {
	if got := Safe("dev A/../b!"); got != "devAb" {
		t.Fatalf("got %q", got)
	}
}

func TestSafeTruncatesTo64(t *testing.T) {
	raw := strings.Repeat("a", 100)
	got := Safe(raw)
	if len(got) != 64 {
		t.Fatalf("expected length 64, got %d", len(got))
	}
}

func TestSafeEmptyBecomesUnknown(t *testing.T) {
	if got := Safe("!!!"); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestSafeIsIdempotent(t *testing.T) {
	raw := "dev-A.1_ok"
	once := Safe(raw)
	twice := Safe(once)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

