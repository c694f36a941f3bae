package leader

import (
	"errors"
	"testing"
)

func TestRenewalFailureReasonMessages(t *testing.T) {
	if got := renewalFailureReason(nil); got != "lock extend rejected" {
		t.Fatalf("unexpected message for nil error: %q", got)
	}
	if got := renewalFailureReason(errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected message: %q", got)
	}
}
