package app

import (
	"testing"

	"github.com/tendapay/checkout-service/internal/domain"
)

func TestCanonicalStatus_MapsGatewayVocabularies(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.Status
	}{
		{"success", domain.StatusApproved},
		{"successful", domain.StatusApproved},
		{"approved", domain.StatusApproved},
		{"completed", domain.StatusApproved},
		{"ok", domain.StatusApproved},
		{"paid", domain.StatusApproved},
		{"settled", domain.StatusApproved},
		{"confirmed", domain.StatusApproved},
		{"SUCCESS", domain.StatusApproved},
		{"  Paid  ", domain.StatusApproved},

		{"failed", domain.StatusRejected},
		{"failure", domain.StatusRejected},
		{"rejected", domain.StatusRejected},
		{"declined", domain.StatusRejected},
		{"error", domain.StatusRejected},
		{"insufficient_funds", domain.StatusRejected},
		{"invalid_pin", domain.StatusRejected},
		{"Declined", domain.StatusRejected},

		{"cancelled", domain.StatusCancelled},
		{"canceled", domain.StatusCancelled},
		{"cancelled_by_user", domain.StatusCancelled},
		{"aborted", domain.StatusCancelled},
		{"expired", domain.StatusCancelled},

		{"", domain.StatusPending},
		{"pending", domain.StatusPending},
		{"initiated", domain.StatusPending},
		{"processing", domain.StatusPending},
		{"in_progress", domain.StatusPending},
		{"accepted", domain.StatusPending},
		{"some_future_vocabulary", domain.StatusPending},
	}

	for _, tc := range cases {
		if got := CanonicalStatus(tc.raw); got != tc.want {
			t.Errorf("CanonicalStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if domain.StatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []domain.Status{domain.StatusApproved, domain.StatusRejected, domain.StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
}
