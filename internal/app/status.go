/**
 * @description
 * This file normalizes the many status vocabularies spoken by the mobile-money
 * gateway (synchronous responses and webhooks alike) into the service's four
 * canonical statuses. Both reconciliation paths go through CanonicalStatus, so
 * a new gateway spelling only ever needs to be added here.
 */

package app

import (
	"strings"

	"github.com/tendapay/checkout-service/internal/domain"
)

// approvedStatuses, rejectedStatuses and cancelledStatuses enumerate every
// gateway spelling observed in production. Anything not listed maps to
// pending, which keeps an unknown vocabulary from ever finalizing a sale.
var (
	approvedStatuses = map[string]struct{}{
		"success": {}, "successful": {}, "approved": {}, "completed": {},
		"ok": {}, "paid": {}, "settled": {}, "confirmed": {},
	}
	rejectedStatuses = map[string]struct{}{
		"failed": {}, "failure": {}, "rejected": {}, "declined": {},
		"error": {}, "insufficient_funds": {}, "invalid_pin": {},
	}
	cancelledStatuses = map[string]struct{}{
		"cancelled": {}, "canceled": {}, "cancelled_by_user": {},
		"aborted": {}, "expired": {},
	}
)

// CanonicalStatus maps a raw gateway status string onto the canonical
// lifecycle. Matching is case-insensitive and whitespace-tolerant; empty and
// unknown values resolve to pending.
func CanonicalStatus(raw string) domain.Status {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := approvedStatuses[normalized]; ok {
		return domain.StatusApproved
	}
	if _, ok := rejectedStatuses[normalized]; ok {
		return domain.StatusRejected
	}
	if _, ok := cancelledStatuses[normalized]; ok {
		return domain.StatusCancelled
	}
	return domain.StatusPending
}
