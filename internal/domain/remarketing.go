package domain

import (
	"time"

	"github.com/google/uuid"
)

// Remarketing item lifecycle. An item is created pending when a checkout is
// cancelled, and moves to exactly one of sent or ignored when drained.
const (
	RemarketingPending = "pending"
	RemarketingSent    = "sent"
	RemarketingIgnored = "ignored"
)

// RemarketingItem is one scheduled re-engagement message for a cancelled
// checkout. At most one pending-or-sent item may exist per (customer,
// product, calendar day). Customer identity is any subset of the id, name,
// email and phone fields; two items match when any one of them matches.
type RemarketingItem struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	ProductID     uuid.UUID  `json:"product_id"`
	CancelledAt   time.Time  `json:"cancelled_at"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Status        string     `json:"status"`
	IgnoreReason  *string    `json:"ignore_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}
