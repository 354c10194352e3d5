package domain

import "time"

// SaleStatusEvent is the message published on the checkout.events exchange
// when a payment reference transitions out of pending. Consumers (crediting,
// notification, attribution, remarketing) subscribe independently so that
// their failure modes never touch the primary status write.
type SaleStatusEvent struct {
	EventID          string    `json:"event_id"`
	PaymentReference string    `json:"payment_reference"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Routing keys for SaleStatusEvent, one per terminal status.
const (
	EventSaleApproved  = "sale.status.approved"
	EventSaleRejected  = "sale.status.rejected"
	EventSaleCancelled = "sale.status.cancelled"
)

// SaleEventExchange is the topic exchange all sale lifecycle events go to.
const SaleEventExchange = "checkout.events"
