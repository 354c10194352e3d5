/**
 * @description
 * This file defines the core domain models for the checkout-service. These
 * structs represent the main entities and data transfer objects (DTOs) used
 * throughout the service's business logic, database interactions, and API
 * layers.
 *
 * @notes
 * - Amounts are stored as `int64` centavos (the MZN minor unit), which avoids
 *   floating-point inaccuracies with financial data.
 * - A checkout fans out into one Sale row per purchased product. All rows
 *   created from one checkout share a `payment_reference`, which is the key
 *   the gateway echoes back on its webhook.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the canonical lifecycle state of a sale. Every status vocabulary
// the gateway speaks is normalized into one of these four values.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status is final. Terminal statuses never regress
// back to pending and never change into another terminal status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Sale is one purchased line item within a checkout. The row with
// IsOrderBump=false is the primary sale; once-per-checkout side effects
// (order confirmation, attribution forwarding, remarketing) key off it.
type Sale struct {
	ID               uuid.UUID    `json:"id"`
	PublicID         string       `json:"public_id"`
	PaymentReference string       `json:"payment_reference"`
	ProductID        uuid.UUID    `json:"product_id"`
	SellerID         uuid.UUID    `json:"seller_id"`
	CustomerName     string       `json:"customer_name"`
	CustomerEmail    string       `json:"customer_email,omitempty"`
	CustomerPhone    string       `json:"customer_phone"`
	PaymentMethod    string       `json:"payment_method"`
	IsOrderBump      bool         `json:"is_order_bump"`
	GrossAmount      int64        `json:"gross_amount"` // centavos
	SellerAmount     int64        `json:"seller_amount"`
	PlatformFee      int64        `json:"platform_fee"`
	Status           Status       `json:"status"`
	FailureReason    *string      `json:"failure_reason,omitempty"`
	FailureCode      *string      `json:"failure_code,omitempty"`
	Attribution      *Attribution `json:"attribution,omitempty"`
	Forwarded        bool         `json:"attribution_forwarded"`
	ForwardedAt      *time.Time   `json:"attribution_forwarded_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ApprovedAt       *time.Time   `json:"approved_at,omitempty"`
}

// CheckoutRequest is the DTO for incoming checkout API requests. Product ids
// are the 6-digit public identifiers shown on checkout pages.
type CheckoutRequest struct {
	ProductPublicID string       `json:"product_id"`
	Phone           string       `json:"phone"`
	PaymentMethod   string       `json:"payment_method"`
	CustomerName    string       `json:"customer_name,omitempty"`
	CustomerEmail   string       `json:"customer_email,omitempty"`
	AffiliateCode   string       `json:"affiliate_code,omitempty"`
	OrderBumpIDs    []string     `json:"order_bump_ids,omitempty"`
	Total           *int64       `json:"total,omitempty"` // client-computed, centavos
	Attribution     *Attribution `json:"attribution,omitempty"`
}

// CheckoutResult is returned to the caller immediately after the synchronous
// gateway attempt. A pending status means the webhook will settle the truth.
type CheckoutResult struct {
	Success          bool   `json:"success"`
	Status           Status `json:"status"`
	SaleID           string `json:"sale_id"` // public id of the primary sale
	SellerAmount     int64  `json:"seller_share"`
	GrossAmount      int64  `json:"gross_amount"`
	GatewayReference string `json:"gateway_reference,omitempty"`
}

// GatewayWebhook is the asynchronous status notification posted by the
// mobile-money gateway, keyed by the payment_reference we issued.
type GatewayWebhook struct {
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Amount       *int64 `json:"amount,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// Attribution carries the marketing-source parameters captured at checkout
// time. Pointer fields keep merge semantics honest: a later write may only
// fill fields that are still null, never clear a populated one.
type Attribution struct {
	UTMSource   *string    `json:"utm_source,omitempty"`
	UTMMedium   *string    `json:"utm_medium,omitempty"`
	UTMCampaign *string    `json:"utm_campaign,omitempty"`
	UTMContent  *string    `json:"utm_content,omitempty"`
	UTMTerm     *string    `json:"utm_term,omitempty"`
	Src         *string    `json:"src,omitempty"`
	Sck         *string    `json:"sck,omitempty"`
	IP          *string    `json:"ip,omitempty"`
	Forwarded   bool       `json:"forwarded"`
	ForwardedAt *time.Time `json:"forwarded_at,omitempty"`
}

// Merge fills the receiver's null fields from other. Populated fields are
// never overwritten. The forwarded flag is monotonic: false -> true only.
func (a *Attribution) Merge(other *Attribution) {
	if other == nil {
		return
	}
	if a.UTMSource == nil {
		a.UTMSource = other.UTMSource
	}
	if a.UTMMedium == nil {
		a.UTMMedium = other.UTMMedium
	}
	if a.UTMCampaign == nil {
		a.UTMCampaign = other.UTMCampaign
	}
	if a.UTMContent == nil {
		a.UTMContent = other.UTMContent
	}
	if a.UTMTerm == nil {
		a.UTMTerm = other.UTMTerm
	}
	if a.Src == nil {
		a.Src = other.Src
	}
	if a.Sck == nil {
		a.Sck = other.Sck
	}
	if a.IP == nil {
		a.IP = other.IP
	}
	if other.Forwarded {
		a.Forwarded = true
		if a.ForwardedAt == nil {
			a.ForwardedAt = other.ForwardedAt
		}
	}
}
