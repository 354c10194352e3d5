package domain

import "github.com/google/uuid"

// Product is the read-only catalog view this service needs. Catalog CRUD is
// owned elsewhere; the checkout path only reads pricing, activation and
// remarketing settings.
type Product struct {
	ID                      uuid.UUID `json:"id"`
	PublicID                string    `json:"public_id"` // 6-digit checkout id
	SellerID                uuid.UUID `json:"seller_id"`
	Name                    string    `json:"name"`
	Price                   int64     `json:"price"` // centavos
	DiscountPercent         int       `json:"discount_percent"`
	Active                  bool      `json:"active"`
	RemarketingEnabled      bool      `json:"remarketing_enabled"`
	RemarketingDelayMinutes int       `json:"remarketing_delay_minutes"`
	CheckoutLink            string    `json:"checkout_link"`
}
