package domain

import (
	"time"

	"github.com/google/uuid"
)

// Movement directions and origins. A movement's (seller, origin, reference)
// triple is unique, which is what makes crediting and payouts replay-safe.
const (
	MovementCredit = "credit"
	MovementDebit  = "debit"

	OriginSaleCredit  = "sale_credit"
	OriginPayoutDebit = "payout_debit"
)

// BalanceMovement is one immutable row in the append-only seller ledger.
// Movements are never updated or deleted; every balance figure shown anywhere
// is derivable from them.
type BalanceMovement struct {
	ID              uuid.UUID `json:"id"`
	SellerID        uuid.UUID `json:"seller_id"`
	Direction       string    `json:"direction"`
	Origin          string    `json:"origin"`
	OriginReference string    `json:"origin_reference"`
	Amount          int64     `json:"amount"` // centavos, always positive
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// SellerBalance is the cached per-seller aggregate. It is upserted
// incrementally on each movement and can be rebuilt wholesale from the
// movement log when the cache drifts.
type SellerBalance struct {
	SellerID         uuid.UUID `json:"seller_id"`
	CurrentBalance   int64     `json:"current_balance"`
	LifetimeRevenue  int64     `json:"lifetime_revenue"`
	TodayRevenue     int64     `json:"today_revenue"`
	YesterdayRevenue int64     `json:"yesterday_revenue"`
	WeekRevenue      int64     `json:"week_revenue"`
	MonthRevenue     int64     `json:"month_revenue"`
	UpdatedAt        time.Time `json:"updated_at"`
}
