package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
)

func TestSellerShare(t *testing.T) {
	cases := []struct {
		gross      int64
		wantSeller int64
		wantFee    int64
	}{
		{100000, 90000, 10000}, // 1000 MZN
		{90000, 81000, 9000},
		{1, 1, 0},    // 0.9 rounds half up
		{5, 5, 0},    // 4.5 rounds half up
		{15, 14, 1},  // 13.5 rounds half up to 14
		{0, 0, 0},
		{99999, 89999, 10000},
	}

	for _, tc := range cases {
		seller, fee := SellerShare(tc.gross)
		if seller != tc.wantSeller || fee != tc.wantFee {
			t.Errorf("SellerShare(%d) = (%d, %d), want (%d, %d)", tc.gross, seller, fee, tc.wantSeller, tc.wantFee)
		}
		if seller+fee != tc.gross {
			t.Errorf("SellerShare(%d): split does not sum back to gross", tc.gross)
		}
	}
}

type ledgerRepoStub struct {
	store.Repository

	creditCalls  []domain.BalanceMovement
	creditResult bool
	creditErr    error

	debitCalls  []domain.BalanceMovement
	debitResult bool
	debitErr    error

	netSum     int64
	creditSums []int64
	sumCalls   int
	stored     *domain.SellerBalance
}

func (s *ledgerRepoStub) CreditSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error) {
	s.creditCalls = append(s.creditCalls, movement)
	return s.creditResult, s.creditErr
}

func (s *ledgerRepoStub) DebitSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error) {
	s.debitCalls = append(s.debitCalls, movement)
	return s.debitResult, s.debitErr
}

func (s *ledgerRepoStub) SumNetMovements(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	return s.netSum, nil
}

func (s *ledgerRepoStub) SumCreditMovements(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (int64, error) {
	if s.sumCalls < len(s.creditSums) {
		v := s.creditSums[s.sumCalls]
		s.sumCalls++
		return v, nil
	}
	s.sumCalls++
	return 0, nil
}

func (s *ledgerRepoStub) StoreSellerAggregates(ctx context.Context, balance *domain.SellerBalance) error {
	s.stored = balance
	return nil
}

func TestCreditSale_KeyedOnSaleID(t *testing.T) {
	repo := &ledgerRepoStub{creditResult: true}
	svc := NewBalanceService(repo, time.UTC)

	sale := domain.Sale{
		ID:           uuid.New(),
		PublicID:     "AB12CD34",
		SellerID:     uuid.New(),
		SellerAmount: 90000,
	}

	applied, err := svc.CreditSale(context.Background(), sale)
	if err != nil {
		t.Fatalf("CreditSale returned error: %v", err)
	}
	if !applied {
		t.Fatal("expected credit to apply")
	}
	if len(repo.creditCalls) != 1 {
		t.Fatalf("expected one credit call, got %d", len(repo.creditCalls))
	}
	movement := repo.creditCalls[0]
	if movement.Origin != domain.OriginSaleCredit {
		t.Fatalf("unexpected origin %q", movement.Origin)
	}
	if movement.OriginReference != sale.ID.String() {
		t.Fatal("credit must be keyed on the sale id")
	}
	if movement.Amount != 90000 {
		t.Fatalf("expected seller share credited, got %d", movement.Amount)
	}
}

func TestProcessPayout_PropagatesInsufficientBalance(t *testing.T) {
	repo := &ledgerRepoStub{debitErr: store.ErrInsufficientBalance}
	svc := NewBalanceService(repo, time.UTC)

	_, err := svc.ProcessPayout(context.Background(), uuid.New(), "payout-001", 500000)
	if err != store.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRecomputeAggregates_StoresAllWindows(t *testing.T) {
	repo := &ledgerRepoStub{
		netSum: 250000,
		// lifetime, today, yesterday, week, month
		creditSums: []int64{300000, 40000, 30000, 120000, 280000},
	}
	svc := NewBalanceService(repo, time.UTC)

	balance, err := svc.RecomputeAggregates(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("RecomputeAggregates returned error: %v", err)
	}

	if balance.CurrentBalance != 250000 {
		t.Fatalf("current balance = %d, want 250000", balance.CurrentBalance)
	}
	if balance.LifetimeRevenue != 300000 || balance.TodayRevenue != 40000 ||
		balance.YesterdayRevenue != 30000 || balance.WeekRevenue != 120000 || balance.MonthRevenue != 280000 {
		t.Fatalf("unexpected windows: %+v", balance)
	}
	if repo.stored == nil {
		t.Fatal("recomputed aggregates must be stored")
	}
}

func TestMondayOffset(t *testing.T) {
	cases := map[time.Weekday]int{
		time.Monday:    0,
		time.Tuesday:   1,
		time.Wednesday: 2,
		time.Thursday:  3,
		time.Friday:    4,
		time.Saturday:  5,
		time.Sunday:    6,
	}
	for day, want := range cases {
		if got := mondayOffset(day); got != want {
			t.Errorf("mondayOffset(%v) = %d, want %d", day, got, want)
		}
	}
}
