package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/gatewayclient"
	"github.com/tendapay/checkout-service/pkg/rabbitmq"
)

type checkoutRepoStub struct {
	store.Repository

	products map[string]*domain.Product
	sales    []domain.Sale

	applyCalls  int
	applyStatus domain.Status
	applyErrs   []error

	claimCalls int
}

func (s *checkoutRepoStub) FindProductByPublicID(ctx context.Context, publicID string) (*domain.Product, error) {
	p, ok := s.products[publicID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return p, nil
}

func (s *checkoutRepoStub) CreateSales(ctx context.Context, sales []domain.Sale) error {
	s.sales = append(s.sales, sales...)
	return nil
}

func (s *checkoutRepoStub) FindSalesByPaymentReference(ctx context.Context, paymentReference string) ([]domain.Sale, error) {
	var out []domain.Sale
	for _, sale := range s.sales {
		if sale.PaymentReference == paymentReference {
			out = append(out, sale)
		}
	}
	if len(out) == 0 {
		return nil, store.ErrSaleNotFound
	}
	return out, nil
}

func (s *checkoutRepoStub) FindSaleByPublicID(ctx context.Context, publicID string) (*domain.Sale, error) {
	for i := range s.sales {
		if s.sales[i].PublicID == publicID {
			return &s.sales[i], nil
		}
	}
	return nil, store.ErrSaleNotFound
}

// ApplySaleStatus behaves like the real store: only pending rows under the
// reference transition, and the count of transitioned rows is returned.
// applyErrs injects per-call failures before anything changes.
func (s *checkoutRepoStub) ApplySaleStatus(ctx context.Context, paymentReference string, status domain.Status, failureReason, failureCode *string) (int64, error) {
	s.applyCalls++
	if s.applyCalls <= len(s.applyErrs) && s.applyErrs[s.applyCalls-1] != nil {
		return 0, s.applyErrs[s.applyCalls-1]
	}
	s.applyStatus = status
	var rows int64
	for i := range s.sales {
		if s.sales[i].PaymentReference == paymentReference && s.sales[i].Status == domain.StatusPending {
			s.sales[i].Status = status
			s.sales[i].FailureReason = failureReason
			s.sales[i].FailureCode = failureCode
			rows++
		}
	}
	return rows, nil
}

func (s *checkoutRepoStub) ClaimIdempotencyKey(ctx context.Context, actor, origin, reference string) (bool, error) {
	s.claimCalls++
	return true, nil
}

type gatewayStub struct {
	chargeResp *gatewayclient.ChargeResponse
	chargeErr  error
	statusResp *gatewayclient.StatusResponse
	statusErr  error

	chargeCalls int
	lastCharge  gatewayclient.ChargeRequest
}

func (g *gatewayStub) Charge(ctx context.Context, req gatewayclient.ChargeRequest) (*gatewayclient.ChargeResponse, error) {
	g.chargeCalls++
	g.lastCharge = req
	return g.chargeResp, g.chargeErr
}

func (g *gatewayStub) QueryStatus(ctx context.Context, reference string) (*gatewayclient.StatusResponse, error) {
	return g.statusResp, g.statusErr
}

type publisherStub struct {
	events []domain.SaleStatusEvent
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *publisherStub) PublishSaleStatusEvent(ctx context.Context, event domain.SaleStatusEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) Close() {}

var _ rabbitmq.Publisher = (*publisherStub)(nil)

func newCheckoutFixture(repo *checkoutRepoStub, gateway *gatewayStub) *Service {
	return NewService(repo, gateway, NewReconciler(repo, &publisherStub{}))
}

func productFixture(publicID string, sellerID uuid.UUID, price int64) *domain.Product {
	return &domain.Product{
		ID:       uuid.New(),
		PublicID: publicID,
		SellerID: sellerID,
		Name:     "Product " + publicID,
		Price:    price,
		Active:   true,
	}
}

func TestProcessCheckout_FansOutPrimaryAndOrderBumps(t *testing.T) {
	sellerID := uuid.New()
	repo := &checkoutRepoStub{products: map[string]*domain.Product{
		"100001": productFixture("100001", sellerID, 100000), // 1000 MZN
		"100002": productFixture("100002", sellerID, 50000),
	}}
	gateway := &gatewayStub{chargeResp: &gatewayclient.ChargeResponse{Status: "initiated"}}
	svc := newCheckoutFixture(repo, gateway)

	result, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "+258841234567",
		PaymentMethod:   "mpesa",
		OrderBumpIDs:    []string{"100002"},
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}

	if len(repo.sales) != 2 {
		t.Fatalf("expected 2 sales created, got %d", len(repo.sales))
	}
	primary, bump := repo.sales[0], repo.sales[1]
	if primary.IsOrderBump {
		t.Fatal("first sale must be the primary")
	}
	if !bump.IsOrderBump {
		t.Fatal("second sale must be flagged as an order bump")
	}
	if primary.PaymentReference != bump.PaymentReference {
		t.Fatal("all sales of one checkout must share the payment reference")
	}
	if primary.GrossAmount != 100000 || primary.SellerAmount != 90000 || primary.PlatformFee != 10000 {
		t.Fatalf("unexpected primary split: gross=%d seller=%d fee=%d", primary.GrossAmount, primary.SellerAmount, primary.PlatformFee)
	}
	if primary.SellerAmount+primary.PlatformFee != primary.GrossAmount {
		t.Fatal("split must sum back to gross")
	}
	if primary.CustomerPhone != "841234567" {
		t.Fatalf("expected normalized phone, got %q", primary.CustomerPhone)
	}

	if result.Status != domain.StatusPending {
		t.Fatalf("expected pending result for initiated charge, got %q", result.Status)
	}
	if gateway.lastCharge.Amount != 150000 {
		t.Fatalf("expected gateway charged for full cart, got %d", gateway.lastCharge.Amount)
	}
	if result.SaleID != primary.PublicID {
		t.Fatalf("result sale id %q does not match primary %q", result.SaleID, primary.PublicID)
	}
}

func TestProcessCheckout_DropsOrderBumpFromOtherSeller(t *testing.T) {
	sellerID := uuid.New()
	otherSeller := uuid.New()
	repo := &checkoutRepoStub{products: map[string]*domain.Product{
		"100001": productFixture("100001", sellerID, 100000),
		"200001": productFixture("200001", otherSeller, 40000),
	}}
	gateway := &gatewayStub{chargeResp: &gatewayclient.ChargeResponse{Status: "pending"}}
	svc := newCheckoutFixture(repo, gateway)

	_, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "841234567",
		PaymentMethod:   "mpesa",
		OrderBumpIDs:    []string{"200001"},
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}

	if len(repo.sales) != 1 {
		t.Fatalf("expected mismatched-seller bump to be dropped, got %d sales", len(repo.sales))
	}
	if gateway.lastCharge.Amount != 100000 {
		t.Fatalf("expected charge for primary only, got %d", gateway.lastCharge.Amount)
	}
}

func TestProcessCheckout_UsesClientTotalWhenPresent(t *testing.T) {
	sellerID := uuid.New()
	repo := &checkoutRepoStub{products: map[string]*domain.Product{
		"100001": productFixture("100001", sellerID, 100000),
	}}
	gateway := &gatewayStub{chargeResp: &gatewayclient.ChargeResponse{Status: "initiated"}}
	svc := newCheckoutFixture(repo, gateway)

	clientTotal := int64(80000)
	result, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "841234567",
		PaymentMethod:   "mpesa",
		Total:           &clientTotal,
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}
	if gateway.lastCharge.Amount != 80000 {
		t.Fatalf("gateway must be charged the client-supplied total, got %d", gateway.lastCharge.Amount)
	}
	if result.GrossAmount != 80000 {
		t.Fatalf("result must report the charged total, got %d", result.GrossAmount)
	}
	if len(repo.sales) != 1 || repo.sales[0].GrossAmount != 100000 || repo.sales[0].SellerAmount != 90000 {
		t.Fatal("per-line amounts stay server-computed regardless of the client total")
	}
}

func TestProcessCheckout_IgnoresNonPositiveClientTotal(t *testing.T) {
	sellerID := uuid.New()
	repo := &checkoutRepoStub{products: map[string]*domain.Product{
		"100001": productFixture("100001", sellerID, 100000),
	}}
	gateway := &gatewayStub{chargeResp: &gatewayclient.ChargeResponse{Status: "initiated"}}
	svc := newCheckoutFixture(repo, gateway)

	zero := int64(0)
	_, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "841234567",
		PaymentMethod:   "mpesa",
		Total:           &zero,
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}
	if gateway.lastCharge.Amount != 100000 {
		t.Fatalf("a non-positive client total must fall back to the computed total, got %d", gateway.lastCharge.Amount)
	}
}

func TestProcessCheckout_GatewayRejectionReconcilesImmediately(t *testing.T) {
	sellerID := uuid.New()
	repo := &checkoutRepoStub{
		products: map[string]*domain.Product{"100001": productFixture("100001", sellerID, 100000)},
	}
	gateway := &gatewayStub{chargeErr: &gatewayclient.BusinessError{Code: "insufficient_funds", Message: "Saldo insuficiente"}}
	svc := newCheckoutFixture(repo, gateway)

	result, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "841234567",
		PaymentMethod:   "mpesa",
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}
	if result.Status != domain.StatusRejected {
		t.Fatalf("expected rejected result, got %q", result.Status)
	}
	if result.Success {
		t.Fatal("rejected checkout must not be reported as success")
	}
	if repo.applyCalls != 1 || repo.applyStatus != domain.StatusRejected {
		t.Fatalf("expected one rejected transition, got calls=%d status=%q", repo.applyCalls, repo.applyStatus)
	}
}

func TestProcessCheckout_GatewayTransportErrorLeavesPending(t *testing.T) {
	sellerID := uuid.New()
	repo := &checkoutRepoStub{products: map[string]*domain.Product{
		"100001": productFixture("100001", sellerID, 100000),
	}}
	gateway := &gatewayStub{chargeErr: errors.New("connection reset by peer")}
	svc := newCheckoutFixture(repo, gateway)

	result, err := svc.ProcessCheckout(context.Background(), domain.CheckoutRequest{
		ProductPublicID: "100001",
		Phone:           "841234567",
		PaymentMethod:   "mpesa",
	})
	if err != nil {
		t.Fatalf("ProcessCheckout returned error: %v", err)
	}
	if result.Status != domain.StatusPending {
		t.Fatalf("expected pending result on transport error, got %q", result.Status)
	}
	if repo.applyCalls != 0 {
		t.Fatal("transport failure must not transition the sales")
	}
	if len(repo.sales) != 1 {
		t.Fatal("sales must still be persisted for the webhook to settle")
	}
}

func webhookFixture(repo *checkoutRepoStub) (*Service, *publisherStub) {
	publisher := &publisherStub{}
	svc := NewService(repo, &gatewayStub{}, NewReconciler(repo, publisher))
	return svc, publisher
}

func pendingSaleFixture(reference string) domain.Sale {
	id := uuid.New()
	return domain.Sale{
		ID:               id,
		PublicID:         publicSaleID(id),
		PaymentReference: reference,
		GrossAmount:      100000,
		SellerAmount:     90000,
		PlatformFee:      10000,
		Status:           domain.StatusPending,
	}
}

func TestHandleGatewayWebhook_AppliesTerminalStatusAndPublishes(t *testing.T) {
	repo := &checkoutRepoStub{sales: []domain.Sale{pendingSaleFixture("ref-1")}}
	svc, publisher := webhookFixture(repo)

	err := svc.HandleGatewayWebhook(context.Background(), domain.GatewayWebhook{
		Reference: "ref-1",
		Status:    "successful",
	})
	if err != nil {
		t.Fatalf("HandleGatewayWebhook returned error: %v", err)
	}
	if repo.applyCalls != 1 || repo.applyStatus != domain.StatusApproved {
		t.Fatalf("expected one approved transition, got calls=%d status=%q", repo.applyCalls, repo.applyStatus)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one lifecycle event, got %d", len(publisher.events))
	}
	if publisher.events[0].Status != "approved" {
		t.Fatalf("unexpected event status %q", publisher.events[0].Status)
	}
}

func TestHandleGatewayWebhook_DuplicateDeliveryDropped(t *testing.T) {
	repo := &checkoutRepoStub{sales: []domain.Sale{pendingSaleFixture("ref-2")}}
	svc, publisher := webhookFixture(repo)

	webhook := domain.GatewayWebhook{Reference: "ref-2", Status: "paid"}
	if err := svc.HandleGatewayWebhook(context.Background(), webhook); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}
	if err := svc.HandleGatewayWebhook(context.Background(), webhook); err != nil {
		t.Fatalf("duplicate delivery returned error: %v", err)
	}

	if repo.sales[0].Status != domain.StatusApproved {
		t.Fatalf("expected the sale approved, got %q", repo.sales[0].Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("duplicate delivery must not re-publish, got %d events", len(publisher.events))
	}
}

func TestHandleGatewayWebhook_RetryAfterTransientFailureApplies(t *testing.T) {
	repo := &checkoutRepoStub{
		sales:     []domain.Sale{pendingSaleFixture("ref-6")},
		applyErrs: []error{errors.New("connection reset by peer")},
	}
	svc, publisher := webhookFixture(repo)

	webhook := domain.GatewayWebhook{Reference: "ref-6", Status: "successful"}
	if err := svc.HandleGatewayWebhook(context.Background(), webhook); err == nil {
		t.Fatal("a failed transition must surface so the gateway redelivers")
	}
	if repo.sales[0].Status != domain.StatusPending {
		t.Fatal("nothing may be committed by the failed delivery")
	}

	if err := svc.HandleGatewayWebhook(context.Background(), webhook); err != nil {
		t.Fatalf("redelivery returned error: %v", err)
	}
	if repo.sales[0].Status != domain.StatusApproved {
		t.Fatalf("redelivery must complete the transition, got %q", repo.sales[0].Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected exactly one lifecycle event, got %d", len(publisher.events))
	}
}

func TestHandleGatewayWebhook_LateContradictionIsNoOp(t *testing.T) {
	sale := pendingSaleFixture("ref-3")
	sale.Status = domain.StatusApproved
	repo := &checkoutRepoStub{sales: []domain.Sale{sale}}
	svc, publisher := webhookFixture(repo)

	err := svc.HandleGatewayWebhook(context.Background(), domain.GatewayWebhook{
		Reference: "ref-3",
		Status:    "failed",
	})
	if err != nil {
		t.Fatalf("HandleGatewayWebhook returned error: %v", err)
	}
	if repo.sales[0].Status != domain.StatusApproved {
		t.Fatal("a late contradiction must not overwrite the terminal status")
	}
	if len(publisher.events) != 0 {
		t.Fatal("a no-op transition must not publish an event")
	}
}

func TestHandleGatewayWebhook_PendingVocabularyChangesNothing(t *testing.T) {
	repo := &checkoutRepoStub{sales: []domain.Sale{pendingSaleFixture("ref-4")}}
	svc, publisher := webhookFixture(repo)

	err := svc.HandleGatewayWebhook(context.Background(), domain.GatewayWebhook{
		Reference: "ref-4",
		Status:    "processing",
	})
	if err != nil {
		t.Fatalf("HandleGatewayWebhook returned error: %v", err)
	}
	if repo.applyCalls != 0 {
		t.Fatal("a pending-vocabulary webhook must not transition anything")
	}
	if len(publisher.events) != 0 {
		t.Fatal("a pending-vocabulary webhook must not publish")
	}
}

func TestHandleGatewayWebhook_UnknownReference(t *testing.T) {
	repo := &checkoutRepoStub{}
	svc, _ := webhookFixture(repo)

	err := svc.HandleGatewayWebhook(context.Background(), domain.GatewayWebhook{
		Reference: "no-such-reference",
		Status:    "successful",
	})
	if !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestGetSaleStatus_ReconcilesFromGatewayPoll(t *testing.T) {
	sale := pendingSaleFixture("ref-5")
	repo := &checkoutRepoStub{sales: []domain.Sale{sale}}
	gateway := &gatewayStub{statusResp: &gatewayclient.StatusResponse{Reference: "ref-5", Status: "settled"}}
	publisher := &publisherStub{}
	svc := NewService(repo, gateway, NewReconciler(repo, publisher))

	got, err := svc.GetSaleStatus(context.Background(), sale.PublicID)
	if err != nil {
		t.Fatalf("GetSaleStatus returned error: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("expected polled approval reflected, got %q", got.Status)
	}
	if repo.applyCalls != 1 || repo.applyStatus != domain.StatusApproved {
		t.Fatalf("expected polled approval to reconcile, got calls=%d status=%q", repo.applyCalls, repo.applyStatus)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one lifecycle event from poll, got %d", len(publisher.events))
	}
}

func TestGetCheckoutStatus_ReconcilesByReference(t *testing.T) {
	repo := &checkoutRepoStub{sales: []domain.Sale{pendingSaleFixture("ref-7")}}
	gateway := &gatewayStub{statusResp: &gatewayclient.StatusResponse{Reference: "ref-7", Status: "settled"}}
	publisher := &publisherStub{}
	svc := NewService(repo, gateway, NewReconciler(repo, publisher))

	sales, err := svc.GetCheckoutStatus(context.Background(), "ref-7")
	if err != nil {
		t.Fatalf("GetCheckoutStatus returned error: %v", err)
	}
	if len(sales) != 1 || sales[0].Status != domain.StatusApproved {
		t.Fatalf("expected the polled approval reflected, got %+v", sales)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one lifecycle event from poll, got %d", len(publisher.events))
	}
}

func TestGetCheckoutStatus_UnknownReference(t *testing.T) {
	svc, _ := webhookFixture(&checkoutRepoStub{})

	_, err := svc.GetCheckoutStatus(context.Background(), "no-such-reference")
	if !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}
