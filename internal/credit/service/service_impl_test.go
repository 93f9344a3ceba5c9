package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/credit/repository"
	"github.com/smallbiznis/floorquote/internal/dbtest"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	retailerrepo "github.com/smallbiznis/floorquote/internal/retailer/repository"
	retailerservice "github.com/smallbiznis/floorquote/internal/retailer/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	checkouts []paymentdomain.CheckoutRequest
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, req paymentdomain.CreateCustomerRequest) (paymentdomain.Customer, error) {
	return paymentdomain.Customer{ID: "cus_1"}, nil
}

func (f *fakeGateway) ChargeOffSession(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.PaymentIntent, error) {
	return paymentdomain.PaymentIntent{}, paymentdomain.ErrNotConfigured
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutRequest) (paymentdomain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	return paymentdomain.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

type harness struct {
	svc      *Service
	db       *gorm.DB
	gateway  *fakeGateway
	clock    *clock.FakeClock
	retailer retailerdomain.RetailerView
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	h := &harness{
		db:      db,
		gateway: &fakeGateway{},
		clock:   clock.NewFakeClock(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)),
	}
	retailers := retailerservice.New(retailerservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    retailerrepo.Provide(),
		Clock:   h.clock,
		Gateway: h.gateway,
	})
	h.retailer, err = retailers.Create(context.Background(), retailerdomain.CreateRetailerRequest{
		BusinessName: "Oak & Ash",
		Email:        "hello@oakash.ca",
	})
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Stripe.SuccessURL = "https://app.example/credits?ok=1"
	cfg.Stripe.CancelURL = "https://app.example/credits"

	h.svc = New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Retailers: retailers,
		Gateway:   h.gateway,
		Pricing:   config.NewStaticPricing(config.DefaultPricing()),
		Config:    cfg,
		Clock:     h.clock,
	}).(*Service)
	return h
}

func TestGetBalanceDefaultsToZero(t *testing.T) {
	h := newHarness(t)
	balance, err := h.svc.GetBalance(context.Background(), h.retailer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, balance.CreditsRemaining)
	assert.Equal(t, 0, balance.CreditsUsed)

	_, err = h.svc.GetBalance(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrRetailerMissing)
	_, err = h.svc.GetBalance(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidRetailer)
}

func TestCheckoutThenCompletePurchaseGrantsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.CreateCheckout(ctx, domain.CheckoutRequest{RetailerID: h.retailer.ID.String(), PackCode: "Starter"})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", resp.SessionID)
	assert.Equal(t, 10, resp.Credits)
	assert.Equal(t, int64(2500), resp.Amount)

	require.Len(t, h.gateway.checkouts, 1)
	req := h.gateway.checkouts[0]
	assert.Equal(t, "cus_1", req.Customer)
	assert.Equal(t, "10", req.Metadata["credits"])
	assert.Equal(t, h.retailer.ID.String(), req.Metadata["retailer_id"])

	balance, err := h.svc.GetBalance(ctx, h.retailer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, balance.CreditsRemaining)

	purchase := domain.PurchaseCompleted{RetailerID: h.retailer.ID, SessionID: "cs_1", PackCode: "starter", Credits: 10}
	granted, err := h.svc.CompletePurchase(ctx, purchase)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = h.svc.CompletePurchase(ctx, purchase)
	require.NoError(t, err)
	assert.False(t, granted)

	balance, err = h.svc.GetBalance(ctx, h.retailer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 10, balance.CreditsRemaining)
	assert.Equal(t, int64(1), dbtest.Count(t, h.db, "SELECT COUNT(*) FROM payment_transactions WHERE status = ?", domain.TransactionSucceeded))
}

func TestCompletePurchaseWithoutPendingRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	granted, err := h.svc.CompletePurchase(ctx, domain.PurchaseCompleted{RetailerID: h.retailer.ID, SessionID: "cs_other", PackCode: "growth"})
	require.NoError(t, err)
	assert.True(t, granted)

	balance, err := h.svc.GetBalance(ctx, h.retailer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 50, balance.CreditsRemaining)

	_, err = h.svc.CompletePurchase(ctx, domain.PurchaseCompleted{RetailerID: h.retailer.ID, SessionID: "cs_x", PackCode: "mystery"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
}

func TestCheckoutRejectsUnknownPack(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateCheckout(context.Background(), domain.CheckoutRequest{RetailerID: h.retailer.ID.String(), PackCode: "mega"})
	assert.ErrorIs(t, err, domain.ErrInvalidPack)
	assert.Empty(t, h.gateway.checkouts)
}

func TestResolveChargeSettlesPendingOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.Now()

	pending := domain.Transaction{
		ID:                h.svc.genID.Generate(),
		RetailerID:        h.retailer.ID,
		Kind:              domain.KindCardCharge,
		AmountCents:       1500,
		Currency:          "CAD",
		ProviderReference: "pi_1",
		Status:            domain.TransactionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, h.svc.repo.InsertTransaction(ctx, h.db, &pending))

	tx, err := h.svc.ResolveCharge(ctx, domain.ChargeOutcome{PaymentIntentID: "pi_1", FailureReason: "card_declined"})
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionFailed, tx.Status)
	assert.Equal(t, "card_declined", tx.FailureReason)

	tx, err = h.svc.ResolveCharge(ctx, domain.ChargeOutcome{PaymentIntentID: "pi_1", Succeeded: true})
	require.NoError(t, err)
	assert.Nil(t, tx)

	tx, err = h.svc.ResolveCharge(ctx, domain.ChargeOutcome{PaymentIntentID: "pi_unknown", Succeeded: true})
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestListTransactionsPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		now := h.clock.Now()
		require.NoError(t, h.svc.repo.InsertTransaction(ctx, h.db, &domain.Transaction{
			ID:           h.svc.genID.Generate(),
			RetailerID:   h.retailer.ID,
			Kind:         domain.KindCreditDeduction,
			CreditsDelta: -1,
			Currency:     "CAD",
			Status:       domain.TransactionSucceeded,
			CreatedAt:    now,
			UpdatedAt:    now,
		}))
	}

	resp, err := h.svc.ListTransactions(ctx, domain.ListTransactionsRequest{RetailerID: h.retailer.ID.String(), PageSize: 2})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 2)
	assert.True(t, resp.PageInfo.HasMore)
	assert.NotEmpty(t, resp.PageInfo.NextPageToken)
	assert.True(t, resp.Transactions[0].CreatedAt.After(resp.Transactions[1].CreatedAt))

	resp, err = h.svc.ListTransactions(ctx, domain.ListTransactionsRequest{RetailerID: h.retailer.ID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 3)
	assert.False(t, resp.PageInfo.HasMore)
}
