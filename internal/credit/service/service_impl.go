package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"github.com/smallbiznis/floorquote/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Retailers retailerdomain.Service
	Gateway   paymentdomain.Gateway
	Pricing   *config.PricingHolder
	Config    config.Config
	Clock     clock.Clock
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	retailers retailerdomain.Service
	gateway   paymentdomain.Gateway
	pricing   *config.PricingHolder
	cfg       config.Config
	clock     clock.Clock
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("credit.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		retailers: p.Retailers,
		gateway:   p.Gateway,
		pricing:   p.Pricing,
		cfg:       p.Config,
		clock:     p.Clock,
		metrics:   p.Metrics,
	}
}

func (s *Service) GetBalance(ctx context.Context, retailerID string) (domain.BalanceView, error) {
	retailer, err := s.retailer(ctx, retailerID)
	if err != nil {
		return domain.BalanceView{}, err
	}
	balance, err := s.repo.FindBalance(ctx, s.db, retailer.ID)
	if err != nil {
		return domain.BalanceView{}, err
	}
	view := domain.BalanceView{RetailerID: retailer.ID.String()}
	if balance != nil {
		view.CreditsRemaining = balance.CreditsRemaining
		view.CreditsUsed = balance.CreditsUsed
	}
	return view, nil
}

// CreateCheckout opens a hosted checkout for a credit pack. Credits are only
// granted once the provider confirms payment.
func (s *Service) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	pricing := s.pricing.Get()
	pack, ok := pricing.Pack(req.PackCode)
	if !ok {
		return domain.CheckoutResponse{}, domain.ErrInvalidPack
	}
	if _, err := s.retailer(ctx, req.RetailerID); err != nil {
		return domain.CheckoutResponse{}, err
	}

	retailer, err := s.retailers.EnsureStripeCustomer(ctx, req.RetailerID)
	if err != nil {
		if errors.Is(err, retailerdomain.ErrPaymentsUnavailable) {
			return domain.CheckoutResponse{}, domain.ErrPaymentsUnavailable
		}
		return domain.CheckoutResponse{}, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutRequest{
		Customer:       retailer.StripeCustomerID,
		ProductName:    pack.Name + " lead credits",
		AmountCents:    pack.PriceCents,
		Currency:       pricing.Currency,
		SuccessURL:     s.cfg.Stripe.SuccessURL,
		CancelURL:      s.cfg.Stripe.CancelURL,
		IdempotencyKey: correlation.IdempotencyKey(ctx, "checkout:"+retailer.ID.String()+":"+pack.Code),
		Metadata: map[string]string{
			"retailer_id": retailer.ID.String(),
			"pack_code":   pack.Code,
			"credits":     strconv.Itoa(pack.Credits),
		},
	})
	if err != nil {
		s.log.Error("failed to create checkout session",
			zap.String("retailer_id", retailer.ID.String()),
			zap.String("pack_code", pack.Code),
			zap.Error(err),
		)
		return domain.CheckoutResponse{}, domain.ErrPaymentsUnavailable
	}

	now := s.clock.Now()
	pending := domain.Transaction{
		ID:                s.genID.Generate(),
		RetailerID:        retailer.ID,
		Kind:              domain.KindCreditPurchase,
		AmountCents:       pack.PriceCents,
		CreditsDelta:      pack.Credits,
		Currency:          pricing.Currency,
		ProviderReference: session.ID,
		Status:            domain.TransactionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertTransaction(ctx, s.db, &pending); err != nil {
		return domain.CheckoutResponse{}, err
	}

	return domain.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
		PackCode:  pack.Code,
		Credits:   pack.Credits,
		Amount:    pack.PriceCents,
		Currency:  pricing.Currency,
	}, nil
}

// CompletePurchase reports false when the session was already settled.
func (s *Service) CompletePurchase(ctx context.Context, req domain.PurchaseCompleted) (bool, error) {
	if req.RetailerID <= 0 {
		return false, domain.ErrInvalidRetailer
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return false, domain.ErrInvalidPack
	}

	credits := req.Credits
	amount := req.AmountCents
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if pack, ok := s.pricing.Get().Pack(req.PackCode); ok {
		if credits <= 0 {
			credits = pack.Credits
		}
		if amount <= 0 {
			amount = pack.PriceCents
		}
	}
	if credits <= 0 {
		return false, domain.ErrInvalidCredits
	}
	if currency == "" {
		currency = s.pricing.Get().Currency
	}

	granted := false
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindTransactionByReference(ctx, tx, domain.KindCreditPurchase, sessionID)
		if err != nil {
			return err
		}
		switch {
		case existing == nil:
			record := domain.Transaction{
				ID:                s.genID.Generate(),
				RetailerID:        req.RetailerID,
				Kind:              domain.KindCreditPurchase,
				AmountCents:       amount,
				CreditsDelta:      credits,
				Currency:          currency,
				ProviderReference: sessionID,
				Status:            domain.TransactionSucceeded,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := s.repo.InsertTransaction(ctx, tx, &record); err != nil {
				return err
			}
		case existing.Status == domain.TransactionPending:
			credits = existing.CreditsDelta
			changed, err := s.repo.ResolveTransaction(ctx, tx, existing.ID, domain.TransactionSucceeded, "", now)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
		default:
			return nil
		}

		if err := s.repo.Grant(ctx, tx, req.RetailerID, credits, now); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if granted {
		s.log.Info("credits granted",
			zap.String("retailer_id", req.RetailerID.String()),
			zap.String("session_id", sessionID),
			zap.Int("credits", credits),
		)
	}
	return granted, nil
}

// ResolveCharge returns the transaction only when this call settled it.
func (s *Service) ResolveCharge(ctx context.Context, outcome domain.ChargeOutcome) (*domain.Transaction, error) {
	ref := strings.TrimSpace(outcome.PaymentIntentID)
	if ref == "" {
		return nil, nil
	}
	existing, err := s.repo.FindTransactionByReference(ctx, s.db, domain.KindCardCharge, ref)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != domain.TransactionPending {
		return nil, nil
	}

	status := domain.TransactionSucceeded
	reason := ""
	if !outcome.Succeeded {
		status = domain.TransactionFailed
		reason = outcome.FailureReason
	}
	now := s.clock.Now()
	changed, err := s.repo.ResolveTransaction(ctx, s.db, existing.ID, status, reason, now)
	if err != nil || !changed {
		return nil, err
	}

	existing.Status = status
	existing.FailureReason = reason
	existing.UpdatedAt = now
	outcomeLabel := "succeeded"
	if !outcome.Succeeded {
		outcomeLabel = "failed"
	}
	s.metrics.RecordSettlement(ctx, "card", outcomeLabel)
	return existing, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	retailer, err := s.retailer(ctx, req.RetailerID)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.ListTransactions(ctx, s.db, retailer.ID, page)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	items, info := pagination.Trim(items, page, func(t *domain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: int64(t.ID), CreatedAt: t.CreatedAt}
	})
	out := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListTransactionsResponse{Transactions: out, PageInfo: info}, nil
}

func (s *Service) retailer(ctx context.Context, id string) (retailerdomain.RetailerView, error) {
	view, err := s.retailers.GetByID(ctx, id)
	switch {
	case errors.Is(err, retailerdomain.ErrInvalidID):
		return retailerdomain.RetailerView{}, domain.ErrInvalidRetailer
	case errors.Is(err, retailerdomain.ErrNotFound):
		return retailerdomain.RetailerView{}, domain.ErrRetailerMissing
	case err != nil:
		return retailerdomain.RetailerView{}, err
	}
	return view, nil
}
