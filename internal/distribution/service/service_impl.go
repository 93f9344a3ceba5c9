package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/distribution/domain"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	"github.com/smallbiznis/floorquote/internal/matching"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	"github.com/smallbiznis/floorquote/internal/providers/email"
	"github.com/smallbiznis/floorquote/internal/ratelimit"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const lockTTL = 2 * time.Minute

var errCreditTaken = errors.New("credit_taken")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Credits   creditdomain.Repository
	Leads     leaddomain.Service
	Retailers retailerdomain.Service
	Gateway   paymentdomain.Gateway
	Pricing   *config.PricingHolder
	Config    config.Config
	Clock     clock.Clock
	Email     email.Provider
	Locker    ratelimit.Locker
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	credits   creditdomain.Repository
	leads     leaddomain.Service
	retailers retailerdomain.Service
	gateway   paymentdomain.Gateway
	pricing   *config.PricingHolder
	cfg       config.Config
	clock     clock.Clock
	email     email.Provider
	locker    ratelimit.Locker
	metrics   *obsmetrics.Metrics

	group singleflight.Group
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("distribution.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		credits:   p.Credits,
		leads:     p.Leads,
		retailers: p.Retailers,
		gateway:   p.Gateway,
		pricing:   p.Pricing,
		cfg:       p.Config,
		clock:     p.Clock,
		email:     p.Email,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

func (s *Service) Distribute(ctx context.Context, leadID string) (domain.Report, error) {
	lead, err := s.lead(ctx, leadID)
	if err != nil {
		return domain.Report{}, err
	}
	if !lead.Distributable() {
		return domain.Report{}, domain.ErrLeadNotVerified
	}

	v, err, _ := s.group.Do(lead.ID.String(), func() (any, error) {
		return s.run(ctx, lead)
	})
	if err != nil {
		return domain.Report{}, err
	}
	return v.(domain.Report), nil
}

func (s *Service) run(ctx context.Context, lead leaddomain.Lead) (domain.Report, error) {
	lockKey := "distribution:lead:" + lead.ID.String()
	token, ok, err := s.locker.TryLock(ctx, lockKey, lockTTL)
	switch {
	case err != nil:
		s.log.Warn("distribution lock unavailable, continuing", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	case !ok:
		return domain.Report{}, domain.ErrDistributionInProgress
	default:
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.log.Warn("failed to release distribution lock", zap.String("lead_id", lead.ID.String()), zap.Error(err))
			}
		}()
	}

	pricing := s.pricing.Get()
	price := pricing.LeadTiers.PriceFor(lead.SquareFootage)

	retailers, err := s.retailers.ListActive(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	subscriptions, err := s.retailers.ListActiveSubscriptions(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	candidates := matching.Select(lead, retailers, subscriptions, s.cfg.Leads.MaxCandidates)

	report := domain.Report{
		LeadID:     lead.ID.String(),
		Candidates: len(candidates),
		PriceCents: price,
		Currency:   pricing.Currency,
	}

	for _, candidate := range candidates {
		retailer := candidate.Retailer
		attempted, err := s.repo.Attempted(ctx, s.db, lead.ID, retailer.ID)
		if err != nil {
			return report, err
		}
		if attempted {
			report.Skipped++
			continue
		}

		d, err := s.settle(ctx, lead, retailer, price, pricing.Currency)
		if err != nil && db.IsDuplicateKeyErr(err) {
			// Another run recorded this retailer between Attempted and Insert.
			report.Skipped++
			continue
		}
		if err != nil {
			s.log.Error("settlement failed",
				zap.String("lead_id", lead.ID.String()),
				zap.String("retailer_id", retailer.ID.String()),
				zap.Error(err),
			)
			report.Skipped++
			continue
		}
		if d == nil {
			report.Skipped++
			continue
		}

		switch {
		case d.Status == domain.StatusPaymentPending:
			report.PaymentPending++
		case d.PaidVia == domain.PaidViaCredit:
			report.Distributed++
			report.PaidByCredit++
		case d.PaidVia == domain.PaidViaCard:
			report.Distributed++
			report.PaidByCard++
		}
		s.metrics.RecordSettlement(ctx, string(d.PaidVia), string(d.Status))

		if d.Status == domain.StatusDelivered {
			s.notify(ctx, lead, retailer, d)
		}
	}

	if report.Distributed > 0 {
		assigned, err := s.leads.MarkAssigned(ctx, lead.ID)
		if err != nil {
			return report, err
		}
		if !assigned {
			s.log.Warn("lead left distributable state during distribution", zap.String("lead_id", lead.ID.String()))
		}
	}

	s.metrics.RecordDistributionRun(ctx, len(candidates))
	s.log.Info("lead distributed",
		zap.String("lead_id", report.LeadID),
		zap.Int("candidates", report.Candidates),
		zap.Int("distributed", report.Distributed),
		zap.Int("payment_pending", report.PaymentPending),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// settle pays for one candidate and records the outcome. A nil distribution
// means the retailer was skipped.
func (s *Service) settle(ctx context.Context, lead leaddomain.Lead, retailer retailerdomain.Retailer, price int64, currency string) (*domain.Distribution, error) {
	balance, err := s.credits.FindBalance(ctx, s.db, retailer.ID)
	if err != nil {
		return nil, err
	}
	if balance != nil && balance.CreditsRemaining > 0 {
		d, err := s.settleWithCredit(ctx, lead, retailer, price, currency)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, errCreditTaken) {
			return nil, err
		}
	}

	if retailer.HasPaymentMethod() {
		return s.settleWithCard(ctx, lead, retailer, price, currency)
	}

	d := s.newDistribution(lead, retailer, price, currency)
	d.PaidVia = domain.PaidViaNone
	d.Status = domain.StatusPaymentPending
	if err := s.repo.Insert(ctx, s.db, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) settleWithCredit(ctx context.Context, lead leaddomain.Lead, retailer retailerdomain.Retailer, price int64, currency string) (*domain.Distribution, error) {
	d := s.newDistribution(lead, retailer, price, currency)
	d.PaidVia = domain.PaidViaCredit
	d.WasPaid = true
	d.Status = domain.StatusDelivered

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.credits.TryDecrement(ctx, tx, retailer.ID, d.CreatedAt)
		if err != nil {
			return err
		}
		if !taken {
			return errCreditTaken
		}
		if err := s.repo.Insert(ctx, tx, &d); err != nil {
			return err
		}
		record := s.newTransaction(lead, retailer, &d, creditdomain.KindCreditDeduction, creditdomain.TransactionSucceeded)
		record.CreditsDelta = -1
		return s.credits.InsertTransaction(ctx, tx, &record)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) settleWithCard(ctx context.Context, lead leaddomain.Lead, retailer retailerdomain.Retailer, price int64, currency string) (*domain.Distribution, error) {
	intent, err := s.gateway.ChargeOffSession(ctx, paymentdomain.ChargeRequest{
		Customer:       retailer.StripeCustomerID,
		PaymentMethod:  retailer.DefaultPaymentMethodID,
		AmountCents:    price,
		Currency:       currency,
		Description:    "Flooring lead " + lead.ID.String(),
		IdempotencyKey: fmt.Sprintf("lead:%s:retailer:%s", lead.ID, retailer.ID),
		Metadata: map[string]string{
			"lead_id":     lead.ID.String(),
			"retailer_id": retailer.ID.String(),
		},
	})
	if err != nil {
		s.log.Warn("card charge failed",
			zap.String("lead_id", lead.ID.String()),
			zap.String("retailer_id", retailer.ID.String()),
			zap.Error(err),
		)
		failed := s.newTransaction(lead, retailer, nil, creditdomain.KindCardCharge, creditdomain.TransactionFailed)
		failed.AmountCents = price
		failed.FailureReason = err.Error()
		if err := s.credits.InsertTransaction(ctx, s.db, &failed); err != nil {
			return nil, err
		}
		s.metrics.RecordSettlement(ctx, string(domain.PaidViaCard), "failed")
		return nil, nil
	}

	d := s.newDistribution(lead, retailer, price, currency)
	d.PaidVia = domain.PaidViaCard
	d.ProviderPaymentID = intent.ID
	txStatus := creditdomain.TransactionSucceeded
	if intent.Succeeded() {
		d.WasPaid = true
		d.Status = domain.StatusDelivered
	} else {
		d.Status = domain.StatusPaymentPending
		txStatus = creditdomain.TransactionPending
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &d); err != nil {
			return err
		}
		record := s.newTransaction(lead, retailer, &d, creditdomain.KindCardCharge, txStatus)
		record.AmountCents = price
		record.ProviderReference = intent.ID
		return s.credits.InsertTransaction(ctx, tx, &record)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) ResolveCardPayment(ctx context.Context, id snowflake.ID, succeeded bool) error {
	d, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}

	status, paid := domain.StatusPaymentFailed, false
	if succeeded {
		status, paid = domain.StatusDelivered, true
	}
	changed, err := s.repo.ResolvePayment(ctx, s.db, d.ID, status, paid)
	if err != nil || !changed || !succeeded {
		return err
	}
	d.Status, d.WasPaid = status, paid

	lead, err := s.leads.GetByID(ctx, d.LeadID.String())
	if err != nil {
		return err
	}
	retailer, err := s.retailers.GetByID(ctx, d.RetailerID.String())
	if err != nil {
		return err
	}
	assigned, err := s.leads.MarkAssigned(ctx, lead.ID)
	if err != nil {
		return err
	}
	if !assigned {
		s.log.Info("payment settled for a lead that is no longer distributable, not notifying",
			zap.String("lead_id", lead.ID.String()),
			zap.String("distribution_id", d.ID.String()),
			zap.String("lead_status", string(lead.Status)),
		)
		return nil
	}
	s.notify(ctx, lead, retailer.Retailer, d)
	return nil
}

func (s *Service) ListByLead(ctx context.Context, leadID string) ([]domain.Distribution, error) {
	lead, err := s.lead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByLead(ctx, s.db, lead.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Distribution, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) ListByRetailer(ctx context.Context, req domain.ListByRetailerRequest) (domain.ListResponse, error) {
	retailer, err := s.retailers.GetByID(ctx, req.RetailerID)
	switch {
	case errors.Is(err, retailerdomain.ErrInvalidID):
		return domain.ListResponse{}, domain.ErrInvalidRetailer
	case errors.Is(err, retailerdomain.ErrNotFound):
		return domain.ListResponse{}, domain.ErrRetailerNotFound
	case err != nil:
		return domain.ListResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.ListByRetailer(ctx, s.db, retailer.ID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, info := pagination.Trim(items, page, func(d *domain.Distribution) pagination.Cursor {
		return pagination.Cursor{ID: int64(d.ID), CreatedAt: d.CreatedAt}
	})
	out := make([]domain.Distribution, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{Distributions: out, PageInfo: info}, nil
}

// notify emails the retailer the lead. Failures are logged only.
func (s *Service) notify(ctx context.Context, lead leaddomain.Lead, retailer retailerdomain.Retailer, d *domain.Distribution) {
	data := map[string]any{
		"retailer_name":  retailer.BusinessName,
		"customer_name":  lead.FullName(),
		"customer_email": lead.Email,
		"customer_phone": lead.Phone,
		"postal_code":    lead.PostalCode,
		"brand":          lead.Brand,
		"square_footage": lead.SquareFootage,
		"installation":   lead.Installation,
		"timeline":       strings.ReplaceAll(lead.Timeline, "_", " "),
		"notes":          lead.Notes,
		"paid_via":       string(d.PaidVia),
		"amount":         fmt.Sprintf("%d.%02d", d.PriceCents/100, d.PriceCents%100),
		"currency":       d.Currency,
		"dashboard_url":  strings.TrimRight(s.cfg.Leads.DashboardBaseURL, "/") + "/leads/" + lead.ID.String(),
	}
	if err := s.email.SendTemplate(ctx, []string{retailer.Email}, email.TemplateLeadDistributed, data); err != nil {
		s.log.Warn("lead notification failed",
			zap.String("lead_id", lead.ID.String()),
			zap.String("retailer_id", retailer.ID.String()),
			zap.Error(err),
		)
		return
	}

	now := s.clock.Now()
	if err := s.repo.MarkNotified(ctx, s.db, d.ID, now); err != nil {
		s.log.Warn("failed to mark distribution notified", zap.String("distribution_id", d.ID.String()), zap.Error(err))
		return
	}
	d.NotifiedAt = &now
}

func (s *Service) newDistribution(lead leaddomain.Lead, retailer retailerdomain.Retailer, price int64, currency string) domain.Distribution {
	return domain.Distribution{
		ID:         s.genID.Generate(),
		LeadID:     lead.ID,
		RetailerID: retailer.ID,
		PriceCents: price,
		Currency:   currency,
		CreatedAt:  s.clock.Now(),
	}
}

func (s *Service) newTransaction(
	lead leaddomain.Lead,
	retailer retailerdomain.Retailer,
	d *domain.Distribution,
	kind creditdomain.TransactionKind,
	status creditdomain.TransactionStatus,
) creditdomain.Transaction {
	now := s.clock.Now()
	leadID := lead.ID
	record := creditdomain.Transaction{
		ID:         s.genID.Generate(),
		RetailerID: retailer.ID,
		LeadID:     &leadID,
		Kind:       kind,
		Currency:   s.pricing.Get().Currency,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d != nil {
		distributionID := d.ID
		record.DistributionID = &distributionID
		record.Currency = d.Currency
	}
	return record
}

func (s *Service) lead(ctx context.Context, id string) (leaddomain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	switch {
	case errors.Is(err, leaddomain.ErrInvalidID):
		return leaddomain.Lead{}, domain.ErrInvalidLead
	case errors.Is(err, leaddomain.ErrNotFound):
		return leaddomain.Lead{}, domain.ErrLeadNotFound
	case err != nil:
		return leaddomain.Lead{}, err
	}
	return lead, nil
}
