package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/matching"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	"github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/smallbiznis/floorquote/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	validate      = validator.New()
	prefixPattern = regexp.MustCompile(`^[A-Z]([0-9]([A-Z])?)?$`)
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Gateway paymentdomain.Gateway
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	gateway paymentdomain.Gateway
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("retailer.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		gateway: p.Gateway,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRetailerRequest) (domain.RetailerView, error) {
	name := strings.TrimSpace(req.BusinessName)
	if name == "" || len(name) > 200 {
		return domain.RetailerView{}, domain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return domain.RetailerView{}, domain.ErrInvalidEmail
	}

	prefixes, err := normalizePrefixes(req.PostalPrefixes)
	if err != nil {
		return domain.RetailerView{}, err
	}

	install := req.InstallationPreference
	if install == "" {
		install = domain.InstallBoth
	}
	if !install.Valid() {
		return domain.RetailerView{}, domain.ErrInvalidInstallation
	}
	urgency := req.UrgencyPreference
	if urgency == "" {
		urgency = domain.UrgencyAny
	}
	if !urgency.Valid() {
		return domain.RetailerView{}, domain.ErrInvalidUrgency
	}
	status := req.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return domain.RetailerView{}, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	retailer := domain.Retailer{
		ID:                     s.genID.Generate(),
		BusinessName:           name,
		Slug:                   slug.Make(name),
		ContactName:            strings.TrimSpace(req.ContactName),
		Email:                  email,
		Phone:                  strings.TrimSpace(req.Phone),
		PostalPrefixes:         domain.JoinPrefixes(prefixes),
		InstallationPreference: install,
		UrgencyPreference:      urgency,
		Status:                 status,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.repo.Insert(ctx, s.db, &retailer); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.RetailerView{}, err
		}
		// Two businesses can share a display name; the id keeps the slug unique.
		retailer.Slug = retailer.Slug + "-" + retailer.ID.String()
		if err := s.repo.Insert(ctx, s.db, &retailer); err != nil {
			return domain.RetailerView{}, err
		}
	}

	s.log.Info("retailer approved",
		zap.String("retailer_id", retailer.ID.String()),
		zap.String("slug", retailer.Slug),
	)
	return view(retailer), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.RetailerView, error) {
	retailer, err := s.load(ctx, id)
	if err != nil {
		return domain.RetailerView{}, err
	}
	return view(*retailer), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRetailerRequest) (domain.RetailerView, error) {
	retailer, err := s.load(ctx, req.ID)
	if err != nil {
		return domain.RetailerView{}, err
	}

	if req.ContactName != nil {
		retailer.ContactName = strings.TrimSpace(*req.ContactName)
	}
	if req.Phone != nil {
		retailer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.PostalPrefixes != nil {
		prefixes, err := normalizePrefixes(*req.PostalPrefixes)
		if err != nil {
			return domain.RetailerView{}, err
		}
		retailer.PostalPrefixes = domain.JoinPrefixes(prefixes)
	}
	if req.InstallationPreference != nil {
		if !req.InstallationPreference.Valid() {
			return domain.RetailerView{}, domain.ErrInvalidInstallation
		}
		retailer.InstallationPreference = *req.InstallationPreference
	}
	if req.UrgencyPreference != nil {
		if !req.UrgencyPreference.Valid() {
			return domain.RetailerView{}, domain.ErrInvalidUrgency
		}
		retailer.UrgencyPreference = *req.UrgencyPreference
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return domain.RetailerView{}, domain.ErrInvalidStatus
		}
		retailer.Status = *req.Status
	}

	retailer.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, retailer); err != nil {
		return domain.RetailerView{}, err
	}
	return view(*retailer), nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Retailer, error) {
	items, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Retailer, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) AddSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (domain.BrandSubscription, error) {
	retailer, err := s.load(ctx, req.RetailerID)
	if err != nil {
		return domain.BrandSubscription{}, err
	}

	brand := strings.TrimSpace(req.Brand)
	if brand == "" || len(brand) > 100 {
		return domain.BrandSubscription{}, domain.ErrInvalidBrand
	}
	if req.SqftMin < 0 {
		return domain.BrandSubscription{}, domain.ErrInvalidTier
	}
	if req.SqftMax != nil && *req.SqftMax < req.SqftMin {
		return domain.BrandSubscription{}, domain.ErrInvalidTier
	}

	now := s.clock.Now()
	sub := domain.BrandSubscription{
		ID:         s.genID.Generate(),
		RetailerID: retailer.ID,
		Brand:      matching.NormalizeBrand(brand),
		SqftMin:    req.SqftMin,
		SqftMax:    req.SqftMax,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertSubscription(ctx, s.db, &sub); err != nil {
		return domain.BrandSubscription{}, err
	}
	return sub, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, retailerID string) ([]domain.BrandSubscription, error) {
	retailer, err := s.load(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListSubscriptions(ctx, s.db, retailer.ID)
	if err != nil {
		return nil, err
	}
	return derefSubscriptions(items), nil
}

func (s *Service) DeactivateSubscription(ctx context.Context, retailerID, subscriptionID string) error {
	retailer, err := s.load(ctx, retailerID)
	if err != nil {
		return err
	}
	subID, err := parseID(subscriptionID)
	if err != nil {
		return err
	}
	sub, err := s.repo.FindSubscription(ctx, s.db, retailer.ID, subID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.ErrSubscriptionMissing
	}
	return s.repo.DeactivateSubscription(ctx, s.db, retailer.ID, sub.ID, s.clock.Now())
}

func (s *Service) ListActiveSubscriptions(ctx context.Context) ([]domain.BrandSubscription, error) {
	items, err := s.repo.ListActiveSubscriptions(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return derefSubscriptions(items), nil
}

// EnsureStripeCustomer returns the retailer, creating its payment provider
// customer on first use.
func (s *Service) EnsureStripeCustomer(ctx context.Context, retailerID string) (domain.Retailer, error) {
	retailer, err := s.load(ctx, retailerID)
	if err != nil {
		return domain.Retailer{}, err
	}
	if retailer.StripeCustomerID != "" {
		return *retailer, nil
	}
	if s.gateway == nil {
		return domain.Retailer{}, domain.ErrPaymentsUnavailable
	}

	customer, err := s.gateway.CreateCustomer(ctx, paymentdomain.CreateCustomerRequest{
		Email:          retailer.Email,
		Name:           retailer.BusinessName,
		Metadata:       map[string]string{"retailer_id": retailer.ID.String()},
		IdempotencyKey: correlation.IdempotencyKey(ctx, "customer:"+retailer.ID.String()),
	})
	if err != nil {
		s.log.Error("failed to create stripe customer", zap.String("retailer_id", retailer.ID.String()), zap.Error(err))
		return domain.Retailer{}, domain.ErrPaymentsUnavailable
	}

	now := s.clock.Now()
	if err := s.repo.SetStripeCustomer(ctx, s.db, retailer.ID, customer.ID, now); err != nil {
		return domain.Retailer{}, err
	}
	retailer.StripeCustomerID = customer.ID
	retailer.UpdatedAt = now
	return *retailer, nil
}

// AttachPaymentMethod records a saved card as the retailer's default for
// off-session charges.
func (s *Service) AttachPaymentMethod(ctx context.Context, stripeCustomerID, paymentMethodID, cardBrand, last4 string) error {
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if stripeCustomerID == "" || paymentMethodID == "" {
		return domain.ErrInvalidID
	}

	retailer, err := s.repo.FindByStripeCustomerID(ctx, s.db, stripeCustomerID)
	if err != nil {
		return err
	}
	if retailer == nil {
		return domain.ErrNotFound
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm := domain.PaymentMethod{
			ID:                    s.genID.Generate(),
			RetailerID:            retailer.ID,
			ProviderPaymentMethod: paymentMethodID,
			Brand:                 cardBrand,
			Last4:                 last4,
			IsDefault:             true,
			CreatedAt:             now,
		}
		if err := s.repo.InsertPaymentMethod(ctx, tx, &pm); err != nil {
			return err
		}
		return s.repo.SetDefaultPaymentMethod(ctx, tx, retailer.ID, paymentMethodID, now)
	})
}

func (s *Service) load(ctx context.Context, id string) (*domain.Retailer, error) {
	retailerID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	retailer, err := s.repo.FindByID(ctx, s.db, retailerID)
	if err != nil {
		return nil, err
	}
	if retailer == nil {
		return nil, domain.ErrNotFound
	}
	return retailer, nil
}

func normalizePrefixes(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = matching.NormalizePostal(p)
		if p == "" {
			continue
		}
		if !prefixPattern.MatchString(p) {
			return nil, domain.ErrInvalidPrefix
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func view(r domain.Retailer) domain.RetailerView {
	prefixes := r.Prefixes()
	if prefixes == nil {
		prefixes = []string{}
	}
	return domain.RetailerView{
		Retailer:         r,
		PostalPrefixes:   prefixes,
		HasPaymentMethod: r.HasPaymentMethod(),
	}
}

func derefSubscriptions(items []*domain.BrandSubscription) []domain.BrandSubscription {
	out := make([]domain.BrandSubscription, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}

func parseID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.ErrInvalidID
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
