package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/lead/domain"
	"github.com/smallbiznis/floorquote/internal/lead/otp"
	"github.com/smallbiznis/floorquote/internal/matching"
	"github.com/smallbiznis/floorquote/internal/observability/metrics"
	"github.com/smallbiznis/floorquote/internal/providers/email"
	"github.com/smallbiznis/floorquote/internal/providers/sms"
	"github.com/smallbiznis/floorquote/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCodeTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Config   config.Config
	Email    email.Provider
	SMS      sms.Verifier
	Limiter  ratelimit.Limiter
	Attempts ratelimit.AttemptLimiter `optional:"true"`
	Metrics  *metrics.Metrics         `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	email    email.Provider
	sms      sms.Verifier
	limiter  ratelimit.Limiter
	attempts ratelimit.AttemptLimiter
	metrics  *metrics.Metrics

	codeTTL  time.Duration
	generate func() (string, error)
}

func New(p Params) domain.Service {
	ttl := p.Config.Leads.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	attempts := p.Attempts
	if attempts == nil {
		attempts = ratelimit.NewLocalLimiter(ratelimit.VerifyPolicy(p.Config.Leads))
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("lead.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		email:    p.Email,
		sms:      p.SMS,
		limiter:  p.Limiter,
		attempts: attempts,
		metrics:  p.Metrics,
		codeTTL:  ttl,
		generate: otp.Generate,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateLeadRequest) (domain.Lead, error) {
	in := leadInput{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     normalizePhone(req.Phone),
		Brand:     strings.TrimSpace(req.Brand),
		Timeline:  normalizeTimeline(req.Timeline),
	}
	if err := validateLead(in); err != nil {
		return domain.Lead{}, err
	}

	postal := matching.NormalizePostal(req.PostalCode)
	if !matching.ValidPostal(postal) {
		return domain.Lead{}, domain.ErrInvalidPostalCode
	}

	sqft := req.SquareFootage
	if sqft <= 0 {
		parsed, err := domain.ParseSquareFootage(req.SizeLabel)
		if err != nil {
			return domain.Lead{}, err
		}
		sqft = parsed
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now()
	lead := domain.Lead{
		ID:                 s.genID.Generate(),
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		Phone:              in.Phone,
		PostalCode:         postal,
		City:               strings.TrimSpace(req.City),
		Brand:              matching.NormalizeBrand(in.Brand),
		SquareFootage:      sqft,
		SizeLabel:          strings.TrimSpace(req.SizeLabel),
		Installation:       req.Installation,
		Timeline:           in.Timeline,
		Notes:              strings.TrimSpace(req.Notes),
		VerificationStatus: domain.VerificationPending,
		Status:             domain.StatusNew,
		Metadata:           metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Insert(ctx, s.db, &lead); err != nil {
		return domain.Lead{}, err
	}

	s.metrics.RecordLeadSubmitted(ctx, lead.Brand)
	s.log.Info("lead submitted",
		zap.String("lead_id", lead.ID.String()),
		zap.String("brand", lead.Brand),
		zap.Int("square_footage", lead.SquareFootage),
	)
	return lead, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	return *lead, nil
}

func (s *Service) SendCode(ctx context.Context, req domain.SendCodeRequest) (domain.SendCodeResponse, error) {
	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelEmail
	}
	if !channel.Valid() {
		return domain.SendCodeResponse{}, domain.ErrInvalidChannel
	}

	lead, err := s.load(ctx, req.LeadID)
	if err != nil {
		return domain.SendCodeResponse{}, err
	}
	if err := pendingOnly(lead.VerificationStatus); err != nil {
		return domain.SendCodeResponse{}, err
	}

	decision, err := s.limiter.Allow(ctx, lead.ID.String())
	if err != nil {
		s.log.Warn("resend limiter unavailable", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	} else if !decision.Allowed {
		return domain.SendCodeResponse{}, domain.ErrResendLimited
	}

	now := s.clock.Now()
	code := domain.VerificationCode{
		ID:        s.genID.Generate(),
		LeadID:    lead.ID,
		Channel:   channel,
		ExpiresAt: now.Add(s.codeTTL),
		CreatedAt: now,
	}

	var plain string
	switch channel {
	case domain.ChannelSMS:
		if lead.Phone == "" {
			return domain.SendCodeResponse{}, domain.ErrInvalidPhone
		}
		if _, err := s.sms.Start(ctx, lead.Phone); err != nil {
			return domain.SendCodeResponse{}, s.smsError("start", lead.ID, err)
		}
	default:
		plain, err = s.generate()
		if err != nil {
			return domain.SendCodeResponse{}, err
		}
		code.CodeHash, err = otp.Hash(plain)
		if err != nil {
			return domain.SendCodeResponse{}, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.SupersedeActiveCodes(ctx, tx, lead.ID, now); err != nil {
			return err
		}
		return s.repo.InsertCode(ctx, tx, &code)
	})
	if err != nil {
		return domain.SendCodeResponse{}, err
	}

	if channel == domain.ChannelEmail {
		err := s.email.SendTemplate(ctx, []string{lead.Email}, email.TemplateVerificationCode, map[string]any{
			"first_name":         lead.FirstName,
			"code":               plain,
			"expires_in_minutes": int(s.codeTTL / time.Minute),
		})
		if err != nil {
			s.log.Error("failed to send verification email", zap.String("lead_id", lead.ID.String()), zap.Error(err))
			return domain.SendCodeResponse{}, domain.ErrVerificationFailed
		}
	}

	s.metrics.RecordVerification(ctx, string(channel), "sent")
	s.log.Info("verification code sent",
		zap.String("lead_id", lead.ID.String()),
		zap.String("channel", string(channel)),
		zap.Time("expires_at", code.ExpiresAt),
	)

	return domain.SendCodeResponse{
		LeadID:    lead.ID.String(),
		Channel:   channel,
		ExpiresAt: code.ExpiresAt,
	}, nil
}

func (s *Service) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResponse, error) {
	lead, err := s.load(ctx, req.LeadID)
	if err != nil {
		return domain.VerifyResponse{}, err
	}

	switch lead.VerificationStatus {
	case domain.VerificationVerified:
		return domain.VerifyResponse{Lead: *lead, AlreadyVerified: true}, nil
	case domain.VerificationExpired:
		return domain.VerifyResponse{}, domain.ErrLeadExpired
	case domain.VerificationCancelled:
		return domain.VerifyResponse{}, domain.ErrInvalidTransition
	}

	submitted := strings.TrimSpace(req.Code)
	if !otp.WellFormed(submitted) {
		return domain.VerifyResponse{}, domain.ErrInvalidCode
	}

	active, err := s.repo.FindActiveCode(ctx, s.db, lead.ID)
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	if active == nil {
		return domain.VerifyResponse{}, domain.ErrCodeNotFound
	}

	now := s.clock.Now()
	if active.ExpiredAt(now) {
		if _, err := s.repo.TransitionVerification(ctx, s.db, lead.ID, domain.VerificationPending, domain.VerificationExpired, now); err != nil {
			return domain.VerifyResponse{}, err
		}
		s.metrics.RecordVerification(ctx, string(active.Channel), "expired")
		s.log.Info("verification window elapsed", zap.String("lead_id", lead.ID.String()))
		return domain.VerifyResponse{}, domain.ErrCodeExpired
	}

	decision, err := s.attempts.Allow(ctx, lead.ID.String())
	if err != nil {
		s.log.Warn("verify limiter unavailable", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	} else if !decision.Allowed {
		s.metrics.RecordVerification(ctx, string(active.Channel), "throttled")
		return domain.VerifyResponse{}, domain.ErrAttemptsExceeded
	}

	ok, err := s.matchCode(ctx, lead, active, submitted)
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	if !ok {
		s.metrics.RecordVerification(ctx, string(active.Channel), "mismatch")
		return domain.VerifyResponse{}, domain.ErrCodeMismatch
	}

	var transitioned bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := s.repo.ConsumeCode(ctx, tx, active.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return domain.ErrCodeNotFound
		}
		transitioned, err = s.repo.TransitionVerification(ctx, tx, lead.ID, domain.VerificationPending, domain.VerificationVerified, now)
		return err
	})
	if err != nil {
		return domain.VerifyResponse{}, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, lead.ID)
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	if updated == nil {
		return domain.VerifyResponse{}, domain.ErrNotFound
	}
	if !transitioned {
		if updated.VerificationStatus == domain.VerificationVerified {
			return domain.VerifyResponse{Lead: *updated, AlreadyVerified: true}, nil
		}
		return domain.VerifyResponse{}, domain.ErrInvalidTransition
	}

	s.metrics.RecordVerification(ctx, string(active.Channel), "verified")
	s.log.Info("lead verified", zap.String("lead_id", lead.ID.String()), zap.String("channel", string(active.Channel)))
	return domain.VerifyResponse{Lead: *updated}, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if !domain.CanTransition(lead.VerificationStatus, domain.VerificationCancelled) {
		return domain.Lead{}, domain.ErrInvalidTransition
	}

	ok, err := s.repo.TransitionVerification(ctx, s.db, lead.ID, lead.VerificationStatus, domain.VerificationCancelled, s.clock.Now())
	if err != nil {
		return domain.Lead{}, err
	}
	if !ok {
		return domain.Lead{}, domain.ErrInvalidTransition
	}

	updated, err := s.repo.FindByID(ctx, s.db, lead.ID)
	if err != nil {
		return domain.Lead{}, err
	}
	if updated == nil {
		return domain.Lead{}, domain.ErrNotFound
	}
	s.log.Info("lead cancelled", zap.String("lead_id", lead.ID.String()))
	return *updated, nil
}

func (s *Service) MarkAssigned(ctx context.Context, id snowflake.ID) (bool, error) {
	return s.repo.MarkAssigned(ctx, s.db, id, s.clock.Now())
}

func (s *Service) matchCode(ctx context.Context, lead *domain.Lead, active *domain.VerificationCode, submitted string) (bool, error) {
	if active.Channel == domain.ChannelSMS {
		approved, err := s.sms.Check(ctx, lead.Phone, submitted)
		if err != nil {
			return false, s.smsError("check", lead.ID, err)
		}
		return approved, nil
	}
	return otp.Verify(submitted, active.CodeHash), nil
}

func (s *Service) smsError(op string, leadID snowflake.ID, err error) error {
	if errors.Is(err, sms.ErrNotConfigured) {
		return domain.ErrSMSUnavailable
	}
	s.log.Error("sms verification failed",
		zap.String("op", op),
		zap.String("lead_id", leadID.String()),
		zap.Error(err),
	)
	return domain.ErrVerificationFailed
}

func (s *Service) load(ctx context.Context, id string) (*domain.Lead, error) {
	leadID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	lead, err := s.repo.FindByID(ctx, s.db, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.ErrNotFound
	}
	return lead, nil
}

func pendingOnly(status domain.VerificationStatus) error {
	switch status {
	case domain.VerificationPending:
		return nil
	case domain.VerificationExpired:
		return domain.ErrLeadExpired
	default:
		return domain.ErrInvalidTransition
	}
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
