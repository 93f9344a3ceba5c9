package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          paymentdomain.Repository
	Credits       creditdomain.Service
	Retailers     retailerdomain.Service
	Distributions distributiondomain.Service
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

// Service applies verified provider events to credits, charges and saved
// payment methods. Each provider event is applied at most once.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	credits       creditdomain.Service
	retailers     retailerdomain.Service
	distributions distributiondomain.Service
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		credits:       p.Credits,
		retailers:     p.Retailers,
		distributions: p.Distributions,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.apply(ctx, event); err != nil {
		return err
	}

	processedAt := s.clock.Now()
	stored.ProcessedAt = &processedAt
	if err := s.repo.MarkProcessed(ctx, s.db, stored); err != nil {
		return err
	}

	if inserted {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}
	return nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		if event.RetailerID == 0 {
			return paymentdomain.ErrInvalidRetailer
		}
	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypePaymentFailed:
		if strings.TrimSpace(event.ProviderObjectID) == "" {
			return paymentdomain.ErrInvalidEvent
		}
	case paymentdomain.EventTypeSetupSucceeded:
		if strings.TrimSpace(event.ProviderCustomer) == "" || strings.TrimSpace(event.PaymentMethodID) == "" {
			return paymentdomain.ErrInvalidEvent
		}
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) apply(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		granted, err := s.credits.CompletePurchase(ctx, creditdomain.PurchaseCompleted{
			RetailerID:  event.RetailerID,
			SessionID:   event.ProviderObjectID,
			PackCode:    event.PackCode,
			Credits:     event.Credits,
			AmountCents: event.Amount,
			Currency:    event.Currency,
		})
		if err != nil {
			return err
		}
		if !granted {
			s.log.Info("checkout already settled", zap.String("session_id", event.ProviderObjectID))
		}
		return nil

	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypePaymentFailed:
		succeeded := event.Type == paymentdomain.EventTypePaymentSucceeded
		tx, err := s.credits.ResolveCharge(ctx, creditdomain.ChargeOutcome{
			PaymentIntentID: event.ProviderObjectID,
			Succeeded:       succeeded,
			FailureReason:   event.FailureReason,
		})
		if err != nil {
			return err
		}
		if tx == nil || tx.DistributionID == nil {
			return nil
		}
		return s.distributions.ResolveCardPayment(ctx, *tx.DistributionID, succeeded)

	case paymentdomain.EventTypeSetupSucceeded:
		err := s.retailers.AttachPaymentMethod(ctx, event.ProviderCustomer, event.PaymentMethodID, event.CardBrand, event.CardLast4)
		if errors.Is(err, retailerdomain.ErrNotFound) {
			s.log.Warn("payment method for unknown customer ignored", zap.String("customer", event.ProviderCustomer))
			return nil
		}
		return err
	}
	return paymentdomain.ErrInvalidEvent
}
