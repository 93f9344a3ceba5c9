package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	paymentservice "github.com/smallbiznis/floorquote/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapter    paymentdomain.WebhookAdapter `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapter    paymentdomain.WebhookAdapter
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		adapter:    p.Adapter,
	}
}

// IngestWebhook authenticates a provider delivery and applies it. Ignored and
// duplicate events are acknowledged without error.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if s.adapter == nil {
		return paymentdomain.ErrNotConfigured
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		if errors.Is(err, paymentdomain.ErrInvalidRetailer) {
			s.log.Warn("payment webhook missing retailer mapping")
		}
		return err
	}
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	err = s.paymentSvc.ProcessEvent(ctx, event, payload)
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		s.log.Info("duplicate payment event", zap.String("event_id", event.ProviderEventID))
		return nil
	}
	return err
}
