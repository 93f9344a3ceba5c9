package domain

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Gateway is the outbound payment provider API.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	ChargeOffSession(ctx context.Context, req ChargeRequest) (PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// WebhookAdapter authenticates and decodes provider webhooks.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, providerEventID string) (*EventRecord, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, event *EventRecord) error
}

type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

var (
	ErrInvalidConfig         = errors.New("invalid_payment_config")
	ErrNotConfigured         = errors.New("payment_provider_not_configured")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidRetailer       = errors.New("invalid_retailer")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrPaymentDeclined       = errors.New("payment_declined")
)
