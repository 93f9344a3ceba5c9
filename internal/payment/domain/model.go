package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderStripe = "stripe"

// EventRecord is the stored copy of a received provider webhook.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "stripe_webhook_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
	EventTypePaymentSucceeded  = "payment_succeeded"
	EventTypePaymentFailed     = "payment_failed"
	EventTypeSetupSucceeded    = "setup_succeeded"
)

// PaymentEvent is the canonical event parsed from a provider webhook.
type PaymentEvent struct {
	Provider         string
	ProviderEventID  string
	Type             string
	ProviderObjectID string
	ProviderCustomer string
	RetailerID       snowflake.ID
	PaymentMethodID  string
	CardBrand        string
	CardLast4        string
	PackCode         string
	Credits          int
	Amount           int64
	Currency         string
	FailureReason    string
	OccurredAt       time.Time
	RawPayload       []byte
}

type Customer struct {
	ID string
}

type CreateCustomerRequest struct {
	Email    string
	Name     string
	Metadata map[string]string
	// IdempotencyKey is forwarded so retried requests reuse one customer.
	IdempotencyKey string
}

type ChargeRequest struct {
	Customer       string
	PaymentMethod  string
	AmountCents    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentIntent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

// Succeeded reports whether the intent was captured synchronously.
func (p PaymentIntent) Succeeded() bool {
	return p.Status == "succeeded"
}

type CheckoutRequest struct {
	Customer       string
	ProductName    string
	AmountCents    int64
	Currency       string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
