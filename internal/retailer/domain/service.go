package domain

import (
	"context"
	"errors"
)

type CreateRetailerRequest struct {
	BusinessName           string
	ContactName            string
	Email                  string
	Phone                  string
	PostalPrefixes         []string
	InstallationPreference InstallationPreference
	UrgencyPreference      UrgencyPreference
	Status                 Status
}

// UpdateRetailerRequest carries optional changes; nil fields are left untouched.
type UpdateRetailerRequest struct {
	ID                     string
	ContactName            *string
	Phone                  *string
	PostalPrefixes         *[]string
	InstallationPreference *InstallationPreference
	UrgencyPreference      *UrgencyPreference
	Status                 *Status
}

type CreateSubscriptionRequest struct {
	RetailerID string
	Brand      string
	SqftMin    int
	SqftMax    *int
}

type RetailerView struct {
	Retailer
	PostalPrefixes   []string `json:"postal_prefixes"`
	HasPaymentMethod bool     `json:"has_payment_method"`
}

type Service interface {
	Create(ctx context.Context, req CreateRetailerRequest) (RetailerView, error)
	GetByID(ctx context.Context, id string) (RetailerView, error)
	Update(ctx context.Context, req UpdateRetailerRequest) (RetailerView, error)
	ListActive(ctx context.Context) ([]Retailer, error)

	AddSubscription(ctx context.Context, req CreateSubscriptionRequest) (BrandSubscription, error)
	ListSubscriptions(ctx context.Context, retailerID string) ([]BrandSubscription, error)
	DeactivateSubscription(ctx context.Context, retailerID, subscriptionID string) error
	ListActiveSubscriptions(ctx context.Context) ([]BrandSubscription, error)

	EnsureStripeCustomer(ctx context.Context, retailerID string) (Retailer, error)
	AttachPaymentMethod(ctx context.Context, stripeCustomerID, paymentMethodID, cardBrand, last4 string) error
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPrefix       = errors.New("invalid_postal_prefix")
	ErrInvalidInstallation = errors.New("invalid_installation_preference")
	ErrInvalidUrgency      = errors.New("invalid_urgency_preference")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidBrand        = errors.New("invalid_brand")
	ErrInvalidTier         = errors.New("invalid_sqft_tier")
	ErrNotFound            = errors.New("not_found")
	ErrSubscriptionMissing = errors.New("subscription_not_found")
	ErrPaymentsUnavailable = errors.New("payments_unavailable")
)
