package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
)

type BalanceView struct {
	RetailerID       string `json:"retailer_id"`
	CreditsRemaining int    `json:"credits_remaining"`
	CreditsUsed      int    `json:"credits_used"`
}

type CheckoutRequest struct {
	RetailerID string
	PackCode   string
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	PackCode  string `json:"pack_code"`
	Credits   int    `json:"credits"`
	Amount    int64  `json:"amount_cents"`
	Currency  string `json:"currency"`
}

// PurchaseCompleted is a settled credit-pack checkout.
type PurchaseCompleted struct {
	RetailerID  snowflake.ID
	SessionID   string
	PackCode    string
	Credits     int
	AmountCents int64
	Currency    string
}

type ChargeOutcome struct {
	PaymentIntentID string
	Succeeded       bool
	FailureReason   string
}

type ListTransactionsRequest struct {
	RetailerID string
	PageToken  string
	PageSize   int
}

type ListTransactionsResponse struct {
	Transactions []Transaction       `json:"transactions"`
	PageInfo     pagination.PageInfo `json:"page_info"`
}

type Service interface {
	GetBalance(ctx context.Context, retailerID string) (BalanceView, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	// CompletePurchase grants the pack's credits once per checkout session.
	CompletePurchase(ctx context.Context, req PurchaseCompleted) (bool, error)
	// ResolveCharge applies an asynchronous card charge outcome and returns the
	// affected transaction when one was pending.
	ResolveCharge(ctx context.Context, outcome ChargeOutcome) (*Transaction, error)
}

var (
	ErrInvalidRetailer     = errors.New("invalid_retailer")
	ErrInvalidPack         = errors.New("invalid_credit_pack")
	ErrInvalidCredits      = errors.New("invalid_credits")
	ErrRetailerMissing     = errors.New("retailer_not_found")
	ErrPaymentsUnavailable = errors.New("payments_unavailable")
)
