package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateLeadRequest struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	PostalCode string
	City       string
	Brand      string
	// SquareFootage wins over SizeLabel when positive.
	SquareFootage int
	SizeLabel     string
	Installation  bool
	Timeline      string
	Notes         string
	Metadata      map[string]any
}

type SendCodeRequest struct {
	LeadID  string
	Channel Channel
}

type SendCodeResponse struct {
	LeadID    string    `json:"lead_id"`
	Channel   Channel   `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyRequest struct {
	LeadID string
	Code   string
}

type VerifyResponse struct {
	Lead            Lead `json:"lead"`
	AlreadyVerified bool `json:"already_verified"`
}

type Service interface {
	Create(ctx context.Context, req CreateLeadRequest) (Lead, error)
	GetByID(ctx context.Context, id string) (Lead, error)
	SendCode(ctx context.Context, req SendCodeRequest) (SendCodeResponse, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
	Cancel(ctx context.Context, id string) (Lead, error)
	// MarkAssigned reports false when the lead is no longer distributable.
	MarkAssigned(ctx context.Context, id snowflake.ID) (bool, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidPhone         = errors.New("invalid_phone")
	ErrInvalidPostalCode    = errors.New("invalid_postal_code")
	ErrInvalidBrand         = errors.New("invalid_brand")
	ErrInvalidSquareFootage = errors.New("invalid_square_footage")
	ErrInvalidTimeline      = errors.New("invalid_timeline")
	ErrInvalidChannel       = errors.New("invalid_channel")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrNotFound             = errors.New("not_found")
	ErrCodeNotFound         = errors.New("verification_code_not_found")
	ErrCodeMismatch         = errors.New("verification_code_mismatch")
	ErrCodeExpired          = errors.New("verification_expired")
	ErrLeadExpired          = errors.New("lead_expired")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrResendLimited        = errors.New("resend_rate_limited")
	ErrAttemptsExceeded     = errors.New("verification_attempts_exceeded")
	ErrVerificationFailed   = errors.New("verification_delivery_failed")
	ErrSMSUnavailable       = errors.New("sms_unavailable")
)
