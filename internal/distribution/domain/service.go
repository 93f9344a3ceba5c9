package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
)

type ListByRetailerRequest struct {
	RetailerID string
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	Distributions []Distribution      `json:"distributions"`
	PageInfo      pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Distribute matches a verified lead, settles payment per candidate and
	// notifies the retailers that received it.
	Distribute(ctx context.Context, leadID string) (Report, error)
	ListByLead(ctx context.Context, leadID string) ([]Distribution, error)
	ListByRetailer(ctx context.Context, req ListByRetailerRequest) (ListResponse, error)
	// ResolveCardPayment applies an asynchronous card outcome to a
	// payment_pending distribution.
	ResolveCardPayment(ctx context.Context, id snowflake.ID, succeeded bool) error
}

var (
	ErrInvalidLead            = errors.New("invalid_lead_id")
	ErrInvalidRetailer        = errors.New("invalid_retailer_id")
	ErrLeadNotFound           = errors.New("lead_not_found")
	ErrRetailerNotFound       = errors.New("retailer_not_found")
	ErrLeadNotVerified        = errors.New("lead_not_verified")
	ErrDistributionInProgress = errors.New("distribution_in_progress")
)
