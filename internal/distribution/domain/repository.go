package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, d *Distribution) error
	// Attempted reports whether the retailer already has a distribution or a
	// card charge, successful or not, for the lead.
	Attempted(ctx context.Context, db *gorm.DB, leadID, retailerID snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Distribution, error)
	ListByLead(ctx context.Context, db *gorm.DB, leadID snowflake.ID) ([]*Distribution, error)
	ListByRetailer(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, page pagination.Pagination) ([]*Distribution, error)
	MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	// ResolvePayment settles a payment_pending row and reports whether it did.
	ResolvePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, wasPaid bool) (bool, error)
}
