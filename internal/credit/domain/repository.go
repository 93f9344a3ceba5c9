package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// FindBalance returns nil when the retailer has never held credits.
	FindBalance(ctx context.Context, db *gorm.DB, retailerID snowflake.ID) (*Balance, error)
	// TryDecrement takes one credit only if one is available and reports
	// whether it did.
	TryDecrement(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, at time.Time) (bool, error)
	Grant(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, credits int, at time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindTransactionByReference(ctx context.Context, db *gorm.DB, kind TransactionKind, reference string) (*Transaction, error)
	// ResolveTransaction moves a pending transaction to a final status and
	// reports whether a row changed.
	ResolveTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransactionStatus, reason string, at time.Time) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, page pagination.Pagination) ([]*Transaction, error)
}
