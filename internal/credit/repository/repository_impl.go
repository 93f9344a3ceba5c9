package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, retailerID snowflake.ID) (*domain.Balance, error) {
	var balance domain.Balance
	err := db.WithContext(ctx).
		Where("retailer_id = ?", retailerID).
		Limit(1).
		Find(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.RetailerID == 0 {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) TryDecrement(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE retailer_lead_credits
		 SET credits_remaining = credits_remaining - 1,
		     credits_used = credits_used + 1,
		     updated_at = ?
		 WHERE retailer_id = ? AND credits_remaining > 0`,
		at, retailerID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Grant(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, credits int, at time.Time) error {
	balance := domain.Balance{
		RetailerID:       retailerID,
		CreditsRemaining: credits,
		UpdatedAt:        at,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "retailer_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"credits_remaining": gorm.Expr("retailer_lead_credits.credits_remaining + ?", credits),
			"updated_at":        at,
		}),
	}).Create(&balance).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) FindTransactionByReference(ctx context.Context, db *gorm.DB, kind domain.TransactionKind, reference string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).
		Where("kind = ? AND provider_reference = ?", kind, reference).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ResolveTransaction(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	status domain.TransactionStatus,
	reason string,
	at time.Time,
) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_transactions
		 SET status = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, reason, at, id, domain.TransactionPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, page pagination.Pagination) ([]*domain.Transaction, error) {
	stmt, err := pagination.Apply(db.WithContext(ctx).Where("retailer_id = ?", retailerID), page)
	if err != nil {
		return nil, err
	}
	var items []*domain.Transaction
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
