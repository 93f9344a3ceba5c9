package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lead *Lead) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lead, error)
	// TransitionVerification moves the lead from one verification status to
	// another and reports whether the row was still in the expected state.
	TransitionVerification(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to VerificationStatus, at time.Time) (bool, error)
	// MarkAssigned moves a verified lead to assigned from new (or keeps it
	// assigned) and reports whether the lead is assigned afterwards.
	MarkAssigned(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	InsertCode(ctx context.Context, db *gorm.DB, code *VerificationCode) error
	FindActiveCode(ctx context.Context, db *gorm.DB, leadID snowflake.ID) (*VerificationCode, error)
	SupersedeActiveCodes(ctx context.Context, db *gorm.DB, leadID snowflake.ID, at time.Time) (int64, error)
	ConsumeCode(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}
