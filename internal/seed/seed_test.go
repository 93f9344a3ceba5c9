package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/dbtest"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoRetailersIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := EnsureDemoRetailers(context.Background(), db, node, now)
	require.NoError(t, err)
	assert.Equal(t, Result{Retailers: 2, Subscriptions: 5, Credits: 10}, res)

	var harbour retailerdomain.Retailer
	require.NoError(t, db.Where("slug = ?", "harbourfront-flooring").First(&harbour).Error)
	assert.Equal(t, retailerdomain.StatusActive, harbour.Status)
	assert.Equal(t, []string{"M5V", "M5J", "M6K"}, harbour.Prefixes())

	var balance creditdomain.Balance
	require.NoError(t, db.First(&balance, "retailer_id = ?", harbour.ID).Error)
	assert.Equal(t, 10, balance.CreditsRemaining)

	res, err = EnsureDemoRetailers(context.Background(), db, node, now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	var count int64
	require.NoError(t, db.Model(&retailerdomain.Retailer{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestEnsureDemoRetailersRequiresDB(t *testing.T) {
	_, err := EnsureDemoRetailers(context.Background(), nil, nil, time.Now())
	assert.Error(t, err)
}
