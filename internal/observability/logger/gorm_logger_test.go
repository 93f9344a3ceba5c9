package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{`SELECT * FROM "leads" WHERE id = 1`, "SELECT", "leads"},
		{"  delete from leads where id = ?", "DELETE", "leads"},
		{"INSERT INTO payment_transactions (id) VALUES (1)", "INSERT", "payment_transactions"},
		{"UPDATE retailer_lead_credits SET credits_remaining = 1", "UPDATE", "retailer_lead_credits"},
		{"SELECT (SELECT COUNT(*) FROM lead_distributions) + 1", "SELECT", "lead_distributions"},
		{"SELECT 1", "SELECT", ""},
		{"", "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerConfigFor(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLoggerConfigFor("debug").Level)
	assert.Equal(t, gormlogger.Warn, GormLoggerConfigFor("info").Level)
	assert.Equal(t, gormlogger.Error, GormLoggerConfigFor("ERROR").Level)
}

func observed(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(GormLoggerConfig{Level: level, SlowThreshold: time.Second, Base: zap.New(core)}), logs
}

func TestGormLoggerTrace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return "UPDATE leads SET status = ? WHERE id = ?", 1 }

	l, logs := observed(gormlogger.Warn)
	l.Trace(ctx, time.Now(), query, nil)
	assert.Zero(t, logs.Len(), "fast query below info level")

	l.Trace(ctx, time.Now().Add(-2*time.Second), query, nil)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "gorm.slow_query", entry.Message)
	assert.Equal(t, "leads", entry.ContextMap()["table"])
	assert.Equal(t, "UPDATE", entry.ContextMap()["operation"])

	l.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, logs.Len(), "record not found is not logged as a failure")

	l.Trace(ctx, time.Now(), query, errors.New("boom"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestGormLoggerDebugTracesEveryQuery(t *testing.T) {
	l, logs := observed(gormlogger.Info)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT * FROM leads", 3 }, nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, int64(3), logs.All()[0].ContextMap()["rows_affected"])

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 1, logs.Len())
}

func TestGormLoggerDropsParams(t *testing.T) {
	l := NewGormLogger(GormLoggerConfigFor("debug"))
	sql, params := l.ParamsFilter(context.Background(), "SELECT * FROM leads WHERE email = ?", "dana@example.com")
	assert.Equal(t, "SELECT * FROM leads WHERE email = ?", sql)
	assert.Nil(t, params)
}
