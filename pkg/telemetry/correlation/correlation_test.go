package correlation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))

	_, again := EnsureCorrelationID(ctx)
	assert.Equal(t, cid, again)
}

func TestIdempotencyKey(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), " req-1 ")
	assert.Equal(t, "checkout:42:req-1", IdempotencyKey(ctx, "checkout:42"))

	key := IdempotencyKey(context.Background(), "customer:7")
	assert.True(t, strings.HasPrefix(key, "customer:7:"))
}
