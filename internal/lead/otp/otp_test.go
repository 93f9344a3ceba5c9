package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.True(t, WellFormed(code), code)
	}
}

func TestHashVerify(t *testing.T) {
	encoded, err := Hash("012345")
	require.NoError(t, err)

	assert.True(t, Verify("012345", encoded))
	assert.False(t, Verify("012346", encoded))
	assert.False(t, Verify("012345", "not-a-hash"))
	assert.False(t, Verify("012345", "$argon2id$v=19$m=x,t=1,p=2$AAAA$AAAA"))
}

func TestWellFormed(t *testing.T) {
	assert.False(t, WellFormed("12345"))
	assert.False(t, WellFormed("12345a"))
	assert.False(t, WellFormed(" 123456"))
	assert.True(t, WellFormed("000000"))
}
