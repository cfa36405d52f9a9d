package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateVerificationCode(t *testing.T) {
	t.Run("Generates 6-digit numeric code", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := GenerateVerificationCode()
			require.NoError(t, err)
			require.Len(t, code, 6)
			for _, c := range code {
				assert.True(t, c >= '0' && c <= '9', "non-numeric character %c in %s", c, code)
			}
		}
	})

	t.Run("Generates different codes", func(t *testing.T) {
		codes := make(map[string]bool)
		for i := 0; i < 50; i++ {
			code, err := GenerateVerificationCode()
			require.NoError(t, err)
			codes[code] = true
		}
		assert.Greater(t, len(codes), 40)
	})
}

func TestHashAndCompareVerificationCode(t *testing.T) {
	hash, err := HashVerificationCode("042317", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "042317", hash)
	assert.True(t, CompareVerificationCode(hash, "042317"))
	assert.False(t, CompareVerificationCode(hash, "042318"))
	assert.False(t, CompareVerificationCode("not-a-hash", "042317"))
}

func TestHashVerificationCode_InvalidCost(t *testing.T) {
	_, err := HashVerificationCode("123456", bcrypt.MaxCost+1)
	assert.Error(t, err)
}
