package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	t.Run("accepts lowercase uuid", func(t *testing.T) {
		assert.True(t, IsValidUUID("a1b2c3d4-e5f6-7890-abcd-ef1234567890"))
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		assert.False(t, IsValidUUID(""))
		assert.False(t, IsValidUUID("not-a-uuid"))
		assert.False(t, IsValidUUID("a1b2c3d4e5f67890abcdef1234567890"))
		assert.False(t, IsValidUUID("A1B2C3D4-E5F6-7890-ABCD-EF1234567890"))
	})
}

func TestIsValidPairingCode(t *testing.T) {
	t.Run("accepts six digits", func(t *testing.T) {
		assert.True(t, IsValidPairingCode("000000"))
		assert.True(t, IsValidPairingCode("123456"))
		assert.True(t, IsValidPairingCode("999999"))
	})

	t.Run("rejects wrong shapes", func(t *testing.T) {
		assert.False(t, IsValidPairingCode(""))
		assert.False(t, IsValidPairingCode("12345"))
		assert.False(t, IsValidPairingCode("1234567"))
		assert.False(t, IsValidPairingCode("12345a"))
		assert.False(t, IsValidPairingCode("123 456"))
		assert.False(t, IsValidPairingCode("123456\n"))
	})
}

func TestIsValidEnum(t *testing.T) {
	values := []string{"ios", "android"}

	assert.True(t, IsValidEnum("ios", values))
	assert.True(t, IsValidEnum("android", values))
	assert.False(t, IsValidEnum("web", values))
	assert.False(t, IsValidEnum("", values))
	assert.False(t, IsValidEnum("IOS", values))
}
