package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatsis/gatsishub-backend/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	hash, err := HashPassword("s3cret-passw0rd", cfg)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("s3cret-passw0rd", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := HashPassword("", testPasswordConfig())
	assert.Error(t, err)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("anything", "$argon2id$v=19$m=8,t=1,p=1$bad salt$hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := GenerateVerificationCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.GreaterOrEqual(t, r, '0')
		assert.LessOrEqual(t, r, '9')
	}

	_, err = GenerateVerificationCode(0)
	assert.Error(t, err)
}
