package platform

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// makeHash собирает хеш Argon2id в том же формате, что scripts/generate_hash.go.
func makeHash(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		memory      uint32 = 65536
		iterations  uint32 = 3
		parallelism uint8  = 2
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func TestConfigResolver_StaticAdmins(t *testing.T) {
	r := NewConfigResolver([]int64{10, 20}, "")
	ctx := context.Background()

	assert.True(t, r.HasAdminCapability(ctx, 1, 10))
	assert.True(t, r.HasAdminCapability(ctx, 1, 20))
	assert.False(t, r.HasAdminCapability(ctx, 1, 30))
}

func TestConfigResolver_ElevateByPassword(t *testing.T) {
	r := NewConfigResolver(nil, makeHash("secret"))
	ctx := context.Background()

	assert.False(t, r.HasAdminCapability(ctx, 1, 42))

	assert.ErrorIs(t, r.Elevate(42, "wrong"), common.ErrWrongPassword)
	assert.False(t, r.HasAdminCapability(ctx, 1, 42))

	require.NoError(t, r.Elevate(42, "secret"))
	assert.True(t, r.HasAdminCapability(ctx, 1, 42))

	// Повышение персональное
	assert.False(t, r.HasAdminCapability(ctx, 1, 43))
}

func TestVerifyArgon2id_MalformedHash(t *testing.T) {
	assert.False(t, verifyArgon2id("secret", ""))
	assert.False(t, verifyArgon2id("secret", "$argon2id$bad"))
	assert.False(t, verifyArgon2id("secret", "$argon2id$v=19$m=x,t=y,p=z$AAAA$BBBB"))
}
