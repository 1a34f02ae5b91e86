package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, verifyPassword(hash, "s3cret!"))
	assert.False(t, verifyPassword(hash, "s3cret?"))
	assert.False(t, verifyPassword("not-a-hash", "s3cret!"))

	other, err := hashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ")
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	km, err := crypto.NewKeyManager(encodeKey(key))
	require.NoError(t, err)

	svc := NewAuthService(env.users, km, "test-secret", time.Hour, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Register(ctx, " Ann@Example.com ", "hunter22", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token)

	stored, err := env.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.DKEncrypted, "a data key is issued when encryption is enabled")

	claims, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)

	_, err = svc.Register(ctx, "ann@example.com", "another1", "")
	e := requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, "User already exists", e.Message)

	login, err := svc.Login(ctx, "ANN@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ann@example.com", "wrong-password")
	e = requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, "Invalid credentials", e.Message)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	e = requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, "Invalid credentials", e.Message, "unknown emails are indistinguishable from bad passwords")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(env.users, nil, "test-secret", time.Hour, zap.NewNop())
	ctx := context.Background()

	for _, email := range []string{"not-an-email", "Ann <ann@example.com>", "ann@", "@example.com"} {
		_, err := svc.Register(ctx, email, "hunter22", "")
		e := requireKind(t, err, apperr.KindValidation)
		assert.Equal(t, "Invalid email address", e.Message, email)
	}

	_, err := svc.Register(ctx, "", "hunter22", "")
	e := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "Email and password are required", e.Message)

	_, err = svc.Register(ctx, "bob@example.com", "12345", "")
	e = requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "Password must be at least 6 characters", e.Message)

	res, err := svc.Register(ctx, "bob@example.com", "123456", "")
	require.NoError(t, err)
	stored, err := env.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DKEncrypted)
}

func TestParseTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expiring := NewAuthService(env.users, nil, "test-secret", -time.Minute, zap.NewNop())
	res, err := expiring.Register(ctx, "cat@example.com", "hunter22", "")
	require.NoError(t, err)
	_, err = expiring.ParseToken(res.Token)
	e := requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, "Token expired", e.Message)

	issuer := NewAuthService(env.users, nil, "other-secret", time.Hour, zap.NewNop())
	verifier := NewAuthService(env.users, nil, "test-secret", time.Hour, zap.NewNop())
	res, err = issuer.Login(ctx, "cat@example.com", "hunter22")
	require.NoError(t, err)
	_, err = verifier.ParseToken(res.Token)
	e = requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, "Invalid token", e.Message)

	_, err = verifier.ParseToken("garbage")
	requireKind(t, err, apperr.KindAuth)
}
