package security

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{tokens: map[string]bool{}}
}

func (m *memoryBlacklist) Add(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[token] {
		return repository.ErrAlreadyExists
	}
	m.tokens[token] = true
	return nil
}

func (m *memoryBlacklist) Exists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token], nil
}

type memoryUsers map[int32]*domain.User

func (m memoryUsers) GetByID(_ context.Context, id int32) (*domain.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func TestTokenService_Session(t *testing.T) {
	ctx := context.Background()
	blacklist := newMemoryBlacklist()
	svc := NewTokenService(testSecret, blacklist, memoryUsers{})

	gold := "GOLD"
	roles := domain.RoleAssignment{"ADMIN": &gold, "CLIENT": nil}

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := svc.IssueSessionToken(7, roles)
		require.NoError(t, err)

		claims, err := svc.DecodeSessionToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int32(7), claims.UserID)
		assert.Equal(t, "GOLD", *claims.Roles["ADMIN"])
		assert.Contains(t, claims.Roles, "CLIENT")
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("RevokedIdempotently", func(t *testing.T) {
		token, err := svc.IssueSessionToken(7, roles)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, token))
		require.NoError(t, svc.Revoke(ctx, token))

		for i := 0; i < 2; i++ {
			_, err = svc.DecodeSessionToken(ctx, token)
			assert.ErrorIs(t, err, ErrTokenRevoked)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		past := NewTokenService(testSecret, blacklist, memoryUsers{}, WithClock(func() time.Time {
			return time.Now().Add(-8 * 24 * time.Hour)
		}))
		token, err := past.IssueSessionToken(7, roles)
		require.NoError(t, err)

		_, err = svc.DecodeSessionToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Tampered", func(t *testing.T) {
		token, err := svc.IssueSessionToken(7, roles)
		require.NoError(t, err)

		other := NewTokenService(strings.Repeat("x", 32), blacklist, memoryUsers{})
		_, err = other.DecodeSessionToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = svc.DecodeSessionToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RejectsNoneAlgorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{UserID: 7, Type: TokenTypeSession})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.DecodeSessionToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("SingleUseTokenIsNotASession", func(t *testing.T) {
		token, err := svc.IssueSingleUseToken(7, PurposeUserActivation)
		require.NoError(t, err)

		_, err = svc.DecodeSessionToken(ctx, token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})
}

func TestTokenService_SingleUse(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: 11, GivenNames: "Wanjiru"}
	svc := NewTokenService(testSecret, newMemoryBlacklist(), memoryUsers{11: user})

	t.Run("RoundTripReturnsSameUser", func(t *testing.T) {
		token, err := svc.IssueSingleUseToken(11, PurposeUserActivation)
		require.NoError(t, err)

		got, err := svc.DecodeSingleUseToken(ctx, token, PurposeUserActivation)
		require.NoError(t, err)
		assert.Same(t, user, got)
	})

	t.Run("WrongPurpose", func(t *testing.T) {
		token, err := svc.IssueSingleUseToken(11, PurposeUserActivation)
		require.NoError(t, err)

		_, err = svc.DecodeSingleUseToken(ctx, token, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrWrongPurpose)
		assert.Contains(t, err.Error(), "reset_password")
		assert.False(t, svc.IsValidSingleUse(token, PurposeResetPassword))
		assert.True(t, svc.IsValidSingleUse(token, PurposeUserActivation))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		token, err := svc.IssueSingleUseToken(99, PurposeResetPassword)
		require.NoError(t, err)

		_, err = svc.DecodeSingleUseToken(ctx, token, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("MissingUserID", func(t *testing.T) {
		token, err := svc.IssueSingleUseToken(0, PurposeResetPassword)
		require.NoError(t, err)

		_, err = svc.DecodeSingleUseToken(ctx, token, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("ExpiresAfter24Hours", func(t *testing.T) {
		issuedAt := time.Now().Add(-25 * time.Hour)
		old := NewTokenService(testSecret, newMemoryBlacklist(), memoryUsers{11: user}, WithClock(func() time.Time { return issuedAt }))
		token, err := old.IssueSingleUseToken(11, PurposeResetPassword)
		require.NoError(t, err)

		_, err = svc.DecodeSingleUseToken(ctx, token, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("SessionTokenIsNotSingleUse", func(t *testing.T) {
		token, err := svc.IssueSessionToken(11, nil)
		require.NoError(t, err)

		_, err = svc.DecodeSingleUseToken(ctx, token, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})
}

func TestCipher(t *testing.T) {
	c, err := NewCipher("secrets", "otp-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotContains(t, enc, "JBSWY3DPEHPK3PXP")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", dec)

	t.Run("PurposeSeparatesKeys", func(t *testing.T) {
		other, err := NewCipher("secrets", "mailer")
		require.NoError(t, err)
		_, err = other.Decrypt(enc)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := c.Decrypt("%%%")
		assert.ErrorIs(t, err, ErrDecrypt)
		_, err = c.Decrypt("c2hvcnQ")
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("EmptySecret", func(t *testing.T) {
		_, err := NewCipher("", "x")
		assert.Error(t, err)
	})
}

func TestPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("pepper", bcrypt.MinCost)
	require.NoError(t, err)

	stored, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(stored, "$2"), "stored hash must be peppered")

	assert.True(t, h.Verify(stored, "correct horse"))
	assert.False(t, h.Verify(stored, "wrong horse"))
	assert.False(t, h.Verify("garbage", "correct horse"))

	t.Run("DifferentPepper", func(t *testing.T) {
		other, err := NewPasswordHasher("other-pepper", bcrypt.MinCost)
		require.NoError(t, err)
		assert.False(t, other.Verify(stored, "correct horse"))
	})

	t.Run("TooShort", func(t *testing.T) {
		_, err := h.Hash("short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("LongerThanBcryptLimit", func(t *testing.T) {
		long := strings.Repeat("a", 73)
		stored, err := h.Hash(long)
		require.NoError(t, err)
		assert.True(t, h.Verify(stored, long))
		// differs only past byte 72, which bcrypt alone would ignore
		assert.False(t, h.Verify(stored, strings.Repeat("a", 72)+"b"))
	})

	t.Run("MultibytePassphrase", func(t *testing.T) {
		phrase := strings.Repeat("ñandú ", 20)
		stored, err := h.Hash(phrase)
		require.NoError(t, err)
		assert.True(t, h.Verify(stored, phrase))
	})
}
