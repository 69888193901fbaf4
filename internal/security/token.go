package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/repository"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrTokenRevoked   = errors.New("token is blacklisted")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrWrongPurpose   = errors.New("wrong token purpose")
	ErrMissingUserID  = errors.New("no user id provided")
	ErrUserNotFound   = errors.New("user not found")
)

type TokenType string

const (
	TokenTypeSession   TokenType = "session"
	TokenTypeSingleUse TokenType = "single_use"
)

// Purpose binds a single-use token to one flow
type Purpose string

const (
	PurposeUserActivation Purpose = "user_activation"
	PurposeResetPassword  Purpose = "reset_password"
)

const (
	DefaultSessionTTL   = 7 * 24 * time.Hour
	DefaultSingleUseTTL = 24 * time.Hour
	issuer              = "tenantauth"
)

// SessionClaims embed the role map at issuance; role changes apply on next login
type SessionClaims struct {
	UserID int32                 `json:"id"`
	Type   TokenType             `json:"type"`
	Roles  domain.RoleAssignment `json:"role"`
	jwt.RegisteredClaims
}

type SingleUseClaims struct {
	UserID  int32     `json:"id"`
	Type    TokenType `json:"type"`
	Purpose Purpose   `json:"purpose"`
	jwt.RegisteredClaims
}

// RevocationStore is the blacklist consulted on every session decode
type RevocationStore interface {
	Add(ctx context.Context, token string) error
	Exists(ctx context.Context, token string) (bool, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
}

type TokenService struct {
	secret       []byte
	sessionTTL   time.Duration
	singleUseTTL time.Duration
	revoked      RevocationStore
	users        UserLookup
	now          func() time.Time
}

type TokenOption func(*TokenService)

func WithSessionTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.sessionTTL = d }
}

func WithSingleUseTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.singleUseTTL = d }
}

// WithClock overrides time.Now for issuance and validation
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret string, revoked RevocationStore, users UserLookup, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret:       []byte(secret),
		sessionTTL:   DefaultSessionTTL,
		singleUseTTL: DefaultSingleUseTTL,
		revoked:      revoked,
		users:        users,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) IssueSessionToken(userID int32, roles domain.RoleAssignment) (string, error) {
	now := s.now()
	claims := SessionClaims{
		UserID:           userID,
		Type:             TokenTypeSession,
		Roles:            roles.Clone(),
		RegisteredClaims: s.registered(userID, now, s.sessionTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// DecodeSessionToken verifies signature and expiry, then rejects blacklisted tokens
func (s *TokenService) DecodeSessionToken(ctx context.Context, token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeSession {
		return nil, ErrWrongTokenType
	}

	revoked, err := s.revoked.Exists(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *TokenService) IssueSingleUseToken(userID int32, purpose Purpose) (string, error) {
	now := s.now()
	claims := SingleUseClaims{
		UserID:           userID,
		Type:             TokenTypeSingleUse,
		Purpose:          purpose,
		RegisteredClaims: s.registered(userID, now, s.singleUseTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// DecodeSingleUseToken resolves the token to its user. It does not consult the blacklist;
// consumption is tracked on the user.
func (s *TokenService) DecodeSingleUseToken(ctx context.Context, token string, purpose Purpose) (*domain.User, error) {
	claims, err := s.singleUseClaims(token, purpose)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// IsValidSingleUse checks signature, expiry and purpose without touching storage
func (s *TokenService) IsValidSingleUse(token string, purpose Purpose) bool {
	_, err := s.singleUseClaims(token, purpose)
	return err == nil
}

// Revoke blacklists a token; revoking twice is not an error
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.revoked.Add(ctx, token); err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// SessionTTL is how long a revoked session token stays meaningful
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *TokenService) singleUseClaims(token string, purpose Purpose) (*SingleUseClaims, error) {
	claims := &SingleUseClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeSingleUse {
		return nil, ErrWrongTokenType
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w (needed %s)", ErrWrongPurpose, purpose)
	}
	if claims.UserID == 0 {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenService) registered(userID int32, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   strconv.Itoa(int(userID)),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}
