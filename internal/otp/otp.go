// Package otp issues and checks time-windowed one-time pins bound to a per-user secret.
package otp

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/security"
)

const DefaultPeriodSeconds uint = 3600

type Service struct {
	cipher *security.Cipher
	issuer string
	period uint
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cipher *security.Cipher, issuer string, periodSeconds uint, opts ...Option) *Service {
	if periodSeconds == 0 {
		periodSeconds = DefaultPeriodSeconds
	}
	s := &Service{cipher: cipher, issuer: issuer, period: periodSeconds, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSecretAndCode replaces the user's secret with a fresh encrypted one and
// returns the current code. The plaintext code is never stored.
func (s *Service) GenerateSecretAndCode(u *domain.User) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName(u),
		Period:      s.period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate otp secret: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(key.Secret())
	if err != nil {
		return "", fmt.Errorf("encrypt otp secret: %w", err)
	}
	u.OTPSecret = encrypted

	return totp.GenerateCodeCustom(key.Secret(), s.now(), s.opts(s.period))
}

// CurrentCode recomputes the code for the current default window, if a secret exists
func (s *Service) CurrentCode(u *domain.User) (string, bool) {
	secret, ok := s.secret(u)
	if !ok {
		return "", false
	}
	code, err := totp.GenerateCodeCustom(secret, s.now(), s.opts(s.period))
	if err != nil {
		return "", false
	}
	return code, true
}

// Verify checks code against the window the caller asks for; 0 means the default window.
// A missing or unreadable secret fails closed.
func (s *Service) Verify(u *domain.User, code string, windowSeconds uint) bool {
	secret, ok := s.secret(u)
	if !ok {
		return false
	}
	if windowSeconds == 0 {
		windowSeconds = s.period
	}
	valid, err := totp.ValidateCustom(code, secret, s.now(), s.opts(windowSeconds))
	return err == nil && valid
}

func (s *Service) secret(u *domain.User) (string, bool) {
	if u == nil || u.OTPSecret == "" {
		return "", false
	}
	secret, err := s.cipher.Decrypt(u.OTPSecret)
	if err != nil {
		return "", false
	}
	return secret, true
}

func (s *Service) opts(period uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func accountName(u *domain.User) string {
	switch {
	case u.Phone != "":
		return u.Phone
	case u.Email != "":
		return u.Email
	default:
		return fmt.Sprintf("user-%d", u.ID)
	}
}
