package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

var ErrPasswordTooShort = errors.New("password must be at least 8 characters long")

// PasswordHasher salts with bcrypt and peppers by encrypting the bcrypt hash
// with a key only the application holds. Passwords are HMAC-SHA256 digested before
// bcrypt, so passphrases past bcrypt's 72-byte input limit neither fail nor truncate.
type PasswordHasher struct {
	pepper *Cipher
	digest []byte
	cost   int
}

func NewPasswordHasher(pepper string, cost int) (*PasswordHasher, error) {
	c, err := NewCipher(pepper, "password-pepper")
	if err != nil {
		return nil, err
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{pepper: c, digest: []byte(pepper), cost: cost}, nil
}

// prehash yields 44 base64 bytes with no NUL, well inside bcrypt's limit
func (h *PasswordHasher) prehash(password string) []byte {
	mac := hmac.New(sha256.New, h.digest)
	mac.Write([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword(h.prehash(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return h.pepper.Encrypt(string(hash))
}

// Verify never distinguishes a corrupt hash from a wrong password
func (h *PasswordHasher) Verify(stored, password string) bool {
	hash, err := h.pepper.Decrypt(stored)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), h.prehash(password)) == nil
}
