package domain

import (
	"errors"
	"fmt"
	"time"
)

type SignupMethod string

const (
	SignupMethodWeb    SignupMethod = "WEB"
	SignupMethodMobile SignupMethod = "MOBILE"
)

type IdentificationType string

const (
	IdentificationNationalID IdentificationType = "NATIONAL_ID"
	IdentificationPassport   IdentificationType = "PASSPORT"
)

var IdentificationTypes = []IdentificationType{IdentificationNationalID, IdentificationPassport}

// Default role vocabulary assigned at registration
const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

var (
	ErrUnknownIdentificationType = errors.New("identification type not supported")
	ErrEmptyIdentificationValue  = errors.New("identification value cannot be empty")
	ErrOrganizationAlreadyBound  = errors.New("user already belongs to an organization")
)

// RoleAssignment maps a role name to its tier; a nil tier means the role carries no rank
type RoleAssignment map[string]*string

// Clone returns a deep copy suitable for embedding in a token
func (r RoleAssignment) Clone() RoleAssignment {
	out := make(RoleAssignment, len(r))
	for role, tier := range r {
		if tier == nil {
			out[role] = nil
			continue
		}
		t := *tier
		out[role] = &t
	}
	return out
}

type User struct {
	ID                  int32                         `json:"id"`
	GivenNames          string                        `json:"given_names"`
	Surname             string                        `json:"surname"`
	Email               string                        `json:"email,omitempty"`
	Phone               string                        `json:"phone,omitempty"`
	PasswordHash        string                        `json:"-"`
	Identification      map[IdentificationType]string `json:"identification,omitempty"`
	IsActivated         bool                          `json:"is_activated"`
	OTPSecret           string                        `json:"-"`
	Roles               RoleAssignment                `json:"roles"`
	PasswordResetTokens []string                      `json:"-"`
	OrganizationID      int32                         `json:"organization_id"`
	SignupMethod        SignupMethod                  `json:"signup_method"`
	CreatedOn           time.Time                     `json:"created_on"`
	UpdatedOn           time.Time                     `json:"updated_on"`
}

// SetIdentification records an identification document of a supported type
func (u *User) SetIdentification(idType IdentificationType, value string) error {
	supported := false
	for _, t := range IdentificationTypes {
		if t == idType {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: %s", ErrUnknownIdentificationType, idType)
	}
	if value == "" {
		return ErrEmptyIdentificationValue
	}
	if u.Identification == nil {
		u.Identification = make(map[IdentificationType]string)
	}
	u.Identification[idType] = value
	return nil
}

// BindToOrganization sets the parent organization once; it is immutable afterwards
func (u *User) BindToOrganization(orgID int32) error {
	if u.OrganizationID != 0 && u.OrganizationID != orgID {
		return ErrOrganizationAlreadyBound
	}
	u.OrganizationID = orgID
	return nil
}

// SavePasswordResetToken tracks an issued reset token
func (u *User) SavePasswordResetToken(token string) {
	u.PasswordResetTokens = append(u.PasswordResetTokens, token)
}

// PrunePasswordResetTokens drops every tracked token for which stillValid is false
func (u *User) PrunePasswordResetTokens(stillValid func(token string) bool) {
	kept := u.PasswordResetTokens[:0]
	for _, t := range u.PasswordResetTokens {
		if stillValid(t) {
			kept = append(kept, t)
		}
	}
	u.PasswordResetTokens = kept
}

// IsPasswordResetTokenUsed prunes stale tokens and then reports whether token is no longer tracked.
// An expired token is therefore reported as used.
func (u *User) IsPasswordResetTokenUsed(token string, stillValid func(token string) bool) bool {
	u.PrunePasswordResetTokens(stillValid)
	for _, t := range u.PasswordResetTokens {
		if t == token {
			return false
		}
	}
	return true
}

// ClearPasswordResetTokens invalidates every outstanding reset token
func (u *User) ClearPasswordResetTokens() {
	u.PasswordResetTokens = nil
}
